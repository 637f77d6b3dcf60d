package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"payment-ledger/internal/app/payments"
	"payment-ledger/internal/domain"
	kafka_infra "payment-ledger/internal/infrastructure/kafka"
)

// ChargeRequestMessageHandler charges orders requested over Kafka. Malformed
// and invalid requests are logged and committed; only Internal failures leave
// the offset uncommitted.
func ChargeRequestMessageHandler(paymentService payments.PaymentService, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event domain.ChargeRequestedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("Failed to unmarshal Kafka message value to ChargeRequestedEvent",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}

		key := event.IdempotencyKey
		if key == "" {
			key = MessageIdempotencyKey(msg)
		}

		logger.Info("Processing ChargeRequestedEvent",
			zap.String("order_id", event.OrderID),
			zap.String("user_id", event.UserID),
			zap.Int64("amount_cents", event.AmountCents),
			zap.String("idempotency_key", key),
		)

		res, err := paymentService.Charge(ctx, payments.ChargeParams{
			OrderID:         event.OrderID,
			UserID:          event.UserID,
			PaymentMethodID: event.PaymentMethodID,
			AmountCents:     event.AmountCents,
			Currency:        event.Currency,
			IdempotencyKey:  key,
		})
		if err != nil {
			if domain.KindOf(err) != domain.KindInternal {
				logger.Warn("Rejected charge request",
					zap.String("order_id", event.OrderID),
					zap.String("reason", domain.MessageOf(err)),
				)
				return nil
			}
			return fmt.Errorf("failed to charge order %s: %w", event.OrderID, err)
		}

		logger.Info("Charge request processed",
			zap.String("order_id", event.OrderID),
			zap.String("transaction_id", res.Transaction.ID),
			zap.Bool("success", res.Success),
			zap.Bool("replayed", res.Replayed),
		)
		return nil
	}
}

// MessageIdempotencyKey identifies a message by its position in the log, so a
// redelivered message maps onto the charge recorded the first time.
func MessageIdempotencyKey(msg kafka.Message) string {
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}
