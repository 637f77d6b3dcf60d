package outbox

import (
	"encoding/json"
	"fmt"

	"payment-ledger/internal/domain"
	"payment-ledger/internal/util"
)

const AggregateTypeTransaction = "transaction"

// NewTransactionMessage builds the outbox row announcing t. Messages are keyed
// by order id so every event of an order lands on one partition.
func NewTransactionMessage(t *domain.Transaction, topic, reason string) (*domain.OutboxMessage, error) {
	event := domain.TransactionEvent{
		TransactionID: t.ID,
		OrderID:       t.OrderID,
		UserID:        t.UserID,
		Type:          string(t.Type),
		Status:        string(t.Status),
		AmountCents:   t.AmountCents,
		Currency:      t.Currency,
		Reason:        reason,
		Timestamp:     t.CreatedAt,
	}
	if t.PaymentMethodID != nil {
		event.PaymentMethodID = *t.PaymentMethodID
	}
	if t.ProviderRef != nil {
		event.ProviderRef = *t.ProviderRef
	}
	if t.OriginalTransactionID != nil {
		event.OriginalTransactionID = *t.OriginalTransactionID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction event %s: %w", t.ID, err)
	}

	return &domain.OutboxMessage{
		ID:            util.NewID(),
		AggregateID:   t.ID,
		AggregateType: AggregateTypeTransaction,
		MessageType:   fmt.Sprintf("transaction.%s.%s", t.Type, t.Status),
		Topic:         topic,
		Key:           t.OrderID,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     t.CreatedAt,
	}, nil
}
