package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"payment-ledger/internal/domain"
)

type OutboxRepository interface {
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	UpdateMessageStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OutboxMessageStatus) error
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx domain.Querier) error) error
}

type Producer interface {
	Produce(ctx context.Context, topic, key string, value []byte) error
}

// Processor relays pending outbox rows to Kafka. Delivery is at-least-once:
// a row is marked SENT in the same transaction that locked it, after the
// broker accepted the message.
type Processor struct {
	db           TxRunner
	outboxRepo   OutboxRepository
	producer     Producer
	pollInterval time.Duration
	pollTimeout  time.Duration
	batchSize    int
	logger       *zap.Logger
}

func NewProcessor(
	db TxRunner,
	outboxRepo OutboxRepository,
	producer Producer,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	batchSize int,
	logger *zap.Logger,
) *Processor {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Processor{
		db:           db,
		outboxRepo:   outboxRepo,
		producer:     producer,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start polls until ctx is cancelled. It blocks.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped")
			return
		case <-ticker.C:
			if _, err := p.processOutboxMessages(ctx); err != nil {
				p.logger.Error("Failed to process outbox batch", zap.Error(err))
			}
		}
	}
}

func (p *Processor) processOutboxMessages(ctx context.Context) (int, error) {
	sent := 0
	err := p.db.WithinTx(ctx, func(tx domain.Querier) error {
		queryCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
		messages, err := p.outboxRepo.GetPendingMessages(queryCtx, tx, p.batchSize)
		cancel()
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			p.logger.Debug("No pending outbox messages found")
			return nil
		}
		p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

		for _, msg := range messages {
			if err := p.producer.Produce(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
				// Leave this and the remaining rows pending for the next tick.
				p.logger.Error("Failed to send outbox message to Kafka",
					zap.String("message_id", msg.ID),
					zap.String("topic", msg.Topic),
					zap.Error(err))
				return nil
			}
			if err := p.outboxRepo.UpdateMessageStatusTx(ctx, tx, msg.ID, domain.OutboxStatusSent); err != nil {
				return err
			}
			sent++
			p.logger.Debug("Outbox message sent",
				zap.String("message_id", msg.ID),
				zap.String("message_type", msg.MessageType),
				zap.String("topic", msg.Topic))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		p.logger.Info("Outbox messages published", zap.Int("count", sent))
	}
	return sent, nil
}
