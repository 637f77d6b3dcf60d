package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one message. Returning nil commits the offset; an
// error makes the consumer retry the same message until it succeeds or the
// consumer is stopped.
type MessageHandler func(ctx context.Context, message kafka.Message) error

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
	Close() error
}

const (
	defaultHandlerTimeout = 25 * time.Second
	defaultRetryBackoff   = 500 * time.Millisecond
	maxRetryBackoff       = 30 * time.Second
)

type Consumer struct {
	reader         messageReader
	logger         *zap.Logger
	handler        MessageHandler
	handlerTimeout time.Duration
	retryBackoff   time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, handler MessageHandler, handlerTimeout time.Duration, l *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		Logger:         kafka.LoggerFunc(l.Sugar().Debugf),
		ErrorLogger:    kafka.LoggerFunc(l.Sugar().Errorf),
	})
	return newConsumer(reader, handler, handlerTimeout, defaultRetryBackoff, l)
}

func newConsumer(reader messageReader, handler MessageHandler, handlerTimeout, retryBackoff time.Duration, l *zap.Logger) *Consumer {
	if handlerTimeout <= 0 {
		handlerTimeout = defaultHandlerTimeout
	}
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	return &Consumer{
		reader:         reader,
		logger:         l,
		handler:        handler,
		handlerTimeout: handlerTimeout,
		retryBackoff:   retryBackoff,
	}
}

// Consume blocks until ctx is cancelled or the reader is closed. Offsets are
// committed in order: a message whose handler fails is retried before any
// later message of the partition is fetched.
func (c *Consumer) Consume(ctx context.Context) error {
	topic := c.reader.Config().Topic
	c.logger.Info("Kafka consumer starting message consumption",
		zap.String("topic", topic),
		zap.String("group_id", c.reader.Config().GroupID),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping consumer", zap.String("topic", topic))
			return nil
		default:
		}

		fetchCtx, cancelFetch := context.WithTimeout(ctx, 5*time.Second)
		m, err := c.reader.FetchMessage(fetchCtx)
		cancelFetch()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, kafka.ErrGroupClosed) || errors.Is(err, io.EOF) {
				c.logger.Info("Consumer stopping", zap.Error(err), zap.String("topic", topic))
				return nil
			}
			c.logger.Error("Error fetching message from Kafka", zap.Error(err), zap.String("topic", topic))
			time.Sleep(time.Second)
			continue
		}

		if !c.handleWithRetry(ctx, m) {
			c.logger.Info("Consumer stopped before message was handled, offset not committed",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset))
			return nil
		}

		commitCtx, cancelCommit := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.reader.CommitMessages(commitCtx, m); err != nil {
			c.logger.Error("Failed to commit offset for message",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
		cancelCommit()
	}
}

// handleWithRetry runs the handler until it succeeds, backing off
// exponentially between attempts. It reports false when ctx is cancelled
// first.
func (c *Consumer) handleWithRetry(ctx context.Context, m kafka.Message) bool {
	backoff := c.retryBackoff
	for attempt := 1; ; attempt++ {
		// Each attempt gets its own deadline so an in-flight charge is not
		// abandoned halfway through shutdown.
		handleCtx, cancelHandler := context.WithTimeout(context.Background(), c.handlerTimeout)
		err := c.handler(handleCtx, m)
		cancelHandler()
		if err == nil {
			return true
		}

		c.logger.Error("Error handling Kafka message, retrying",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka consumer reader", zap.Error(err), zap.String("topic", c.reader.Config().Topic))
		return fmt.Errorf("failed to close Kafka consumer reader: %w", err)
	}
	c.logger.Info("Kafka consumer reader closed", zap.String("topic", c.reader.Config().Topic))
	return nil
}
