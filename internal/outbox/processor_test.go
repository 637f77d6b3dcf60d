package outbox

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payment-ledger/internal/domain"
)

type fakeTx struct{}

func (fakeTx) ExecContext(context.Context, string, ...any) (sql.Result, error) { return nil, nil }
func (fakeTx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) { return nil, nil }
func (fakeTx) QueryRowContext(context.Context, string, ...any) *sql.Row       { return nil }

type fakeRunner struct {
	calls int
}

func (r *fakeRunner) WithinTx(_ context.Context, fn func(tx domain.Querier) error) error {
	r.calls++
	return fn(fakeTx{})
}

type mockRepo struct{ mock.Mock }

func (m *mockRepo) GetPendingMessages(ctx context.Context, q domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	args := m.Called(ctx, q, limit)
	msgs, _ := args.Get(0).([]domain.OutboxMessage)
	return msgs, args.Error(1)
}

func (m *mockRepo) UpdateMessageStatusTx(ctx context.Context, q domain.Querier, id string, status domain.OutboxMessageStatus) error {
	return m.Called(ctx, q, id, status).Error(0)
}

type mockProducer struct{ mock.Mock }

func (m *mockProducer) Produce(ctx context.Context, topic, key string, value []byte) error {
	return m.Called(ctx, topic, key, value).Error(0)
}

func newTestProcessor(repo *mockRepo, producer *mockProducer) (*Processor, *fakeRunner) {
	runner := &fakeRunner{}
	return NewProcessor(runner, repo, producer, 10*time.Millisecond, time.Second, 2, zap.NewNop()), runner
}

func pending(id string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:          id,
		Topic:       "payment_transactions",
		Key:         "order-" + id,
		MessageType: "transaction.charge.succeeded",
		Payload:     []byte(`{"transaction_id":"` + id + `"}`),
		Status:      domain.OutboxStatusPending,
	}
}

func TestProcessOutboxMessagesSendsBatch(t *testing.T) {
	repo := &mockRepo{}
	producer := &mockProducer{}
	p, _ := newTestProcessor(repo, producer)

	msgs := []domain.OutboxMessage{pending("1"), pending("2")}
	repo.On("GetPendingMessages", mock.Anything, mock.Anything, 2).Return(msgs, nil).Once()
	for _, msg := range msgs {
		producer.On("Produce", mock.Anything, msg.Topic, msg.Key, msg.Payload).Return(nil).Once()
		repo.On("UpdateMessageStatusTx", mock.Anything, mock.Anything, msg.ID, domain.OutboxStatusSent).Return(nil).Once()
	}

	sent, err := p.processOutboxMessages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	repo.AssertExpectations(t)
	producer.AssertExpectations(t)
}

func TestProcessOutboxMessagesStopsOnProduceFailure(t *testing.T) {
	repo := &mockRepo{}
	producer := &mockProducer{}
	p, _ := newTestProcessor(repo, producer)

	first, second := pending("1"), pending("2")
	repo.On("GetPendingMessages", mock.Anything, mock.Anything, 2).Return([]domain.OutboxMessage{first, second}, nil).Once()
	producer.On("Produce", mock.Anything, first.Topic, first.Key, first.Payload).Return(errors.New("broker unavailable")).Once()

	sent, err := p.processOutboxMessages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	repo.AssertNotCalled(t, "UpdateMessageStatusTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	producer.AssertNumberOfCalls(t, "Produce", 1)
}

func TestProcessOutboxMessagesRepositoryError(t *testing.T) {
	repo := &mockRepo{}
	producer := &mockProducer{}
	p, _ := newTestProcessor(repo, producer)

	repo.On("GetPendingMessages", mock.Anything, mock.Anything, 2).Return(nil, errors.New("relation does not exist")).Once()

	_, err := p.processOutboxMessages(context.Background())
	assert.Error(t, err)
	producer.AssertNotCalled(t, "Produce", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStartReturnsOnCancel(t *testing.T) {
	repo := &mockRepo{}
	producer := &mockProducer{}
	p, runner := newTestProcessor(repo, producer)
	repo.On("GetPendingMessages", mock.Anything, mock.Anything, 2).Return([]domain.OutboxMessage{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop after cancel")
	}
	assert.Positive(t, runner.calls)
}
