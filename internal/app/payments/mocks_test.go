package payments

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stretchr/testify/mock"

	"payment-ledger/internal/domain"
	"payment-ledger/internal/gateway"
)

// fakeDB runs WithinTx callbacks inline. Repositories are mocked, so the
// querier itself is never used for SQL.
type fakeDB struct {
	transactions int
}

func (f *fakeDB) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("fakeDB: unexpected ExecContext")
}

func (f *fakeDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("fakeDB: unexpected QueryContext")
}

func (f *fakeDB) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (f *fakeDB) WithinTx(_ context.Context, fn func(tx domain.Querier) error) error {
	f.transactions++
	return fn(f)
}

type mockMethodRepo struct{ mock.Mock }

func (m *mockMethodRepo) Add(ctx context.Context, pm *domain.PaymentMethod) error {
	return m.Called(ctx, pm).Error(0)
}

func (m *mockMethodRepo) ListByUser(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	args := m.Called(ctx, userID)
	methods, _ := args.Get(0).([]domain.PaymentMethod)
	return methods, args.Error(1)
}

func (m *mockMethodRepo) GetForUser(ctx context.Context, id, userID string) (*domain.PaymentMethod, error) {
	args := m.Called(ctx, id, userID)
	pm, _ := args.Get(0).(*domain.PaymentMethod)
	return pm, args.Error(1)
}

func (m *mockMethodRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

type mockTxRepo struct{ mock.Mock }

func (m *mockTxRepo) CreateTx(ctx context.Context, q domain.Querier, t *domain.Transaction) error {
	return m.Called(ctx, q, t).Error(0)
}

func (m *mockTxRepo) GetByIDTx(ctx context.Context, q domain.Querier, id string) (*domain.Transaction, error) {
	args := m.Called(ctx, q, id)
	t, _ := args.Get(0).(*domain.Transaction)
	return t, args.Error(1)
}

func (m *mockTxRepo) GetByIdempotencyKeyTx(ctx context.Context, q domain.Querier, key string) (*domain.Transaction, error) {
	args := m.Called(ctx, q, key)
	t, _ := args.Get(0).(*domain.Transaction)
	return t, args.Error(1)
}

func (m *mockTxRepo) GetSucceededRefundTx(ctx context.Context, q domain.Querier, originalID string) (*domain.Transaction, error) {
	args := m.Called(ctx, q, originalID)
	t, _ := args.Get(0).(*domain.Transaction)
	return t, args.Error(1)
}

func (m *mockTxRepo) ListByOrderIDTx(ctx context.Context, q domain.Querier, orderID string) ([]domain.Transaction, error) {
	args := m.Called(ctx, q, orderID)
	ts, _ := args.Get(0).([]domain.Transaction)
	return ts, args.Error(1)
}

type mockOutboxRepo struct{ mock.Mock }

func (m *mockOutboxRepo) CreateMessageTx(ctx context.Context, q domain.Querier, msg *domain.OutboxMessage) error {
	return m.Called(ctx, q, msg).Error(0)
}

func (m *mockOutboxRepo) GetPendingMessages(ctx context.Context, q domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	args := m.Called(ctx, q, limit)
	msgs, _ := args.Get(0).([]domain.OutboxMessage)
	return msgs, args.Error(1)
}

func (m *mockOutboxRepo) UpdateMessageStatusTx(ctx context.Context, q domain.Querier, id string, status domain.OutboxMessageStatus) error {
	return m.Called(ctx, q, id, status).Error(0)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) Charge(ctx context.Context, amountCents int64) (gateway.Result, error) {
	args := m.Called(ctx, amountCents)
	return args.Get(0).(gateway.Result), args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, amountCents int64) (gateway.Result, error) {
	args := m.Called(ctx, amountCents)
	return args.Get(0).(gateway.Result), args.Error(1)
}
