package transactions_repo

import (
	"context"

	"payment-ledger/internal/domain"
)

// TransactionRepository is the append-only ledger. Lookups return nil, nil
// when nothing matches.
type TransactionRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, t *domain.Transaction) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Transaction, error)
	GetByIdempotencyKeyTx(ctx context.Context, querier domain.Querier, key string) (*domain.Transaction, error)
	GetSucceededRefundTx(ctx context.Context, querier domain.Querier, originalID string) (*domain.Transaction, error)
	ListByOrderIDTx(ctx context.Context, querier domain.Querier, orderID string) ([]domain.Transaction, error)
}
