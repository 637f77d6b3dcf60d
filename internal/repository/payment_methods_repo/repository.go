package payment_methods_repo

import (
	"context"

	"payment-ledger/internal/domain"
)

type PaymentMethodRepository interface {
	Add(ctx context.Context, pm *domain.PaymentMethod) error
	ListByUser(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	GetForUser(ctx context.Context, id, userID string) (*domain.PaymentMethod, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
}
