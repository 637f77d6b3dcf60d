package transactions_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"payment-ledger/internal/domain"
)

const (
	uniqueViolation = "23505"

	idempotencyKeyConstraint = "uq_transactions_idempotency_key"
	refundedOnceConstraint   = "uq_transactions_refunded_original"

	transactionColumns = `id, order_id, user_id, payment_method_id, amount_cents, currency, status, type, provider_ref, idempotency_key, original_transaction_id, created_at`
)

type transactionRepository struct{}

func NewTransactionRepository() *transactionRepository {
	return &transactionRepository{}
}

func (r *transactionRepository) CreateTx(ctx context.Context, querier domain.Querier, t *domain.Transaction) error {
	if t.AmountCents < 0 {
		return domain.InvalidArgument("amount_cents must not be negative")
	}

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := querier.ExecContext(ctx, query,
		t.ID,
		t.OrderID,
		t.UserID,
		toNullString(t.PaymentMethodID),
		t.AmountCents,
		t.Currency,
		string(t.Status),
		string(t.Type),
		toNullString(t.ProviderRef),
		toNullString(t.IdempotencyKey),
		toNullString(t.OriginalTransactionID),
		t.CreatedAt,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.Constraint {
			case idempotencyKeyConstraint:
				return domain.ErrDuplicateIdempotencyKey
			case refundedOnceConstraint:
				return domain.ErrDuplicateRefund
			}
		}
		return fmt.Errorf("failed to create transaction for order %s: %w", t.OrderID, err)
	}
	return nil
}

func (r *transactionRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.getOne(ctx, querier, query, id)
}

func (r *transactionRepository) GetByIdempotencyKeyTx(ctx context.Context, querier domain.Querier, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	return r.getOne(ctx, querier, query, key)
}

func (r *transactionRepository) GetSucceededRefundTx(ctx context.Context, querier domain.Querier, originalID string) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE original_transaction_id = $1 AND type = 'refund' AND status = 'refunded'
	`
	return r.getOne(ctx, querier, query, originalID)
}

func (r *transactionRepository) ListByOrderIDTx(ctx context.Context, querier domain.Querier, orderID string) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE order_id = $1
		ORDER BY created_at ASC
	`
	rows, err := querier.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for order %s: %w", orderID, err)
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

func (r *transactionRepository) getOne(ctx context.Context, querier domain.Querier, query string, arg string) (*domain.Transaction, error) {
	t, err := scanTransaction(querier.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var (
		status, txType                                              string
		paymentMethodID, providerRef, idempotencyKey, originalTxnID sql.NullString
	)
	err := row.Scan(
		&t.ID,
		&t.OrderID,
		&t.UserID,
		&paymentMethodID,
		&t.AmountCents,
		&t.Currency,
		&status,
		&txType,
		&providerRef,
		&idempotencyKey,
		&originalTxnID,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TransactionStatus(status)
	t.Type = domain.TransactionType(txType)
	t.PaymentMethodID = fromNullString(paymentMethodID)
	t.ProviderRef = fromNullString(providerRef)
	t.IdempotencyKey = fromNullString(idempotencyKey)
	t.OriginalTransactionID = fromNullString(originalTxnID)
	return t, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
