package payment_methods_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"payment-ledger/internal/domain"
)

const paymentMethodColumns = `id, user_id, type, token, last_four, brand, exp_month, exp_year, is_default, created_at`

type paymentMethodRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPaymentMethodRepository(db *sql.DB, logger *zap.Logger) *paymentMethodRepository {
	return &paymentMethodRepository{db: db, logger: logger}
}

// Add inserts pm. When pm is the new default, the user's previous defaults are
// cleared first in the same transaction. The per-user advisory lock serializes
// concurrent adds for one user, so two "set as default" calls cannot both see
// zero defaults; the partial unique index on (user_id) WHERE is_default is the
// backstop.
func (r *paymentMethodRepository) Add(ctx context.Context, pm *domain.PaymentMethod) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for payment method creation", zap.String("user_id", pm.UserID), zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic during payment method creation, rolling back", zap.String("user_id", pm.UserID))
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			r.logger.Warn("Rolling back payment method creation", zap.String("user_id", pm.UserID), zap.Error(err))
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				r.logger.Error("Failed to commit payment method creation", zap.String("user_id", pm.UserID), zap.Error(err))
				err = fmt.Errorf("failed to commit payment method: %w", err)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, pm.UserID); err != nil {
		return fmt.Errorf("failed to lock payment methods of user %s: %w", pm.UserID, err)
	}

	if pm.IsDefault {
		res, execErr := tx.ExecContext(ctx,
			`UPDATE payment_methods SET is_default = false WHERE user_id = $1 AND is_default`,
			pm.UserID)
		if execErr != nil {
			err = fmt.Errorf("failed to clear default payment method of user %s: %w", pm.UserID, execErr)
			return err
		}
		cleared, raErr := res.RowsAffected()
		if raErr != nil {
			err = fmt.Errorf("failed to get rows affected: %w", raErr)
			return err
		}
		if cleared > 0 {
			r.logger.Debug("Cleared previous default payment method", zap.String("user_id", pm.UserID), zap.Int64("rows", cleared))
		}
	}

	query := `
		INSERT INTO payment_methods (` + paymentMethodColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.ExecContext(ctx, query,
		pm.ID,
		pm.UserID,
		string(pm.Type),
		pm.Token,
		pm.LastFour,
		pm.Brand,
		pm.ExpMonth,
		pm.ExpYear,
		pm.IsDefault,
		pm.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment method for user %s: %w", pm.UserID, err)
	}
	return nil
}

func (r *paymentMethodRepository) ListByUser(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	query := `
		SELECT ` + paymentMethodColumns + `
		FROM payment_methods
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods for user %s: %w", userID, err)
	}
	defer rows.Close()

	methods := make([]domain.PaymentMethod, 0)
	for rows.Next() {
		pm, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, *pm)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment methods: %w", err)
	}
	return methods, nil
}

// GetForUser returns nil when the method does not exist or belongs to another
// user.
func (r *paymentMethodRepository) GetForUser(ctx context.Context, id, userID string) (*domain.PaymentMethod, error) {
	query := `
		SELECT ` + paymentMethodColumns + `
		FROM payment_methods
		WHERE id = $1 AND user_id = $2
	`
	pm, err := scanPaymentMethod(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment method %s: %w", id, err)
	}
	return pm, nil
}

// Delete removes the method only if userID owns it. It reports whether a row
// was removed; a miss is not an error.
func (r *paymentMethodRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payment_methods WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete payment method %s: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaymentMethod(row rowScanner) (*domain.PaymentMethod, error) {
	pm := &domain.PaymentMethod{}
	var methodType string
	err := row.Scan(
		&pm.ID,
		&pm.UserID,
		&methodType,
		&pm.Token,
		&pm.LastFour,
		&pm.Brand,
		&pm.ExpMonth,
		&pm.ExpYear,
		&pm.IsDefault,
		&pm.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	pm.Type = domain.PaymentMethodType(methodType)
	return pm, nil
}
