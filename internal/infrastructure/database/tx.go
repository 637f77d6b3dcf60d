package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"payment-ledger/internal/domain"
)

// DB is the process-wide pool handle. Reads go straight through the embedded
// *sql.DB; writes that must be atomic go through WithinTx.
type DB struct {
	*sql.DB
	logger *zap.Logger
}

func New(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// WithinTx runs fn in a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise, including on panic.
func (d *DB) WithinTx(ctx context.Context, fn func(tx domain.Querier) error) (err error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("Recovered panic inside transaction, rolling back", zap.Any("panic", p))
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
			return multierr.Append(err, fmt.Errorf("failed to roll back transaction: %w", rbErr))
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
