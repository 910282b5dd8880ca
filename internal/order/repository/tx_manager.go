package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// TxManager открывает транзакцию, выполняет fn и делает commit или rollback.
// Соединение возвращается в пул в обоих случаях.
type TxManager struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewTxManager(db *sqlx.DB, logger *zap.Logger) *TxManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TxManager{db: db, logger: logger}
}

// WithTransaction rolls back if fn returns an error or panics; the panic is re-raised.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return m.WithTransactionOptions(ctx, nil, fn)
}

func (m *TxManager) WithTransactionOptions(ctx context.Context, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) error {
	tx, err := m.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			m.rollback(tx, nil)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		m.rollback(tx, err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (m *TxManager) rollback(tx *sqlx.Tx, cause error) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		m.logger.Error("failed to rollback transaction", zap.Error(err), zap.NamedError("cause", cause))
	}
}
