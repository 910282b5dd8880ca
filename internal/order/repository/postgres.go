package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"orderdesk/internal/order"
)

const insertOrderQuery = `
	INSERT INTO orders (type, side, instrument, limit_price, quantity, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	RETURNING id, created_at`

const selectOrderQuery = `
	SELECT id, type, side, instrument, limit_price, quantity, created_at
	FROM orders WHERE id = $1`

type orderRow struct {
	ID         int64               `db:"id"`
	Type       string              `db:"type"`
	Side       string              `db:"side"`
	Instrument string              `db:"instrument"`
	LimitPrice decimal.NullDecimal `db:"limit_price"`
	Quantity   decimal.Decimal     `db:"quantity"`
	CreatedAt  time.Time           `db:"created_at"`
}

func (r orderRow) toOrder() *order.Order {
	o := &order.Order{
		ID:         r.ID,
		Type:       order.Type(r.Type),
		Side:       order.Side(r.Side),
		Instrument: r.Instrument,
		Quantity:   r.Quantity,
		CreatedAt:  r.CreatedAt,
	}
	if r.LimitPrice.Valid {
		p := r.LimitPrice.Decimal
		o.LimitPrice = &p
	}
	return o
}

type PostgresOrderRepository struct {
	db  *sqlx.DB
	txm *TxManager
}

func NewPostgresOrderRepository(db *sqlx.DB, txm *TxManager) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db, txm: txm}
}

// CreateOrder validates the draft and inserts it in a single transaction.
// It returns *order.ValidationError before touching the database, or
// *order.PersistenceError if anything fails after that; no row is left behind.
func (r *PostgresOrderRepository) CreateOrder(ctx context.Context, d order.Draft) (*order.Order, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	o := &order.Order{
		Type:       d.Type,
		Side:       d.Side,
		Instrument: d.Instrument,
		LimitPrice: d.LimitPrice,
		Quantity:   d.Quantity,
	}

	limitPrice := decimal.NullDecimal{}
	if d.LimitPrice != nil {
		limitPrice = decimal.NewNullDecimal(*d.LimitPrice)
	}

	err := r.txm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, insertOrderQuery,
			string(d.Type), string(d.Side), d.Instrument, limitPrice, d.Quantity,
		).Scan(&o.ID, &o.CreatedAt)
	})
	if err != nil {
		return nil, persistenceError("creating order", err)
	}

	return o, nil
}

func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var row orderRow
	if err := r.db.GetContext(ctx, &row, selectOrderQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, persistenceError("loading order", err)
	}
	return row.toOrder(), nil
}

// CountOrders возвращает общее количество ордеров в таблице.
func (r *PostgresOrderRepository) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM orders`); err != nil {
		return 0, persistenceError("counting orders", err)
	}
	return n, nil
}

func persistenceError(op string, err error) error {
	pe := &order.PersistenceError{Op: op, Err: err}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		pe.Code = pqErr.Code.Name()
	}
	return pe
}
