// Package orderstore is the durable record of orders and their status
// transitions, indexed for the book queries the matching engine needs.
package orderstore

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"clobcore/internal/model"
	"clobcore/internal/money"
	"clobcore/internal/xerrors"
)

// Store issues order CRUD against the shared database.
type Store struct{}

// New builds an order Store.
func New() *Store { return &Store{} }

func scanOrder(row interface {
	Scan(dest ...any) error
}) (*model.Order, error) {
	var o model.Order
	var price, amount, filled string
	err := row.Scan(&o.ID, &o.UserID, &o.PairSymbol, &o.Side, &o.OrderType,
		&price, &amount, &filled, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	o.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	o.FilledAmount, err = decimal.NewFromString(filled)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

const orderCols = `id, user_id, pair_symbol, side, order_type, price, amount, filled_amount, status, created_at, updated_at`

// Insert creates a new order row with status OPEN, filled_amount 0, and
// returns it with its assigned id and timestamps. Amount is normalized to
// money.AmountScale before it is stored, the same boundary UpdateFill
// normalizes filled_amount at.
func (s *Store) Insert(ctx context.Context, tx *sql.Tx, o model.Order) (*model.Order, error) {
	amount := money.RoundAmount(o.Amount)
	row := tx.QueryRowContext(ctx, `
		INSERT INTO "order" (user_id, pair_symbol, side, order_type, price, amount, filled_amount, status)
		VALUES ($1,$2,$3,$4,$5,$6,0,$7)
		RETURNING `+orderCols,
		o.UserID, o.PairSymbol, o.Side, o.OrderType, o.Price.String(), amount.String(), o.Status)
	return scanOrder(row)
}

// GetForUpdate fetches one order by id with a pessimistic row lock.
func (s *Store) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+orderCols+` FROM "order" WHERE id=$1 FOR UPDATE`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, &xerrors.OrderNotFoundError{OrderID: id}
	}
	return o, err
}

func collect(rows *sql.Rows) ([]*model.Order, error) {
	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListUserOrders returns a user's orders, newest first, with optional status and pair filters.
func (s *Store) ListUserOrders(ctx context.Context, db *sql.DB, userID string, status *model.OrderStatus, pair *string) ([]*model.Order, error) {
	query := `SELECT ` + orderCols + ` FROM "order" WHERE user_id=$1`
	args := []any{userID}
	if status != nil {
		args = append(args, *status)
		query += " AND status=$" + strconv.Itoa(len(args))
	}
	if pair != nil {
		args = append(args, *pair)
		query += " AND pair_symbol=$" + strconv.Itoa(len(args))
	}
	query += " ORDER BY created_at DESC"
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// BookSnapshot returns OPEN orders for a pair, optionally filtered by side.
// With a side, orders are sorted per section 4.4 (best price first, then
// created_at, then id); without one, all OPEN orders are sorted by ascending
// price, then created_at, then id.
func (s *Store) BookSnapshot(ctx context.Context, db *sql.DB, pairSymbol string, side *model.Side) ([]*model.Order, error) {
	query := `SELECT ` + orderCols + ` FROM "order" WHERE pair_symbol=$1 AND status='OPEN'`
	args := []any{pairSymbol}
	if side != nil {
		args = append(args, *side)
		query += " AND side=$" + strconv.Itoa(len(args))
		if *side == model.Buy {
			query += " ORDER BY price DESC, created_at ASC, id ASC"
		} else {
			query += " ORDER BY price ASC, created_at ASC, id ASC"
		}
	} else {
		query += " ORDER BY price ASC, created_at ASC, id ASC"
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// UpdateFill persists a new filled_amount and status for an order, bumping
// updated_at. filledAmount is normalized to money.AmountScale before storage.
func (s *Store) UpdateFill(ctx context.Context, tx *sql.Tx, id int64, filledAmount decimal.Decimal, status model.OrderStatus) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE "order" SET filled_amount=$1, status=$2, updated_at=$3 WHERE id=$4`,
		money.RoundAmount(filledAmount).String(), status, now(), id)
	return err
}

// MarkCancelled sets an order's status to CANCELLED, bumping updated_at.
func (s *Store) MarkCancelled(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE "order" SET status='CANCELLED', updated_at=$1 WHERE id=$2`, now(), id)
	return err
}

// Get fetches one order by id without a row lock, for read-only callers
// (e.g. routing a cancel request to the owning pair's engine).
func (s *Store) Get(ctx context.Context, db *sql.DB, id int64) (*model.Order, error) {
	row := db.QueryRowContext(ctx, `SELECT `+orderCols+` FROM "order" WHERE id=$1`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, &xerrors.OrderNotFoundError{OrderID: id}
	}
	return o, err
}

// InsertTrade persists one executed fill. Every committed fill produces
// exactly one trade row, in the same transaction as its settlement (section
// 3 supplement).
func (s *Store) InsertTrade(ctx context.Context, tx *sql.Tx, t model.Trade) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO trade (id, pair_symbol, buy_order_id, sell_order_id, buyer_id, seller_id, price, quantity)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.PairSymbol, t.BuyOrderID, t.SellOrderID, t.BuyerID, t.SellerID, t.Price.String(), t.Quantity.String())
	return err
}

func now() time.Time { return time.Now().UTC() }
