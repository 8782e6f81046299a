// Package orderservice is the façade of section 4.5: place_order and
// cancel_order, plus the read-only get_user_orders/get_order_book. It also
// owns the concurrency shell of section 5 — one single-goroutine "pair
// engine" per trading pair, generalizing the teacher's per-market actor.
package orderservice

import (
	"context"
	"database/sql"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.uber.org/atomic"

	"clobcore/internal/db"
	"clobcore/internal/ledger"
	"clobcore/internal/matching"
	"clobcore/internal/model"
	"clobcore/internal/orderstore"
	"clobcore/internal/xerrors"
)

// Service is the shared handle every pair engine uses to reach the store,
// the ledger, and the order store. It holds no mutable trading state of its
// own beyond the engines map: all book state lives inside each pairEngine,
// touched only by that engine's own goroutine.
type Service struct {
	store  *db.Store
	ledger *ledger.Store
	orders *orderstore.Store
	log    zerolog.Logger

	mu      sync.RWMutex
	engines map[string]*pairEngine

	// cmdSeq tags every command routed to a pair engine with a strictly
	// increasing sequence number, so the commit order a pair engine observes
	// can be cross-checked against submission order during diagnostics.
	cmdSeq atomic.Int64
}

// New builds an order service over store, using ledgerStore and orderStore
// for persistence and log for the structured events of section 10.1.
func New(store *db.Store, ledgerStore *ledger.Store, orderStore *orderstore.Store, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		ledger:  ledgerStore,
		orders:  orderStore,
		log:     log,
		engines: make(map[string]*pairEngine),
	}
}

// Boot loads a trading pair's row and its resting OPEN orders into a fresh
// in-memory book, then starts its single serializing goroutine. Boot must
// be called once per pair before PlaceOrder/CancelOrder are routed to it;
// this mirrors the teacher's Manager.Boot/StartEngine sequencing.
func (s *Service) Boot(ctx context.Context, pairSymbol string) error {
	pair, err := s.loadPair(ctx, pairSymbol)
	if err != nil {
		return err
	}

	book := matching.NewBook()
	for _, side := range []model.Side{model.Buy, model.Sell} {
		sd := side
		resting, err := s.orders.BookSnapshot(ctx, s.store.DB, pairSymbol, &sd)
		if err != nil {
			return err
		}
		for _, o := range resting {
			book.Add(matching.RestingOrder{
				OrderID:   o.ID,
				UserID:    o.UserID,
				Side:      o.Side,
				Price:     o.Price,
				Remaining: o.Remaining(),
				CreatedAt: o.CreatedAt.UnixNano(),
			})
		}
	}

	eng := &pairEngine{
		pair: *pair,
		book: book,
		cmds: make(chan command),
		svc:  s,
	}

	s.mu.Lock()
	s.engines[pairSymbol] = eng
	s.mu.Unlock()

	go eng.run(ctx)
	return nil
}

func (s *Service) engineFor(pairSymbol string) *pairEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engines[pairSymbol]
}

func (s *Service) loadPair(ctx context.Context, symbol string) (*model.TradingPair, error) {
	var p model.TradingPair
	var createdAt sql.NullTime
	err := s.store.DB.QueryRowContext(ctx,
		`SELECT symbol, base_currency, quote_currency, is_active, created_at FROM trading_pair WHERE symbol=$1`,
		symbol,
	).Scan(&p.Symbol, &p.BaseCurrency, &p.QuoteCurrency, &p.IsActive, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &xerrors.InvalidOrderError{Reason: "unknown trading pair " + symbol}
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = createdAt.Time
	return &p, nil
}

// CreatePair upserts a trading pair row. Pair administration sits outside
// section 6's operation list, but something must seed trading_pair for Boot
// to find; this is the minimal supporting surface for that, not a general
// admin API.
func (s *Service) CreatePair(ctx context.Context, symbol, base, quote string, isActive bool) error {
	_, err := s.store.DB.ExecContext(ctx, `
		INSERT INTO trading_pair (symbol, base_currency, quote_currency, is_active)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (symbol) DO UPDATE SET is_active = EXCLUDED.is_active`,
		symbol, base, quote, isActive)
	return err
}

// SetPairActive flips is_active without touching resting orders (section 4.6).
func (s *Service) SetPairActive(ctx context.Context, symbol string, active bool) error {
	_, err := s.store.DB.ExecContext(ctx,
		`UPDATE trading_pair SET is_active=$1 WHERE symbol=$2`, active, symbol)
	if err != nil {
		return err
	}
	s.mu.RLock()
	eng, ok := s.engines[symbol]
	s.mu.RUnlock()
	if ok {
		eng.mu.Lock()
		eng.pair.IsActive = active
		eng.mu.Unlock()
	}
	return nil
}

// PlaceOrder routes a place request to pairSymbol's engine and blocks until
// it has been validated, locked, inserted, and matched inside one transaction.
func (s *Service) PlaceOrder(ctx context.Context, userID, pairSymbol string, side model.Side, orderType model.OrderType, price, amount decimal.Decimal) (*model.Order, error) {
	eng := s.engineFor(pairSymbol)
	if eng == nil {
		return nil, &xerrors.InvalidOrderError{Reason: "pair " + pairSymbol + " is not booted"}
	}
	resultCh := make(chan result, 1)
	cmd := command{
		kind: cmdPlace,
		seq:  s.cmdSeq.Inc(),
		place: &placeRequest{
			UserID:    userID,
			Side:      side,
			OrderType: orderType,
			Price:     price,
			Amount:    amount,
		},
		resultCh: resultCh,
	}
	select {
	case eng.cmds <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-resultCh:
		return r.order, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CancelOrder looks up orderID's pair, routes the cancellation to that
// pair's engine, and blocks until the unlock-and-terminate transaction commits.
func (s *Service) CancelOrder(ctx context.Context, userID string, orderID int64) (*model.Order, error) {
	o, err := s.orders.Get(ctx, s.store.DB, orderID)
	if err != nil {
		return nil, err
	}
	eng := s.engineFor(o.PairSymbol)
	if eng == nil {
		return nil, &xerrors.InvalidOrderError{Reason: "pair " + o.PairSymbol + " is not booted"}
	}
	resultCh := make(chan result, 1)
	cmd := command{kind: cmdCancel, seq: s.cmdSeq.Inc(), cancelID: orderID, userID: userID, resultCh: resultCh}
	select {
	case eng.cmds <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-resultCh:
		return r.order, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetUserOrders returns a user's orders, newest first, with optional filters.
func (s *Service) GetUserOrders(ctx context.Context, userID string, status *model.OrderStatus, pairSymbol *string) ([]*model.Order, error) {
	return s.orders.ListUserOrders(ctx, s.store.DB, userID, status, pairSymbol)
}

// GetOrderBook returns OPEN orders for a pair, optionally filtered by side.
func (s *Service) GetOrderBook(ctx context.Context, pairSymbol string, side *model.Side) ([]*model.Order, error) {
	return s.orders.BookSnapshot(ctx, s.store.DB, pairSymbol, side)
}
