package orderservice

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"clobcore/internal/logging"
	"clobcore/internal/matching"
	"clobcore/internal/model"
	"clobcore/internal/money"
	"clobcore/internal/validator"
	"clobcore/internal/xerrors"
)

// pgSerializationFailure is the SQLSTATE Postgres raises when a transaction
// cannot be committed because of a conflicting concurrent transaction under
// SERIALIZABLE/REPEATABLE READ; see section 7's "may internally retry once".
const pgSerializationFailure = "40001"

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgSerializationFailure
	}
	return false
}

// retryOnSerializationFailure runs fn, and once more if it fails with a
// Postgres serialization failure. A second failure of the same kind is
// reported as ConcurrencyConflictError rather than retried indefinitely.
func retryOnSerializationFailure(op string, fn func() (*model.Order, error)) (*model.Order, error) {
	o, err := fn()
	if !isSerializationFailure(err) {
		return o, err
	}
	o, err = fn()
	if isSerializationFailure(err) {
		return nil, &xerrors.ConcurrencyConflictError{Operation: op}
	}
	return o, err
}

type cmdKind int

const (
	cmdPlace cmdKind = iota
	cmdCancel
)

type placeRequest struct {
	UserID    string
	Side      model.Side
	OrderType model.OrderType
	Price     decimal.Decimal
	Amount    decimal.Decimal
}

type command struct {
	kind     cmdKind
	seq      int64
	place    *placeRequest
	cancelID int64
	userID   string
	resultCh chan result
}

type result struct {
	order *model.Order
	err   error
}

// pairEngine is the single-goroutine actor that owns one trading pair's
// in-memory book and drains its command channel, generalizing the teacher's
// MarketEngine. Because only this goroutine ever touches book, and every
// command opens its own database transaction before touching it, the
// in-memory book can never diverge from the durable OPEN-order set it mirrors.
type pairEngine struct {
	mu   sync.Mutex // guards pair.IsActive, flipped by SetPairActive from another goroutine
	pair model.TradingPair
	book *matching.Book
	cmds chan command
	svc  *Service
}

func (e *pairEngine) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.cmds:
			e.svc.log.Debug().Int64("cmd_seq", cmd.seq).Str("pair", e.currentPair().Symbol).Msg("pair engine dequeued command")
			switch cmd.kind {
			case cmdPlace:
				o, err := retryOnSerializationFailure("place_order", func() (*model.Order, error) {
					return e.processPlace(ctx, *cmd.place)
				})
				cmd.resultCh <- result{order: o, err: err}
			case cmdCancel:
				o, err := retryOnSerializationFailure("cancel_order", func() (*model.Order, error) {
					return e.processCancel(ctx, cmd.userID, cmd.cancelID)
				})
				cmd.resultCh <- result{order: o, err: err}
			}
		}
	}
}

func (e *pairEngine) currentPair() model.TradingPair {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pair
}

// processPlace implements section 4.5's place_order: validate, lock, insert
// OPEN, match, and reconcile any lock overshoot, all in one transaction.
func (e *pairEngine) processPlace(ctx context.Context, req placeRequest) (*model.Order, error) {
	pair := e.currentPair()
	svc := e.svc

	tx, err := svc.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := validator.Validate(ctx, tx, svc.ledger, pair, req.UserID, req.Side, req.OrderType, req.Price, req.Amount); err != nil {
		return nil, err
	}

	lockCurrency, lockAmount := e.lockRequirement(req, pair)
	if lockAmount.Sign() > 0 {
		if _, err := svc.ledger.Lock(ctx, tx, req.UserID, lockCurrency, lockAmount); err != nil {
			return nil, err
		}
	}

	storedPrice := req.Price
	if req.OrderType == model.Market {
		storedPrice = decimal.Zero
	}
	inserted, err := svc.orders.Insert(ctx, tx, model.Order{
		UserID:     req.UserID,
		PairSymbol: pair.Symbol,
		Side:       req.Side,
		OrderType:  req.OrderType,
		Price:      storedPrice,
		Amount:     req.Amount,
		Status:     model.Open,
	})
	if err != nil {
		return nil, err
	}

	taker := matching.Taker{
		UserID:    req.UserID,
		Side:      req.Side,
		OrderType: req.OrderType,
		Price:     req.Price,
		Remaining: inserted.Amount,
	}
	fills := matching.Run(taker, e.book)

	filled := decimal.Zero
	quoteSpent := decimal.Zero

	for _, f := range fills {
		if err := e.settleFill(ctx, tx, pair, req, inserted.ID, f); err != nil {
			return nil, err
		}
		filled = filled.Add(f.Quantity)
		quoteSpent = quoteSpent.Add(money.RoundPrice(f.Price.Mul(f.Quantity)))
	}

	remaining := inserted.Amount.Sub(filled)
	var status model.OrderStatus
	switch {
	case remaining.Sign() <= 0:
		status = model.Filled
	case req.OrderType == model.Market:
		status = model.Cancelled
	default:
		status = model.Open
	}

	if err := svc.orders.UpdateFill(ctx, tx, inserted.ID, filled, status); err != nil {
		return nil, err
	}

	// Reconcile any overshoot between what was locked up front and what was
	// actually consumed by the fills above, in one place, after every fill
	// has settled (section 4.5 supplement). A BUY LIMIT locks notional at its
	// own price; price improvement against a better-priced maker means the
	// filled portion's share of that lock exceeds what actually transferred.
	// A BUY MARKET locks a conservative book-walk estimate that can overshoot
	// the same way. A SELL's lock is exact base currency, so it only needs
	// reconciling when the unfilled remainder is abandoned (MARKET cancel).
	var release decimal.Decimal
	switch {
	case req.Side == model.Buy && req.OrderType == model.Limit:
		release = money.Notional(req.Price, filled).Sub(quoteSpent)
	case req.Side == model.Buy && req.OrderType == model.Market:
		release = lockAmount.Sub(quoteSpent)
	case req.Side == model.Sell && status == model.Cancelled:
		release = lockAmount.Sub(filled)
	}
	if release.Sign() > 0 {
		if _, err := svc.ledger.Unlock(ctx, tx, req.UserID, lockCurrency, release); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	if status == model.Open {
		e.book.Add(matching.RestingOrder{
			OrderID:   inserted.ID,
			UserID:    inserted.UserID,
			Side:      inserted.Side,
			Price:     inserted.Price,
			Remaining: remaining,
			CreatedAt: inserted.CreatedAt.UnixNano(),
		})
	}

	inserted.FilledAmount = filled
	inserted.Status = status
	logging.OrderPlaced(svc.log, inserted.ID, inserted.UserID, pair.Symbol, string(inserted.Side), string(inserted.OrderType), inserted.Price.String(), inserted.Amount.String())
	return inserted, nil
}

// lockRequirement computes the currency and amount to reserve before
// insertion (section 4.5 step 3, extended per section 4.3/4.5 for MARKET).
func (e *pairEngine) lockRequirement(req placeRequest, pair model.TradingPair) (currency string, amount decimal.Decimal) {
	if req.Side == model.Sell {
		return pair.BaseCurrency, req.Amount
	}
	if req.OrderType == model.Limit {
		return pair.QuoteCurrency, money.Notional(req.Price, req.Amount)
	}
	return pair.QuoteCurrency, matching.EstimateCost(e.book, req.Amount, req.UserID)
}

// settleFill applies one matched fill: two transfer_locked calls, the
// maker's order-store update, and the trade record — all inside tx. The
// price-improvement residual a BUY LIMIT taker is owed is reconciled once
// after every fill has settled (see processPlace), not per fill, since
// unlocking an unrounded residual against an already-exhausted lock here
// would abort an otherwise valid fill.
func (e *pairEngine) settleFill(ctx context.Context, tx *sql.Tx, pair model.TradingPair, req placeRequest, takerOrderID int64, f matching.Fill) error {
	svc := e.svc

	var buyerID, sellerID string
	var buyOrderID, sellOrderID int64
	if req.Side == model.Buy {
		buyerID, sellerID = req.UserID, f.MakerUserID
		buyOrderID, sellOrderID = takerOrderID, f.MakerOrderID
	} else {
		buyerID, sellerID = f.MakerUserID, req.UserID
		buyOrderID, sellOrderID = f.MakerOrderID, takerOrderID
	}

	value := money.RoundPrice(f.Price.Mul(f.Quantity))

	if err := svc.ledger.TransferLocked(ctx, tx, sellerID, buyerID, pair.BaseCurrency, f.Quantity); err != nil {
		return err
	}
	if err := svc.ledger.TransferLocked(ctx, tx, buyerID, sellerID, pair.QuoteCurrency, value); err != nil {
		return err
	}

	maker, err := svc.orders.GetForUpdate(ctx, tx, f.MakerOrderID)
	if err != nil {
		return err
	}
	makerFilled := maker.Amount.Sub(f.MakerRemaining)
	makerStatus := model.Open
	if f.MakerFilled {
		makerStatus = model.Filled
	}
	if err := svc.orders.UpdateFill(ctx, tx, f.MakerOrderID, makerFilled, makerStatus); err != nil {
		return err
	}

	trade := model.Trade{
		ID:          uuid.NewString(),
		PairSymbol:  pair.Symbol,
		BuyOrderID:  buyOrderID,
		SellOrderID: sellOrderID,
		BuyerID:     buyerID,
		SellerID:    sellerID,
		Price:       f.Price,
		Quantity:    f.Quantity,
	}
	if err := svc.orders.InsertTrade(ctx, tx, trade); err != nil {
		return err
	}
	logging.Trade(svc.log, trade.ID, pair.Symbol, buyOrderID, sellOrderID, f.Price.String(), f.Quantity.String())
	return nil
}

// processCancel implements section 4.5's cancel_order.
func (e *pairEngine) processCancel(ctx context.Context, userID string, orderID int64) (*model.Order, error) {
	svc := e.svc
	pair := e.currentPair()

	tx, err := svc.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	o, err := svc.orders.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, &xerrors.InvalidOrderError{Reason: "not owner"}
	}
	if o.Status != model.Pending && o.Status != model.Open {
		return nil, &xerrors.InvalidOrderError{Reason: "cannot cancel order in status " + string(o.Status)}
	}

	unfilled := o.Remaining()
	if unfilled.Sign() > 0 {
		var currency string
		var amount decimal.Decimal
		if o.Side == model.Buy {
			currency = pair.QuoteCurrency
			amount = money.RoundPrice(o.Price.Mul(unfilled))
		} else {
			currency = pair.BaseCurrency
			amount = unfilled
		}
		if amount.Sign() > 0 {
			if _, err := svc.ledger.Unlock(ctx, tx, userID, currency, amount); err != nil {
				return nil, err
			}
		}
	}

	if err := svc.orders.MarkCancelled(ctx, tx, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	e.book.Remove(orderID)

	o.Status = model.Cancelled
	logging.OrderCancelled(svc.log, orderID, userID, unfilled.String())
	return o, nil
}
