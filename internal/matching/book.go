// Package matching is the in-memory order book and the pure price-time
// matcher of section 4.4. Nothing here touches a database: the book is an
// optional in-memory optimization permitted by section 5, and Run is a pure
// function over it. Settlement (ledger transfers, order-store persistence,
// trade recording) is the caller's responsibility.
package matching

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"clobcore/internal/model"
)

// bookEntry is one resting order inside Book.
type bookEntry struct {
	OrderID   int64
	UserID    string
	Side      model.Side
	Price     decimal.Decimal
	Remaining decimal.Decimal
	CreatedAt int64 // unix nanos; only used as a tie-break, never displayed
}

type priceLevel struct {
	price  decimal.Decimal
	orders []*bookEntry
}

type levels = btree.BTreeG[*priceLevel]

// Book holds one trading pair's resting OPEN orders, indexed by price level.
// Bid levels sort best-first (descending price); ask levels sort best-first
// (ascending price) — the same structure fenrir's matching engine uses,
// generalized from float64 price levels to decimal.Decimal ones.
type Book struct {
	bids  *levels
	asks  *levels
	index map[int64]*bookEntry
}

// NewBook returns an empty order book.
func NewBook() *Book {
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price.GreaterThan(b.price) })
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price.LessThan(b.price) })
	return &Book{bids: bids, asks: asks, index: make(map[int64]*bookEntry)}
}

func (b *Book) levelsFor(side model.Side) *levels {
	if side == model.Buy {
		return b.bids
	}
	return b.asks
}

// RestingOrder is the input to Add: a not-yet-fully-filled OPEN order to
// seat in the book, whether freshly inserted or reloaded from the store.
type RestingOrder struct {
	OrderID   int64
	UserID    string
	Side      model.Side
	Price     decimal.Decimal
	Remaining decimal.Decimal
	CreatedAt int64
}

// Add seats a resting order in its price level, keeping the level ordered
// by (CreatedAt, OrderID) ascending so FIFO-within-price-level holds
// regardless of the order in which callers add orders.
func (b *Book) Add(o RestingOrder) {
	if _, ok := b.index[o.OrderID]; ok {
		return
	}
	e := &bookEntry{OrderID: o.OrderID, UserID: o.UserID, Side: o.Side, Price: o.Price, Remaining: o.Remaining, CreatedAt: o.CreatedAt}
	b.index[o.OrderID] = e

	lv := b.levelsFor(e.Side)
	level, ok := lv.GetMut(&priceLevel{price: e.Price})
	if !ok {
		level = &priceLevel{price: e.Price}
		lv.Set(level)
	}
	i := 0
	for i < len(level.orders) {
		other := level.orders[i]
		if e.CreatedAt < other.CreatedAt || (e.CreatedAt == other.CreatedAt && e.OrderID < other.OrderID) {
			break
		}
		i++
	}
	level.orders = append(level.orders, nil)
	copy(level.orders[i+1:], level.orders[i:])
	level.orders[i] = e
}

// Remove takes an order out of the book entirely: cancellation, or a fill
// that brought its remaining quantity to zero.
func (b *Book) Remove(orderID int64) {
	e, ok := b.index[orderID]
	if !ok {
		return
	}
	delete(b.index, orderID)
	lv := b.levelsFor(e.Side)
	level, ok := lv.GetMut(&priceLevel{price: e.Price})
	if !ok {
		return
	}
	for i, o := range level.orders {
		if o.OrderID == orderID {
			level.orders = append(level.orders[:i], level.orders[i+1:]...)
			break
		}
	}
	if len(level.orders) == 0 {
		lv.Delete(level)
	}
}

// reduce shrinks a resting order's remaining quantity by qty, removing it
// from the book once it reaches zero.
func (b *Book) reduce(orderID int64, qty decimal.Decimal) {
	e, ok := b.index[orderID]
	if !ok {
		return
	}
	e.Remaining = e.Remaining.Sub(qty)
	if e.Remaining.Sign() <= 0 {
		b.Remove(orderID)
	}
}

// Size returns the number of resting orders in the book, for tests/diagnostics.
func (b *Book) Size() int { return len(b.index) }

// candidates walks the opposite side of the book best-price-first, applying
// an optional limit-price gate and skipping the taker's own resting orders
// (self-trade skip, section 4.4). It does not mutate the book.
func (b *Book) candidates(takerSide model.Side, limitPrice *decimal.Decimal, excludeUserID string) []*bookEntry {
	var lv *levels
	if takerSide == model.Buy {
		lv = b.asks
	} else {
		lv = b.bids
	}
	var out []*bookEntry
	lv.Scan(func(level *priceLevel) bool {
		if limitPrice != nil {
			if takerSide == model.Buy && level.price.GreaterThan(*limitPrice) {
				return false
			}
			if takerSide == model.Sell && level.price.LessThan(*limitPrice) {
				return false
			}
		}
		for _, e := range level.orders {
			if e.UserID == excludeUserID {
				continue
			}
			out = append(out, e)
		}
		return true
	})
	return out
}

// DepthLevel is one aggregated price level in a Snapshot.
type DepthLevel struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// Snapshot returns up to depth levels per side, best price first, for
// diagnostics and for get_order_book-style consumers that want aggregated depth.
func (b *Book) Snapshot(depth int) (bids, asks []DepthLevel) {
	b.bids.Scan(func(level *priceLevel) bool {
		if len(bids) >= depth {
			return false
		}
		bids = append(bids, aggregate(level))
		return true
	})
	b.asks.Scan(func(level *priceLevel) bool {
		if len(asks) >= depth {
			return false
		}
		asks = append(asks, aggregate(level))
		return true
	})
	return bids, asks
}

func aggregate(level *priceLevel) DepthLevel {
	total := decimal.Zero
	for _, e := range level.orders {
		total = total.Add(e.Remaining)
	}
	return DepthLevel{Price: level.price, Qty: total}
}
