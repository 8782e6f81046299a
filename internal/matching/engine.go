package matching

import (
	"github.com/shopspring/decimal"

	"clobcore/internal/model"
	"clobcore/internal/money"
)

// Fill is one matched quantity between the taker and a single maker. Run
// produces a sequence of these; the caller (orderservice) is responsible for
// every side effect — ledger transfers, order persistence, trade recording,
// logging. Run itself never touches a database.
type Fill struct {
	MakerOrderID   int64
	MakerUserID    string
	Price          decimal.Decimal // the maker's resting price: the price-improvement rule
	Quantity       decimal.Decimal
	MakerRemaining decimal.Decimal // maker's remaining quantity after this fill
	MakerFilled    bool
}

// Taker is the minimal view of an incoming order Run needs.
type Taker struct {
	UserID    string
	Side      model.Side
	OrderType model.OrderType
	Price     decimal.Decimal // ignored for MARKET
	Remaining decimal.Decimal
}

// Run matches taker against book in price-time priority (section 4.4):
// best price first, then the FIFO order already maintained within a level.
// A LIMIT taker only crosses makers within its price; a MARKET taker drops
// the price gate entirely and walks the book until exhausted or empty. The
// taker's own resting orders are never candidates (self-trade skip). Run
// mutates book in place to reflect every fill it returns, so the book stays
// consistent with the fills without the caller re-deriving it.
func Run(taker Taker, book *Book) []Fill {
	var limitPrice *decimal.Decimal
	if taker.OrderType == model.Limit {
		p := taker.Price
		limitPrice = &p
	}

	remaining := taker.Remaining
	var fills []Fill

	for _, maker := range book.candidates(taker.Side, limitPrice, taker.UserID) {
		if remaining.Sign() <= 0 {
			break
		}
		if maker.Remaining.Sign() <= 0 {
			continue
		}

		qty := decimal.Min(remaining, maker.Remaining)
		makerRemaining := maker.Remaining.Sub(qty)

		remaining = remaining.Sub(qty)
		book.reduce(maker.OrderID, qty)

		fills = append(fills, Fill{
			MakerOrderID:   maker.OrderID,
			MakerUserID:    maker.UserID,
			Price:          maker.Price,
			Quantity:       qty,
			MakerRemaining: makerRemaining,
			MakerFilled:    makerRemaining.Sign() <= 0,
		})
	}
	return fills
}

// EstimateCost computes, without mutating book, the quote-currency cost of
// filling qty base units of a MARKET BUY against the current ask side. Used
// by the order service to lock a conservative estimate before a MARKET BUY
// is inserted (section 4.5 supplement), since a MARKET order carries no
// fixed price to compute a notional against. If the book cannot cover qty,
// the returned cost only covers what is actually available; the unfillable
// remainder needs no reservation since it will never settle.
func EstimateCost(book *Book, qty decimal.Decimal, excludeUserID string) decimal.Decimal {
	remaining := qty
	cost := decimal.Zero
	for _, e := range book.candidates(model.Buy, nil, excludeUserID) {
		if remaining.Sign() <= 0 {
			break
		}
		take := decimal.Min(remaining, e.Remaining)
		cost = cost.Add(money.RoundPrice(e.Price.Mul(take)))
		remaining = remaining.Sub(take)
	}
	return cost
}
