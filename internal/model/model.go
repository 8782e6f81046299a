// Package model defines the flat data records shared by the ledger, order
// store, matching engine and order service. No type here references another
// by pointer; cross references are by id/symbol only.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType distinguishes a resting limit order from a book-sweeping market order.
type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

// OrderStatus is the order lifecycle state. FILLED and CANCELLED are terminal.
type OrderStatus string

const (
	Pending   OrderStatus = "PENDING"
	Open      OrderStatus = "OPEN"
	Filled    OrderStatus = "FILLED"
	Cancelled OrderStatus = "CANCELLED"
)

// TradingPair is immutable after creation except IsActive.
type TradingPair struct {
	Symbol        string
	BaseCurrency  string
	QuoteCurrency string
	IsActive      bool
	CreatedAt     time.Time
}

// Wallet is one balance record per (UserID, Currency).
type Wallet struct {
	UserID    string
	Currency  string
	Balance   decimal.Decimal
	Locked    decimal.Decimal
	CreatedAt time.Time
}

// Available is the derived, never-stored spendable balance.
func (w Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.Locked)
}

// Order is a resting or terminal order on a trading pair.
type Order struct {
	ID           int64
	UserID       string
	PairSymbol   string
	Side         Side
	OrderType    OrderType
	Price        decimal.Decimal // scale 2; zero/unused for MARKET
	Amount       decimal.Decimal // scale 8, total base quantity
	FilledAmount decimal.Decimal // scale 8
	Status       OrderStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Remaining is the unfilled base quantity still owed.
func (o Order) Remaining() decimal.Decimal {
	return o.Amount.Sub(o.FilledAmount)
}

// IsTerminal reports whether the order can no longer change state.
func (o Order) IsTerminal() bool {
	return o.Status == Filled || o.Status == Cancelled
}

// Trade is the immutable record of a single match between a taker and a maker.
// Persisting trades is additive beyond the distilled order/wallet model; see
// SPEC_FULL.md section 3.
type Trade struct {
	ID          string
	PairSymbol  string
	BuyOrderID  int64
	SellOrderID int64
	BuyerID     string
	SellerID    string
	Price       decimal.Decimal // scale 2
	Quantity    decimal.Decimal // scale 8
	CreatedAt   time.Time
}
