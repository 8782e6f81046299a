// Package xerrors defines the typed error kinds a caller of the core can
// switch on with errors.As, one struct per kind in section 7's table.
package xerrors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InsufficientBalanceError is raised when lock/withdraw/settle finds
// available < required.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
	Currency  string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s: need %s, have %s", e.Currency, e.Required, e.Available)
}

// InvalidAmountError is raised for a non-positive amount or price passed to
// the ledger or validator.
type InvalidAmountError struct {
	Field string
	Value decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid %s: %s must be positive", e.Field, e.Value)
}

// InvalidOrderError covers an inactive pair, a bad side/type, out-of-range
// notional, an owner mismatch, or the wrong status for cancel.
type InvalidOrderError struct {
	Reason string
}

func (e *InvalidOrderError) Error() string {
	return e.Reason
}

// WalletNotFoundError is raised by an explicit GetWallet with no row.
type WalletNotFoundError struct {
	UserID   string
	Currency string
}

func (e *WalletNotFoundError) Error() string {
	return fmt.Sprintf("no %s wallet for user %s", e.Currency, e.UserID)
}

// OrderNotFoundError is raised by a cancel or fetch on a missing id.
type OrderNotFoundError struct {
	OrderID int64
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order %d not found", e.OrderID)
}

// ConcurrencyConflictError is raised when the internal retry budget on a
// serialization failure is exhausted. Callers may retry the whole operation.
type ConcurrencyConflictError struct {
	Operation string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict during %s, retry", e.Operation)
}
