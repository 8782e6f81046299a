// Package validator is the pure predicate layer of section 4.3: pair
// activeness, side/type enumerations, positivity, min/max notional, and
// balance sufficiency. It mutates nothing; it only reads, inside the
// caller's transaction, to avoid a TOCTOU race against the subsequent lock.
package validator

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"clobcore/internal/ledger"
	"clobcore/internal/model"
	"clobcore/internal/money"
	"clobcore/internal/xerrors"
)

// Validate runs the six ordered checks of section 4.3. A MARKET order carries
// no fixed price, so for it Validate stops after the positivity checks: no
// notional bound (check 5) is applied to it, here or in the order service,
// and balance sufficiency (check 6) is enforced only by the order service's
// lock (the base amount for a SELL, a book-walk cost estimate for a BUY).
func Validate(ctx context.Context, tx *sql.Tx, ledgerStore *ledger.Store, pair model.TradingPair, userID string, side model.Side, orderType model.OrderType, price, amount decimal.Decimal) error {
	if !pair.IsActive {
		return &xerrors.InvalidOrderError{Reason: "pair " + pair.Symbol + " is inactive"}
	}
	if side != model.Buy && side != model.Sell {
		return &xerrors.InvalidOrderError{Reason: "invalid side: " + string(side)}
	}
	if orderType != model.Limit && orderType != model.Market {
		return &xerrors.InvalidOrderError{Reason: "invalid order type: " + string(orderType)}
	}
	if orderType == model.Limit && price.Sign() <= 0 {
		return &xerrors.InvalidAmountError{Field: "price", Value: price}
	}
	if amount.Sign() <= 0 {
		return &xerrors.InvalidAmountError{Field: "amount", Value: amount}
	}

	if orderType == model.Market {
		return nil
	}

	notional := money.Notional(price, amount)
	if notional.LessThan(money.MinNotional) {
		return &xerrors.InvalidOrderError{Reason: "order value " + notional.String() + " is below minimum " + money.MinNotional.String()}
	}
	if notional.GreaterThan(money.MaxNotional) {
		return &xerrors.InvalidOrderError{Reason: "order value " + notional.String() + " is above maximum " + money.MaxNotional.String()}
	}

	var required decimal.Decimal
	var currency string
	if side == model.Buy {
		required = notional
		currency = pair.QuoteCurrency
	} else {
		required = amount
		currency = pair.BaseCurrency
	}

	w, err := ledgerStore.GetOrCreate(ctx, tx, userID, currency)
	if err != nil {
		return err
	}
	if w.Available().LessThan(required) {
		return &xerrors.InsufficientBalanceError{Required: required, Available: w.Available(), Currency: currency}
	}
	return nil
}
