// Package audit checks the wallet/order invariants of section 8 against a
// snapshot, accumulating every violation instead of stopping at the first.
// It exists to give hashicorp/go-multierror — present in the reference
// lineage's go.mod only as an indirect dependency of its migration tooling —
// a genuine direct use (see DESIGN.md).
package audit

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"

	"clobcore/internal/model"
)

// Check verifies P1 (non-negativity: 0 <= locked <= balance) and P3
// (locked equals the sum of unfilled obligations of the wallet owner's OPEN
// orders requiring that currency) across a snapshot of wallets and orders.
// It returns nil if every invariant holds, or a *multierror.Error listing
// every violation found.
func Check(wallets []model.Wallet, orders []model.Order, pairs map[string]model.TradingPair) error {
	var result *multierror.Error

	obligations := obligationsByWallet(orders, pairs)

	for _, w := range wallets {
		if w.Locked.IsNegative() {
			result = multierror.Append(result, fmt.Errorf("wallet %s/%s: locked %s is negative", w.UserID, w.Currency, w.Locked))
		}
		if w.Balance.IsNegative() {
			result = multierror.Append(result, fmt.Errorf("wallet %s/%s: balance %s is negative", w.UserID, w.Currency, w.Balance))
		}
		if w.Locked.GreaterThan(w.Balance) {
			result = multierror.Append(result, fmt.Errorf("wallet %s/%s: locked %s exceeds balance %s", w.UserID, w.Currency, w.Locked, w.Balance))
		}

		want := obligations[walletKey{w.UserID, w.Currency}]
		if !want.Equal(w.Locked) {
			result = multierror.Append(result, fmt.Errorf(
				"wallet %s/%s: locked %s does not equal outstanding obligations %s", w.UserID, w.Currency, w.Locked, want))
		}
	}

	return result.ErrorOrNil()
}

type walletKey struct {
	UserID   string
	Currency string
}

// obligationsByWallet computes, for every (user, currency), the sum of
// unfilled obligations of that user's OPEN orders requiring that currency:
// price*(amount-filled) in quote for a BUY, amount-filled in base for a SELL.
func obligationsByWallet(orders []model.Order, pairs map[string]model.TradingPair) map[walletKey]decimal.Decimal {
	out := make(map[walletKey]decimal.Decimal)
	for _, o := range orders {
		if o.Status != model.Open {
			continue
		}
		pair, ok := pairs[o.PairSymbol]
		if !ok {
			continue
		}
		remaining := o.Remaining()
		var k walletKey
		var amount decimal.Decimal
		if o.Side == model.Buy {
			k = walletKey{o.UserID, pair.QuoteCurrency}
			amount = o.Price.Mul(remaining)
		} else {
			k = walletKey{o.UserID, pair.BaseCurrency}
			amount = remaining
		}
		out[k] = out[k].Add(amount)
	}
	return out
}
