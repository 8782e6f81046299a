// Package money centralizes the fixed-point scales and rounding rule used
// throughout the core. Nothing here touches binary floats.
package money

import "github.com/shopspring/decimal"

const (
	// PriceScale is the decimal scale for order prices and trade values.
	PriceScale = 2
	// AmountScale is the decimal scale for base-currency amounts and wallet balances.
	AmountScale = 8
)

// MinNotional and MaxNotional bound price*amount in quote currency, per the
// original validator's MIN_ORDER_VALUE / MAX_ORDER_VALUE.
var (
	MinNotional = decimal.RequireFromString("10.00")
	MaxNotional = decimal.RequireFromString("1000000.00")
)

// RoundPrice rounds to PriceScale using banker's rounding (half-even), the
// rule section 4.4 step 5 requires for trade values.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(PriceScale)
}

// RoundAmount rounds to AmountScale using banker's rounding.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(AmountScale)
}

// Notional returns price*amount rounded to PriceScale.
func Notional(price, amount decimal.Decimal) decimal.Decimal {
	return RoundPrice(price.Mul(amount))
}
