package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundPriceHalfEven(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.005", "10.00"}, // banker's rounding: round to even
		{"10.015", "10.02"},
		{"10.025", "10.02"},
		{"10.00", "10.00"},
	}
	for _, c := range cases {
		got := RoundPrice(decimal.RequireFromString(c.in))
		if got.String() != c.want {
			t.Errorf("RoundPrice(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestNotional(t *testing.T) {
	got := Notional(decimal.RequireFromString("20000.00"), decimal.RequireFromString("0.5"))
	want := decimal.RequireFromString("10000.00")
	if !got.Equal(want) {
		t.Fatalf("Notional = %s, want %s", got, want)
	}
}

func TestNotionalBoundsAreOrdered(t *testing.T) {
	if !MinNotional.LessThan(MaxNotional) {
		t.Fatalf("MinNotional must be less than MaxNotional")
	}
}
