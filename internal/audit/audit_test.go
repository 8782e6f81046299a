package audit

import (
	"testing"

	"github.com/shopspring/decimal"

	"clobcore/internal/model"
)

func dd(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pairSet() map[string]model.TradingPair {
	return map[string]model.TradingPair{
		"BTC-USD": {Symbol: "BTC-USD", BaseCurrency: "BTC", QuoteCurrency: "USD", IsActive: true},
	}
}

func TestCheckPassesOnConsistentSnapshot(t *testing.T) {
	wallets := []model.Wallet{
		{UserID: "u1", Currency: "USD", Balance: dd("1000.00"), Locked: dd("500.00")},
	}
	orders := []model.Order{
		{ID: 1, UserID: "u1", PairSymbol: "BTC-USD", Side: model.Buy, OrderType: model.Limit,
			Price: dd("50.00"), Amount: dd("10"), FilledAmount: dd("0"), Status: model.Open},
	}
	if err := Check(wallets, orders, pairSet()); err != nil {
		t.Fatalf("expected no violations, got %v", err)
	}
}

func TestCheckCatchesNegativeLocked(t *testing.T) {
	wallets := []model.Wallet{
		{UserID: "u1", Currency: "USD", Balance: dd("100.00"), Locked: dd("-1.00")},
	}
	if err := Check(wallets, nil, pairSet()); err == nil {
		t.Fatal("expected violation for negative locked, got nil")
	}
}

func TestCheckCatchesLockedExceedingBalance(t *testing.T) {
	wallets := []model.Wallet{
		{UserID: "u1", Currency: "USD", Balance: dd("10.00"), Locked: dd("20.00")},
	}
	if err := Check(wallets, nil, pairSet()); err == nil {
		t.Fatal("expected violation for locked exceeding balance, got nil")
	}
}

func TestCheckCatchesLockedObligationMismatch(t *testing.T) {
	wallets := []model.Wallet{
		{UserID: "u1", Currency: "USD", Balance: dd("1000.00"), Locked: dd("999.00")},
	}
	orders := []model.Order{
		{ID: 1, UserID: "u1", PairSymbol: "BTC-USD", Side: model.Buy, OrderType: model.Limit,
			Price: dd("50.00"), Amount: dd("10"), FilledAmount: dd("0"), Status: model.Open},
	}
	if err := Check(wallets, orders, pairSet()); err == nil {
		t.Fatal("expected mismatch between locked and obligations, got nil")
	}
}

func TestCheckIgnoresTerminalOrders(t *testing.T) {
	wallets := []model.Wallet{
		{UserID: "u1", Currency: "USD", Balance: dd("1000.00"), Locked: dd("0")},
	}
	orders := []model.Order{
		{ID: 1, UserID: "u1", PairSymbol: "BTC-USD", Side: model.Buy, OrderType: model.Limit,
			Price: dd("50.00"), Amount: dd("10"), FilledAmount: dd("10"), Status: model.Filled},
		{ID: 2, UserID: "u1", PairSymbol: "BTC-USD", Side: model.Buy, OrderType: model.Limit,
			Price: dd("50.00"), Amount: dd("10"), FilledAmount: dd("0"), Status: model.Cancelled},
	}
	if err := Check(wallets, orders, pairSet()); err != nil {
		t.Fatalf("expected terminal orders to contribute no obligation, got %v", err)
	}
}
