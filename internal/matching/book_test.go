package matching

import (
	"testing"

	"github.com/shopspring/decimal"

	"clobcore/internal/model"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func resting(id int64, user string, side model.Side, price, qty string, createdAt int64) RestingOrder {
	return RestingOrder{OrderID: id, UserID: user, Side: side, Price: d(price), Remaining: d(qty), CreatedAt: createdAt}
}

func TestAddAndSize(t *testing.T) {
	b := NewBook()
	b.Add(resting(1, "u1", model.Buy, "40.00", "10", 1))
	b.Add(resting(2, "u1", model.Buy, "45.00", "5", 2))
	b.Add(resting(3, "u2", model.Sell, "55.00", "10", 3))

	if b.Size() != 3 {
		t.Fatalf("expected size 3, got %d", b.Size())
	}
}

func TestDuplicateAddIgnored(t *testing.T) {
	b := NewBook()
	b.Add(resting(1, "u1", model.Buy, "50.00", "5", 1))
	b.Add(resting(1, "u1", model.Buy, "50.00", "5", 2))

	if b.Size() != 1 {
		t.Fatalf("expected size 1 (dup ignored), got %d", b.Size())
	}
}

func TestPriceTimePriority(t *testing.T) {
	b := NewBook()
	b.Add(resting(1, "u2", model.Sell, "50.00", "3", 1))
	b.Add(resting(2, "u2", model.Sell, "50.00", "3", 2))

	taker := Taker{UserID: "u1", Side: model.Buy, OrderType: model.Limit, Price: d("50.00"), Remaining: d("4")}
	fills := Run(taker, b)

	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	if fills[0].MakerOrderID != 1 {
		t.Fatalf("expected first fill against order 1, got %d", fills[0].MakerOrderID)
	}
	if !fills[0].Quantity.Equal(d("3")) {
		t.Fatalf("expected first fill qty 3, got %s", fills[0].Quantity)
	}
	if fills[1].MakerOrderID != 2 {
		t.Fatalf("expected second fill against order 2, got %d", fills[1].MakerOrderID)
	}
	if !fills[1].Quantity.Equal(d("1")) {
		t.Fatalf("expected second fill qty 1, got %s", fills[1].Quantity)
	}
}

func TestPartialFillAcrossLevels(t *testing.T) {
	b := NewBook()
	b.Add(resting(1, "u2", model.Sell, "50.00", "2", 1))
	b.Add(resting(2, "u2", model.Sell, "55.00", "3", 2))
	b.Add(resting(3, "u2", model.Sell, "60.00", "5", 3))

	taker := Taker{UserID: "u1", Side: model.Buy, OrderType: model.Limit, Price: d("60.00"), Remaining: d("6")}
	fills := Run(taker, b)

	if len(fills) != 3 {
		t.Fatalf("expected 3 fills, got %d", len(fills))
	}
	total := decimal.Zero
	for _, f := range fills {
		total = total.Add(f.Quantity)
	}
	if !total.Equal(d("6")) {
		t.Fatalf("expected total fill 6, got %s", total)
	}
	if !fills[2].Quantity.Equal(d("1")) {
		t.Fatalf("expected partial fill 1 at top level, got %s", fills[2].Quantity)
	}
}

func TestMarketOrderIgnoresPrice(t *testing.T) {
	b := NewBook()
	b.Add(resting(1, "u2", model.Sell, "50.00", "10", 1))

	taker := Taker{UserID: "u1", Side: model.Buy, OrderType: model.Market, Remaining: d("5")}
	fills := Run(taker, b)

	if len(fills) != 1 || !fills[0].Quantity.Equal(d("5")) {
		t.Fatalf("expected one fill of qty 5, got %+v", fills)
	}
}

func TestMarketOrderExhaustsBook(t *testing.T) {
	b := NewBook()
	b.Add(resting(1, "u2", model.Sell, "50.00", "0.05", 1))

	taker := Taker{UserID: "u1", Side: model.Buy, OrderType: model.Market, Remaining: d("0.1")}
	fills := Run(taker, b)

	if len(fills) != 1 || !fills[0].Quantity.Equal(d("0.05")) {
		t.Fatalf("expected single partial fill of 0.05, got %+v", fills)
	}
	if b.Size() != 0 {
		t.Fatalf("expected book empty after exhausting only resting order, got size %d", b.Size())
	}
}

func TestSelfTradeSkipped(t *testing.T) {
	b := NewBook()
	b.Add(resting(1, "u1", model.Sell, "50.00", "5", 1))
	b.Add(resting(2, "u2", model.Sell, "55.00", "5", 2))

	taker := Taker{UserID: "u1", Side: model.Buy, OrderType: model.Limit, Price: d("99.00"), Remaining: d("3")}
	fills := Run(taker, b)

	if len(fills) != 1 {
		t.Fatalf("expected 1 fill (self order skipped), got %d", len(fills))
	}
	if fills[0].MakerUserID != "u2" {
		t.Fatalf("expected match against u2, got %s", fills[0].MakerUserID)
	}
}

func TestRemove(t *testing.T) {
	b := NewBook()
	b.Add(resting(1, "u1", model.Buy, "50.00", "5", 1))
	b.Add(resting(2, "u1", model.Buy, "50.00", "3", 2))

	b.Remove(1)
	if b.Size() != 1 {
		t.Fatalf("expected size 1 after remove, got %d", b.Size())
	}

	bids, _ := b.Snapshot(5)
	if len(bids) != 1 || !bids[0].Qty.Equal(d("3")) {
		t.Fatalf("expected remaining level qty 3, got %+v", bids)
	}
}

func TestSellTakerMatchesDescendingBids(t *testing.T) {
	b := NewBook()
	b.Add(resting(1, "u1", model.Buy, "60.00", "5", 1))
	b.Add(resting(2, "u1", model.Buy, "55.00", "5", 2))

	taker := Taker{UserID: "u2", Side: model.Sell, OrderType: model.Limit, Price: d("55.00"), Remaining: d("8")}
	fills := Run(taker, b)

	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	if !fills[0].Price.Equal(d("60.00")) {
		t.Fatalf("expected first fill at best bid 60.00, got %s", fills[0].Price)
	}
	total := decimal.Zero
	for _, f := range fills {
		total = total.Add(f.Quantity)
	}
	if !total.Equal(d("8")) {
		t.Fatalf("expected total fill 8, got %s", total)
	}
}

func TestMakerPriceRule(t *testing.T) {
	b := NewBook()
	b.Add(resting(1, "u2", model.Sell, "20000.00", "0.1", 1))

	taker := Taker{UserID: "u1", Side: model.Buy, OrderType: model.Limit, Price: d("21000.00"), Remaining: d("0.1")}
	fills := Run(taker, b)

	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if !fills[0].Price.Equal(d("20000.00")) {
		t.Fatalf("P7: executed price must equal maker's resting price; got %s", fills[0].Price)
	}
}

func TestEstimateCostWalksAsksWithoutMutating(t *testing.T) {
	b := NewBook()
	b.Add(resting(1, "u2", model.Sell, "100.00", "2", 1))
	b.Add(resting(2, "u2", model.Sell, "110.00", "3", 2))

	cost := EstimateCost(b, d("4"), "u1")
	want := d("100.00").Mul(d("2")).Add(d("110.00").Mul(d("2")))
	if !cost.Equal(want) {
		t.Fatalf("expected estimated cost %s, got %s", want, cost)
	}
	if b.Size() != 2 {
		t.Fatalf("EstimateCost must not mutate the book, got size %d", b.Size())
	}
}
