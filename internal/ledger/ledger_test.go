package ledger

import "testing"

func TestOrderedCanonicalizesLockOrder(t *testing.T) {
	a := key{UserID: "bob", Currency: "USD"}
	b := key{UserID: "alice", Currency: "BTC"}

	got := ordered(a, b)
	if got[0] != b || got[1] != a {
		t.Fatalf("expected alice before bob regardless of call order, got %+v", got)
	}

	// Same call with operands swapped must produce an identical order, so
	// that two concurrent transfers between the same two users always
	// acquire their row locks in the same sequence.
	got2 := ordered(b, a)
	if got2[0] != got[0] || got2[1] != got[1] {
		t.Fatalf("ordered must be independent of argument order, got %+v vs %+v", got, got2)
	}
}

func TestOrderedBreaksTiesOnCurrency(t *testing.T) {
	a := key{UserID: "same", Currency: "USD"}
	b := key{UserID: "same", Currency: "BTC"}

	got := ordered(a, b)
	if got[0] != b || got[1] != a {
		t.Fatalf("expected BTC before USD for same user, got %+v", got)
	}
}
