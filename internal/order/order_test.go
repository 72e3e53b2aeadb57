package order

import (
	"strings"
	"testing"
)

func TestNew_StartsPendingWithGeneratedID(t *testing.T) {
	ord := New(Request{
		Symbol:   "BTC/USDT",
		Side:     SideBuy,
		Type:     TypeLimit,
		Quantity: 1.5,
		Price:    50000,
	})

	if ord.Status != StatusPending {
		t.Errorf("expected status pending, got %s", ord.Status)
	}
	if !strings.HasPrefix(ord.ID, "ord_") {
		t.Errorf("expected id with ord_ prefix, got %s", ord.ID)
	}
	if ord.CreatedAt.IsZero() || ord.UpdatedAt.IsZero() {
		t.Errorf("expected timestamps to be set")
	}

	other := New(Request{Symbol: "BTC/USDT", Side: SideBuy, Type: TypeMarket, Quantity: 1})
	if other.ID == ord.ID {
		t.Errorf("expected unique ids, got duplicate %s", ord.ID)
	}
}

func TestIdempotencyToken(t *testing.T) {
	ord := New(Request{Symbol: "BTC/USDT", Side: SideBuy, Type: TypeMarket, Quantity: 1, ClientOrderID: "cli-41"})
	if got := ord.IdempotencyToken(); got != "cli-41" {
		t.Errorf("expected client order id, got %s", got)
	}

	ord = New(Request{Symbol: "BTC/USDT", Side: SideBuy, Type: TypeMarket, Quantity: 1})
	if got := ord.IdempotencyToken(); got != ord.ID {
		t.Errorf("expected fallback to order id, got %s", got)
	}
}

func TestApplyFill_FullAndPartial(t *testing.T) {
	ord := New(Request{Symbol: "BTC/USDT", Side: SideBuy, Type: TypeLimit, Quantity: 2, Price: 100})

	if err := ord.ApplyFill(2, 100, 0.2); err != nil {
		t.Fatalf("ApplyFill returned error: %v", err)
	}
	if ord.Status != StatusFilled {
		t.Errorf("expected filled, got %s", ord.Status)
	}
	if ord.FilledQuantity != 2 || ord.AveragePrice != 100 || ord.Commission != 0.2 {
		t.Errorf("unexpected fill fields: %+v", ord)
	}

	ord = New(Request{Symbol: "BTC/USDT", Side: SideBuy, Type: TypeLimit, Quantity: 2, Price: 100})
	if err := ord.ApplyFill(1.2, 99.5, 0.1); err != nil {
		t.Fatalf("ApplyFill returned error: %v", err)
	}
	if ord.Status != StatusPartial {
		t.Errorf("expected partial, got %s", ord.Status)
	}
}

func TestApplyFill_ClampsOverfill(t *testing.T) {
	ord := New(Request{Symbol: "BTC/USDT", Side: SideBuy, Type: TypeLimit, Quantity: 1, Price: 100})
	if err := ord.ApplyFill(3, 100, 0); err != nil {
		t.Fatalf("ApplyFill returned error: %v", err)
	}
	if ord.FilledQuantity != 1 {
		t.Errorf("expected filled quantity clamped to 1, got %f", ord.FilledQuantity)
	}
	if ord.Status != StatusFilled {
		t.Errorf("expected filled, got %s", ord.Status)
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusPartial, true},
		{StatusPending, StatusFilled, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusRejected, true},
		{StatusPartial, StatusFilled, true},
		{StatusPartial, StatusCancelled, true},
		{StatusPartial, StatusRejected, false},
		{StatusFilled, StatusCancelled, false},
		{StatusCancelled, StatusFilled, false},
		{StatusRejected, StatusPending, false},
	}

	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.allowed {
			t.Errorf("%s -> %s: got %v want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestTerminalStatesRejectFurtherWrites(t *testing.T) {
	ord := New(Request{Symbol: "BTC/USDT", Side: SideBuy, Type: TypeMarket, Quantity: 1})
	if err := ord.MarkCancelled(); err != nil {
		t.Fatalf("MarkCancelled returned error: %v", err)
	}
	if err := ord.ApplyFill(1, 100, 0); err == nil {
		t.Errorf("expected fill after cancel to fail")
	}
	if err := ord.MarkRejected("late"); err == nil {
		t.Errorf("expected reject after cancel to fail")
	}
	if ord.Status != StatusCancelled {
		t.Errorf("terminal status changed to %s", ord.Status)
	}
}

func TestNotional(t *testing.T) {
	ord := New(Request{Symbol: "BTC/USDT", Side: SideBuy, Type: TypeLimit, Quantity: 2, Price: 150})
	if got := ord.Notional(100); got != 300 {
		t.Errorf("expected notional 300, got %f", got)
	}

	ord = New(Request{Symbol: "BTC/USDT", Side: SideBuy, Type: TypeMarket, Quantity: 2})
	if got := ord.Notional(100); got != 200 {
		t.Errorf("expected market order to use reference price, got %f", got)
	}
}

func TestSlippage(t *testing.T) {
	if got := Slippage(100, 101); got != 0.01 {
		t.Errorf("expected slippage 0.01, got %f", got)
	}
	if got := Slippage(100, 99); got != 0.01 {
		t.Errorf("expected absolute slippage 0.01, got %f", got)
	}
	if got := Slippage(0, 99); got != 0 {
		t.Errorf("expected zero slippage without reference price, got %f", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	ord := New(Request{Symbol: "BTC/USDT", Side: SideBuy, Type: TypeLimit, Quantity: 1, Price: 100})
	cp := ord.Clone()

	if err := ord.ApplyFill(1, 100, 0); err != nil {
		t.Fatalf("ApplyFill returned error: %v", err)
	}
	if cp.Status != StatusPending {
		t.Errorf("clone mutated along with original: %s", cp.Status)
	}
}
