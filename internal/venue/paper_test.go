package venue

import (
	"context"
	"strings"
	"testing"

	"venue-router/internal/order"
)

func newTestPaper(cfg PaperConfig) *Paper {
	if cfg.Name == "" {
		cfg.Name = "paper"
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"BTC/USDT"}
	}
	return NewPaper(cfg, nil)
}

func TestPaper_Supports(t *testing.T) {
	p := newTestPaper(PaperConfig{Symbols: []string{"BTC/USDT", "ETH/USDT"}})

	if !p.Supports("BTC/USDT") {
		t.Errorf("expected BTC/USDT to be supported")
	}
	if p.Supports("DOGE/USDT") {
		t.Errorf("expected DOGE/USDT to be unsupported")
	}
}

func TestPaper_PlaceOrderFillsAtLimitPrice(t *testing.T) {
	p := newTestPaper(PaperConfig{FeeRate: 0.001})
	ord := order.New(order.Request{Symbol: "BTC/USDT", Side: order.SideBuy, Type: order.TypeLimit, Quantity: 2, Price: 50})

	res, err := p.PlaceOrder(context.Background(), ord)
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success")
	}
	if res.Quantity != 2 || res.Price != 50 {
		t.Errorf("unexpected fill: qty=%f price=%f", res.Quantity, res.Price)
	}
	if res.Commission != 2*50*0.001 {
		t.Errorf("unexpected commission: %f", res.Commission)
	}
}

func TestPaper_MarketOrderUsesReferencePrice(t *testing.T) {
	p := newTestPaper(PaperConfig{ReferencePrice: 200})
	ord := order.New(order.Request{Symbol: "BTC/USDT", Side: order.SideBuy, Type: order.TypeMarket, Quantity: 1})

	res, err := p.PlaceOrder(context.Background(), ord)
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if res.Price != 200 {
		t.Errorf("expected reference price 200, got %f", res.Price)
	}
}

func TestPaper_PartialFillRatio(t *testing.T) {
	p := newTestPaper(PaperConfig{FillRatio: 0.5})
	ord := order.New(order.Request{Symbol: "BTC/USDT", Side: order.SideBuy, Type: order.TypeLimit, Quantity: 4, Price: 100})

	res, err := p.PlaceOrder(context.Background(), ord)
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if res.Quantity != 2 {
		t.Errorf("expected half fill 2, got %f", res.Quantity)
	}
}

func TestPaper_RejectsDuplicateIdempotencyToken(t *testing.T) {
	p := newTestPaper(PaperConfig{})
	ord := order.New(order.Request{Symbol: "BTC/USDT", Side: order.SideBuy, Type: order.TypeLimit, Quantity: 1, Price: 100, ClientOrderID: "cli-7"})

	if _, err := p.PlaceOrder(context.Background(), ord); err != nil {
		t.Fatalf("first placement failed: %v", err)
	}

	dup := order.New(order.Request{Symbol: "BTC/USDT", Side: order.SideBuy, Type: order.TypeLimit, Quantity: 1, Price: 100, ClientOrderID: "cli-7"})
	if _, err := p.PlaceOrder(context.Background(), dup); err == nil {
		t.Fatalf("expected duplicate token to be rejected")
	}
	if p.PlaceCalls() != 2 {
		t.Errorf("expected 2 place calls, got %d", p.PlaceCalls())
	}
}

func TestPaper_FailureInjection(t *testing.T) {
	p := newTestPaper(PaperConfig{FailPlacement: true})
	ord := order.New(order.Request{Symbol: "BTC/USDT", Side: order.SideBuy, Type: order.TypeLimit, Quantity: 1, Price: 100})

	_, err := p.PlaceOrder(context.Background(), ord)
	if err == nil || !strings.Contains(err.Error(), "insufficient liquidity") {
		t.Fatalf("expected injected failure, got %v", err)
	}

	p = newTestPaper(PaperConfig{FailConnect: true})
	if err := p.Connect(context.Background()); err == nil {
		t.Errorf("expected connect failure")
	}
	if _, err := p.Balances(context.Background()); err == nil {
		t.Errorf("expected balances failure")
	}
}

func TestPaper_CancelOrder(t *testing.T) {
	p := newTestPaper(PaperConfig{})
	ok, err := p.CancelOrder(context.Background(), "ord_x")
	if err != nil || !ok {
		t.Fatalf("expected cancel success, got ok=%v err=%v", ok, err)
	}

	p = newTestPaper(PaperConfig{FailCancel: true})
	ok, err = p.CancelOrder(context.Background(), "ord_x")
	if err == nil || ok {
		t.Fatalf("expected cancel failure, got ok=%v err=%v", ok, err)
	}
}
