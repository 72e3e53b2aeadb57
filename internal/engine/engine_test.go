package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"venue-router/internal/order"
	"venue-router/internal/risk"
	"venue-router/internal/router"
	"venue-router/internal/store"
	"venue-router/internal/venue"
)

func defaultOptions() Options {
	return Options{
		Limits: risk.Limits{
			MaxOrderSize:   10000,
			MaxDailyVolume: 100000,
			MaxDailyOrders: 100,
			ReferencePrice: 100,
		},
		Weights:      router.DefaultWeights(),
		VenueTimeout: time.Second,
	}
}

func newTestEngine(t *testing.T, opts Options, entries []VenueEntry) *Engine {
	t.Helper()

	st, err := store.NewMemory()
	if err != nil {
		t.Fatalf("NewMemory returned error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	eng, err := New(opts, entries, st, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return eng
}

func paperEntry(name string, cfg venue.PaperConfig, enabled bool) (VenueEntry, *venue.Paper) {
	cfg.Name = name
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"BTC/USDT"}
	}
	p := venue.NewPaper(cfg, nil)
	return VenueEntry{Adapter: p, Enabled: enabled}, p
}

func TestPlaceOrder_RoutesToBestVenue(t *testing.T) {
	good, _ := paperEntry("binance", venue.PaperConfig{
		FeeRate: 0.001,
		Seed:    venue.Quality{Reliability: 0.95, Latency: 100 * time.Millisecond, Liquidity: 0.9},
	}, true)
	worse, worsePaper := paperEntry("coinbase", venue.PaperConfig{
		FeeRate: 0.005,
		Seed:    venue.Quality{Reliability: 0.9, Latency: 300 * time.Millisecond, Liquidity: 0.3},
	}, true)

	eng := newTestEngine(t, defaultOptions(), []VenueEntry{good, worse})

	ord, err := eng.PlaceOrder(context.Background(), order.Request{
		Symbol:   "BTC/USDT",
		Side:     order.SideBuy,
		Type:     order.TypeLimit,
		Quantity: 1,
		Price:    100,
	})
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if ord.Venue != "binance" {
		t.Errorf("expected binance, got %s", ord.Venue)
	}
	if ord.Status != order.StatusFilled {
		t.Errorf("expected filled, got %s", ord.Status)
	}
	if worsePaper.PlaceCalls() != 0 {
		t.Errorf("losing venue must not be called, got %d", worsePaper.PlaceCalls())
	}
}

func TestPlaceOrder_RiskRejectionHasNoSideEffects(t *testing.T) {
	entry, paper := paperEntry("binance", venue.PaperConfig{FeeRate: 0.001}, true)
	eng := newTestEngine(t, defaultOptions(), []VenueEntry{entry})

	_, err := eng.PlaceOrder(context.Background(), order.Request{
		Symbol:   "BTC/USDT",
		Side:     order.SideBuy,
		Type:     order.TypeLimit,
		Quantity: 0,
		Price:    100,
	})

	var verr *risk.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Rule != risk.RuleQuantity {
		t.Errorf("expected %s rule, got %s", risk.RuleQuantity, verr.Rule)
	}
	if paper.PlaceCalls() != 0 {
		t.Errorf("rejected request must not reach any venue, got %d calls", paper.PlaceCalls())
	}
	if s := eng.GetExecutionSummary(); s.TotalOrders != 0 {
		t.Errorf("rejected request must not enter statistics: %+v", s)
	}
}

func TestPlaceOrder_NoVenueAvailable(t *testing.T) {
	entry, _ := paperEntry("binance", venue.PaperConfig{Symbols: []string{"ETH/USDT"}}, true)
	eng := newTestEngine(t, defaultOptions(), []VenueEntry{entry})

	_, err := eng.PlaceOrder(context.Background(), order.Request{
		Symbol:   "BTC/USDT",
		Side:     order.SideBuy,
		Type:     order.TypeMarket,
		Quantity: 1,
	})
	if !errors.Is(err, ErrNoVenueAvailable) {
		t.Fatalf("expected ErrNoVenueAvailable, got %v", err)
	}
	if s := eng.GetExecutionSummary(); s.TotalOrders != 0 {
		t.Errorf("routing failure must leave no trace: %+v", s)
	}
}

func TestPlaceOrder_DisabledVenueIsSkipped(t *testing.T) {
	disabled, disabledPaper := paperEntry("binance", venue.PaperConfig{
		FeeRate: 0.0001,
		Seed:    venue.Quality{Reliability: 1, Liquidity: 1},
	}, false)
	enabled, _ := paperEntry("coinbase", venue.PaperConfig{FeeRate: 0.005}, true)

	eng := newTestEngine(t, defaultOptions(), []VenueEntry{disabled, enabled})

	ord, err := eng.PlaceOrder(context.Background(), order.Request{
		Symbol:   "BTC/USDT",
		Side:     order.SideBuy,
		Type:     order.TypeMarket,
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if ord.Venue != "coinbase" {
		t.Errorf("expected coinbase, got %s", ord.Venue)
	}
	if disabledPaper.PlaceCalls() != 0 {
		t.Errorf("disabled venue must never be called")
	}
}

func TestPlaceOrder_ForcedVenue(t *testing.T) {
	best, _ := paperEntry("binance", venue.PaperConfig{
		FeeRate: 0.001,
		Seed:    venue.Quality{Reliability: 1, Liquidity: 1},
	}, true)
	forced, forcedPaper := paperEntry("kraken", venue.PaperConfig{FeeRate: 0.0026}, true)

	eng := newTestEngine(t, defaultOptions(), []VenueEntry{best, forced})

	ord, err := eng.PlaceOrder(context.Background(), order.Request{
		Symbol:   "BTC/USDT",
		Side:     order.SideBuy,
		Type:     order.TypeMarket,
		Quantity: 1,
		Venue:    "kraken",
	})
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if ord.Venue != "kraken" {
		t.Errorf("expected forced venue kraken, got %s", ord.Venue)
	}
	if forcedPaper.PlaceCalls() != 1 {
		t.Errorf("expected forced venue to take the order, got %d calls", forcedPaper.PlaceCalls())
	}
}

func TestPlaceOrder_ForcedVenueUnavailable(t *testing.T) {
	entry, _ := paperEntry("binance", venue.PaperConfig{}, true)
	eng := newTestEngine(t, defaultOptions(), []VenueEntry{entry})

	_, err := eng.PlaceOrder(context.Background(), order.Request{
		Symbol:   "BTC/USDT",
		Side:     order.SideBuy,
		Type:     order.TypeMarket,
		Quantity: 1,
		Venue:    "kraken",
	})
	if !errors.Is(err, ErrNoVenueAvailable) {
		t.Fatalf("expected ErrNoVenueAvailable for unknown forced venue, got %v", err)
	}
}

func TestPlaceOrder_ExecutionFailureReturnsRejectedOrder(t *testing.T) {
	entry, _ := paperEntry("binance", venue.PaperConfig{FailPlacement: true}, true)
	eng := newTestEngine(t, defaultOptions(), []VenueEntry{entry})

	ord, err := eng.PlaceOrder(context.Background(), order.Request{
		Symbol:   "BTC/USDT",
		Side:     order.SideBuy,
		Type:     order.TypeMarket,
		Quantity: 1,
	})

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if ord == nil {
		t.Fatalf("failed attempt must still return the order")
	}
	if ord.Status != order.StatusRejected {
		t.Errorf("expected rejected, got %s", ord.Status)
	}
	if execErr.Reason != "insufficient liquidity" {
		t.Errorf("expected verbatim venue reason, got %q", execErr.Reason)
	}

	// 失败的尝试仍可按ID查询，且计入统计。
	got, statusErr := eng.GetOrderStatus(ord.ID)
	if statusErr != nil {
		t.Fatalf("GetOrderStatus returned error: %v", statusErr)
	}
	if got.Status != order.StatusRejected {
		t.Errorf("expected rejected via lookup, got %s", got.Status)
	}

	s := eng.GetExecutionSummary()
	if s.TotalOrders != 1 || s.FailedOrders != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestPlaceOrder_DailyOrderLimitAcrossCalls(t *testing.T) {
	opts := defaultOptions()
	opts.Limits.MaxDailyOrders = 1

	entry, _ := paperEntry("binance", venue.PaperConfig{}, true)
	eng := newTestEngine(t, opts, []VenueEntry{entry})
	ctx := context.Background()

	req := order.Request{Symbol: "BTC/USDT", Side: order.SideBuy, Type: order.TypeMarket, Quantity: 1}
	if _, err := eng.PlaceOrder(ctx, req); err != nil {
		t.Fatalf("first order failed: %v", err)
	}

	_, err := eng.PlaceOrder(ctx, req)
	var verr *risk.ValidationError
	if !errors.As(err, &verr) || verr.Rule != risk.RuleDailyOrders {
		t.Fatalf("expected daily order limit violation, got %v", err)
	}
}

func TestCancelOrder_UnknownID(t *testing.T) {
	entry, _ := paperEntry("binance", venue.PaperConfig{}, true)
	eng := newTestEngine(t, defaultOptions(), []VenueEntry{entry})

	_, err := eng.CancelOrder(context.Background(), "ord_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelOrder_TerminalOrderIsNoop(t *testing.T) {
	entry, _ := paperEntry("binance", venue.PaperConfig{}, true)
	eng := newTestEngine(t, defaultOptions(), []VenueEntry{entry})
	ctx := context.Background()

	ord, err := eng.PlaceOrder(ctx, order.Request{
		Symbol:   "BTC/USDT",
		Side:     order.SideBuy,
		Type:     order.TypeMarket,
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}

	cancelled, err := eng.CancelOrder(ctx, ord.ID)
	if err != nil {
		t.Fatalf("cancel of filled order must not error: %v", err)
	}
	if cancelled {
		t.Errorf("expected false for terminal order")
	}

	got, err := eng.GetOrderStatus(ord.ID)
	if err != nil {
		t.Fatalf("GetOrderStatus returned error: %v", err)
	}
	if got.Status != order.StatusFilled {
		t.Errorf("terminal status changed: %s", got.Status)
	}
}

func TestGetOrderStatus_ReturnsCopy(t *testing.T) {
	entry, _ := paperEntry("binance", venue.PaperConfig{}, true)
	eng := newTestEngine(t, defaultOptions(), []VenueEntry{entry})

	ord, err := eng.PlaceOrder(context.Background(), order.Request{
		Symbol:   "BTC/USDT",
		Side:     order.SideBuy,
		Type:     order.TypeMarket,
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}

	got, err := eng.GetOrderStatus(ord.ID)
	if err != nil {
		t.Fatalf("GetOrderStatus returned error: %v", err)
	}

	got.Status = order.StatusPending
	again, err := eng.GetOrderStatus(ord.ID)
	if err != nil {
		t.Fatalf("GetOrderStatus returned error: %v", err)
	}
	if again.Status != order.StatusFilled {
		t.Errorf("lookup copy leaked mutation: %s", again.Status)
	}
}

func TestConnectVenues(t *testing.T) {
	ok, _ := paperEntry("binance", venue.PaperConfig{}, true)
	bad, _ := paperEntry("coinbase", venue.PaperConfig{FailConnect: true}, true)
	off, _ := paperEntry("kraken", venue.PaperConfig{}, false)

	eng := newTestEngine(t, defaultOptions(), []VenueEntry{ok, bad, off})

	results := eng.ConnectVenues(context.Background())
	if !results["binance"] {
		t.Errorf("expected binance connected")
	}
	if results["coinbase"] {
		t.Errorf("expected coinbase connection failure")
	}
	if results["kraken"] {
		t.Errorf("disabled venue must not connect")
	}

	if got := eng.GetExecutionSummary().VenuesConnected; got != 1 {
		t.Errorf("expected 1 connected venue, got %d", got)
	}
}

func TestGetVenueBalances(t *testing.T) {
	entry, _ := paperEntry("binance", venue.PaperConfig{
		Balances: map[string]venue.Balance{
			"USDT": {Free: 1000, Locked: 50},
		},
	}, true)
	eng := newTestEngine(t, defaultOptions(), []VenueEntry{entry})
	ctx := context.Background()

	balances := eng.GetVenueBalances(ctx, "binance")
	if b, ok := balances["USDT"]; !ok || b.Free != 1000 || b.Locked != 50 {
		t.Errorf("unexpected balances: %+v", balances)
	}

	if got := eng.GetVenueBalances(ctx, "unknown"); len(got) != 0 {
		t.Errorf("unknown venue should yield empty map, got %+v", got)
	}
}

func TestPlaceOrder_FeedsQualityTracker(t *testing.T) {
	entry, paper := paperEntry("binance", venue.PaperConfig{
		Seed: venue.Quality{Reliability: 0.5},
	}, true)
	eng := newTestEngine(t, defaultOptions(), []VenueEntry{entry})

	if _, err := eng.PlaceOrder(context.Background(), order.Request{
		Symbol:   "BTC/USDT",
		Side:     order.SideBuy,
		Type:     order.TypeMarket,
		Quantity: 1,
	}); err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}

	// 成功执行应将可靠性向 1 平滑：0.9*0.5 + 0.1*1 = 0.55。
	if got := paper.Quality().Reliability; got <= 0.5 {
		t.Errorf("expected reliability to improve after success, got %f", got)
	}
}
