package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"venue-router/internal/risk"
	"venue-router/internal/router"
	"venue-router/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	st, err := store.NewMemory()
	if err != nil {
		t.Fatalf("NewMemory returned error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	svc, err := NewService(st, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestService_RecordAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.RecordRouting(ctx, "ord_1", "BTC/USDT", router.Decision{
		Venue:  "binance",
		Score:  0.8,
		Scores: map[string]float64{"binance": 0.8, "kraken": 0.6},
	})
	svc.RecordRiskRejected(ctx, "BTC/USDT", &risk.ValidationError{
		Rule:    risk.RuleQuantity,
		Message: "quantity must be positive",
	})
	svc.RecordCancellation(ctx, "ord_1", "binance", true)
	svc.RecordError(ctx, "拉取余额失败", errors.New("venue unreachable"))

	events, err := svc.ListEvents(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}

	// 倒序返回，最新的事件在最前。
	if events[0].Type != EventError {
		t.Errorf("expected newest event first, got %s", events[0].Type)
	}
}

func TestService_ListEventsFiltersByType(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.RecordRouting(ctx, "ord_1", "BTC/USDT", router.Decision{Venue: "binance"})
	svc.RecordCancellation(ctx, "ord_1", "binance", false)

	events, err := svc.ListEvents(ctx, EventRouting, 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 routing event, got %d", len(events))
	}

	var payload RoutingPayload
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != "ord_1" || payload.Decision.Venue != "binance" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestService_ListEventsAppliesLimit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		svc.RecordCancellation(ctx, "ord_x", "binance", false)
	}

	events, err := svc.ListEvents(ctx, "", 3)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected limit 3, got %d", len(events))
	}
}
