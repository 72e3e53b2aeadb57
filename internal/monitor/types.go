package monitor

import (
	"time"

	"venue-router/internal/order"
	"venue-router/internal/router"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventRouting      EventType = "routing"
	EventExecution    EventType = "execution"
	EventRiskRejected EventType = "risk_rejected"
	EventCancellation EventType = "cancellation"
	EventError        EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RoutingPayload 记录一次路由决策及全部候选评分。
type RoutingPayload struct {
	OrderID  string          `json:"order_id"`
	Symbol   string          `json:"symbol"`
	Decision router.Decision `json:"decision"`
}

// ExecutionPayload 记录一次执行结果。
type ExecutionPayload struct {
	Result order.ExecutionResult `json:"result"`
}

// RiskRejectedPayload 记录被风控拦截的下单请求。
type RiskRejectedPayload struct {
	Symbol  string `json:"symbol"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// CancellationPayload 记录撤单尝试。
type CancellationPayload struct {
	OrderID   string `json:"order_id"`
	Venue     string `json:"venue"`
	Cancelled bool   `json:"cancelled"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
