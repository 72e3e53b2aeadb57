package order

import "time"

// Side 表示下单方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Type 表示订单类型。
type Type string

const (
	TypeMarket    Type = "market"
	TypeLimit     Type = "limit"
	TypeStop      Type = "stop"
	TypeStopLimit Type = "stop_limit"
)

// RequiresPrice 判断该订单类型是否必须携带限价。
func (t Type) RequiresPrice() bool {
	return t == TypeLimit || t == TypeStopLimit
}

// Status 表示订单生命周期状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusPartial   Status = "partial"
	StatusFilled    Status = "filled"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// Terminal 判断状态是否为终态。
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// CanTransitionTo 判断状态迁移是否合法，状态只允许单向推进。
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		switch next {
		case StatusPartial, StatusFilled, StatusCancelled, StatusRejected:
			return true
		}
	case StatusPartial:
		switch next {
		case StatusFilled, StatusCancelled:
			return true
		}
	}
	return false
}

// Request 为调用方提交的下单意图。
type Request struct {
	Symbol        string
	Side          Side
	Type          Type
	Quantity      float64
	Price         float64 // 0 表示未指定（市价单）
	StopPrice     float64
	Venue         string // 为空或 "auto" 时由路由器选择
	ClientOrderID string
}

// Order 为执行引擎内部的订单实体。
// 不可变意图字段在创建后不再修改，执行状态字段仅由持有订单锁的单一写者更新。
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          Type
	Quantity      float64
	Price         float64
	StopPrice     float64

	Status         Status
	FilledQuantity float64
	AveragePrice   float64
	Commission     float64
	Venue          string
	RejectReason   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExecutionResult 记录一次撮合尝试的不可变结果。
type ExecutionResult struct {
	OrderID       string
	Symbol        string
	Side          Side
	Venue         string
	Quantity      float64
	Price         float64
	Commission    float64
	Slippage      float64
	ExecutionTime time.Duration
	Success       bool
	ErrorReason   string
	Timestamp     time.Time
}
