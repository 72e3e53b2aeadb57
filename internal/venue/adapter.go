package venue

import (
	"context"

	"venue-router/internal/order"
)

// Balance 表示某个资产在场所内的余额。
type Balance struct {
	Free   float64
	Locked float64
}

// Total 返回资产总额。
func (b Balance) Total() float64 {
	return b.Free + b.Locked
}

// Adapter 为交易场所的统一接入契约。
// 实现必须支持多个在途订单并发调用，连接失败只上报错误，不得中断进程。
type Adapter interface {
	// Name 返回场所名称，路由结果按名称字典序决出平局。
	Name() string
	// Connect 建立或校验连接，失败的场所会被排除出本次路由。
	Connect(ctx context.Context) error
	// Supports 判断场所是否支持该交易标的。
	Supports(symbol string) bool
	// Balances 拉取账户余额，按资产聚合。
	Balances(ctx context.Context) (map[string]Balance, error)
	// PlaceOrder 提交订单并返回本次尝试的执行结果。
	PlaceOrder(ctx context.Context, ord *order.Order) (order.ExecutionResult, error)
	// CancelOrder 请求撤销场所侧订单，返回撤销是否生效。
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	// FeeRate 返回场所静态费率。
	FeeRate() float64
	// Quality 返回当前质量信号快照。
	Quality() Quality
}
