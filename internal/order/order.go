package order

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// New 根据请求创建 pending 状态的订单并分配全局唯一ID。
func New(req Request) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:            fmt.Sprintf("ord_%s", uuid.NewString()),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Quantity:      req.Quantity,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IdempotencyToken 返回调用方指定的 client_order_id，缺省时退化为系统订单ID。
// 出站请求始终携带该标识，支持幂等提交的场外系统可据此去重。
func (o *Order) IdempotencyToken() string {
	if o.ClientOrderID != "" {
		return o.ClientOrderID
	}
	return o.ID
}

// ApplyFill 将成交结果写入订单，filled 超出委托量时按委托量截断。
func (o *Order) ApplyFill(filled, avgPrice, commission float64) error {
	if filled > o.Quantity {
		filled = o.Quantity
	}

	next := StatusFilled
	if filled < o.Quantity {
		next = StatusPartial
	}
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("order: 状态 %s 不允许迁移到 %s", o.Status, next)
	}

	o.Status = next
	o.FilledQuantity = filled
	o.AveragePrice = avgPrice
	o.Commission = commission
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkRejected 将订单标记为拒绝并原样保留失败原因。
func (o *Order) MarkRejected(reason string) error {
	if !o.Status.CanTransitionTo(StatusRejected) {
		return fmt.Errorf("order: 状态 %s 不允许迁移到 %s", o.Status, StatusRejected)
	}
	o.Status = StatusRejected
	o.RejectReason = reason
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkCancelled 将订单标记为已撤销。
func (o *Order) MarkCancelled() error {
	if !o.Status.CanTransitionTo(StatusCancelled) {
		return fmt.Errorf("order: 状态 %s 不允许迁移到 %s", o.Status, StatusCancelled)
	}
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Notional 估算订单名义金额，市价单缺少限价时使用参考价。
func (o *Order) Notional(referencePrice float64) float64 {
	price := o.Price
	if price <= 0 {
		price = referencePrice
	}
	return o.Quantity * price
}

// Clone 返回订单的浅拷贝，用于对外暴露只读视图。
func (o *Order) Clone() *Order {
	cp := *o
	return &cp
}

// Slippage 计算请求价与成交价之间的相对偏差，无参考价时为0。
func Slippage(requested, fill float64) float64 {
	if requested <= 0 {
		return 0
	}
	return math.Abs(fill-requested) / requested
}
