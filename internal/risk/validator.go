package risk

import (
	"fmt"

	"venue-router/internal/order"
)

// Validate 对下单请求做无状态前置校验，按规则顺序短路返回首个失败项。
// 返回 nil 表示通过。校验本身不消耗任何额度。
func Validate(req order.Request, limits Limits, usage DailyUsage) *ValidationError {
	if req.Quantity <= 0 {
		return &ValidationError{
			Rule:    RuleQuantity,
			Message: "quantity must be positive",
		}
	}

	if req.Type.RequiresPrice() && req.Price <= 0 {
		return &ValidationError{
			Rule:    RulePriceRequired,
			Message: fmt.Sprintf("price required for %s orders", req.Type),
		}
	}

	price := req.Price
	if price <= 0 {
		price = limits.ReferencePrice
	}
	notional := req.Quantity * price

	if limits.MaxOrderSize > 0 && notional > limits.MaxOrderSize {
		return &ValidationError{
			Rule:    RuleOrderSize,
			Message: fmt.Sprintf("order notional %.2f exceeds limit %.2f", notional, limits.MaxOrderSize),
		}
	}

	if limits.MaxDailyOrders > 0 && usage.OrdersPlaced >= limits.MaxDailyOrders {
		return &ValidationError{
			Rule:    RuleDailyOrders,
			Message: "daily order limit reached",
		}
	}

	if limits.MaxDailyVolume > 0 && usage.NotionalTraded+notional > limits.MaxDailyVolume {
		return &ValidationError{
			Rule:    RuleDailyVolume,
			Message: fmt.Sprintf("daily volume %.2f would exceed limit %.2f", usage.NotionalTraded+notional, limits.MaxDailyVolume),
		}
	}

	return nil
}
