package risk

// Rule 标识被违反的校验规则。
type Rule string

const (
	RuleQuantity      Rule = "quantity_positive"
	RulePriceRequired Rule = "price_required"
	RuleOrderSize     Rule = "max_order_size"
	RuleDailyOrders   Rule = "max_daily_orders"
	RuleDailyVolume   Rule = "max_daily_volume"
)

// ValidationError 描述一次未通过的订单前置校验。
// 校验失败不产生任何副作用，调用方据此区分"未发生任何事"与"尝试已发生"。
type ValidationError struct {
	Rule    Rule
	Message string
}

// Error 实现 error 接口。
func (e *ValidationError) Error() string {
	return e.Message
}

// Limits 为全局风险上限，由外部配置加载器提供。
type Limits struct {
	MaxOrderSize   float64 // 单笔订单名义金额上限
	MaxDailyVolume float64 // 当日累计名义金额上限
	MaxDailyOrders int     // 当日订单数量上限
	ReferencePrice float64 // 市价单名义金额估算用参考价
}

// DailyUsage 为当日风险额度的使用快照。
type DailyUsage struct {
	TradingDate    string
	OrdersPlaced   int
	NotionalTraded float64
}
