package venue

import (
	"context"
	"errors"
	"fmt"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"venue-router/internal/order"
)

// ccxtClient 抽象底层 ccxt 客户端，便于在测试中替换。
type ccxtClient interface {
	LoadMarkets(params ...interface{}) (map[string]ccxt.MarketInterface, error)
	FetchBalance(params ...interface{}) (ccxt.Balances, error)
	CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error)
	CreateLimitOrder(symbol string, side string, amount float64, price float64, options ...ccxt.CreateLimitOrderOptions) (ccxt.Order, error)
	CancelOrder(id string, options ...ccxt.CancelOrderOptions) (ccxt.Order, error)
}

// CCXTConfig 描述真实场所的接入参数。
type CCXTConfig struct {
	Name        string
	Symbols     []string
	FeeRate     float64
	APIKey      string
	APISecret   string
	UseSandbox  bool
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Seed        Quality
}

// CCXT 将 ccxt 交易所客户端适配为统一的场所契约。
// 幂等读操作（连接、余额）带指数退避重试；下单绝不自动重试，避免重复成交。
type CCXT struct {
	cfg     CCXTConfig
	client  ccxtClient
	symbols map[string]struct{}
	quality *QualityTracker
	logger  *zap.Logger
}

// NewCCXT 基于 Binance 现货客户端创建真实场所适配器。
func NewCCXT(cfg CCXTConfig, logger *zap.Logger) (*CCXT, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewBinance(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return newCCXTWithClient(cfg, ex, logger), nil
}

func newCCXTWithClient(cfg CCXTConfig, client ccxtClient, logger *zap.Logger) *CCXT {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}

	symbols := make(map[string]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols[s] = struct{}{}
	}

	return &CCXT{
		cfg:     cfg,
		client:  client,
		symbols: symbols,
		quality: NewQualityTracker(cfg.Seed),
		logger:  logger,
	}
}

// Name 返回场所名称。
func (c *CCXT) Name() string {
	return c.cfg.Name
}

// Connect 加载市场元数据以校验连通性。
func (c *CCXT) Connect(ctx context.Context) error {
	return c.callWithRetry(ctx, "load_markets", func() error {
		_, err := c.client.LoadMarkets()
		return err
	})
}

// Supports 判断标的是否在配置的支持列表内。
func (c *CCXT) Supports(symbol string) bool {
	_, ok := c.symbols[symbol]
	return ok
}

// Balances 拉取账户余额并聚合为统一结构。
func (c *CCXT) Balances(ctx context.Context) (map[string]Balance, error) {
	var raw ccxt.Balances

	err := c.callWithRetry(ctx, "fetch_balance", func() error {
		result, err := c.client.FetchBalance()
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]Balance)
	for asset, free := range raw.Free {
		if free == nil {
			continue
		}
		b := out[asset]
		b.Free = *free
		out[asset] = b
	}
	for asset, used := range raw.Used {
		if used == nil {
			continue
		}
		b := out[asset]
		b.Locked = *used
		out[asset] = b
	}
	return out, nil
}

// PlaceOrder 提交订单。出站请求携带幂等标识，调用失败不做任何自动重试。
func (c *CCXT) PlaceOrder(ctx context.Context, ord *order.Order) (order.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return order.ExecutionResult{}, err
	}

	params := map[string]interface{}{
		"clientOrderId": ord.IdempotencyToken(),
	}

	var (
		raw ccxt.Order
		err error
	)

	switch ord.Type {
	case order.TypeMarket:
		raw, err = c.client.CreateMarketOrder(ord.Symbol, string(ord.Side), ord.Quantity,
			ccxt.WithCreateMarketOrderParams(params))
	case order.TypeLimit:
		raw, err = c.client.CreateLimitOrder(ord.Symbol, string(ord.Side), ord.Quantity, ord.Price,
			ccxt.WithCreateLimitOrderParams(params))
	case order.TypeStop, order.TypeStopLimit:
		if ord.StopPrice > 0 {
			params["stopPrice"] = ord.StopPrice
		}
		price := ord.Price
		if price <= 0 {
			return order.ExecutionResult{}, fmt.Errorf("venue %s: 止损限价单缺少限价", c.cfg.Name)
		}
		raw, err = c.client.CreateLimitOrder(ord.Symbol, string(ord.Side), ord.Quantity, price,
			ccxt.WithCreateLimitOrderParams(params))
	default:
		return order.ExecutionResult{}, fmt.Errorf("venue %s: 不支持的订单类型 %s", c.cfg.Name, ord.Type)
	}

	if err != nil {
		normalized, _ := classifyError(err)
		return order.ExecutionResult{}, normalized
	}

	filled := derefFloat(raw.Filled)
	if filled <= 0 {
		filled = ord.Quantity
	}
	avgPrice := derefFloat(raw.Average)
	if avgPrice <= 0 {
		avgPrice = derefFloat(raw.Price)
	}
	if avgPrice <= 0 {
		avgPrice = ord.Price
	}

	return order.ExecutionResult{
		OrderID:    ord.ID,
		Symbol:     ord.Symbol,
		Side:       ord.Side,
		Venue:      c.cfg.Name,
		Quantity:   filled,
		Price:      avgPrice,
		Commission: filled * avgPrice * c.cfg.FeeRate,
		Success:    true,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// CancelOrder 请求撤销场所侧订单。
func (c *CCXT) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if _, err := c.client.CancelOrder(orderID); err != nil {
		normalized, _ := classifyError(err)
		return false, normalized
	}
	return true, nil
}

// FeeRate 返回静态费率。
func (c *CCXT) FeeRate() float64 {
	return c.cfg.FeeRate
}

// Quality 返回质量信号快照。
func (c *CCXT) Quality() Quality {
	return c.quality.Snapshot()
}

// Tracker 暴露质量追踪器。
func (c *CCXT) Tracker() *QualityTracker {
	return c.quality
}

func (c *CCXT) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.MinDelay

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("场所调用重试后成功",
					zap.String("venue", c.cfg.Name),
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("场所维护中",
				zap.String("venue", c.cfg.Name),
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= c.cfg.MaxAttempts {
			c.logger.Error("场所调用失败",
				zap.String("venue", c.cfg.Name),
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > c.cfg.MaxDelay {
			wait = c.cfg.MaxDelay
		}

		c.logger.Warn("场所调用失败，等待重试",
			zap.String("venue", c.cfg.Name),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > c.cfg.MaxDelay {
			delay = c.cfg.MaxDelay
		}
	}
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

var _ Adapter = (*CCXT)(nil)
