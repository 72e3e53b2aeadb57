package venue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"venue-router/internal/order"
)

// PaperConfig 控制模拟场所的行为。
// 模拟实现与真实场所遵循同一契约，仅作为测试与默认运行时的替身。
type PaperConfig struct {
	Name           string
	Symbols        []string
	FeeRate        float64
	ReferencePrice float64       // 市价单的模拟成交价
	Latency        time.Duration // 模拟网络往返耗时
	FillRatio      float64       // (0,1] 成交比例，小于1时产生部分成交
	FailPlacement  bool          // 注入下单失败
	FailCancel     bool          // 注入撤单失败
	FailConnect    bool          // 注入连接失败
	Balances       map[string]Balance
	Seed           Quality
}

// Paper 为进程内模拟场所。
type Paper struct {
	cfg     PaperConfig
	symbols map[string]struct{}
	quality *QualityTracker
	logger  *zap.Logger

	mu         sync.Mutex
	placed     map[string]struct{}
	placeCalls int
	cancels    int
}

// NewPaper 创建模拟场所。
func NewPaper(cfg PaperConfig, logger *zap.Logger) *Paper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FillRatio <= 0 || cfg.FillRatio > 1 {
		cfg.FillRatio = 1
	}
	if cfg.ReferencePrice <= 0 {
		cfg.ReferencePrice = 100
	}

	symbols := make(map[string]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols[s] = struct{}{}
	}

	return &Paper{
		cfg:     cfg,
		symbols: symbols,
		quality: NewQualityTracker(cfg.Seed),
		logger:  logger,
		placed:  make(map[string]struct{}),
	}
}

// Name 返回场所名称。
func (p *Paper) Name() string {
	return p.cfg.Name
}

// Connect 模拟连接握手。
func (p *Paper) Connect(ctx context.Context) error {
	if err := p.sleep(ctx); err != nil {
		return err
	}
	if p.cfg.FailConnect {
		return fmt.Errorf("venue %s: 模拟连接失败", p.cfg.Name)
	}
	return nil
}

// Supports 判断标的是否在配置的支持列表内。
func (p *Paper) Supports(symbol string) bool {
	_, ok := p.symbols[symbol]
	return ok
}

// Balances 返回配置的静态余额。
func (p *Paper) Balances(ctx context.Context) (map[string]Balance, error) {
	if err := p.sleep(ctx); err != nil {
		return nil, err
	}
	if p.cfg.FailConnect {
		return nil, fmt.Errorf("venue %s: 模拟场所不可达", p.cfg.Name)
	}

	out := make(map[string]Balance, len(p.cfg.Balances))
	for asset, b := range p.cfg.Balances {
		out[asset] = b
	}
	return out, nil
}

// PlaceOrder 模拟一次成交：限价单按限价成交，市价单按参考价成交。
func (p *Paper) PlaceOrder(ctx context.Context, ord *order.Order) (order.ExecutionResult, error) {
	p.mu.Lock()
	p.placeCalls++
	if _, dup := p.placed[ord.IdempotencyToken()]; dup {
		p.mu.Unlock()
		return order.ExecutionResult{}, fmt.Errorf("venue %s: 重复的幂等标识 %s", p.cfg.Name, ord.IdempotencyToken())
	}
	p.placed[ord.IdempotencyToken()] = struct{}{}
	p.mu.Unlock()

	if err := p.sleep(ctx); err != nil {
		return order.ExecutionResult{}, err
	}

	if p.cfg.FailPlacement {
		return order.ExecutionResult{}, errors.New("insufficient liquidity")
	}

	fillPrice := ord.Price
	if fillPrice <= 0 {
		fillPrice = p.cfg.ReferencePrice
	}
	filled := ord.Quantity * p.cfg.FillRatio

	return order.ExecutionResult{
		OrderID:    ord.ID,
		Symbol:     ord.Symbol,
		Side:       ord.Side,
		Venue:      p.cfg.Name,
		Quantity:   filled,
		Price:      fillPrice,
		Commission: filled * fillPrice * p.cfg.FeeRate,
		Success:    true,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// CancelOrder 模拟撤单。
func (p *Paper) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	if err := p.sleep(ctx); err != nil {
		return false, err
	}

	p.mu.Lock()
	p.cancels++
	p.mu.Unlock()

	if p.cfg.FailCancel {
		return false, fmt.Errorf("venue %s: 模拟撤单失败", p.cfg.Name)
	}
	return true, nil
}

// FeeRate 返回静态费率。
func (p *Paper) FeeRate() float64 {
	return p.cfg.FeeRate
}

// Quality 返回质量信号快照。
func (p *Paper) Quality() Quality {
	return p.quality.Snapshot()
}

// Tracker 暴露质量追踪器，供统计侧回写执行观测。
func (p *Paper) Tracker() *QualityTracker {
	return p.quality
}

// PlaceCalls 返回已发生的下单调用次数，仅用于测试观测。
func (p *Paper) PlaceCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.placeCalls
}

func (p *Paper) sleep(ctx context.Context) error {
	if p.cfg.Latency <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.cfg.Latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Adapter = (*Paper)(nil)
