// Package engine 对外暴露多场所订单执行引擎的公共入口。
// Engine 是显式构造的上下文对象，同一进程可以持有多个互不干扰的实例。
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"venue-router/internal/execution"
	"venue-router/internal/ledger"
	"venue-router/internal/monitor"
	"venue-router/internal/order"
	"venue-router/internal/risk"
	"venue-router/internal/router"
	"venue-router/internal/store"
	"venue-router/internal/venue"
)

// VenueEntry 为注册到引擎的单个场所。
type VenueEntry struct {
	Adapter venue.Adapter
	Enabled bool
}

// Options 控制引擎行为。
type Options struct {
	Limits         risk.Limits
	Weights        router.Weights
	VenueTimeout   time.Duration
	DailyResetHour int
}

type registeredVenue struct {
	adapter   venue.Adapter
	enabled   bool
	connected atomic.Bool
}

// qualityObserver 由可回写质量信号的适配器实现。
type qualityObserver interface {
	Tracker() *venue.QualityTracker
}

// Engine 聚合校验、风控、路由、调度与账本。
type Engine struct {
	opts       Options
	venues     map[string]*registeredVenue
	arena      *order.Arena
	ledger     *ledger.Ledger
	limiter    *risk.Limiter
	dispatcher *execution.Dispatcher
	monitor    *monitor.Service
	logger     *zap.Logger
}

// New 创建引擎实例。
func New(opts Options, entries []VenueEntry, st *store.Store, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("engine: 至少注册一个场所")
	}

	limiter, err := risk.NewLimiter(st, opts.DailyResetHour, logger)
	if err != nil {
		return nil, err
	}

	led, err := ledger.New(st, logger)
	if err != nil {
		return nil, err
	}

	monitorSvc, err := monitor.NewService(st, logger)
	if err != nil {
		return nil, err
	}

	venues := make(map[string]*registeredVenue, len(entries))
	for _, entry := range entries {
		name := entry.Adapter.Name()
		if name == "" {
			return nil, fmt.Errorf("engine: 场所名称不能为空")
		}
		if _, dup := venues[name]; dup {
			return nil, fmt.Errorf("engine: 场所 %q 重复注册", name)
		}
		venues[name] = &registeredVenue{
			adapter: entry.Adapter,
			enabled: entry.Enabled,
		}
	}

	if opts.Weights == (router.Weights{}) {
		opts.Weights = router.DefaultWeights()
	}

	return &Engine{
		opts:       opts,
		venues:     venues,
		arena:      order.NewArena(),
		ledger:     led,
		limiter:    limiter,
		dispatcher: execution.NewDispatcher(led, limiter, opts.VenueTimeout, logger),
		monitor:    monitorSvc,
		logger:     logger,
	}, nil
}

// PlaceOrder 执行完整下单流程：校验 → 风控 → 路由 → 调度。
// 校验与路由失败同步返回且无任何副作用；执行失败返回已置为 rejected
// 的订单与 ExecutionError，表示一次真实发生过的尝试。
func (e *Engine) PlaceOrder(ctx context.Context, req order.Request) (*order.Order, error) {
	usage, err := e.limiter.Snapshot(ctx, time.Now().UTC())
	if err != nil {
		e.monitor.RecordError(ctx, "读取日度额度失败", err)
		return nil, err
	}

	if verr := risk.Validate(req, e.opts.Limits, usage); verr != nil {
		e.monitor.RecordRiskRejected(ctx, req.Symbol, verr)
		return nil, verr
	}

	decision, err := e.route(req)
	if err != nil {
		return nil, err
	}

	target := e.venues[decision.Venue]

	ord := order.New(req)
	ord.Venue = decision.Venue
	handle := e.arena.Put(ord)
	e.ledger.Track(ord)

	e.monitor.RecordRouting(ctx, ord.ID, req.Symbol, decision)
	e.logger.Info("路由决策完成",
		zap.String("order_id", ord.ID),
		zap.String("symbol", req.Symbol),
		zap.String("venue", decision.Venue),
		zap.Float64("score", decision.Score),
	)

	res := e.dispatcher.Dispatch(ctx, handle, target.adapter)
	e.monitor.RecordExecution(ctx, res)
	e.observe(decision.Venue, res.Success, res.ExecutionTime)

	if !res.Success {
		return ord, &ExecutionError{
			OrderID: ord.ID,
			Venue:   decision.Venue,
			Reason:  res.ErrorReason,
		}
	}

	return ord, nil
}

// route 过滤候选场所并做评分选择；指定场所时仍要求其启用且支持该标的。
func (e *Engine) route(req order.Request) (router.Decision, error) {
	forced := strings.TrimSpace(req.Venue)
	if forced != "" && !strings.EqualFold(forced, "auto") {
		rv, ok := e.venues[forced]
		if !ok || !rv.enabled || !rv.adapter.Supports(req.Symbol) {
			return router.Decision{}, fmt.Errorf("%w: symbol %s on venue %s", ErrNoVenueAvailable, req.Symbol, forced)
		}
		return router.Decision{Venue: forced}, nil
	}

	candidates := make([]router.Candidate, 0, len(e.venues))
	for name, rv := range e.venues {
		if !rv.enabled || !rv.adapter.Supports(req.Symbol) {
			continue
		}
		candidates = append(candidates, router.Candidate{
			Name:    name,
			FeeRate: rv.adapter.FeeRate(),
			Quality: rv.adapter.Quality(),
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })

	decision, err := router.Select(candidates, e.opts.Weights)
	if err != nil {
		return router.Decision{}, fmt.Errorf("%w: symbol %s", ErrNoVenueAvailable, req.Symbol)
	}
	return decision, nil
}

// CancelOrder 按ID撤销订单。终态订单返回 false 的良性空操作；
// 场所侧失败时订单保持原状态，返回 false 与底层错误。
func (e *Engine) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	handle, ok := e.arena.Get(orderID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}

	handle.Lock()
	venueName := handle.Order.Venue
	handle.Unlock()

	rv, ok := e.venues[venueName]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}

	cancelled, err := e.dispatcher.Cancel(ctx, handle, rv.adapter)
	e.monitor.RecordCancellation(ctx, orderID, venueName, cancelled)
	return cancelled, err
}

// GetOrderStatus 返回订单当前状态的只读拷贝。
func (e *Engine) GetOrderStatus(orderID string) (*order.Order, error) {
	handle, ok := e.arena.Get(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}

	handle.Lock()
	defer handle.Unlock()
	return handle.Order.Clone(), nil
}

// Summary 在账本汇总之上补充场所连接数。
type Summary struct {
	ledger.Summary
	VenuesConnected int `json:"venues_connected"`
}

// GetExecutionSummary 返回执行质量汇总。
func (e *Engine) GetExecutionSummary() Summary {
	connected := 0
	for _, rv := range e.venues {
		if rv.connected.Load() {
			connected++
		}
	}
	return Summary{
		Summary:         e.ledger.Summary(),
		VenuesConnected: connected,
	}
}

// ConnectVenues 并行连接所有启用的场所，返回各场所的连接结果。
// 单个场所失败只在结果中表现为 false，不影响其他场所。
func (e *Engine) ConnectVenues(ctx context.Context) map[string]bool {
	results := make(map[string]bool, len(e.venues))
	group, groupCtx := errgroup.WithContext(ctx)

	type outcome struct {
		name string
		ok   bool
	}
	outcomes := make(chan outcome, len(e.venues))

	for name, rv := range e.venues {
		results[name] = false
		if !rv.enabled {
			continue
		}

		group.Go(func() error {
			callCtx, cancel := context.WithTimeout(groupCtx, e.dispatchTimeout())
			defer cancel()

			err := rv.adapter.Connect(callCtx)
			if err != nil {
				e.logger.Warn("场所连接失败",
					zap.String("venue", name),
					zap.Error(&ConnectivityError{Venue: name, Err: err}),
				)
			}
			rv.connected.Store(err == nil)
			outcomes <- outcome{name: name, ok: err == nil}
			return nil
		})
	}

	_ = group.Wait()
	close(outcomes)
	for o := range outcomes {
		results[o.name] = o.ok
	}

	return results
}

// GetVenueBalances 拉取指定场所的余额，禁用或不可达的场所返回空表。
func (e *Engine) GetVenueBalances(ctx context.Context, venueName string) map[string]venue.Balance {
	rv, ok := e.venues[venueName]
	if !ok || !rv.enabled {
		return map[string]venue.Balance{}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.dispatchTimeout())
	defer cancel()

	balances, err := rv.adapter.Balances(callCtx)
	if err != nil {
		e.monitor.RecordError(ctx, "拉取余额失败", err)
		e.logger.Warn("拉取余额失败",
			zap.String("venue", venueName),
			zap.Error(&ConnectivityError{Venue: venueName, Err: err}),
		)
		return map[string]venue.Balance{}
	}
	return balances
}

// History 返回执行历史拷贝。
func (e *Engine) History() []order.ExecutionResult {
	return e.ledger.History()
}

// Monitor 暴露监控服务，供HTTP层查询事件。
func (e *Engine) Monitor() *monitor.Service {
	return e.monitor
}

func (e *Engine) observe(venueName string, success bool, latency time.Duration) {
	rv, ok := e.venues[venueName]
	if !ok {
		return
	}
	if obs, ok := rv.adapter.(qualityObserver); ok {
		obs.Tracker().Observe(success, latency)
	}
}

func (e *Engine) dispatchTimeout() time.Duration {
	if e.opts.VenueTimeout > 0 {
		return e.opts.VenueTimeout
	}
	return 10 * time.Second
}
