// Package ledger 维护活跃订单、只追加的执行历史与滚动统计。
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"venue-router/internal/order"
	"venue-router/internal/store"
)

// Summary 为执行质量汇总。
type Summary struct {
	TotalOrders          int           `json:"total_orders"`
	SuccessfulOrders     int           `json:"successful_orders"`
	FailedOrders         int           `json:"failed_orders"`
	SuccessRate          float64       `json:"success_rate"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	TotalSlippage        float64       `json:"total_slippage"`
	ActiveOrdersCount    int           `json:"active_orders_count"`
}

type stats struct {
	mu               sync.Mutex
	totalOrders      int
	successfulOrders int
	failedOrders     int
	totalExecTime    time.Duration
	totalSlippage    float64
}

func (s *stats) update(res order.ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalOrders++
	if res.Success {
		s.successfulOrders++
	} else {
		s.failedOrders++
	}
	s.totalExecTime += res.ExecutionTime
	s.totalSlippage += res.Slippage
}

// Ledger 持有活跃订单与执行历史。活跃集合用独立读写锁保护，
// 统计累加器自带互斥锁，路由侧读取不会被统计回写阻塞。
type Ledger struct {
	mu      sync.RWMutex
	orders  map[string]*order.Order
	active  map[string]struct{}
	history []order.ExecutionResult

	stats  stats
	db     *sql.DB
	logger *zap.Logger
}

// New 创建账本并初始化历史表。
func New(st *store.Store, logger *zap.Logger) (*Ledger, error) {
	if st == nil {
		return nil, errors.New("ledger: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Ledger{
		orders: make(map[string]*order.Order),
		active: make(map[string]struct{}),
		db:     st.DB(),
		logger: logger,
	}

	if err := l.initSchema(); err != nil {
		return nil, err
	}

	return l, nil
}

func (l *Ledger) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS order_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			venue TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			commission REAL NOT NULL,
			slippage REAL NOT NULL,
			execution_time_ms REAL NOT NULL,
			success INTEGER NOT NULL,
			error_reason TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_order_history_order ON order_history(order_id);`,
	}

	for _, stmt := range schema {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("ledger: 初始化表结构失败: %w", err)
		}
	}
	return nil
}

// Track 登记订单并将其纳入活跃集合。
func (l *Ledger) Track(o *order.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders[o.ID] = o
	l.active[o.ID] = struct{}{}
}

// Get 按ID查找订单，终态订单同样可命中。
func (l *Ledger) Get(id string) (*order.Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[id]
	return o, ok
}

// Remove 将终态订单移出活跃集合，订单本身仍可查询。
func (l *Ledger) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, id)
}

// RecordResult 追加一条执行历史并更新统计，历史行同时落盘。
// 落盘失败只降级为日志告警，不影响内存账本的一致性。
func (l *Ledger) RecordResult(ctx context.Context, res order.ExecutionResult) {
	l.mu.Lock()
	l.history = append(l.history, res)
	l.mu.Unlock()

	l.stats.update(res)

	if err := l.persist(ctx, res); err != nil {
		l.logger.Warn("执行历史落盘失败",
			zap.String("order_id", res.OrderID),
			zap.Error(err),
		)
	}
}

func (l *Ledger) persist(ctx context.Context, res order.ExecutionResult) error {
	success := 0
	if res.Success {
		success = 1
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO order_history
			(order_id, symbol, side, venue, quantity, price, commission, slippage, execution_time_ms, success, error_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.OrderID, res.Symbol, string(res.Side), res.Venue,
		res.Quantity, res.Price, res.Commission, res.Slippage,
		float64(res.ExecutionTime)/float64(time.Millisecond), success, res.ErrorReason,
		res.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("ledger: 写入执行历史失败: %w", err)
	}
	return nil
}

// History 返回执行历史的拷贝。
func (l *Ledger) History() []order.ExecutionResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]order.ExecutionResult, len(l.history))
	copy(out, l.history)
	return out
}

// Summary 返回当前执行质量汇总，无订单时成功率定义为0。
func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	activeCount := len(l.active)
	l.mu.RUnlock()

	l.stats.mu.Lock()
	defer l.stats.mu.Unlock()

	rate := 0.0
	avg := time.Duration(0)
	if l.stats.totalOrders > 0 {
		rate = float64(l.stats.successfulOrders) / float64(l.stats.totalOrders)
		avg = l.stats.totalExecTime / time.Duration(l.stats.totalOrders)
	}

	return Summary{
		TotalOrders:          l.stats.totalOrders,
		SuccessfulOrders:     l.stats.successfulOrders,
		FailedOrders:         l.stats.failedOrders,
		SuccessRate:          rate,
		AverageExecutionTime: avg,
		TotalSlippage:        l.stats.totalSlippage,
		ActiveOrdersCount:    activeCount,
	}
}
