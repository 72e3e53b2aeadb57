package risk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"venue-router/internal/store"
)

// Limiter 维护日度风险额度，按交易日落盘，跨进程重启后额度不丢失。
// 额度只在成功下单后由调度器 Commit，被拒订单不消耗当日配额。
type Limiter struct {
	db        *sql.DB
	resetHour int
	logger    *zap.Logger
}

// NewLimiter 创建日度额度管理器并初始化表结构。
func NewLimiter(st *store.Store, resetHour int, logger *zap.Logger) (*Limiter, error) {
	if st == nil {
		return nil, errors.New("risk: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if resetHour < 0 || resetHour > 23 {
		resetHour = 0
	}

	l := &Limiter{
		db:        st.DB(),
		resetHour: resetHour,
		logger:    logger,
	}

	if err := l.initSchema(); err != nil {
		return nil, err
	}

	return l, nil
}

func (l *Limiter) initSchema() error {
	schema := `CREATE TABLE IF NOT EXISTS risk_daily_usage (
		trading_date TEXT PRIMARY KEY,
		orders_placed INTEGER NOT NULL DEFAULT 0,
		notional_traded REAL NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);`

	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("risk: 初始化表结构失败: %w", err)
	}
	return nil
}

// Snapshot 返回当日额度使用情况，日期切换时自然归零。
func (l *Limiter) Snapshot(ctx context.Context, ts time.Time) (DailyUsage, error) {
	tradingDate := tradingDay(ts, l.resetHour)
	usage := DailyUsage{TradingDate: tradingDate}

	row := l.db.QueryRowContext(ctx,
		`SELECT orders_placed, notional_traded FROM risk_daily_usage WHERE trading_date = ?`,
		tradingDate,
	)
	switch err := row.Scan(&usage.OrdersPlaced, &usage.NotionalTraded); {
	case err == nil:
		return usage, nil
	case errors.Is(err, sql.ErrNoRows):
		return usage, nil
	default:
		return usage, fmt.Errorf("risk: 查询日度额度失败: %w", err)
	}
}

// Commit 在一笔订单成功提交后累计当日额度。
func (l *Limiter) Commit(ctx context.Context, ts time.Time, notional float64) error {
	tradingDate := tradingDay(ts, l.resetHour)
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO risk_daily_usage (trading_date, orders_placed, notional_traded, updated_at)
		 VALUES (?, 1, ?, ?)
		 ON CONFLICT(trading_date) DO UPDATE SET
			orders_placed = orders_placed + 1,
			notional_traded = notional_traded + excluded.notional_traded,
			updated_at = excluded.updated_at`,
		tradingDate, notional, now,
	)
	if err != nil {
		return fmt.Errorf("risk: 累计日度额度失败: %w", err)
	}

	l.logger.Debug("已累计日度额度",
		zap.String("trading_date", tradingDate),
		zap.Float64("notional", notional),
	)
	return nil
}

// tradingDay 计算带重置小时偏移的交易日。
func tradingDay(ts time.Time, resetHour int) string {
	utc := ts.UTC()
	shifted := utc.Add(-time.Duration(resetHour) * time.Hour)
	day := time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, time.UTC)
	return day.Format("2006-01-02")
}
