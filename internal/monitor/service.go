package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"venue-router/internal/order"
	"venue-router/internal/risk"
	"venue-router/internal/router"
	"venue-router/internal/store"
)

// Service 负责持久化监控事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(st *store.Store, logger *zap.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     st.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordRouting 记录路由决策。
func (s *Service) RecordRouting(ctx context.Context, orderID, symbol string, decision router.Decision) {
	if err := s.Record(ctx, Event{
		Type:      EventRouting,
		Timestamp: time.Now().UTC(),
		Payload:   RoutingPayload{OrderID: orderID, Symbol: symbol, Decision: decision},
	}); err != nil {
		s.logger.Warn("记录路由事件失败", zap.Error(err))
	}
}

// RecordExecution 记录执行结果。
func (s *Service) RecordExecution(ctx context.Context, res order.ExecutionResult) {
	if err := s.Record(ctx, Event{
		Type:      EventExecution,
		Timestamp: time.Now().UTC(),
		Payload:   ExecutionPayload{Result: res},
	}); err != nil {
		s.logger.Warn("记录执行事件失败", zap.Error(err))
	}
}

// RecordRiskRejected 记录被风控拦截的请求。
func (s *Service) RecordRiskRejected(ctx context.Context, symbol string, verr *risk.ValidationError) {
	if err := s.Record(ctx, Event{
		Type:      EventRiskRejected,
		Timestamp: time.Now().UTC(),
		Payload:   RiskRejectedPayload{Symbol: symbol, Rule: string(verr.Rule), Message: verr.Message},
	}); err != nil {
		s.logger.Warn("记录风控事件失败", zap.Error(err))
	}
}

// RecordError 记录非业务路径上的异常。
func (s *Service) RecordError(ctx context.Context, message string, cause error) {
	payload := ErrorPayload{Message: message}
	if cause != nil {
		payload.Error = cause.Error()
	}
	if err := s.Record(ctx, Event{
		Type:      EventError,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(err))
	}
}

// RecordCancellation 记录撤单尝试。
func (s *Service) RecordCancellation(ctx context.Context, orderID, venueName string, cancelled bool) {
	if err := s.Record(ctx, Event{
		Type:      EventCancellation,
		Timestamp: time.Now().UTC(),
		Payload:   CancellationPayload{OrderID: orderID, Venue: venueName, Cancelled: cancelled},
	}); err != nil {
		s.logger.Warn("记录撤单事件失败", zap.Error(err))
	}
}

// StoredEvent 为查询返回的事件行。
type StoredEvent struct {
	ID        int64           `json:"id"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
}

// ListEvents 按类型倒序查询最近的事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `SELECT id, event_type, payload, created_at FROM monitor_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]StoredEvent, 0, limit)
	for rows.Next() {
		var ev StoredEvent
		var typ, payload string
		if err := rows.Scan(&ev.ID, &typ, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
		}
		ev.Type = EventType(typ)
		ev.Payload = json.RawMessage(payload)
		events = append(events, ev)
	}

	return events, rows.Err()
}
