package execution

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"venue-router/internal/ledger"
	"venue-router/internal/order"
	"venue-router/internal/risk"
	"venue-router/internal/venue"
)

// Dispatcher 将路由结果转化为具体的场所调用，并维护订单状态机。
// 同一订单的下单与撤单通过句柄锁严格串行，互不相关的订单完全并行。
type Dispatcher struct {
	ledger  *ledger.Ledger
	limiter *risk.Limiter
	logger  *zap.Logger
	timeout time.Duration
}

// NewDispatcher 创建执行调度器。
func NewDispatcher(led *ledger.Ledger, limiter *risk.Limiter, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		ledger:  led,
		limiter: limiter,
		logger:  logger,
		timeout: timeout,
	}
}

// Dispatch 提交订单到指定场所并记录执行结果。
// 每次调用恰好产生一条 ExecutionResult；失败不自动重试，
// 调用方需以全新的校验过的意图重新提交。
func (d *Dispatcher) Dispatch(ctx context.Context, h *order.Handle, adapter venue.Adapter) order.ExecutionResult {
	h.Lock()
	defer h.Unlock()

	ord := h.Order

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	res, err := adapter.PlaceOrder(callCtx, ord)
	elapsed := time.Since(start)

	if err != nil {
		res = order.ExecutionResult{
			OrderID:     ord.ID,
			Symbol:      ord.Symbol,
			Side:        ord.Side,
			Venue:       adapter.Name(),
			Success:     false,
			ErrorReason: err.Error(),
			Timestamp:   time.Now().UTC(),
		}
	}

	res.ExecutionTime = elapsed
	res.Slippage = 0
	if res.Success && ord.Price > 0 {
		res.Slippage = order.Slippage(ord.Price, res.Price)
	}

	if res.Success {
		if applyErr := ord.ApplyFill(res.Quantity, res.Price, res.Commission); applyErr != nil {
			d.logger.Error("写入成交状态失败", zap.String("order_id", ord.ID), zap.Error(applyErr))
		}
		if commitErr := d.limiter.Commit(ctx, res.Timestamp, res.Quantity*res.Price); commitErr != nil {
			d.logger.Warn("累计日度额度失败", zap.String("order_id", ord.ID), zap.Error(commitErr))
		}
		d.logger.Info("订单执行成功",
			zap.String("order_id", ord.ID),
			zap.String("venue", res.Venue),
			zap.Float64("filled", res.Quantity),
			zap.Float64("price", res.Price),
			zap.Duration("execution_time", res.ExecutionTime),
		)
	} else {
		if rejErr := ord.MarkRejected(res.ErrorReason); rejErr != nil {
			d.logger.Error("写入拒绝状态失败", zap.String("order_id", ord.ID), zap.Error(rejErr))
		}
		d.logger.Warn("订单执行失败",
			zap.String("order_id", ord.ID),
			zap.String("venue", res.Venue),
			zap.String("reason", res.ErrorReason),
		)
	}

	d.ledger.RecordResult(ctx, res)
	if ord.Status.Terminal() {
		d.ledger.Remove(ord.ID)
	}

	return res
}

// Cancel 尝试撤销订单。终态订单返回 false 且不改变任何状态，
// 这是良性竞态而非错误；场所侧失败时订单保持原状态，由调用方决定重试。
func (d *Dispatcher) Cancel(ctx context.Context, h *order.Handle, adapter venue.Adapter) (bool, error) {
	h.Lock()
	defer h.Unlock()

	ord := h.Order
	if ord.Status != order.StatusPending && ord.Status != order.StatusPartial {
		return false, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ok, err := adapter.CancelOrder(callCtx, ord.ID)
	if err != nil {
		return false, fmt.Errorf("撤单调用失败: %w", err)
	}
	if !ok {
		return false, nil
	}

	if markErr := ord.MarkCancelled(); markErr != nil {
		return false, markErr
	}
	d.ledger.Remove(ord.ID)

	d.logger.Info("订单已撤销",
		zap.String("order_id", ord.ID),
		zap.String("venue", adapter.Name()),
	)
	return true, nil
}
