package venue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrMaintenance 表示场所处于维护状态，本次路由应跳过该场所。
	ErrMaintenance = errors.New("venue on maintenance")
)

// IsRetryable 判断幂等读操作遇到的错误是否可重试。
// 下单调用不在此范围内，提交失败一律交由上层按拒绝处理。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// classifyError 归一化错误并判定是否可重试，维护态转换为哨兵错误。
func classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) && ccxtErr.Type == ccxt.OnMaintenanceErrType {
		message := strings.TrimSpace(ccxtErr.Message)
		if message == "" {
			message = "exchange under maintenance"
		}
		return fmt.Errorf("%w: %s", ErrMaintenance, message), false
	}

	return err, IsRetryable(err)
}
