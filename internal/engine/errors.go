package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNoVenueAvailable 表示没有启用的场所支持该标的，未产生任何副作用。
	ErrNoVenueAvailable = errors.New("no venue available")
	// ErrNotFound 表示订单不存在。
	ErrNotFound = errors.New("order not found")
)

// ExecutionError 表示一次真实发生且失败的执行尝试。
// 与校验/路由失败不同，订单已被置为 rejected 并计入历史与统计。
type ExecutionError struct {
	OrderID string
	Venue   string
	Reason  string
}

// Error 实现 error 接口。
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed on %s: %s", e.Venue, e.Reason)
}

// ConnectivityError 表示场所在连接或调用时不可达，属于非致命错误，
// 该场所仅在本次尝试中被排除。
type ConnectivityError struct {
	Venue string
	Err   error
}

// Error 实现 error 接口。
func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("venue %s unreachable: %v", e.Venue, e.Err)
}

// Unwrap 返回底层错误。
func (e *ConnectivityError) Unwrap() error {
	return e.Err
}
