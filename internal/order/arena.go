package order

import "sync"

// Handle 为单个订单的持有句柄，句柄锁保证同一订单的操作严格串行。
type Handle struct {
	mu    sync.Mutex
	Order *Order
}

// Lock 获取订单写锁。
func (h *Handle) Lock() {
	h.mu.Lock()
}

// Unlock 释放订单写锁。
func (h *Handle) Unlock() {
	h.mu.Unlock()
}

// Arena 按 order_id 维护订单句柄，避免用全局互斥锁串行化无关订单。
type Arena struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewArena 创建空的订单句柄池。
func NewArena() *Arena {
	return &Arena{
		handles: make(map[string]*Handle),
	}
}

// Put 注册订单并返回其句柄，重复注册返回已有句柄。
func (a *Arena) Put(o *Order) *Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	if h, ok := a.handles[o.ID]; ok {
		return h
	}
	h := &Handle{Order: o}
	a.handles[o.ID] = h
	return h
}

// Get 按ID查找句柄。
func (a *Arena) Get(id string) (*Handle, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	h, ok := a.handles[id]
	return h, ok
}

// Len 返回当前持有的句柄数量。
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.handles)
}
