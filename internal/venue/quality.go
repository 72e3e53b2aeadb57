package venue

import (
	"sync"
	"time"
)

// emaWeight 为质量信号的平滑系数，new = 0.9*old + 0.1*observed。
const emaWeight = 0.9

// Quality 为场所质量信号快照。
type Quality struct {
	Reliability float64       // 0-1，基于近期成败的指数滑动平均
	Latency     time.Duration // 近期调用耗时的指数滑动平均
	Liquidity   float64       // 0-1，由外部行情信号注入
}

// SpeedScore 将延迟折算为 0-1 的速度分，延迟越低越接近1。
func (q Quality) SpeedScore() float64 {
	if q.Latency <= 0 {
		return 1
	}
	scale := float64(time.Second)
	return scale / (scale + float64(q.Latency))
}

// QualityTracker 维护单个场所的质量信号。
// 路由读取与统计回写并发发生，读写都通过该结构的锁保护。
type QualityTracker struct {
	mu sync.RWMutex
	q  Quality
}

// NewQualityTracker 以配置中的种子值初始化质量信号。
func NewQualityTracker(seed Quality) *QualityTracker {
	if seed.Reliability <= 0 {
		seed.Reliability = 0.9
	}
	return &QualityTracker{q: seed}
}

// Snapshot 返回当前质量信号的拷贝。
func (t *QualityTracker) Snapshot() Quality {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.q
}

// Observe 按一次执行结果更新可靠性与延迟的滑动平均。
func (t *QualityTracker) Observe(success bool, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	observed := 0.0
	if success {
		observed = 1.0
	}
	t.q.Reliability = emaWeight*t.q.Reliability + (1-emaWeight)*observed

	if latency > 0 {
		if t.q.Latency <= 0 {
			t.q.Latency = latency
		} else {
			t.q.Latency = time.Duration(emaWeight*float64(t.q.Latency) + (1-emaWeight)*float64(latency))
		}
	}
}

// SetLiquidity 写入外部信号源给出的流动性评分。
func (t *QualityTracker) SetLiquidity(score float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	t.q.Liquidity = score
}
