// Package router 实现多因子场所选择。
// 选择函数是纯函数：对同一份质量快照与权重，输出完全可复现。
package router

import (
	"errors"
	"sort"

	"venue-router/internal/venue"
)

// ErrNoCandidates 表示候选集合为空，没有可用场所。
var ErrNoCandidates = errors.New("router: no candidate venues")

// Weights 为综合评分的因子权重，来自配置而非硬编码。
type Weights struct {
	Liquidity   float64
	Fee         float64
	Speed       float64
	Reliability float64
}

// DefaultWeights 返回缺省权重 0.4/0.3/0.2/0.1。
func DefaultWeights() Weights {
	return Weights{
		Liquidity:   0.4,
		Fee:         0.3,
		Speed:       0.2,
		Reliability: 0.1,
	}
}

// Candidate 为一个参与评分的场所快照。
type Candidate struct {
	Name    string
	FeeRate float64
	Quality venue.Quality
}

// Decision 为一次路由决策，Scores 保留全部候选的评分便于观测与测试。
type Decision struct {
	Venue  string
	Score  float64
	Scores map[string]float64
}

// Select 在候选场所中计算综合评分并返回最优者。
// score = wL*liquidity_norm + wF*(1-fee_norm) + wS*speed_norm + wR*reliability。
// 各项指标在候选集合内做 min-max 归一化；某项指标全体相同时取中点 0.5，
// 避免除零。总分并列时按场所名称字典序取最小，保证决策可复现。
func Select(candidates []Candidate, w Weights) (Decision, error) {
	if len(candidates) == 0 {
		return Decision{}, ErrNoCandidates
	}

	liquidity := make([]float64, len(candidates))
	fees := make([]float64, len(candidates))
	speed := make([]float64, len(candidates))
	for i, c := range candidates {
		liquidity[i] = c.Quality.Liquidity
		fees[i] = c.FeeRate
		speed[i] = c.Quality.SpeedScore()
	}

	liqNorm := normalize(liquidity)
	feeNorm := normalize(fees)
	speedNorm := normalize(speed)

	scores := make(map[string]float64, len(candidates))
	best := Decision{Scores: scores}
	names := make([]string, 0, len(candidates))

	for i, c := range candidates {
		score := w.Liquidity*liqNorm[i] +
			w.Fee*(1-feeNorm[i]) +
			w.Speed*speedNorm[i] +
			w.Reliability*c.Quality.Reliability
		scores[c.Name] = score
		names = append(names, c.Name)
	}

	sort.Strings(names)
	for _, name := range names {
		if best.Venue == "" || scores[name] > best.Score {
			best.Venue = name
			best.Score = scores[name]
		}
	}

	return best, nil
}

// normalize 做 min-max 归一化，区间退化时所有值取中点 0.5。
func normalize(values []float64) []float64 {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]float64, len(values))
	if max == min {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}

	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out
}
