package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了引擎运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Venues    []VenueConfig   `mapstructure:"venues"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// VenueKind 区分场所接入方式。
type VenueKind string

const (
	VenueKindPaper VenueKind = "paper"
	VenueKindCCXT  VenueKind = "ccxt"
)

// VenueConfig 描述单个交易场所的接入参数与质量种子。
type VenueConfig struct {
	Name             string        `mapstructure:"name"`
	Kind             VenueKind     `mapstructure:"kind"`
	Enabled          bool          `mapstructure:"enabled"`
	Symbols          []string      `mapstructure:"symbols"`
	FeeRate          float64       `mapstructure:"fee_rate"`
	APIKey           string        `mapstructure:"api_key"`
	APISecret        string        `mapstructure:"api_secret"`
	UseSandbox       bool          `mapstructure:"use_sandbox"`
	LatencyEstimate  time.Duration `mapstructure:"latency_estimate"`
	ReliabilityScore float64       `mapstructure:"reliability_score"`
	LiquidityScore   float64       `mapstructure:"liquidity_score"`
	ReferencePrice   float64       `mapstructure:"reference_price"`
	Retry            RetryConfig   `mapstructure:"retry"`
}

// RetryConfig 统一控制幂等读操作的重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// RiskConfig 管理全局风险上限。
type RiskConfig struct {
	MaxOrderSize   float64 `mapstructure:"max_order_size"`
	MaxDailyVolume float64 `mapstructure:"max_daily_volume"`
	MaxDailyOrders int     `mapstructure:"max_daily_orders"`
	ReferencePrice float64 `mapstructure:"reference_price"`
	DailyResetHour int     `mapstructure:"daily_reset_hour"`
}

// RoutingConfig 控制场所评分权重，四项权重之和必须为1。
type RoutingConfig struct {
	WeightLiquidity   float64 `mapstructure:"weight_liquidity"`
	WeightFee         float64 `mapstructure:"weight_fee"`
	WeightSpeed       float64 `mapstructure:"weight_speed"`
	WeightReliability float64 `mapstructure:"weight_reliability"`
}

// ExecutionConfig 控制调度行为。
type ExecutionConfig struct {
	VenueTimeout time.Duration `mapstructure:"venue_timeout"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// MonitorConfig 控制监控HTTP接口。
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}

	if len(c.Venues) == 0 {
		err = multierr.Append(err, errors.New("venues 至少配置一个场所"))
	}
	seen := make(map[string]struct{}, len(c.Venues))
	for i, v := range c.Venues {
		if v.Name == "" {
			err = multierr.Append(err, fmt.Errorf("venues[%d].name 不能为空", i))
			continue
		}
		if _, dup := seen[strings.ToLower(v.Name)]; dup {
			err = multierr.Append(err, fmt.Errorf("venues[%d].name %q 重复", i, v.Name))
		}
		seen[strings.ToLower(v.Name)] = struct{}{}

		switch v.Kind {
		case VenueKindPaper, VenueKindCCXT:
		default:
			err = multierr.Append(err, fmt.Errorf("venues[%d].kind 必须为 paper 或 ccxt", i))
		}
		if len(v.Symbols) == 0 {
			err = multierr.Append(err, fmt.Errorf("venues[%d].symbols 至少包含一个标的", i))
		}
		if v.FeeRate < 0 || v.FeeRate > 0.1 {
			err = multierr.Append(err, fmt.Errorf("venues[%d].fee_rate 应位于[0,0.1]", i))
		}
		if v.ReliabilityScore < 0 || v.ReliabilityScore > 1 {
			err = multierr.Append(err, fmt.Errorf("venues[%d].reliability_score 必须位于[0,1]", i))
		}
		if v.LiquidityScore < 0 || v.LiquidityScore > 1 {
			err = multierr.Append(err, fmt.Errorf("venues[%d].liquidity_score 必须位于[0,1]", i))
		}
		if v.Kind == VenueKindCCXT && v.Retry.MinDelay > v.Retry.MaxDelay {
			err = multierr.Append(err, fmt.Errorf("venues[%d].retry.min_delay 不能大于 max_delay", i))
		}
	}

	if c.Risk.MaxOrderSize <= 0 {
		err = multierr.Append(err, errors.New("risk.max_order_size 必须大于0"))
	}
	if c.Risk.MaxDailyVolume <= 0 {
		err = multierr.Append(err, errors.New("risk.max_daily_volume 必须大于0"))
	}
	if c.Risk.MaxDailyOrders <= 0 {
		err = multierr.Append(err, errors.New("risk.max_daily_orders 必须大于0"))
	}
	if c.Risk.ReferencePrice <= 0 {
		err = multierr.Append(err, errors.New("risk.reference_price 必须大于0"))
	}
	if c.Risk.DailyResetHour < 0 || c.Risk.DailyResetHour > 23 {
		err = multierr.Append(err, errors.New("risk.daily_reset_hour 必须位于[0,23]"))
	}

	weightSum := c.Routing.WeightLiquidity + c.Routing.WeightFee +
		c.Routing.WeightSpeed + c.Routing.WeightReliability
	if math.Abs(weightSum-1) > 1e-9 {
		err = multierr.Append(err, fmt.Errorf("routing 权重之和必须为1，当前为 %.4f", weightSum))
	}
	for name, w := range map[string]float64{
		"weight_liquidity":   c.Routing.WeightLiquidity,
		"weight_fee":         c.Routing.WeightFee,
		"weight_speed":       c.Routing.WeightSpeed,
		"weight_reliability": c.Routing.WeightReliability,
	} {
		if w < 0 {
			err = multierr.Append(err, fmt.Errorf("routing.%s 不能为负", name))
		}
	}

	if c.Execution.VenueTimeout <= 0 {
		err = multierr.Append(err, errors.New("execution.venue_timeout 必须大于0"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		err = multierr.Append(err, errors.New("monitor.port 必须位于(0,65535]"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
