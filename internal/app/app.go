package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"venue-router/internal/config"
	"venue-router/internal/engine"
	"venue-router/internal/risk"
	"venue-router/internal/router"
	"venue-router/internal/store"
	"venue-router/internal/venue"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 构建引擎、连接场所并阻塞等待退出信号。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("路由引擎已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.Int("venues", len(a.cfg.Venues)),
	)

	entries, err := buildVenues(a.cfg.Venues, a.logger)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Options{
		Limits: risk.Limits{
			MaxOrderSize:   a.cfg.Risk.MaxOrderSize,
			MaxDailyVolume: a.cfg.Risk.MaxDailyVolume,
			MaxDailyOrders: a.cfg.Risk.MaxDailyOrders,
			ReferencePrice: a.cfg.Risk.ReferencePrice,
		},
		Weights: router.Weights{
			Liquidity:   a.cfg.Routing.WeightLiquidity,
			Fee:         a.cfg.Routing.WeightFee,
			Speed:       a.cfg.Routing.WeightSpeed,
			Reliability: a.cfg.Routing.WeightReliability,
		},
		VenueTimeout:   a.cfg.Execution.VenueTimeout,
		DailyResetHour: a.cfg.Risk.DailyResetHour,
	}, entries, a.store, a.logger)
	if err != nil {
		return fmt.Errorf("初始化引擎失败: %w", err)
	}

	results := eng.ConnectVenues(ctx)
	for name, ok := range results {
		a.logger.Info("场所连接结果", zap.String("venue", name), zap.Bool("connected", ok))
	}

	if a.cfg.Monitor.Enabled {
		if err := startServer(ctx, eng, a.cfg.Monitor.Port, a.logger); err != nil {
			return fmt.Errorf("启动监控服务失败: %w", err)
		}
	}

	<-ctx.Done()
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}
	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}

func buildVenues(cfgs []config.VenueConfig, logger *zap.Logger) ([]engine.VenueEntry, error) {
	entries := make([]engine.VenueEntry, 0, len(cfgs))
	for _, vc := range cfgs {
		seed := venue.Quality{
			Reliability: vc.ReliabilityScore,
			Latency:     vc.LatencyEstimate,
			Liquidity:   vc.LiquidityScore,
		}

		var adapter venue.Adapter
		switch vc.Kind {
		case config.VenueKindPaper:
			adapter = venue.NewPaper(venue.PaperConfig{
				Name:           vc.Name,
				Symbols:        vc.Symbols,
				FeeRate:        vc.FeeRate,
				ReferencePrice: vc.ReferencePrice,
				Seed:           seed,
			}, logger)
		case config.VenueKindCCXT:
			real, err := venue.NewCCXT(venue.CCXTConfig{
				Name:        vc.Name,
				Symbols:     vc.Symbols,
				FeeRate:     vc.FeeRate,
				APIKey:      vc.APIKey,
				APISecret:   vc.APISecret,
				UseSandbox:  vc.UseSandbox,
				MaxAttempts: vc.Retry.MaxAttempts,
				MinDelay:    vc.Retry.MinDelay,
				MaxDelay:    vc.Retry.MaxDelay,
				Seed:        seed,
			}, logger)
			if err != nil {
				return nil, fmt.Errorf("初始化场所失败 (%s): %w", vc.Name, err)
			}
			adapter = real
		default:
			return nil, fmt.Errorf("未知的场所类型: %s", vc.Kind)
		}

		entries = append(entries, engine.VenueEntry{
			Adapter: adapter,
			Enabled: vc.Enabled,
		})
	}
	return entries, nil
}
