package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/acmehealth/claimsight/internal/config"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(StartScheduler),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.RefreshInterval,
		JobTimeout:  cfg.RefreshTableTimeout,
		TrailMonths: cfg.RefreshTrailMonths,
		Enabled:     cfg.SchedulerEnabled,
	}.withDefaults()
}

func StartScheduler(lc fx.Lifecycle, cfg Config, sched *Scheduler) {
	if !cfg.Enabled {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go sched.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
