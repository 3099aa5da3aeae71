package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/acmehealth/claimsight/internal/clock"
	aggdomain "github.com/acmehealth/claimsight/internal/reporting/aggregate/domain"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependencies")

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Aggregates aggdomain.Service
	Config     Config `optional:"true"`
}

// Scheduler refreshes the trailing months of report tables on an
// interval so consumers read fresh aggregates without manual refresh
// calls.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	aggregates aggdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Aggregates == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		aggregates: p.Aggregates,
	}, nil
}

// RunOnce refreshes the trailing window ending now.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, "refresh_trailing_months", func(ctx context.Context) error {
		now := s.clock.Now().UTC()
		from := now.AddDate(0, -s.cfg.TrailMonths, 0)
		return s.aggregates.RefreshRange(ctx, from, now)
	})
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduled refresh failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	log.Info("job started")

	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)
	if err != nil {
		log.Error("job failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return err
	}
	log.Info("job finished", zap.Duration("elapsed", elapsed))
	return nil
}
