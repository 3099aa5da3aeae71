package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/acmehealth/claimsight/internal/config"
	obsmetrics "github.com/acmehealth/claimsight/internal/observability/metrics"
)

// Status is the last database probe outcome.
type Status struct {
	Healthy   bool      `json:"healthy"`
	ProbedAt  time.Time `json:"probed_at"`
	LastError string    `json:"last_error,omitempty"`
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Config     config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Monitor polls database reachability and exposes the latest probe to
// the health endpoint.
type Monitor struct {
	db         *gorm.DB
	log        *zap.Logger
	interval   time.Duration
	obsMetrics *obsmetrics.Metrics

	mu     sync.RWMutex
	status Status
}

func New(p Params) *Monitor {
	interval := p.Config.HealthProbeInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		db:         p.DB,
		log:        p.Log.Named("monitoring"),
		interval:   interval,
		obsMetrics: p.ObsMetrics,
	}
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Probe pings the database once and records the outcome.
func (m *Monitor) Probe(ctx context.Context) Status {
	started := time.Now()
	err := m.ping(ctx)
	elapsed := time.Since(started)

	status := Status{Healthy: err == nil, ProbedAt: time.Now().UTC()}
	if err != nil {
		status.LastError = err.Error()
		m.log.Warn("database probe failed", zap.Duration("elapsed", elapsed), zap.Error(err))
	}

	if m.obsMetrics != nil {
		m.obsMetrics.SetDatabaseUp(err == nil)
		m.obsMetrics.ObserveProbe(elapsed, err)
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
	return status
}

func (m *Monitor) ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

var Module = fx.Module("monitoring",
	fx.Provide(New),
	fx.Invoke(StartMonitor),
)

func StartMonitor(lc fx.Lifecycle, monitor *Monitor) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go monitor.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
