package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries identity labels applied to every instrument.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics exposes application-level instruments for the settlement
// pipeline and the report surface.
type Metrics struct {
	refreshRuns     *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	refreshRows     *prometheus.GaugeVec
	lastRefresh     *prometheus.GaugeVec
	reportQueries   *prometheus.CounterVec
	reportDuration  *prometheus.HistogramVec
	dataQuality     *prometheus.CounterVec
	dbUp            prometheus.Gauge
	probeDuration   prometheus.Observer
	probeErrors     prometheus.Counter
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// Default returns the singleton metrics registry.
func Default() *Metrics {
	return WithConfig(Config{})
}

// WithConfig returns the singleton metrics registry using config labels.
func WithConfig(cfg Config) *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return metrics
}

// ResetForTest resets the metrics singleton for tests.
func ResetForTest() {
	metricsOnce = sync.Once{}
	metrics = nil
}

func newMetrics(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "claimsight"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &Metrics{
		refreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "claims_refresh_runs_total",
			Help:        "Aggregate refresh attempts per report table and result.",
			ConstLabels: constLabels,
		}, []string{"table", "result"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "claims_refresh_duration_seconds",
			Help:        "Duration of aggregate refresh per report table.",
			Buckets:     prometheus.ExponentialBuckets(0.05, 2, 12),
			ConstLabels: constLabels,
		}, []string{"table"}),
		refreshRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "claims_refresh_rows",
			Help:        "Rows written by the most recent refresh per report table.",
			ConstLabels: constLabels,
		}, []string{"table"}),
		lastRefresh: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "claims_refresh_last_success_timestamp_seconds",
			Help:        "Unix time of the last successful refresh per report table.",
			ConstLabels: constLabels,
		}, []string{"table"}),
		reportQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "claims_report_queries_total",
			Help:        "Report queries served, by report and mode.",
			ConstLabels: constLabels,
		}, []string{"report", "mode"}),
		reportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "claims_report_query_duration_seconds",
			Help:        "Report query latency, by report and mode.",
			Buckets:     prometheus.ExponentialBuckets(0.005, 2, 12),
			ConstLabels: constLabels,
		}, []string{"report", "mode"}),
		dataQuality: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "claims_data_quality_warnings_total",
			Help:        "Non-fatal data quality signals raised during settlement and rollup.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		dbUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "claims_database_up",
			Help:        "1 when the last database probe succeeded.",
			ConstLabels: constLabels,
		}),
	}

	probeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "claims_database_probe_duration_seconds",
		Help:        "Database reachability probe latency.",
		Buckets:     prometheus.ExponentialBuckets(0.001, 2, 12),
		ConstLabels: constLabels,
	})
	probeErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "claims_database_probe_errors_total",
		Help:        "Database probes that failed.",
		ConstLabels: constLabels,
	})
	m.probeDuration = probeDuration
	m.probeErrors = probeErrors

	for _, collector := range []prometheus.Collector{
		m.refreshRuns, m.refreshDuration, m.refreshRows, m.lastRefresh,
		m.reportQueries, m.reportDuration, m.dataQuality,
		m.dbUp, probeDuration, probeErrors,
	} {
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}

	return m
}

func (m *Metrics) IncRefreshRun(table, result string) {
	if m == nil {
		return
	}
	m.refreshRuns.WithLabelValues(table, result).Inc()
}

func (m *Metrics) ObserveRefreshDuration(table string, d time.Duration) {
	if m == nil {
		return
	}
	m.refreshDuration.WithLabelValues(table).Observe(d.Seconds())
}

func (m *Metrics) SetRefreshRows(table string, rows int) {
	if m == nil {
		return
	}
	m.refreshRows.WithLabelValues(table).Set(float64(rows))
}

func (m *Metrics) MarkRefreshSuccess(table string, at time.Time) {
	if m == nil {
		return
	}
	m.lastRefresh.WithLabelValues(table).Set(float64(at.Unix()))
}

func (m *Metrics) IncReportQuery(report, mode string) {
	if m == nil {
		return
	}
	m.reportQueries.WithLabelValues(report, mode).Inc()
}

func (m *Metrics) ObserveReportDuration(report, mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(report, mode).Observe(d.Seconds())
}

func (m *Metrics) IncDataQualityWarning(kind string) {
	if m == nil {
		return
	}
	m.dataQuality.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetDatabaseUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.dbUp.Set(1)
		return
	}
	m.dbUp.Set(0)
}

func (m *Metrics) ObserveProbe(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.probeDuration.Observe(d.Seconds())
	if err != nil {
		m.probeErrors.Inc()
	}
}
