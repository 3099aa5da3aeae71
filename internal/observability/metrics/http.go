package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics captures request counts and latencies for the gin surface.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers HTTP instruments on the default registerer.
func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	constLabels := prometheus.Labels{
		"service": orDefault(cfg.ServiceName, "claimsight"),
		"env":     orDefault(cfg.Environment, "unknown"),
	}

	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "claims_http_requests_total",
			Help:        "HTTP requests by route, method and status.",
			ConstLabels: constLabels,
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "claims_http_request_duration_seconds",
			Help:        "HTTP request latency by route and method.",
			Buckets:     prometheus.ExponentialBuckets(0.002, 2, 12),
			ConstLabels: constLabels,
		}, []string{"route", "method"}),
	}

	for _, collector := range []prometheus.Collector{m.requests, m.duration} {
		if err := prometheus.DefaultRegisterer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
		}
	}

	return m
}

// GinMiddleware records a sample per request.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
