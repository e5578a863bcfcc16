package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/watchgraph/internal/schema"
)

const metricsNamespace = "watchgraph"

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	// RequestsTotal counts requests. Labels: route, method, status.
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures handler latency. Labels: route, method.
	RequestDurationSeconds *prometheus.HistogramVec

	// SystemCompliance is the last computed percentage per system.
	// Labels: system_id.
	SystemCompliance *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),
		RequestDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP handler latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"route", "method"},
		),
		SystemCompliance: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "system_compliance_percentage",
				Help:      "Compliance percentage of each system at last computation",
			},
			[]string{"system_id"},
		),
	}
}

// Instrument records request count and latency per matched route.
func (m *Metrics) Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDurationSeconds.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveSnapshot updates the compliance gauge for one system.
func (m *Metrics) ObserveSnapshot(snap schema.Snapshot) {
	m.SystemCompliance.WithLabelValues(snap.SystemID).Set(snap.CompliancePercentage)
}
