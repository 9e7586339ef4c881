package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CalcMetrics groups Prometheus collectors for the pricing pipeline.
type CalcMetrics struct {
	Total    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewCalcMetrics registers and returns calculation metrics collectors.
func NewCalcMetrics(namespace string, reg prometheus.Registerer) *CalcMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &CalcMetrics{
		Total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_calculations_total",
			Help:      "Count of cart calculations by tenant and outcome.",
		}, []string{"tenant", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_calculation_duration_ms",
			Help:      "Cart calculation latency distribution in milliseconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}, []string{"result"}),
	}
	m.Total = registerCounterVec(reg, m.Total)
	m.Duration = registerHistogramVec(reg, m.Duration)
	return m
}

// Observe records one calculation outcome. The result label is either "ok"
// or the error code returned to the client.
func (m *CalcMetrics) Observe(tenantID, result string, d time.Duration) {
	if m == nil {
		return
	}
	if tenantID == "" {
		tenantID = "unknown"
	}
	m.Total.WithLabelValues(tenantID, result).Inc()
	m.Duration.WithLabelValues(result).Observe(DurationMillis(d))
}
