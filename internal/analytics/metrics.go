package analytics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the engines.
type Metrics struct {
	excluded *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the analytics collectors. Already registered
// collectors are reused so several services may share a registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	excluded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicely_analytics_excluded_rows_total",
		Help: "Ledger rows left out of aggregation because their stored date does not parse.",
	}, []string{"query"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoicely_analytics_compute_duration_seconds",
		Help:    "Time spent computing analytics results, cache misses only.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	return &Metrics{
		excluded: register(registerer, excluded),
		duration: register(registerer, duration),
	}
}

func register[T prometheus.Collector](registerer prometheus.Registerer, c T) T {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) addExcluded(query string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.excluded.WithLabelValues(query).Add(float64(n))
}

func (m *Metrics) observe(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
