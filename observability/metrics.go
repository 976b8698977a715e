package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type ledgerMetrics struct {
	operations *prometheus.CounterVec
	rejections *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// LedgerMetrics returns the lazily-initialised registry used to record
// ledger operation activity.
func LedgerMetrics() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mixlend",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Completed ledger operations by name.",
			}, []string{"op"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mixlend",
				Subsystem: "ledger",
				Name:      "rejections_total",
				Help:      "Ledger operations rejected by a precondition, by name.",
			}, []string{"op"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "mixlend",
				Subsystem: "ledger",
				Name:      "operation_seconds",
				Help:      "Ledger operation latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
		}
		prometheus.MustRegister(ledgerRegistry.operations, ledgerRegistry.rejections, ledgerRegistry.latency)
	})
	return ledgerRegistry
}

// LedgerOpTimer starts timing one operation. The returned func records the
// outcome; pass the operation error (nil on success).
func LedgerOpTimer(op string) func(err error) {
	metrics := LedgerMetrics()
	start := time.Now()
	return func(err error) {
		metrics.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.rejections.WithLabelValues(op).Inc()
			return
		}
		metrics.operations.WithLabelValues(op).Inc()
	}
}
