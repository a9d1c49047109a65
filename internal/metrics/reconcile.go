package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric exported by the service.
const Namespace = "searchbridge"

// Orphan cleanup outcomes.
const (
	OrphanDeleted = "deleted"
	OrphanFailed  = "failed"
)

// Search and reconciliation Prometheus metrics.
var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_duration_seconds",
			Help:      "Search backend round-trip plus reconciliation, in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"doc_type", "status"},
	)

	OrphansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "orphans_total",
			Help:      "Index entries found without an authoritative record",
		},
		[]string{"result"}, // "deleted" / "failed"
	)

	BulkOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bulk_operations_total",
			Help:      "Operations sent to the search backend in bulk calls, by outcome",
		},
		[]string{"op", "result"}, // "applied" / "failed"
	)

	// BreakerOpen is 1 while the named circuit breaker rejects calls.
	BreakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "circuit_breaker_open",
			Help:      "1 when the circuit breaker is open, 0.5 half-open, 0 closed",
		},
		[]string{"breaker"},
	)

	registerReconcileOnce sync.Once
)

// Bulk operation outcomes.
const (
	BulkApplied = "applied"
	BulkFailed  = "failed"
)

// RegisterReconcileMetrics registers search and reconciliation metrics. Call it from main.
func RegisterReconcileMetrics() {
	registerReconcileOnce.Do(func() {
		prometheus.MustRegister(SearchDuration, OrphansTotal, BulkOperationsTotal, BreakerOpen)
	})
}

// ObserveSearch records one reconciled search.
func ObserveSearch(docType string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	SearchDuration.WithLabelValues(docType, status).Observe(time.Since(started).Seconds())
}
