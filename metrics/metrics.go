// Package metrics exposes Prometheus collectors for billing generation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "runs_total",
		Help:      "Generation runs by outcome.",
	}, []string{"status"})

	linesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "bill_lines_written_total",
		Help:      "Bill lines upserted across all runs.",
	})

	deploymentsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "deployments_skipped_total",
		Help:      "Deployments skipped during generation, by reason.",
	}, []string{"reason"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "billing",
		Name:      "run_duration_seconds",
		Help:      "Wall time of one generation run.",
		Buckets:   prometheus.DefBuckets,
	})
)

// ObserveRun records the outcome of one generation run.
func ObserveRun(status string, written int, skippedByReason map[string]int, elapsed time.Duration) {
	runsTotal.WithLabelValues(status).Inc()
	linesWritten.Add(float64(written))
	for reason, n := range skippedByReason {
		deploymentsSkipped.WithLabelValues(reason).Add(float64(n))
	}
	runDuration.Observe(elapsed.Seconds())
}
