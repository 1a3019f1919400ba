// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	candidatesTotal  *prometheus.CounterVec
	insertedTotal    prometheus.Counter
	submissionsTotal *prometheus.CounterVec
	runsTotal        *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call
// multiple times.
func Init() {
	once.Do(func() {
		candidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routerwatch_candidates_total",
				Help: "Total candidates harvested, labeled by source category.",
			},
			[]string{"category"},
		)

		insertedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "routerwatch_items_inserted_total",
				Help: "Total news items newly inserted into storage.",
			},
		)

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routerwatch_submissions_total",
				Help: "Total form submissions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routerwatch_runs_total",
				Help: "Total pipeline runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)
	})
}

// AddCandidates records harvested candidates for a source category.
func AddCandidates(category string, n int) {
	Init()
	candidatesTotal.WithLabelValues(category).Add(float64(n))
}

// AddInserted records newly inserted items.
func AddInserted(n int) {
	Init()
	insertedTotal.Add(float64(n))
}

// ObserveSubmission records one submission outcome ("ok" or "failed").
func ObserveSubmission(outcome string) {
	Init()
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun records one run outcome.
func ObserveRun(outcome string) {
	Init()
	runsTotal.WithLabelValues(outcome).Inc()
}
