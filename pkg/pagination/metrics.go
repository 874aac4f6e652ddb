package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for search runs.
var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_searches_total",
		Help: "Total searches by result (complete, fatal, exhausted, cancelled)",
	}, []string{"result"})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jira_search_duration_seconds",
		Help:    "Duration of complete search runs",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	searchRoundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_search_rounds_total",
		Help: "Total dispatch rounds by phase",
	}, []string{"phase"})

	searchPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_search_pages_total",
		Help: "Total page jobs by outcome",
	}, []string{"outcome"})

	searchPageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_search_page_failures_total",
		Help: "Total page failures by failure class",
	}, []string{"class"})

	searchRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jira_search_retry_backoff_seconds",
		Help:    "Wait between retry rounds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	searchRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_search_retry_exhausted_total",
		Help: "Total pages that exhausted their retry budget by failure class",
	}, []string{"class"})
)
