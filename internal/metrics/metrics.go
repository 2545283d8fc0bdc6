// Package metrics registers the Prometheus instruments for paged query
// accumulation. Everything is labeled by the adapter's store name so mixed
// deployments can tell their backends apart.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched counts successful page fetches, one per page boundary
	// crossed.
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagefold",
		Subsystem: "cursor",
		Name:      "pages_fetched_total",
		Help:      "successful page fetches issued while draining paged queries",
	}, []string{"store"})

	// PageFetchErrors counts page fetches that failed and therefore failed
	// their paged query.
	PageFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagefold",
		Subsystem: "cursor",
		Name:      "page_fetch_errors_total",
		Help:      "page fetches that resolved with an error",
	}, []string{"store"})

	// RowsAccumulated observes the total row count folded per completed
	// paged query.
	RowsAccumulated = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pagefold",
		Subsystem: "accumulate",
		Name:      "rows_per_query",
		Buckets:   []float64{0, 1, 3, 10, 32, 100, 316, 1000, 3162, 10000},
		Help:      "number of rows folded into the accumulator for a paged query",
	})

	// CanceledQueries counts paged queries observed as canceled by the
	// accumulation driver.
	CanceledQueries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pagefold",
		Subsystem: "accumulate",
		Name:      "canceled_queries_total",
		Help:      "paged queries canceled before completion",
	})
)
