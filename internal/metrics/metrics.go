// Package metrics defines the Prometheus collectors for the import pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesFinished counts executed batches by terminal status.
	BatchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog_import",
		Subsystem: "batch",
		Name:      "finished_total",
		Help:      "Import batches that reached a terminal status.",
	}, []string{"status"})

	// RowsProcessed counts executed rows by outcome (success, failure, skipped).
	RowsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog_import",
		Subsystem: "batch",
		Name:      "rows_total",
		Help:      "Rows processed by the batch executor, broken down by outcome.",
	}, []string{"outcome"})

	// ExecutionDuration observes wall time of batch executions.
	ExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catalog_import",
		Subsystem: "batch",
		Name:      "execution_seconds",
		Help:      "Duration of batch executions.",
		Buckets: []float64{
			0.05, 0.1, 0.25, 0.5,
			1, 2.5, 5, 10,
			30, 60, 120, 300,
		},
	}, []string{"status"})

	// DuplicateLookups counts repository key lookups by field and result.
	DuplicateLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog_import",
		Subsystem: "duplicates",
		Name:      "lookups_total",
		Help:      "Existing-element lookups, broken down by key field and result.",
	}, []string{"field", "result"})

	// ParsedRows counts data rows tokenized from uploads.
	ParsedRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog_import",
		Subsystem: "parser",
		Name:      "rows_total",
		Help:      "Data rows tokenized from uploaded files.",
	})

	// ActiveExecutions tracks batch executions currently holding a slot.
	ActiveExecutions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "catalog_import",
		Subsystem: "batch",
		Name:      "active_executions",
		Help:      "Batch executions currently running.",
	})

	// HTTPRequests counts served requests by route pattern and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog_import",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by method, route and status.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catalog_import",
		Subsystem: "http",
		Name:      "request_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog_import",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-client rate limiter.",
	}, []string{"limiter"})

	// AuthRejected counts requests refused by API key auth.
	AuthRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog_import",
		Subsystem: "http",
		Name:      "auth_rejected_total",
		Help:      "Requests refused by API key auth, by reason.",
	}, []string{"reason"})
)
