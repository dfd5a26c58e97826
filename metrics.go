package bqathena

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "bqathena"

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "runs_total",
		Help:      "Total number of transfer runs by outcome.",
	}, []string{"status"}) // status: succeeded, empty, failed

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of transfer runs.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	eventsRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "source",
		Name:      "events_total",
		Help:      "Total number of raw events read from BigQuery.",
	})

	sessionsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "sink",
		Name:      "sessions_total",
		Help:      "Total number of session rows uploaded.",
	})

	athenaQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "catalog",
		Name:      "queries_total",
		Help:      "Total number of Athena queries by statement and terminal state.",
	}, []string{"statement", "state"})
)
