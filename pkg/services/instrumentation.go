package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_engine_matches_created_total",
			Help: "Total number of matches created by discovery",
		},
		[]string{"source", "super"},
	)

	discoveryRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_engine_discovery_runs_total",
			Help: "Total number of discovery runs",
		},
		[]string{"source", "result"},
	)

	discoveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_engine_discovery_duration_seconds",
			Help:    "Time spent discovering matches for one listing",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_engine_transitions_total",
			Help: "Total number of lifecycle transition attempts",
		},
		[]string{"event", "result"},
	)

	partnershipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_engine_partnerships_total",
			Help: "Total number of partnership records written",
		},
		[]string{"status"},
	)

	messagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_engine_messages_sent_total",
			Help: "Total number of chat messages appended",
		},
	)

	metricsCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_engine_metrics_cache_total",
			Help: "Ranking cache lookups",
		},
		[]string{"result"},
	)
)

// resultLabel maps an error to a low-cardinality label value.
func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
