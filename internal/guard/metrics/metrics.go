// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup paths of the contact repository.
const (
	PathBloomNegative = "bloom_negative"
	PathCacheHit      = "cache_hit"
	PathStore         = "store"
	PathStoreError    = "store_error"
)

var (
	// FilterVerdicts counts verdicts by channel and firing rule.
	FilterVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callguard",
		Subsystem: "filter",
		Name:      "verdicts_total",
		Help:      "Total verdicts produced, by channel and reason",
	}, []string{"channel", "reason"})

	// FilterCapabilityUnknown counts rules skipped because a capability could not answer.
	FilterCapabilityUnknown = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callguard",
		Subsystem: "filter",
		Name:      "capability_unknown_total",
		Help:      "Total rule evaluations skipped because a capability was unavailable",
	}, []string{"capability"})

	// FilterEvaluationLatency observes the duration of one evaluation.
	FilterEvaluationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "callguard",
		Subsystem: "filter",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of a single policy evaluation",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"channel"})

	// ContactLookups counts contact lookups by the path that answered them.
	ContactLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callguard",
		Subsystem: "contacts",
		Name:      "lookups_total",
		Help:      "Total contact lookups, by answering path",
	}, []string{"path"})

	// ContactMutations counts committed contact store writes by operation.
	ContactMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callguard",
		Subsystem: "contacts",
		Name:      "mutations_total",
		Help:      "Total committed contact store mutations, by operation",
	}, []string{"op"})

	// DispatchErrors counts dispatcher failures by stage.
	DispatchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callguard",
		Subsystem: "dispatch",
		Name:      "errors_total",
		Help:      "Total dispatcher failures, by stage",
	}, []string{"stage"})
)
