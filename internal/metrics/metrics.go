package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chameleon_requests_total",
			Help: "Total attacker requests received, by endpoint",
		},
		[]string{"endpoint"},
	)

	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chameleon_login_outcomes_total",
			Help: "Login attempt outcomes, by outcome tag",
		},
		[]string{"outcome"},
	)

	TarpitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chameleon_tarpits_total",
			Help: "Total tarpit delays applied",
		},
	)

	// Adapter metrics
	AdapterFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chameleon_adapter_failures_total",
			Help: "External adapter failures degraded to fallbacks, by adapter",
		},
		[]string{"adapter"},
	)

	// Ledger metrics
	LedgerAppends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chameleon_ledger_appends_total",
			Help: "Total events appended to the forensic ledger",
		},
	)

	LedgerAppendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chameleon_ledger_append_errors_total",
			Help: "Ledger appends that exhausted retries and went to the spool",
		},
	)

	LedgerAppendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chameleon_ledger_append_duration_seconds",
			Help:    "Duration of ledger append operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	MerkleBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chameleon_merkle_batches_total",
			Help: "Total Merkle batch roots computed and persisted",
		},
	)
)
