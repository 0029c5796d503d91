// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Scheduler metrics
	TicksTotal      prometheus.Counter
	TickDuration    prometheus.Histogram
	ArenasProcessed prometheus.Counter
	ArenasSkipped   *prometheus.CounterVec

	// Pipeline metrics
	DecisionsTotal     *prometheus.CounterVec
	TradesExecuted     *prometheus.CounterVec
	GuardrailOverrides *prometheus.CounterVec
	AgentsSkipped      *prometheus.CounterVec
	CommitFailures     prometheus.Counter
	OracleLatency      prometheus.Histogram
	ChainCallLatency   *prometheus.HistogramVec

	// Indexer metrics
	IndexerEvents prometheus.Counter
	IndexerByKind *prometheus.CounterVec
	IndexerSkips  *prometheus.CounterVec

	// Leaderboard metrics
	SnapshotsWritten prometheus.Counter

	// Reconciler metrics
	DecisionsReconciled *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "agent_arena"
	}

	return &Metrics{
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of completed scheduler ticks",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Tick execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		ArenasProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "arenas_processed_total",
			Help:      "Total number of arenas processed across ticks",
		}),
		ArenasSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "arenas_skipped_total",
			Help:      "Total number of arenas skipped by reason",
		}, []string{"reason"}),

		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "decisions_total",
			Help:      "Total number of agent decisions by terminal status",
		}, []string{"status"}),
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "trades_executed_total",
			Help:      "Total number of committed paper trades by action",
		}, []string{"action"}),
		GuardrailOverrides: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "guardrail_overrides_total",
			Help:      "Total number of guardrail overrides by gate",
		}, []string{"gate"}),
		AgentsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "agents_skipped_total",
			Help:      "Total number of agents skipped before a decision row, by reason",
		}, []string{"reason"}),
		CommitFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "commit_failures_total",
			Help:      "Total number of failed post-chain-success commits",
		}),
		OracleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "decide_latency_seconds",
			Help:      "Oracle decision latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ChainCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "call_latency_seconds",
			Help:      "Chain RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		IndexerEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "events_total",
			Help:      "Total number of chain events applied",
		}),
		IndexerByKind: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "events_by_kind_total",
			Help:      "Total number of chain events applied by kind",
		}, []string{"kind"}),
		IndexerSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "skips_total",
			Help:      "Total number of events skipped awaiting dependencies",
		}, []string{"kind", "reason"}),

		SnapshotsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "snapshots_written_total",
			Help:      "Total number of leaderboard snapshots written",
		}),

		DecisionsReconciled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "decisions_total",
			Help:      "Total number of stuck decisions resolved by outcome",
		}, []string{"outcome"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordChainCall records one chain RPC round trip.
func RecordChainCall(method string, durationSeconds float64) {
	DefaultMetrics.ChainCallLatency.WithLabelValues(method).Observe(durationSeconds)
}

// RecordTick records a completed tick.
func RecordTick(durationSeconds float64) {
	DefaultMetrics.TicksTotal.Inc()
	DefaultMetrics.TickDuration.Observe(durationSeconds)
}

// RecordArenaProcessed increments the arenas processed counter.
func RecordArenaProcessed() {
	DefaultMetrics.ArenasProcessed.Inc()
}

// RecordArenaSkipped records an arena skip.
func RecordArenaSkipped(reason string) {
	DefaultMetrics.ArenasSkipped.WithLabelValues(reason).Inc()
}

// RecordDecision records a decision reaching a terminal status.
func RecordDecision(status string) {
	DefaultMetrics.DecisionsTotal.WithLabelValues(status).Inc()
}

// RecordTrade records a committed paper trade.
func RecordTrade(action string) {
	DefaultMetrics.TradesExecuted.WithLabelValues(action).Inc()
}

// RecordGuardrailOverride records a guardrail override.
func RecordGuardrailOverride(gate string) {
	DefaultMetrics.GuardrailOverrides.WithLabelValues(gate).Inc()
}

// RecordAgentSkipped records an agent skipped before a decision row existed.
func RecordAgentSkipped(reason string) {
	DefaultMetrics.AgentsSkipped.WithLabelValues(reason).Inc()
}

// RecordCommitFailure records a failed atomic commit.
func RecordCommitFailure() {
	DefaultMetrics.CommitFailures.Inc()
}

// RecordIndexerEvent records one applied chain event.
func RecordIndexerEvent(kind string) {
	DefaultMetrics.IndexerEvents.Inc()
	DefaultMetrics.IndexerByKind.WithLabelValues(kind).Inc()
}

// RecordIndexerSkip records an event skipped awaiting a dependency.
func RecordIndexerSkip(kind, reason string) {
	DefaultMetrics.IndexerSkips.WithLabelValues(kind, reason).Inc()
}

// RecordSnapshot records a written leaderboard snapshot.
func RecordSnapshot() {
	DefaultMetrics.SnapshotsWritten.Inc()
}

// RecordReconciled records a reconciled stuck decision.
func RecordReconciled(outcome string) {
	DefaultMetrics.DecisionsReconciled.WithLabelValues(outcome).Inc()
}
