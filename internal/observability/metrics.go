// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Discovery metrics
	CandidatesSeen     *prometheus.CounterVec
	CandidatesAccepted *prometheus.CounterVec
	CandidatesRejected *prometheus.CounterVec
	FetchErrors        *prometheus.CounterVec

	// Queue metrics
	SignalsEnqueued *prometheus.CounterVec
	SignalsDropped  prometheus.Counter
	QueueDepth      prometheus.Gauge

	// Dispatch metrics
	TradesExecuted       *prometheus.CounterVec
	TradesFailed         *prometheus.CounterVec
	DuplicatesSuppressed prometheus.Counter
	SellsWithoutPosition prometheus.Counter
	OpenPositions        prometheus.Gauge

	// Ledger metrics
	LedgerLatency *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_snipe"
	}

	return &Metrics{
		// Discovery metrics
		CandidatesSeen: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_seen_total",
			Help:      "Total number of candidates fetched from market data sources",
		}, []string{"source"}),
		CandidatesAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_accepted_total",
			Help:      "Total number of candidates that passed all filters",
		}, []string{"source"}),
		CandidatesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_rejected_total",
			Help:      "Total number of candidates rejected by filter reason",
		}, []string{"source", "reason"}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed market data fetches",
		}, []string{"source"}),

		// Queue metrics
		SignalsEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "signals_enqueued_total",
			Help:      "Total number of trade signals enqueued by action",
		}, []string{"action"}),
		SignalsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "signals_dropped_total",
			Help:      "Total number of trade signals dropped at shutdown",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Current number of signals waiting in the queue",
		}),

		// Dispatch metrics
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "trades_executed_total",
			Help:      "Total number of successfully executed trades by action",
		}, []string{"action"}),
		TradesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "trades_failed_total",
			Help:      "Total number of failed trade executions by action",
		}, []string{"action"}),
		DuplicatesSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "duplicates_suppressed_total",
			Help:      "Total number of buy signals suppressed by a live position",
		}),
		SellsWithoutPosition: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "sells_without_position_total",
			Help:      "Total number of sell signals dropped for lack of an open position",
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "open_positions",
			Help:      "Current number of live positions",
		}),

		// Ledger metrics
		LedgerLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "execution_latency_seconds",
			Help:      "Trade execution latency in seconds by action",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"action"}),

		// Health metrics
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last successful market data poll",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCandidateSeen increments the candidates seen counter.
func RecordCandidateSeen(source string) {
	DefaultMetrics.CandidatesSeen.WithLabelValues(source).Inc()
}

// RecordCandidateAccepted increments the accepted candidates counter.
func RecordCandidateAccepted(source string) {
	DefaultMetrics.CandidatesAccepted.WithLabelValues(source).Inc()
}

// RecordCandidateRejected increments the rejected candidates counter.
func RecordCandidateRejected(source, reason string) {
	DefaultMetrics.CandidatesRejected.WithLabelValues(source, reason).Inc()
}

// RecordFetchError increments the fetch errors counter.
func RecordFetchError(source string) {
	DefaultMetrics.FetchErrors.WithLabelValues(source).Inc()
}

// RecordSignalEnqueued increments the enqueued signals counter.
func RecordSignalEnqueued(action string) {
	DefaultMetrics.SignalsEnqueued.WithLabelValues(action).Inc()
}

// RecordSignalsDropped adds to the dropped signals counter.
func RecordSignalsDropped(count int) {
	DefaultMetrics.SignalsDropped.Add(float64(count))
}

// UpdateQueueDepth updates the queue depth gauge.
func UpdateQueueDepth(depth int) {
	DefaultMetrics.QueueDepth.Set(float64(depth))
}

// RecordTradeExecuted increments the executed trades counter.
func RecordTradeExecuted(action string) {
	DefaultMetrics.TradesExecuted.WithLabelValues(action).Inc()
}

// RecordTradeFailed increments the failed trades counter.
func RecordTradeFailed(action string) {
	DefaultMetrics.TradesFailed.WithLabelValues(action).Inc()
}

// RecordDuplicateSuppressed increments the suppressed duplicates counter.
func RecordDuplicateSuppressed() {
	DefaultMetrics.DuplicatesSuppressed.Inc()
}

// RecordSellWithoutPosition increments the dropped sells counter.
func RecordSellWithoutPosition() {
	DefaultMetrics.SellsWithoutPosition.Inc()
}

// UpdateOpenPositions updates the live positions gauge.
func UpdateOpenPositions(count int) {
	DefaultMetrics.OpenPositions.Set(float64(count))
}

// RecordLedgerLatency records trade execution latency.
func RecordLedgerLatency(action string, seconds float64) {
	DefaultMetrics.LedgerLatency.WithLabelValues(action).Observe(seconds)
}

// RecordSuccessfulPoll updates the last successful poll timestamp.
func RecordSuccessfulPoll(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulPoll.Set(float64(unixSeconds))
}
