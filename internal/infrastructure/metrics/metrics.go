package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/ledgercore/internal/domain"
)

const namespace = "ledgercore"

// Metrics holds all Prometheus metrics. It implements
// usecase.TransferObserver.
type Metrics struct {
	// Transfer metrics
	TransfersTotal   *prometheus.CounterVec
	TransferDuration *prometheus.HistogramVec
	TransferReplays  prometheus.Counter
	TransferErrors   *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished *prometheus.CounterVec

	// Reconciliation metrics
	StalePendingExpired prometheus.Counter
	LedgerInconsistent  prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge
}

// New creates all metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TransfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Settled transfers by final status and failure reason",
			},
			[]string{"status", "reason"},
		),
		TransferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transfer_duration_seconds",
				Help:      "Duration of the transfer atomic unit",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"status"},
		),
		TransferReplays: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_replays_total",
			Help:      "Transfer requests answered from an existing idempotency key",
		}),
		TransferErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfer_errors_total",
				Help:      "Transfer requests that returned an error without a settled record",
			},
			[]string{"error_type"},
		),

		OutboxPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_events_total",
				Help:      "Outbox publish attempts by event type and result",
			},
			[]string{"event_type", "result"},
		),

		StalePendingExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_pending_expired_total",
			Help:      "PENDING transactions driven to FAILED by the sweeper",
		}),
		LedgerInconsistent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_inconsistent_total",
			Help:      "Consistency checks that found a non-zero ledger",
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
	}
}

// ObserveTransfer records a settled transfer.
func (m *Metrics) ObserveTransfer(status domain.TransactionStatus, reason string, duration time.Duration) {
	m.TransfersTotal.WithLabelValues(string(status), reason).Inc()
	m.TransferDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

// ObserveReplay records an idempotent replay.
func (m *Metrics) ObserveReplay() {
	m.TransferReplays.Inc()
}

// ObserveError records a transfer error of the given kind.
func (m *Metrics) ObserveError(kind string) {
	m.TransferErrors.WithLabelValues(kind).Inc()
}

// ObservePublish records one outbox publish attempt.
func (m *Metrics) ObservePublish(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OutboxPublished.WithLabelValues(eventType, result).Inc()
}

// ObserveExpired records stale PENDING transactions expired by the sweeper.
func (m *Metrics) ObserveExpired(n int) {
	m.StalePendingExpired.Add(float64(n))
}

// ObserveInconsistency records a failed ledger consistency check.
func (m *Metrics) ObserveInconsistency() {
	m.LedgerInconsistent.Inc()
}

// ObserveHTTP records one completed HTTP request.
func (m *Metrics) ObserveHTTP(method, path string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RequestStarted increments the in-flight gauge and returns its decrement.
func (m *Metrics) RequestStarted() func() {
	m.HTTPInFlight.Inc()
	return m.HTTPInFlight.Dec
}
