package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

// WorkerMetrics implements ports.RunMetrics for statement runs.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	runTotal      *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runInFlight   prometheus.Gauge
	dispatchLag   *prometheus.HistogramVec
	ledgerEntries *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	runTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kakeibo",
			Subsystem: "worker",
			Name:      "statement_runs_total",
			Help:      "Total statement runs by terminal status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kakeibo",
			Subsystem: "worker",
			Name:      "statement_run_duration_seconds",
			Help:      "Statement run duration in seconds by terminal status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	runInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kakeibo",
			Subsystem: "worker",
			Name:      "statement_runs_in_flight",
			Help:      "Number of in-flight statement runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	dispatchLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kakeibo",
			Subsystem: "worker",
			Name:      "dispatch_lag_seconds",
			Help:      "Delay between statement submission and run start.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service"},
	)
	ledgerEntries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kakeibo",
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger entries persisted by category.",
		},
		[]string{"service", "category"},
	)

	registry.MustRegister(runTotal, runDuration, runInFlight, dispatchLag, ledgerEntries)

	return &WorkerMetrics{
		registry:      registry,
		service:       service,
		runTotal:      runTotal,
		runDuration:   runDuration,
		runInFlight:   runInFlight,
		dispatchLag:   dispatchLag,
		ledgerEntries: ledgerEntries,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *WorkerMetrics) StartRun() {
	m.runInFlight.Inc()
}

func (m *WorkerMetrics) FinishRun(duration time.Duration, status domain.JobStatus) {
	m.runInFlight.Dec()
	m.runTotal.WithLabelValues(m.service, string(status)).Inc()
	m.runDuration.WithLabelValues(m.service, string(status)).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveDispatchLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.dispatchLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordLedgerEntry(category domain.Category) {
	m.ledgerEntries.WithLabelValues(m.service, string(category)).Inc()
}
