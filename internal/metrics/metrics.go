package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Sagas
	SagasTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_sagas_total",
			Help: "Loan creation sagas by terminal status",
		},
		[]string{"status"}, // completed|failed|cancelled
	)
	SagaStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loan_saga_step_duration_seconds",
			Help:    "Duration of individual saga steps",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	// Payments
	PaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Processed payments by outcome",
		},
		[]string{"outcome"}, // applied|replayed|rejected
	)

	// Circuit breakers
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Breaker state per collaborator (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	// Reservation sweep
	ReservationsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credit_reservations_expired_total",
			Help: "Reservations reclaimed by the expiry sweep",
		},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

// Handler serves the /metrics endpoint
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(SagasTotal)
	prometheus.MustRegister(SagaStepDuration)
	prometheus.MustRegister(PaymentsTotal)
	prometheus.MustRegister(BreakerState)
	prometheus.MustRegister(ReservationsExpired)
	prometheus.MustRegister(WorkerQueueDepth)
}
