// Package metrics объявляет prometheus-метрики сервиса записи на уроки.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PaymentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driveright_payments_processed_total",
			Help: "Number of payments stored, by method and resulting status",
		},
		[]string{"method", "status"},
	)

	PaymentValidationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "driveright_payment_validation_failures_total",
			Help: "Number of payment submissions rejected by validation",
		},
	)

	PaymentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driveright_payment_transitions_total",
			Help: "Number of payment status changes, by target status",
		},
		[]string{"status"},
	)

	EnrollmentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driveright_enrollment_transitions_total",
			Help: "Number of enrollment status changes, by target status",
		},
		[]string{"status"},
	)

	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driveright_gateway_request_duration_seconds",
			Help:    "Time taken by payment gateway calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)
)

// Register регистрирует метрики в реестре по умолчанию.
func Register() {
	prometheus.MustRegister(
		PaymentsProcessed,
		PaymentValidationFailures,
		PaymentTransitions,
		EnrollmentTransitions,
		GatewayRequestDuration,
	)
}
