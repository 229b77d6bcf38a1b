// Package metrics exports budget control core instrumentation via
// prometheus/client_golang: requests, lease reservations, budget overages
// and credit flow, each as a registered prometheus vector or counter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector groups the core's prometheus instruments behind a single
// registerable type.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestErrors   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	LeaseReservations *prometheus.CounterVec
	LeaseDenials      *prometheus.CounterVec
	LeasesInFlight    prometheus.Gauge

	BudgetExceeded   *prometheus.CounterVec
	OverageEvents    *prometheus.CounterVec
	CreditsReserved  prometheus.Counter
	CreditsCommitted prometheus.Counter
	CreditsRefunded  prometheus.Counter
}

// NewCollector registers every instrument against reg and returns the
// populated Collector. Pass prometheus.NewRegistry() for tests and
// prometheus.DefaultRegisterer in production.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Name:      "requests_total",
			Help:      "Total HTTP requests handled, by route.",
		}, []string{"route", "method"}),
		RequestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Name:      "request_errors_total",
			Help:      "Total HTTP requests that returned a 4xx/5xx status, by route.",
		}, []string{"route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "budgetcore",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		LeaseReservations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Name:      "lease_reservations_total",
			Help:      "Total lease reservation attempts, by outcome.",
		}, []string{"outcome"}),
		LeaseDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Name:      "lease_denials_total",
			Help:      "Total lease reservations denied, by reason.",
		}, []string{"reason"}),
		LeasesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "budgetcore",
			Name:      "leases_in_flight",
			Help:      "Number of leases currently reserved but not yet closed.",
		}),
		BudgetExceeded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Name:      "budget_exceeded_total",
			Help:      "Total reservations rejected for exceeding a budget node, by node level.",
		}, []string{"level"}),
		OverageEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Name:      "overage_events_total",
			Help:      "Total overage events emitted under informative enforcement, by node level.",
		}, []string{"level"}),
		CreditsReserved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Name:      "credits_reserved_micro_usd_total",
			Help:      "Total micro-USD reserved across all leases.",
		}),
		CreditsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Name:      "credits_committed_micro_usd_total",
			Help:      "Total micro-USD committed across all leases.",
		}),
		CreditsRefunded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Name:      "credits_refunded_micro_usd_total",
			Help:      "Total micro-USD refunded across all leases.",
		}),
	}
}
