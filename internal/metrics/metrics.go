// Package metrics registers the checkout service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "checkout"

// Metrics holds every collector the service updates.
type Metrics struct {
	OrdersCreated      prometheus.Counter
	Transitions        *prometheus.CounterVec
	CouponReservations *prometheus.CounterVec
	CommissionsTotal   prometheus.Counter
	ProcessorCalls     *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders persisted in the PENDING state.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order lifecycle transitions by target state and outcome.",
		}, []string{"to", "outcome"}),
		CouponReservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_reservations_total",
			Help:      "Coupon use reservations and releases.",
		}, []string{"action", "outcome"}),
		CommissionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commissions_recorded_total",
			Help:      "Commissions written to the ledger.",
		}),
		ProcessorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processor_calls_total",
			Help:      "Payment processor calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.OrdersCreated,
		m.Transitions,
		m.CouponReservations,
		m.CommissionsTotal,
		m.ProcessorCalls,
		m.HTTPDuration,
	)
	return m
}

// NewNop returns collectors that are not registered anywhere.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveProcessorCall matches adapter.CallObserver.
func (m *Metrics) ObserveProcessorCall(op, outcome string) {
	m.ProcessorCalls.WithLabelValues(op, outcome).Inc()
}
