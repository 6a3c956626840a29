package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters/histograms for the booking client and the sandbox
// backend that serves it.
type BookingMetrics struct {
	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	paymentOutcomes *prometheus.CounterVec
	auditDispatch   *prometheus.CounterVec
	servedRequests  *prometheus.CounterVec
	servedLatency   *prometheus.HistogramVec
	sandboxBookings *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total backend API requests by endpoint and HTTP status",
		}, []string{"endpoint", "status"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicbook",
			Subsystem: "backend",
			Name:      "request_seconds",
			Help:      "Latency of backend API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		paymentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "payment",
			Name:      "outcomes_total",
			Help:      "Payment hand-off transitions by resulting status",
		}, []string{"status"}),
		auditDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "audit",
			Name:      "dispatch_total",
			Help:      "Fire-and-forget audit calls by kind and result",
		}, []string{"kind", "result"}),
		servedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "sandbox",
			Name:      "requests_total",
			Help:      "Requests served by the sandbox backend by route and status",
		}, []string{"route", "status"}),
		servedLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicbook",
			Subsystem: "sandbox",
			Name:      "request_seconds",
			Help:      "Sandbox handler latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		sandboxBookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "sandbox",
			Name:      "bookings_total",
			Help:      "Sandbox booking lifecycle events by resulting status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.backendRequests, m.backendLatency, m.paymentOutcomes, m.auditDispatch,
		m.servedRequests, m.servedLatency, m.sandboxBookings,
	)
	return m
}

// ObserveBackend records one backend call. status is the HTTP status or 0 for transport failures.
func (m *BookingMetrics) ObserveBackend(endpoint string, status int, seconds float64) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.backendRequests.WithLabelValues(endpoint, label).Inc()
	m.backendLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *BookingMetrics) ObservePaymentStatus(status string) {
	if m == nil {
		return
	}
	m.paymentOutcomes.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveAudit(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.auditDispatch.WithLabelValues(kind, result).Inc()
}

// ObserveServed records one request handled by the sandbox. route is the chi pattern.
func (m *BookingMetrics) ObserveServed(route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.servedRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.servedLatency.WithLabelValues(route).Observe(seconds)
}

func (m *BookingMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.sandboxBookings.WithLabelValues(status).Inc()
}
