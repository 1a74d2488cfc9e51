package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application's collectors, registered on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Auth flows
	AuthFlowTotal *prometheus.CounterVec

	// Mail queue
	MailPublishedTotal *prometheus.CounterVec
	MailDeliveredTotal *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with every collector registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		AuthFlowTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_flow_total",
				Help: "Total number of auth flow executions by outcome",
			},
			[]string{"flow", "result"},
		),

		MailPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mail_published_total",
				Help: "Total number of emails handed to the mail queue",
			},
			[]string{"template", "result"},
		),

		MailDeliveredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mail_delivered_total",
				Help: "Total number of emails consumed from the mail queue",
			},
			[]string{"template", "result"},
		),
	}
}

// ObserveFlow counts one auth flow execution. Safe on a nil receiver.
func (m *Metrics) ObserveFlow(flow, result string) {
	if m == nil {
		return
	}
	m.AuthFlowTotal.WithLabelValues(flow, result).Inc()
}

// ObservePublish counts one mail queue publish. Safe on a nil receiver.
func (m *Metrics) ObservePublish(template string, err error) {
	if m == nil {
		return
	}
	m.MailPublishedTotal.WithLabelValues(template, resultLabel(err)).Inc()
}

// ObserveDelivery counts one consumed mail. Safe on a nil receiver.
func (m *Metrics) ObserveDelivery(template string, err error) {
	if m == nil {
		return
	}
	m.MailDeliveredTotal.WithLabelValues(template, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
