package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the intake service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	inbound         *prometheus.CounterVec
	abuse           *prometheus.CounterVec
	tokens          *prometheus.CounterVec
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_intake_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticket_intake_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_intake_http_errors_total",
			Help: "Error responses by route and domain error code",
		}, []string{"route", "method", "code"}),
		inbound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_intake_inbound_total",
			Help: "Inbound submissions by channel and outcome",
		}, []string{"channel", "outcome"}),
		abuse: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_intake_abuse_rejections_total",
			Help: "Submissions rejected by the abuse guard, by reason",
		}, []string{"reason"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_intake_token_operations_total",
			Help: "Ticket token operations by kind and result",
		}, []string{"operation", "result"}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordInbound counts an intake outcome such as "reply", "created" or a rejection code.
func (m *Metrics) RecordInbound(channel, outcome string) {
	if m == nil {
		return
	}
	m.inbound.WithLabelValues(channel, outcome).Inc()
}

// RecordAbuseRejection counts a guard rejection.
func (m *Metrics) RecordAbuseRejection(reason string) {
	if m == nil {
		return
	}
	m.abuse.WithLabelValues(reason).Inc()
}

// RecordToken counts token issue/consume results.
func (m *Metrics) RecordToken(operation, result string) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(operation, result).Inc()
}
