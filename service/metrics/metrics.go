package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to every component that records metrics;
// a nil *Metrics is valid at call sites that guard with `if m != nil`.
type Metrics struct {
	// Solana RPC
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec
	confirmationPolls     *prometheus.HistogramVec

	// Form submissions
	submissionsTotal       *prometheus.CounterVec
	submissionDuration     *prometheus.HistogramVec
	submissionsInFlight    *prometheus.GaugeVec
	submittedLamportsTotal *prometheus.CounterVec

	// Wallet
	walletConnected   *prometheus.GaugeVec
	walletConnections *prometheus.CounterVec

	// HTTP
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec

	// NATS
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		confirmationPolls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_confirmation_polls",
				Help:    "Number of signature status polls needed to confirm a signature",
				Buckets: []float64{1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"status"},
		),

		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "form_submissions_total",
				Help: "Total number of form submissions by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		submissionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "form_submission_duration_seconds",
				Help:    "Duration of form submissions from validation to terminal state",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation", "outcome"},
		),
		submissionsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "form_submissions_in_flight",
				Help: "Number of submissions currently validating, submitting or confirming",
			},
			[]string{"operation"},
		),
		submittedLamportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "form_lamports_total",
				Help: "Total lamports moved by successful submissions",
			},
			[]string{"operation"},
		),

		walletConnected: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wallet_connected",
				Help: "1 when a wallet adapter is connected, 0 otherwise",
			},
			[]string{"adapter"},
		),
		walletConnections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_connection_attempts_total",
				Help: "Total wallet adapter connection attempts",
			},
			[]string{"adapter", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 10, 30},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"event_type"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordConfirmationPolls records how many status polls a confirmation took.
func (m *Metrics) RecordConfirmationPolls(status string, polls int) {
	m.confirmationPolls.WithLabelValues(status).Observe(float64(polls))
}

// Submission metric helpers

// RecordSubmissionStarted increments the in-flight gauge for an operation.
func (m *Metrics) RecordSubmissionStarted(operation string) {
	m.submissionsInFlight.WithLabelValues(operation).Inc()
}

// RecordSubmission records a finished submission. The in-flight gauge is
// decremented here, so every RecordSubmissionStarted must be paired with it.
func (m *Metrics) RecordSubmission(operation, outcome string, lamports uint64, duration float64) {
	m.submissionsInFlight.WithLabelValues(operation).Dec()
	m.submissionsTotal.WithLabelValues(operation, outcome).Inc()
	m.submissionDuration.WithLabelValues(operation, outcome).Observe(duration)
	if outcome == "succeeded" {
		m.submittedLamportsTotal.WithLabelValues(operation).Add(float64(lamports))
	}
}

// Wallet metric helpers

// RecordWalletConnection records a connect attempt and updates the connected gauge.
func (m *Metrics) RecordWalletConnection(adapter string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.walletConnections.WithLabelValues(adapter, status).Inc()
	if err == nil {
		m.walletConnected.WithLabelValues(adapter).Set(1)
	}
}

// RecordWalletDisconnected marks an adapter as disconnected.
func (m *Metrics) RecordWalletDisconnected(adapter string) {
	m.walletConnected.WithLabelValues(adapter).Set(0)
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(eventType string) {
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
