package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes recorded for received messages.
const (
	OutcomeHandled      = "handled"
	OutcomeUnrecognised = "unrecognised"
	OutcomeInvalid      = "invalid"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lunkwill",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lunkwill",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lunkwill",
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Messages decoded from client streams by dispatch outcome.",
		},
		[]string{"node", "message_id", "outcome"},
	)
	receivedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lunkwill",
			Subsystem: "stream",
			Name:      "received_bytes_total",
			Help:      "Bytes read from client streams.",
		},
		[]string{"node"},
	)
	connections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lunkwill",
			Subsystem: "stream",
			Name:      "connections",
			Help:      "Open client connections.",
		},
		[]string{"node"},
	)
	streamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lunkwill",
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Client streams closed by an error.",
		},
		[]string{"node", "reason"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, messages, receivedBytes, connections, streamErrors)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordMessage(node string, id uint8, outcome string) {
	RegisterMetrics()
	messages.WithLabelValues(node, strconv.Itoa(int(id)), outcome).Inc()
}

func RecordReceived(node string, n int) {
	RegisterMetrics()
	receivedBytes.WithLabelValues(node).Add(float64(n))
}

func RecordConnection(node string, delta int) {
	RegisterMetrics()
	connections.WithLabelValues(node).Add(float64(delta))
}

func RecordStreamError(node, reason string) {
	RegisterMetrics()
	streamErrors.WithLabelValues(node, reason).Inc()
}
