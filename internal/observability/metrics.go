package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	submissionEvents    *prometheus.CounterVec
	notificationsSent   *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
	sseClientsActive    prometheus.Gauge
	uploadsTotal        *prometheus.CounterVec
	uploadRejected      *prometheus.CounterVec
	uploadLatency       prometheus.Histogram
	messagesSent        *prometheus.CounterVec
	messageConnections  prometheus.Gauge
	eventsPublished     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sekolah_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sekolah_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sekolah_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		submissionEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sekolah_submission_events_total",
			Help: "Submission lifecycle transitions by event.",
		}, []string{"event"})

		notificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sekolah_notifications_delivered_total",
			Help: "Notifications persisted and broadcast, by type.",
		}, []string{"type"})

		notificationsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sekolah_notifications_failed_total",
			Help: "Notifications that could not be persisted, by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sekolah_sse_clients_active",
			Help: "Open notification streams.",
		})

		uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sekolah_uploads_total",
			Help: "Stored artifacts by purpose and mime type.",
		}, []string{"purpose", "mime"})

		uploadRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sekolah_upload_rejected_total",
			Help: "Rejected uploads by reason.",
		}, []string{"reason"})

		uploadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sekolah_upload_latency_seconds",
			Help:    "Time spent validating and storing uploads.",
			Buckets: prometheus.DefBuckets,
		})

		messagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sekolah_messages_sent_total",
			Help: "Direct messages sent by kind.",
		}, []string{"kind"})

		messageConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sekolah_message_connections_active",
			Help: "Open websocket connections for live messages.",
		})

		eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sekolah_events_published_total",
			Help: "Domain events handed to the event stream, by result.",
		}, []string{"topic", "result"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			submissionEvents, notificationsSent, notificationsFailed, sseClientsActive,
			uploadsTotal, uploadRejected, uploadLatency,
			messagesSent, messageConnections, eventsPublished,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SubmissionEvents counts lifecycle transitions.
func SubmissionEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionEvents
}

// NotificationsDelivered counts persisted notifications.
func NotificationsDelivered() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsSent
}

// NotificationsFailed counts notifications lost to persistence errors.
func NotificationsFailed() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsFailed
}

// SSEClientsActive tracks open notification streams.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// UploadRequests counts stored artifacts.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsTotal
}

// UploadRejected counts rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejected
}

// UploadLatency observes upload handling time.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatency
}

// MessagesSent counts direct messages.
func MessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return messagesSent
}

// MessageConnections tracks open websocket connections.
func MessageConnections() prometheus.Gauge {
	RegisterMetrics()
	return messageConnections
}

// EventsPublished counts domain events handed to the event stream.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublished
}
