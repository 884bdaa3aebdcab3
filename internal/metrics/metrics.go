package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "task_chat",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "task_chat",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "task_chat",
			Subsystem: "chat",
			Name:      "messages_posted_total",
			Help:      "Messages posted to task chat channels",
		},
		[]string{"message_type"},
	)

	// status: ok | too_large | error
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "task_chat",
			Subsystem: "chat",
			Name:      "uploads_total",
			Help:      "Attachment uploads by outcome",
		},
		[]string{"status"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "task_chat",
			Subsystem: "chat",
			Name:      "upload_bytes_total",
			Help:      "Total attachment bytes stored",
		},
	)

	// status: ok | error
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "task_chat",
			Subsystem: "bus",
			Name:      "notifications_total",
			Help:      "Per-partner notification publishes by outcome",
		},
		[]string{"status"},
	)

	ChannelsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "task_chat",
			Subsystem: "chat",
			Name:      "channels_created_total",
			Help:      "Task chat channels created",
		},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}
