// Package prometheus implements the pkg/metrics hooks with Prometheus
// collectors registered on metrics.GetRegistry().
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/mediaforge/pkg/metrics"
)

// httpMetrics is the Prometheus implementation of metrics.HTTPMetrics.
type httpMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsRejected    prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	bytesTransferred       *prometheus.CounterVec
	uploadsTotal           *prometheus.CounterVec
	uploadBytes            prometheus.Histogram
}

// NewHTTPMetrics creates a Prometheus-backed HTTPMetrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewHTTPMetrics() metrics.HTTPMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &httpMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "mediaforge_http_connections_accepted_total",
			Help: "Total number of accepted connections",
		}),
		connectionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "mediaforge_http_connections_closed_total",
			Help: "Total number of closed connections",
		}),
		connectionsRejected: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "mediaforge_http_connections_rejected_total",
			Help: "Connections refused because the server was at capacity",
		}),
		connectionsForceClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "mediaforge_http_connections_force_closed_total",
			Help: "Connections still open when the shutdown timeout expired",
		}),
		activeConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "mediaforge_http_active_connections",
			Help: "Current number of open connections",
		}),
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaforge_http_requests_total",
				Help: "Completed responses by method and status code",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "mediaforge_http_request_duration_milliseconds",
				Help: "Time from request parse to response flush in milliseconds",
				Buckets: []float64{
					1,     // playlist
					5,     // small segment
					25,    // 1080p segment
					100,   // large segment
					500,   // slow client
					2500,  // small upload
					10000, // upload
					60000, // large upload
				},
			},
			[]string{"method"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaforge_http_bytes_total",
				Help: "Socket bytes by direction",
			},
			[]string{"direction"}, // "read", "write"
		),
		uploadsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaforge_http_uploads_total",
				Help: "Multipart uploads by result",
			},
			[]string{"result"}, // "complete", "failed"
		),
		uploadBytes: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "mediaforge_http_upload_bytes",
			Help: "Distribution of uploaded file sizes",
			Buckets: []float64{
				1 << 20,   // 1MB
				16 << 20,  // 16MB
				64 << 20,  // 64MB
				256 << 20, // 256MB
				1 << 30,   // 1GB
				4 << 30,   // 4GB
			},
		}),
	}
}

func (m *httpMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *httpMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
}

func (m *httpMetrics) RecordConnectionRejected() {
	if m == nil {
		return
	}
	m.connectionsRejected.Inc()
}

func (m *httpMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForceClosed.Inc()
}

func (m *httpMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

func (m *httpMetrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *httpMetrics) RecordBytesTransferred(direction string, bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *httpMetrics) RecordUpload(result string, bytes int64) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(result).Inc()
	if result == "complete" {
		m.uploadBytes.Observe(float64(bytes))
	}
}
