package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/mediaforge/pkg/metrics"
)

// transcodeMetrics is the Prometheus implementation of metrics.TranscodeMetrics.
type transcodeMetrics struct {
	jobsTotal        *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	variantsTotal    *prometheus.CounterVec
	variantDuration  *prometheus.HistogramVec
	rejectedTotal    prometheus.Counter
	queueDepth       prometheus.Gauge
	publishedObjects *prometheus.CounterVec
	publishedBytes   prometheus.Counter
}

// NewTranscodeMetrics creates a Prometheus-backed TranscodeMetrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewTranscodeMetrics() metrics.TranscodeMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()
	buckets := []float64{1, 5, 15, 30, 60, 120, 300, 900, 1800}

	return &transcodeMetrics{
		jobsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaforge_transcode_jobs_total",
				Help: "Finished transcode jobs by result",
			},
			[]string{"result"},
		),
		jobDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediaforge_transcode_job_duration_seconds",
				Help:    "Wall time of a transcode job in seconds",
				Buckets: buckets,
			},
			[]string{"result"},
		),
		variantsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaforge_transcode_variants_total",
				Help: "Rendition attempts by variant and status",
			},
			[]string{"variant", "status"},
		),
		variantDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediaforge_transcode_variant_duration_seconds",
				Help:    "Wall time of one rendition in seconds",
				Buckets: buckets,
			},
			[]string{"variant"},
		),
		rejectedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "mediaforge_transcode_rejected_total",
			Help: "Jobs dropped because the queue was full",
		}),
		queueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "mediaforge_transcode_queue_depth",
			Help: "Jobs waiting for a worker",
		}),
		publishedObjects: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaforge_transcode_published_objects_total",
				Help: "HLS objects uploaded to remote storage by status",
			},
			[]string{"status"},
		),
		publishedBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "mediaforge_transcode_published_bytes_total",
			Help: "Bytes uploaded to remote storage",
		}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *transcodeMetrics) RecordJob(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(result).Inc()
	m.jobDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (m *transcodeMetrics) RecordVariant(variant string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.variantsTotal.WithLabelValues(variant, status(err)).Inc()
	m.variantDuration.WithLabelValues(variant).Observe(duration.Seconds())
}

func (m *transcodeMetrics) RecordRejected() {
	if m == nil {
		return
	}
	m.rejectedTotal.Inc()
}

func (m *transcodeMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *transcodeMetrics) RecordPublish(bytes int64, err error) {
	if m == nil {
		return
	}
	m.publishedObjects.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.publishedBytes.Add(float64(bytes))
	}
}
