package prometheus

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/metrics"
)

// storeMetrics is the Prometheus implementation of metrics.StoreMetrics.
type storeMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	cacheHitRatio *prometheus.GaugeVec
}

// NewStoreMetrics creates a Prometheus-backed StoreMetrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewStoreMetrics() metrics.StoreMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &storeMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaforge_store_operations_total",
				Help: "Media store calls by backend, operation and status",
			},
			[]string{"store", "operation", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediaforge_store_operation_duration_seconds",
				Help:    "Latency of media store calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 9), // 100µs .. ~6.5s
			},
			[]string{"store", "operation"},
		),
		cacheHitRatio: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mediaforge_store_cache_hit_ratio",
				Help: "Backend cache hit ratio (0.0 to 1.0) by cache type",
			},
			[]string{"store", "cache"}, // badger: "block", "index"
		),
	}
}

// storeStatus keeps lookups of unknown ids apart from real failures.
func storeStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, media.ErrMediaNotFound):
		return "not_found"
	case errors.Is(err, media.ErrDuplicateMedia):
		return "duplicate"
	default:
		return "error"
	}
}

func (m *storeMetrics) ObserveOperation(store, op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(store, op, storeStatus(err)).Inc()
	m.duration.WithLabelValues(store, op).Observe(duration.Seconds())
}

func (m *storeMetrics) RecordCacheHitRatio(store, cache string, ratio float64) {
	if m == nil {
		return
	}
	m.cacheHitRatio.WithLabelValues(store, cache).Set(ratio)
}
