package prometheus

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/metrics"
)

func TestConstructorsDisabled(t *testing.T) {
	metrics.Reset()
	assert.Nil(t, NewHTTPMetrics())
	assert.Nil(t, NewTranscodeMetrics())
	assert.Nil(t, NewStoreMetrics())
}

func TestHTTPMetrics(t *testing.T) {
	metrics.InitRegistry()
	t.Cleanup(metrics.Reset)

	m, ok := NewHTTPMetrics().(*httpMetrics)
	require.True(t, ok)

	m.RecordConnectionAccepted()
	m.RecordConnectionAccepted()
	m.RecordConnectionClosed()
	m.SetActiveConnections(1)
	m.RecordRequest("GET", 200, 3*time.Millisecond)
	m.RecordRequest("GET", 404, time.Millisecond)
	m.RecordRequest("GET", 200, time.Millisecond)
	m.RecordUpload("complete", 4096)
	m.RecordUpload("failed", 0)
	m.RecordBytesTransferred("write", 512)
	m.RecordBytesTransferred("write", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsClosed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeConnections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadsTotal.WithLabelValues("failed")))
	assert.Equal(t, 512.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("write")))
}

func TestTranscodeMetrics(t *testing.T) {
	metrics.InitRegistry()
	t.Cleanup(metrics.Reset)

	m, ok := NewTranscodeMetrics().(*transcodeMetrics)
	require.True(t, ok)

	m.RecordVariant("720p", nil, time.Second)
	m.RecordVariant("1080p", errors.New("exit status 1"), time.Second)
	m.RecordJob("ready", 2*time.Second)
	m.RecordRejected()
	m.SetQueueDepth(3)
	m.RecordPublish(100, nil)
	m.RecordPublish(50, errors.New("denied"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.variantsTotal.WithLabelValues("720p", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.variantsTotal.WithLabelValues("1080p", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejectedTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.publishedBytes))
}

func TestStoreMetrics(t *testing.T) {
	metrics.InitRegistry()
	t.Cleanup(metrics.Reset)

	m, ok := NewStoreMetrics().(*storeMetrics)
	require.True(t, ok)

	m.ObserveOperation("sqlite", "GetMedia", time.Millisecond, nil)
	m.ObserveOperation("sqlite", "GetMedia", time.Millisecond, fmt.Errorf("lookup: %w", media.ErrMediaNotFound))
	m.ObserveOperation("sqlite", "InsertMediaRecord", time.Millisecond, media.ErrDuplicateMedia)
	m.ObserveOperation("sqlite", "ListMedia", time.Millisecond, errors.New("disk I/O error"))
	m.RecordCacheHitRatio("badger", "block", 0.75)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("sqlite", "GetMedia", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("sqlite", "GetMedia", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("sqlite", "InsertMediaRecord", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("sqlite", "ListMedia", "error")))
	assert.Equal(t, 0.75, testutil.ToFloat64(m.cacheHitRatio.WithLabelValues("badger", "block")))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var h *httpMetrics
	h.RecordRequest("GET", 200, time.Millisecond)
	h.SetActiveConnections(3)

	var tm *transcodeMetrics
	tm.RecordJob("failed", time.Second)

	var sm *storeMetrics
	sm.ObserveOperation("memory", "GetMedia", time.Millisecond, nil)
}
