package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "mediaforge", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerBeforeInit(t *testing.T) {
	setTracer(nil, false)

	require.NotNil(t, Tracer())
	ctx, span := StartSpan(context.Background(), "test.operation")
	span.End()

	traceID, spanID := IDs(ctx)
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
}

func TestRecordErrorWithoutSpan(t *testing.T) {
	require.NotPanics(t, func() {
		RecordError(context.Background(), nil)
		RecordError(context.Background(), errors.New("test error"))
	})
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(2).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), samplerFor(0.25).Description())
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name string
		attr attribute.KeyValue
		key  string
		want any
	}{
		{"ClientAddr", ClientAddr("10.0.0.1:5555"), AttrClientAddr, "10.0.0.1:5555"},
		{"ConnID", ConnID(42), AttrConnID, int64(42)},
		{"HTTPMethod", HTTPMethod("POST"), AttrHTTPMethod, "POST"},
		{"HTTPPath", HTTPPath("/vid_1_2/"), AttrHTTPPath, "/vid_1_2/"},
		{"HTTPStatus", HTTPStatus(404), AttrHTTPStatus, int64(404)},
		{"KeepAlive", KeepAlive(true), AttrKeepAlive, true},
		{"MediaID", MediaID("vid_1_2"), AttrMediaID, "vid_1_2"},
		{"Filename", Filename("clip.mp4"), AttrFilename, "clip.mp4"},
		{"SizeBytes", SizeBytes(1 << 20), AttrSizeBytes, int64(1 << 20)},
		{"Checksum", Checksum("ab12"), AttrChecksum, "ab12"},
		{"Status", Status("ready"), AttrStatus, "ready"},
		{"JobID", JobID("job-1"), AttrJobID, "job-1"},
		{"Variant", Variant("720p"), AttrVariant, "720p"},
		{"Resolution", Resolution("1280x720"), AttrResolution, "1280x720"},
		{"Bucket", Bucket("media"), AttrBucket, "media"},
		{"StorageKey", StorageKey("hls/vid_1_2/master.m3u8"), AttrKey, "hls/vid_1_2/master.m3u8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, string(tt.attr.Key))
			assert.Equal(t, tt.want, tt.attr.Value.AsInterface())
		})
	}
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	setTracer(tp.Tracer("test"), true)
	t.Cleanup(func() {
		setTracer(nil, false)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestStartHTTPSpan(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartHTTPSpan(context.Background(), "GET", "/vid_1_2/720p/index000.ts", ConnID(7))
	traceID, spanID := IDs(ctx)
	assert.Len(t, traceID, 32)
	assert.Len(t, spanID, 16)
	RecordError(ctx, errors.New("boom"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, SpanHTTPRequest, ended[0].Name())
	assert.Equal(t, trace.SpanKindServer, ended[0].SpanKind())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), HTTPMethod("GET"))
	assert.Contains(t, ended[0].Attributes(), ConnID(7))
}

func TestStartTranscodeSpan(t *testing.T) {
	rec := withRecorder(t)

	ctx, job := StartTranscodeSpan(context.Background(), SpanTranscodeJob, "vid_1_2")
	_, variant := StartTranscodeSpan(ctx, SpanTranscodeVariant, "vid_1_2", Variant("360p"))
	variant.End()
	job.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, SpanTranscodeVariant, ended[0].Name())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Contains(t, ended[0].Attributes(), Variant("360p"))
	assert.Contains(t, ended[1].Attributes(), MediaID("vid_1_2"))
}

func TestParseProfileType(t *testing.T) {
	for _, name := range []string{"cpu", "inuse_space", "goroutines", "block_count"} {
		_, err := parseProfileType(name)
		assert.NoError(t, err, name)
	}
	_, err := parseProfileType("gpu")
	assert.Error(t, err)
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(DefaultProfilingConfig())
	require.NoError(t, err)
	assert.False(t, IsProfilingEnabled())
	assert.NoError(t, shutdown())
}
