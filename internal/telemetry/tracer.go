package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Generic HTTP keys follow OpenTelemetry semantic
// conventions; media and transcode keys use their own prefixes.
const (
	AttrClientAddr = "client.address"
	AttrConnID     = "network.connection.id"

	AttrHTTPMethod = "http.request.method"
	AttrHTTPPath   = "url.path"
	AttrHTTPStatus = "http.response.status_code"
	AttrKeepAlive  = "http.keep_alive"

	AttrMediaID    = "media.id"
	AttrFilename   = "media.filename"
	AttrSizeBytes  = "media.size_bytes"
	AttrChecksum   = "media.checksum"
	AttrStatus     = "media.status"
	AttrJobID      = "transcode.job_id"
	AttrVariant    = "transcode.variant"
	AttrResolution = "transcode.resolution"

	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
)

// Span names. Format: <component>.<operation>.
const (
	SpanHTTPRequest = "http.request"
	SpanHTTPUpload  = "http.upload"

	SpanTranscodeJob     = "transcode.job"
	SpanTranscodeVariant = "transcode.variant"
	SpanTranscodePublish = "transcode.publish"

	SpanMediaLookup = "media.lookup"
)

func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

func ConnID(id uint64) attribute.KeyValue {
	return attribute.Int64(AttrConnID, int64(id))
}

func HTTPMethod(m string) attribute.KeyValue {
	return attribute.String(AttrHTTPMethod, m)
}

func HTTPPath(p string) attribute.KeyValue {
	return attribute.String(AttrHTTPPath, p)
}

func HTTPStatus(code int) attribute.KeyValue {
	return attribute.Int(AttrHTTPStatus, code)
}

func KeepAlive(v bool) attribute.KeyValue {
	return attribute.Bool(AttrKeepAlive, v)
}

func MediaID(id string) attribute.KeyValue {
	return attribute.String(AttrMediaID, id)
}

func Filename(name string) attribute.KeyValue {
	return attribute.String(AttrFilename, name)
}

func SizeBytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrSizeBytes, n)
}

func Checksum(sum string) attribute.KeyValue {
	return attribute.String(AttrChecksum, sum)
}

func Status(s string) attribute.KeyValue {
	return attribute.String(AttrStatus, s)
}

func JobID(id string) attribute.KeyValue {
	return attribute.String(AttrJobID, id)
}

func Variant(name string) attribute.KeyValue {
	return attribute.String(AttrVariant, name)
}

func Resolution(res string) attribute.KeyValue {
	return attribute.String(AttrResolution, res)
}

func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartHTTPSpan starts a server span for one request on a connection.
func StartHTTPSpan(ctx context.Context, method, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{HTTPMethod(method), HTTPPath(path)}, attrs...)
	return StartSpan(ctx, SpanHTTPRequest,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(allAttrs...),
	)
}

// StartTranscodeSpan starts an internal span for a pipeline step.
func StartTranscodeSpan(ctx context.Context, name, mediaID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{MediaID(mediaID)}, attrs...)
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(allAttrs...),
	)
}
