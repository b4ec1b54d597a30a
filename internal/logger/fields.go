package logger

import "log/slog"

// Standard field keys. Use them instead of ad-hoc strings so log queries
// stay stable across packages.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Connection and request
	KeyConnID    = "conn_id"
	KeyClient    = "client"
	KeyMethod    = "method"
	KeyPath      = "path"
	KeyStatus    = "status"
	KeyKeepAlive = "keep_alive"
	KeyState     = "state"
	KeyFD        = "fd"

	// Byte accounting
	KeyBytes        = "bytes"
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"
	KeyPending      = "pending"

	// Uploads and media
	KeyMediaID  = "media_id"
	KeyFilename = "filename"
	KeyChecksum = "checksum"
	KeyJobID    = "job_id"
	KeyVariant  = "variant"
	KeyInput    = "input"
	KeyOutput   = "output"

	// Accounts
	KeyUser = "user"

	// Storage
	KeyStore  = "store"
	KeyBucket = "bucket"
	KeyKey    = "key"

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyAttempt    = "attempt"
)

// Err returns an error attribute; nil errors render as an empty string.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// ConnID returns the connection id attribute.
func ConnID(id uint64) slog.Attr {
	return slog.Uint64(KeyConnID, id)
}

// MediaID returns the media id attribute.
func MediaID(id string) slog.Attr {
	return slog.String(KeyMediaID, id)
}

// Bytes returns a byte count attribute.
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// Status returns an HTTP status attribute.
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// DurationMs returns a duration attribute in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
