package logger

import (
	"context"
	"time"
)

type contextKey struct{}

// LogContext holds request-scoped logging fields.
type LogContext struct {
	TraceID   string
	SpanID    string
	ConnID    uint64 // server-assigned connection sequence number
	Client    string // peer address
	Method    string
	Path      string
	MediaID   string
	StartTime time.Time
}

// NewLogContext starts a LogContext for a freshly accepted connection.
func NewLogContext(connID uint64, client string) *LogContext {
	return &LogContext{
		ConnID:    connID,
		Client:    client,
		StartTime: time.Now(),
	}
}

// WithContext attaches lc to ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, contextKey{}, lc)
}

// FromContext returns the LogContext attached to ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(contextKey{}).(*LogContext)
	return lc
}

// Clone returns a shallow copy.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithRequest returns a copy tagged with the request line and a fresh start time.
func (lc *LogContext) WithRequest(method, path string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Method = method
		c.Path = path
		c.StartTime = time.Now()
	}
	return c
}

// WithMedia returns a copy tagged with a media identifier.
func (lc *LogContext) WithMedia(id string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.MediaID = id
	}
	return c
}

// WithTrace returns a copy carrying OpenTelemetry identifiers.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs is the time since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}

// withContextFields prepends the LogContext fields of ctx to args.
func withContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	out := make([]any, 0, 14+len(args))
	if lc.TraceID != "" {
		out = append(out, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		out = append(out, KeySpanID, lc.SpanID)
	}
	if lc.ConnID != 0 {
		out = append(out, KeyConnID, lc.ConnID)
	}
	if lc.Client != "" {
		out = append(out, KeyClient, lc.Client)
	}
	if lc.Method != "" {
		out = append(out, KeyMethod, lc.Method)
	}
	if lc.Path != "" {
		out = append(out, KeyPath, lc.Path)
	}
	if lc.MediaID != "" {
		out = append(out, KeyMediaID, lc.MediaID)
	}
	return append(out, args...)
}
