// Package web serves the media ingest HTTP/1.x front end.
//
// A Conn is the per-connection engine: it drains its Transport into a read
// buffer, feeds the resumable http1.Request parser, queues a response as a
// header segment plus an optional mapped file segment, and flushes both
// with vectored writes that resume from partial offsets. A Conn never
// blocks and holds no locks; the Adapter guarantees that at most one worker
// drives a given Conn at a time.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/mediaforge/internal/logger"
	"github.com/marmos91/mediaforge/internal/protocol/http1"
	"github.com/marmos91/mediaforge/internal/telemetry"
	"github.com/marmos91/mediaforge/pkg/buffer"
	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/metrics"
	"github.com/marmos91/mediaforge/pkg/pathsafe"
	"github.com/marmos91/mediaforge/pkg/transcode"
)

// Action tells the event loop what a Conn waits for next.
type Action uint8

const (
	// ActionRead re-arms the connection for readability.
	ActionRead Action = iota
	// ActionWrite arms the connection for writability; output is queued.
	ActionWrite
	// ActionClose tears the connection down.
	ActionClose
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionClose:
		return "close"
	}
	return "unknown"
}

// Submitter accepts transcode jobs without blocking. *transcode.Pipeline
// implements it.
type Submitter interface {
	Submit(job transcode.Job) error
}

// Authenticator checks and registers form credentials. *account.Service
// implements it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, password string) error
}

// Deps are the collaborators shared by every connection of an adapter.
// Any of them may be nil.
type Deps struct {
	Lookup   *media.Lookup
	Pipeline Submitter
	Metrics  metrics.HTTPMetrics
	Accounts Authenticator
}

// Pages involved in form authentication.
const (
	loginPage    = "/login.html"
	registerPage = "/register.html"
	welcomePage  = "/welcome.html"
	errorPage    = "/error.html"
)

// segment is one output region and how much of it the peer has taken.
type segment struct {
	data []byte
	off  int
}

func (s *segment) remaining() []byte { return s.data[s.off:] }
func (s *segment) len() int { return len(s.data) - s.off }

// consume advances over up to n bytes and returns what is left of n.
func (s *segment) consume(n int) int {
	k := min(n, s.len())
	s.off += k
	return n - k
}

type uploadAck struct {
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
}

// Conn drives one client connection.
type Conn struct {
	id   uint64
	addr string
	t    Transport
	cfg  *Config
	deps *Deps
	lc   *logger.LogContext

	readBuf  *buffer.Buffer
	writeBuf *buffer.Buffer
	req      *http1.Request
	resp     http1.Response

	// out[0] is the header block in writeBuf, out[1] the mapped file body.
	out [2]segment
	iov [][]byte

	keepAlive bool
	status    int
	ackSent   bool
	started   time.Time
	upload    *uploadSink
	span      trace.Span // open while an upload streams
	closed    bool

	lastActive atomic.Int64
	idle       atomic.Bool
}

// NewConn wires a connection to its transport. cfg must have defaults
// applied; deps may be nil.
func NewConn(id uint64, addr string, t Transport, cfg *Config, deps *Deps) *Conn {
	if deps == nil {
		deps = &Deps{}
	}
	c := &Conn{
		id:       id,
		addr:     addr,
		t:        t,
		cfg:      cfg,
		deps:     deps,
		lc:       logger.NewLogContext(id, addr),
		readBuf:  buffer.New(),
		writeBuf: buffer.New(),
		iov:      make([][]byte, 0, 2),
	}
	c.req = http1.NewRequest(cfg.parserOptions(c.openSink))
	c.touch()
	c.idle.Store(true)
	return c
}

func (c *Conn) ID() uint64         { return c.id }
func (c *Conn) RemoteAddr() string { return c.addr }

// LastActive is the time of the last successful read or write.
func (c *Conn) LastActive() time.Time { return time.Unix(0, c.lastActive.Load()) }

// Idle reports whether the connection sits between requests with nothing
// queued. Safe to call from any goroutine.
func (c *Conn) Idle() bool { return c.idle.Load() }

// Pending is the number of queued output bytes not yet accepted by the peer.
func (c *Conn) Pending() int { return c.out[0].len() + c.out[1].len() }

func (c *Conn) touch() { c.lastActive.Store(time.Now().UnixNano()) }

// streaming reports a multipart body still in flight.
func (c *Conn) streaming() bool {
	return c.req.Multipart() && c.req.Err() == nil && c.req.State() != http1.StateFinish
}

func (c *Conn) updateIdle() {
	c.idle.Store(c.Pending() == 0 && (c.started.IsZero() || c.req.State() == http1.StateFinish))
}

// Read drains the transport into the read buffer. Level-triggered
// connections read once; edge-triggered ones read until the transport
// would block. The error is io.EOF when the peer closed its sending half
// and nil when the transport merely has nothing more to give.
func (c *Conn) Read() (int, error) {
	total := 0
	defer func() {
		if total > 0 {
			c.touch()
			c.idle.Store(false)
			if c.deps.Metrics != nil {
				c.deps.Metrics.RecordBytesTransferred("read", int64(total))
			}
		}
	}()

	for {
		n, err := c.readBuf.AppendFrom(c.t)
		total += n
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				return total, nil
			}
			return total, err
		}
		if !c.cfg.EdgeTriggered {
			return total, nil
		}
	}
}

// Process parses whatever the read buffer holds and decides the next step.
// The read buffer is always empty afterwards: the parser keeps partial
// lines and body bytes in the Request, never in the buffer.
func (c *Conn) Process(ctx context.Context) Action {
	defer c.updateIdle()

	if c.req.State() == http1.StateFinish || c.req.Err() != nil {
		c.nextRequest()
	}
	if c.readBuf.ReadableBytes() == 0 {
		return ActionRead
	}
	if c.started.IsZero() {
		c.started = time.Now()
	}

	outcome, err := c.req.Parse(c.readBuf)
	c.readBuf.RetrieveAll()

	ctx = logger.WithContext(ctx, c.lc.WithRequest(c.req.Method(), c.req.Path()))

	switch outcome {
	case http1.NeedMore:
		return ActionRead

	case http1.Complete:
		return c.respond(ctx)

	case http1.Malformed:
		logger.DebugCtx(ctx, "Malformed request", logger.KeyError, err)
		c.keepAlive = false
		c.resp.InitError(c.cfg.SrcDir, http1.StatusBadRequest, false)
		return c.queueResponse()

	case http1.UploadStreaming:
		c.startUploadSpan(ctx)
		if !c.ackSent {
			return c.queueAck()
		}
		return ActionRead

	case http1.UploadComplete:
		c.startUploadSpan(ctx)
		c.completeUpload(ctx)
		if !c.ackSent {
			return c.queueAck()
		}
		c.recordRequest(http1.StatusOK)
		if c.keepAlive {
			return ActionRead
		}
		return ActionClose

	case http1.UploadFailed:
		c.failUpload(ctx, err)
		if !c.ackSent {
			c.keepAlive = false
			c.resp.InitError(c.cfg.SrcDir, http1.StatusBadRequest, false)
			return c.queueResponse()
		}
		return ActionClose
	}

	return ActionClose
}

func (c *Conn) nextRequest() {
	c.req.Reset()
	c.ackSent = false
	c.upload = nil
	c.started = time.Time{}
	c.status = 0
}

// respond builds the reply to a classic request. Paths naming a media
// identifier are resolved through the media lookup; everything else is a
// static resource under SrcDir.
func (c *Conn) respond(ctx context.Context) Action {
	c.keepAlive = c.req.IsKeepAlive()
	resource := c.req.ResourcePath()

	ctx, span := telemetry.StartHTTPSpan(ctx, c.req.Method(), resource,
		telemetry.ConnID(c.id), telemetry.ClientAddr(c.addr), telemetry.KeepAlive(c.keepAlive))
	defer span.End()
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithTrace(telemetry.IDs(ctx)))

	resource = c.authenticate(ctx, resource)

	if _, _, ok := media.ExtractID(resource); ok && c.deps.Lookup != nil {
		c.resolveMedia(ctx, resource)
	} else {
		c.resp.InitResource(c.cfg.SrcDir, resource, c.keepAlive, 0)
	}

	action := c.queueResponse()
	span.SetAttributes(telemetry.HTTPStatus(c.status))
	return action
}

// authenticate handles a form POST to the login or register page: the
// username and password fields are checked (or registered) and the reply
// becomes the welcome page on success or the error page otherwise.
func (c *Conn) authenticate(ctx context.Context, resource string) string {
	if c.deps.Accounts == nil || c.req.Method() != "POST" || !c.req.FormEncoded() {
		return resource
	}

	username, password := c.req.FormValue("username"), c.req.FormValue("password")
	var err error
	switch resource {
	case loginPage:
		err = c.deps.Accounts.Login(ctx, username, password)
	case registerPage:
		err = c.deps.Accounts.Register(ctx, username, password)
	default:
		return resource
	}

	if err != nil {
		logger.InfoCtx(ctx, "Form authentication rejected", logger.KeyUser, username, logger.KeyError, err)
		return errorPage
	}
	logger.DebugCtx(ctx, "Form authentication accepted", logger.KeyUser, username)
	return welcomePage
}

func (c *Conn) resolveMedia(ctx context.Context, resource string) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanMediaLookup)
	defer span.End()

	res, ok, err := c.deps.Lookup.Resolve(ctx, resource)
	if res.MediaID != "" {
		span.SetAttributes(telemetry.MediaID(res.MediaID))
	}

	switch {
	case errors.Is(err, pathsafe.ErrEscapesRoot):
		c.resp.InitError(c.cfg.SrcDir, http1.StatusForbidden, c.keepAlive)
	case errors.Is(err, pathsafe.ErrUnsafeInput):
		c.resp.InitError(c.cfg.SrcDir, http1.StatusBadRequest, c.keepAlive)
	case err != nil:
		logger.WarnCtx(ctx, "Media lookup failed", logger.KeyMediaID, res.MediaID, logger.KeyError, err)
		telemetry.RecordError(ctx, err)
		c.resp.InitError(c.cfg.SrcDir, http1.StatusNotFound, c.keepAlive)
	case !ok:
		c.resp.InitError(c.cfg.SrcDir, http1.StatusNotFound, c.keepAlive)
	default:
		c.resp.InitFile(c.cfg.SrcDir, res.File, c.keepAlive)
	}
}

// queueResponse renders the prepared response into the output segments.
func (c *Conn) queueResponse() Action {
	c.resp.Build(c.writeBuf)
	c.status = c.resp.Code()
	c.out = [2]segment{{data: c.writeBuf.Peek()}, {data: c.resp.File()}}
	return ActionWrite
}

// queueAck answers a multipart request as soon as its headers are consumed,
// whether or not the body has finished streaming. It is sent once per
// request.
func (c *Conn) queueAck() Action {
	c.ackSent = true
	c.keepAlive = c.req.IsKeepAlive()

	// Cannot fail: string fields only.
	body, _ := json.Marshal(uploadAck{Status: "accepted", Filename: c.req.Filename()})
	http1.WriteInline(c.writeBuf, http1.StatusOK, c.keepAlive, "application/json", body)
	c.status = http1.StatusOK
	c.out = [2]segment{{data: c.writeBuf.Peek()}, {}}
	return ActionWrite
}

// Write flushes queued output with vectored writes, resuming from the
// per-segment offsets left by earlier calls. It keeps writing while the
// connection is edge-triggered or more than WriteThreshold bytes remain,
// and stops once both segments are flushed. ErrWouldBlock means output
// remains and the caller should wait for writability; any other error is
// fatal for the connection.
func (c *Conn) Write() (int, error) {
	total := 0
	var err error

	for c.Pending() > 0 {
		c.iov = c.iov[:0]
		for i := range c.out {
			if c.out[i].len() > 0 {
				c.iov = append(c.iov, c.out[i].remaining())
			}
		}

		var n int
		n, err = c.t.Writev(c.iov)
		if n > 0 {
			total += n
			c.advance(n)
		}
		if err != nil || n == 0 {
			break
		}
		if !c.cfg.EdgeTriggered && c.Pending() <= c.cfg.WriteThreshold.Int() {
			break
		}
	}

	if total > 0 {
		c.touch()
		if c.deps.Metrics != nil {
			c.deps.Metrics.RecordBytesTransferred("write", int64(total))
		}
	}
	if c.Pending() == 0 {
		c.finishResponse()
	}
	c.updateIdle()
	return total, err
}

// advance marks n written bytes as acknowledged, header segment first.
func (c *Conn) advance(n int) {
	n = c.out[0].consume(n)
	c.out[1].consume(n)
}

func (c *Conn) finishResponse() {
	c.out = [2]segment{}
	c.writeBuf.RetrieveAll()
	if err := c.resp.Release(); err != nil {
		logger.Debug("Unmap response body failed", logger.KeyConnID, c.id, logger.KeyError, err)
	}
	if c.status != 0 && !c.streaming() {
		c.recordRequest(c.status)
	}
}

func (c *Conn) recordRequest(status int) {
	if c.deps.Metrics != nil && !c.started.IsZero() {
		c.deps.Metrics.RecordRequest(c.req.Method(), status, time.Since(c.started))
	}
	c.status = 0
}

// AfterWrite decides what follows a fully flushed response: more upload
// body, the next keep-alive request, or teardown.
func (c *Conn) AfterWrite() Action {
	switch {
	case c.Pending() > 0:
		return ActionWrite
	case c.streaming():
		return ActionRead
	case c.keepAlive && c.req.Err() == nil:
		return ActionRead
	}
	return ActionClose
}

// openSink is the parser's SinkOpener for file parts.
func (c *Conn) openSink(filename string) (http1.Sink, error) {
	sink, err := openUpload(c.cfg.UploadDir, filename)
	if err != nil {
		return nil, err
	}
	c.upload = sink
	logger.Debug("Upload started", logger.KeyConnID, c.id, logger.KeyFilename, filename)
	return sink, nil
}

func (c *Conn) startUploadSpan(ctx context.Context) {
	if c.span != nil {
		return
	}
	_, c.span = telemetry.StartSpan(ctx, telemetry.SpanHTTPUpload,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(telemetry.ConnID(c.id), telemetry.ClientAddr(c.addr)))
}

func (c *Conn) endUploadSpan(err error) {
	if c.span == nil {
		return
	}
	c.span.SetAttributes(telemetry.Filename(c.req.Filename()), telemetry.SizeBytes(c.req.Received()))
	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}
	c.span.End()
	c.span = nil
}

// completeUpload runs the post-processing trigger: at most once per
// completed upload it synthesizes a media identifier and hands a transcode
// job to the pipeline. It never blocks and its failures are only logged.
func (c *Conn) completeUpload(ctx context.Context) {
	defer c.endUploadSpan(nil)

	if !c.req.ClaimPostProcessing() {
		return
	}

	size := c.req.Received()
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordUpload("complete", size)
	}
	if c.upload == nil {
		return
	}

	checksum := c.upload.Checksum()
	logger.InfoCtx(ctx, "Upload complete",
		logger.KeyFilename, c.req.Filename(), logger.KeyBytes, size, logger.KeyChecksum, checksum)

	if c.deps.Pipeline == nil {
		logger.DebugCtx(ctx, "Transcoding disabled, upload kept as is", logger.KeyInput, c.upload.path)
		return
	}

	id := media.NewID(time.Now())
	output, err := pathsafe.Join(c.cfg.HLSDir, id+"_out")
	if err != nil {
		logger.WarnCtx(ctx, "Invalid transcode output path", logger.KeyMediaID, id, logger.KeyError, err)
		return
	}

	job := transcode.Job{
		ID:           uuid.New(),
		MediaID:      id,
		OriginalName: c.req.Filename(),
		InputPath:    c.upload.path,
		OutputDir:    output.String(),
		SizeBytes:    size,
		Checksum:     checksum,
		SubmittedAt:  time.Now(),
	}
	if err := c.deps.Pipeline.Submit(job); err != nil {
		logger.WarnCtx(ctx, "Transcode submit failed",
			logger.KeyMediaID, id, logger.KeyJobID, job.ID.String(), logger.KeyError, err)
		return
	}
	logger.InfoCtx(ctx, "Transcode queued",
		logger.KeyMediaID, id, logger.KeyJobID, job.ID.String(), logger.KeyOutput, job.OutputDir)
}

func (c *Conn) failUpload(ctx context.Context, err error) {
	logger.WarnCtx(ctx, "Upload aborted",
		logger.KeyFilename, c.req.Filename(), logger.KeyBytes, c.req.Received(), logger.KeyError, err)
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordUpload("failed", c.req.Received())
	}
	c.endUploadSpan(err)
}

// Close releases the buffers, the mapped response body, any open upload
// file, and the transport. It is safe to call more than once.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.idle.Store(false)

	if c.streaming() {
		c.failUpload(logger.WithContext(context.Background(), c.lc), io.ErrUnexpectedEOF)
	}
	if err := c.req.Close(); err != nil {
		logger.Debug("Close upload sink failed", logger.KeyConnID, c.id, logger.KeyError, err)
	}
	if err := c.resp.Release(); err != nil {
		logger.Debug("Unmap response body failed", logger.KeyConnID, c.id, logger.KeyError, err)
	}
	c.out = [2]segment{}
	c.readBuf.Release()
	c.writeBuf.Release()

	return c.t.Close()
}
