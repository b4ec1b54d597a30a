// Package http1 recognises the HTTP/1.x requests served by mediaforge and
// assembles their responses.
//
// A Request is a resumable state machine fed from a connection's read
// buffer. The request line and header block share one grammar; once the
// headers end, the body grammar is chosen from the declared content type:
// classic (content-length bytes, optionally form encoded) or streaming
// multipart, where the file part is written to a Sink as bytes arrive instead
// of being held in memory.
package http1

import (
	"io"
	"strconv"
	"strings"

	"github.com/marmos91/mediaforge/internal/logger"
	"github.com/marmos91/mediaforge/pkg/buffer"
)

const (
	DefaultMaxLineBytes   = 8 << 10
	DefaultMaxHeaderBytes = 64 << 10
	DefaultMaxFormBytes   = 1 << 20
)

// Sink receives the bytes of a streamed file part.
type Sink interface {
	io.Writer
	Close() error
}

// SinkOpener opens the destination for a file part. filename is exactly what
// the client sent; the opener is responsible for sanitising it.
type SinkOpener func(filename string) (Sink, error)

// Options bound the parser. Zero values select the defaults.
type Options struct {
	MaxLineBytes   int
	MaxHeaderBytes int
	MaxFormBytes   int
	OpenSink       SinkOpener
}

func (o *Options) applyDefaults() {
	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = DefaultMaxLineBytes
	}
	if o.MaxHeaderBytes <= 0 {
		o.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if o.MaxFormBytes <= 0 {
		o.MaxFormBytes = DefaultMaxFormBytes
	}
}

// Request holds one request cycle of a connection. It is reused across
// keep-alive cycles through Reset.
type Request struct {
	opts Options

	state   State
	method  string
	path    string
	version string
	headers map[string]string
	form    map[string]string

	grammar     grammar
	carry       []byte // partial line held between Parse calls
	headerBytes int
	err         error

	// classic body
	contentLength int
	body          []byte

	// upload
	boundary      string
	openMarker    string
	closeMarker   string
	inFilePart    bool
	isFilePart    bool
	partName      string
	partValue     []string
	textBytes     int // text part bytes held, bounded by MaxFormBytes
	inText        bool
	sink          Sink
	received      int64
	filename      string
	uploadDone    bool
	postProcessed bool
}

// NewRequest returns a request ready to parse its first line.
func NewRequest(opts Options) *Request {
	opts.applyDefaults()
	r := &Request{opts: opts}
	r.Reset()
	return r
}

// Reset prepares the request for the next cycle. An open sink is closed.
func (r *Request) Reset() {
	if err := r.closeSink(); err != nil {
		logger.Debug("http1: sink close on reset failed", logger.KeyError, err)
	}
	opts := r.opts
	carry := r.carry[:0]
	*r = Request{
		opts:    opts,
		state:   StateRequestLine,
		headers: make(map[string]string),
		form:    make(map[string]string),
		carry:   carry,
	}
}

// Close releases the file sink, if any. It is safe to call repeatedly.
func (r *Request) Close() error {
	return r.closeSink()
}

func (r *Request) closeSink() error {
	if r.sink == nil {
		return nil
	}
	s := r.sink
	r.sink = nil
	return s.Close()
}

func (r *Request) State() State { return r.state }
func (r *Request) Method() string { return r.method }
func (r *Request) Path() string { return r.path }
func (r *Request) Version() string { return r.version }
func (r *Request) Err() error { return r.err }
func (r *Request) Multipart() bool { return r.boundary != "" }
func (r *Request) Boundary() string { return r.boundary }
func (r *Request) Filename() string { return r.filename }
func (r *Request) Received() int64 { return r.received }
func (r *Request) InFilePart() bool { return r.inFilePart }
func (r *Request) ContentLength() int { return r.contentLength }

// ResourcePath is Path without its query string.
func (r *Request) ResourcePath() string {
	if i := strings.IndexByte(r.path, '?'); i >= 0 {
		return r.path[:i]
	}
	return r.path
}

// Header returns the value of a header; name is matched case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.headers[strings.ToLower(name)]
	return v, ok
}

// Headers exposes the header mapping (keys lowercased).
func (r *Request) Headers() map[string]string { return r.headers }

// Form exposes decoded form fields: classic urlencoded bodies and the text
// parts of a multipart upload.
func (r *Request) Form() map[string]string { return r.form }

// FormValue returns one form field.
func (r *Request) FormValue(key string) string { return r.form[key] }

// IsKeepAlive reports whether the client asked for a persistent HTTP/1.1
// connection.
func (r *Request) IsKeepAlive() bool {
	v, ok := r.headers["connection"]
	return ok && strings.EqualFold(v, "keep-alive") && r.version == "1.1"
}

// UploadCompleted reports whether a file part was streamed through to its
// closing boundary and its sink closed cleanly.
func (r *Request) UploadCompleted() bool { return r.uploadDone }

// PostProcessed reports whether ClaimPostProcessing has already succeeded
// for this upload.
func (r *Request) PostProcessed() bool { return r.postProcessed }

// ClaimPostProcessing returns true exactly once per completed upload. Later
// calls, and calls for requests without a completed file, return false.
func (r *Request) ClaimPostProcessing() bool {
	if !r.uploadDone || r.postProcessed {
		return false
	}
	r.postProcessed = true
	return true
}

// ============================================================================
// Path namespace
// ============================================================================

// IndexResource is served for "/".
const IndexResource = "/index.html"

var htmlPages = map[string]struct{}{
	"/index":    {},
	"/register": {},
	"/login":    {},
	"/welcome":  {},
	"/video":    {},
	"/picture":  {},
}

// NormalizePath maps "" and "/" to IndexResource and appends ".html" to the
// known bare page names. Every other path is returned unchanged.
func NormalizePath(p string) string {
	if p == "" || p == "/" {
		return IndexResource
	}
	if _, ok := htmlPages[p]; ok {
		return p + ".html"
	}
	return p
}

// ============================================================================
// Parsing
// ============================================================================

// grammar consumes the message body once the header block has ended.
type grammar interface {
	// advance consumes what it can from buf and reports whether it made
	// progress. A non-nil error aborts the request.
	advance(r *Request, buf *buffer.Buffer) (bool, error)
	// pending is the outcome while the body is incomplete.
	pending() Outcome
	// done is the outcome once the request reaches StateFinish.
	done() Outcome
	// failure is the outcome paired with an error.
	failure() Outcome
}

// Parse consumes bytes from buf and advances the state machine as far as
// the buffered input allows. The returned error is non-nil only with a
// failure outcome.
func (r *Request) Parse(buf *buffer.Buffer) (Outcome, error) {
	if r.err != nil {
		return r.failOutcome(), r.err
	}

	for {
		switch r.state {
		case StateRequestLine, StateHeaders:
			line, ok, err := r.nextLine(buf)
			if err != nil {
				return r.fail(err)
			}
			if !ok {
				return NeedMore, nil
			}
			if err := r.headLine(line); err != nil {
				return r.fail(err)
			}

		case StateFinish:
			return r.grammar.done(), nil

		default:
			progressed, err := r.grammar.advance(r, buf)
			if err != nil {
				return r.fail(err)
			}
			if r.state == StateFinish {
				continue
			}
			if !progressed {
				return r.grammar.pending(), nil
			}
		}
	}
}

func (r *Request) fail(err error) (Outcome, error) {
	r.err = err
	if cerr := r.closeSink(); cerr != nil {
		logger.Debug("http1: sink close after failure", logger.KeyError, cerr)
	}
	return r.failOutcome(), err
}

func (r *Request) failOutcome() Outcome {
	if r.grammar != nil {
		return r.grammar.failure()
	}
	return Malformed
}

// nextLine returns the next CRLF-terminated line without its terminator.
// Bytes of an unterminated line are moved out of buf into r.carry so the
// caller can always drain the buffer.
func (r *Request) nextLine(buf *buffer.Buffer) (string, bool, error) {
	data := buf.Peek()

	if n := len(r.carry); n > 0 && r.carry[n-1] == '\r' && len(data) > 0 && data[0] == '\n' {
		line := string(r.carry[:n-1])
		r.carry = r.carry[:0]
		buf.Retrieve(1)
		return line, true, r.countHeader(len(line) + 2)
	}

	idx := buf.IndexCRLF()
	if idx < 0 {
		if len(r.carry)+len(data) > r.opts.MaxLineBytes {
			return "", false, ErrLineTooLong
		}
		r.carry = append(r.carry, data...)
		buf.RetrieveAll()
		return "", false, nil
	}

	var line string
	if len(r.carry) > 0 {
		line = string(r.carry) + string(data[:idx])
		r.carry = r.carry[:0]
	} else {
		line = string(data[:idx])
	}
	buf.Retrieve(idx + 2)

	if len(line) > r.opts.MaxLineBytes {
		return "", false, ErrLineTooLong
	}
	return line, true, r.countHeader(len(line) + 2)
}

func (r *Request) countHeader(n int) error {
	if r.state != StateRequestLine && r.state != StateHeaders {
		return nil
	}
	r.headerBytes += n
	if r.headerBytes > r.opts.MaxHeaderBytes {
		return ErrHeaderTooLarge
	}
	return nil
}

func (r *Request) headLine(line string) error {
	if r.state == StateRequestLine {
		if err := r.parseRequestLine(line); err != nil {
			return err
		}
		r.state = StateHeaders
		return nil
	}
	if line == "" {
		return r.endHeaders()
	}
	r.parseHeader(line)
	return nil
}

// parseRequestLine splits "METHOD SP PATH SP HTTP/VERSION" on single spaces.
func (r *Request) parseRequestLine(line string) error {
	method, rest, ok := strings.Cut(line, " ")
	if !ok || method == "" {
		return ErrMalformedRequestLine
	}
	path, proto, ok := strings.Cut(rest, " ")
	if !ok || strings.Contains(proto, " ") {
		return ErrMalformedRequestLine
	}
	version, ok := strings.CutPrefix(proto, "HTTP/")
	if !ok || version == "" {
		return ErrMalformedRequestLine
	}

	r.method = method
	r.path = NormalizePath(path)
	r.version = version
	return nil
}

// parseHeader records "name: value". Lines without a colon are ignored.
func (r *Request) parseHeader(line string) {
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	r.headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
}

var bodylessMethods = map[string]struct{}{
	"GET": {}, "HEAD": {}, "OPTIONS": {}, "TRACE": {},
}

// endHeaders selects the body grammar.
func (r *Request) endHeaders() error {
	r.grammar = classicGrammar{}

	if _, ok := bodylessMethods[r.method]; ok {
		r.state = StateFinish
		return nil
	}

	if ct, ok := r.headers["content-type"]; ok && isMultipart(ct) {
		r.grammar = multipartGrammar{}
		boundary := boundaryParam(ct)
		if boundary == "" {
			r.state = StateFinish
			return ErrMissingBoundary
		}
		r.boundary = boundary
		r.openMarker = "--" + boundary
		r.closeMarker = "--" + boundary + "--"
		r.state = StateBodyStart
		return nil
	}

	raw, ok := r.headers["content-length"]
	if !ok {
		r.state = StateFinish
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return ErrMalformedContentLen
	}
	if n > r.opts.MaxFormBytes {
		return ErrBodyTooLarge
	}
	r.contentLength = n
	if n == 0 {
		r.state = StateFinish
		return nil
	}
	r.body = make([]byte, 0, n)
	r.state = StateBody
	return nil
}
