package http1

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/marmos91/mediaforge/pkg/buffer"
	"github.com/marmos91/mediaforge/pkg/pathsafe"
)

// Status codes emitted by the server.
const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusInternalServerError = 500
	StatusServiceUnavailable  = 503
)

var statusText = map[int]string{
	StatusOK:                  "OK",
	StatusBadRequest:          "Bad Request",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusInternalServerError: "Internal Server Error",
	StatusServiceUnavailable:  "Service Unavailable",
}

// StatusText returns the reason phrase for code.
func StatusText(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return "Unknown"
}

// Response assembles the header block of one reply into a write buffer and
// exposes the body file as a separate read-only mapping, so that file bytes
// are never copied into the header buffer.
type Response struct {
	code      int
	keepAlive bool
	srcDir    string
	file      string // absolute or srcDir-relative path of the body

	mapped []byte
	unmap  func() error
}

// InitResource prepares a reply serving resource (a request path such as
// "/index.html") from srcDir. code 0 means "200 if the resource is servable".
// Resources with bytes outside the path allow-list are answered with 400,
// resources climbing out of srcDir with 403.
func (r *Response) InitResource(srcDir, resource string, keepAlive bool, code int) {
	file, err := pathsafe.Join(srcDir, resource)
	switch {
	case errors.Is(err, pathsafe.ErrEscapesRoot):
		r.InitError(srcDir, StatusForbidden, keepAlive)
	case err != nil:
		r.InitError(srcDir, StatusBadRequest, keepAlive)
	default:
		r.init(srcDir, file.String(), keepAlive, code)
	}
}

// InitFile prepares a reply serving an already resolved file path. Error
// pages are still looked up in srcDir.
func (r *Response) InitFile(srcDir, file string, keepAlive bool) {
	r.init(srcDir, file, keepAlive, StatusOK)
}

// InitError prepares an error reply; the body is srcDir/<code>.html when
// present, else a generated page.
func (r *Response) InitError(srcDir string, code int, keepAlive bool) {
	r.init(srcDir, "", keepAlive, code)
}

func (r *Response) init(srcDir, file string, keepAlive bool, code int) {
	_ = r.Release()
	if code == 0 {
		code = StatusOK
	}
	*r = Response{code: code, keepAlive: keepAlive, srcDir: srcDir, file: file}
}

// Code is the status that Build settled on.
func (r *Response) Code() int { return r.code }

// File returns the mapped body, nil when the body is inline or empty.
func (r *Response) File() []byte { return r.mapped }

// FileLen is len(File()).
func (r *Response) FileLen() int { return len(r.mapped) }

// Release unmaps the body file. Safe to call repeatedly.
func (r *Response) Release() error {
	if r.unmap == nil {
		return nil
	}
	fn := r.unmap
	r.unmap = nil
	r.mapped = nil
	return fn()
}

// Build writes the status line and headers to buf, and maps the body file.
// A missing resource turns into 404, an unreadable one into 403.
func (r *Response) Build(buf *buffer.Buffer) {
	if r.code == StatusOK {
		r.code = checkServable(r.file)
	}
	if r.code != StatusOK {
		r.file = r.errorPage()
	}

	if r.file != "" {
		data, unmap, err := mapFile(r.file)
		if err == nil {
			r.mapped, r.unmap = data, unmap
			r.writeHead(buf, ContentType(r.file), len(data))
			return
		}
		if r.code == StatusOK {
			r.code = StatusNotFound
		}
	}

	r.writeInlineError(buf)
}

// checkServable stats the file: directories and missing files are 404,
// files without world-read permission are 403.
func checkServable(file string) int {
	if file == "" {
		return StatusNotFound
	}
	st, err := os.Stat(file)
	if err != nil || st.IsDir() {
		return StatusNotFound
	}
	if st.Mode().Perm()&0o004 == 0 {
		return StatusForbidden
	}
	return StatusOK
}

func (r *Response) errorPage() string {
	if r.srcDir == "" {
		return ""
	}
	page := filepath.Join(r.srcDir, strconv.Itoa(r.code)+".html")
	st, err := os.Stat(page)
	if err != nil || st.IsDir() {
		return ""
	}
	return page
}

func (r *Response) writeHead(buf *buffer.Buffer, contentType string, length int) {
	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\n", r.code, StatusText(r.code))
	if r.keepAlive {
		buf.AppendString("Connection: keep-alive\r\n")
		buf.AppendString("keep-alive: max=6, timeout=120\r\n")
	} else {
		buf.AppendString("Connection: close\r\n")
	}
	fmt.Fprintf(buf, "Content-type: %s\r\n", contentType)
	fmt.Fprintf(buf, "Content-length: %d\r\n\r\n", length)
}

func (r *Response) writeInlineError(buf *buffer.Buffer) {
	body := fmt.Sprintf("<html><title>Error</title><body bgcolor=\"ffffff\">%d : %s\n<p>%s</p><hr><em>mediaforge</em></body></html>",
		r.code, StatusText(r.code), errorMessage(r.code))
	r.writeHead(buf, "text/html", len(body))
	buf.AppendString(body)
}

func errorMessage(code int) string {
	switch code {
	case StatusBadRequest:
		return "The request could not be parsed."
	case StatusForbidden:
		return "Access to this resource is denied."
	case StatusNotFound:
		return "File not found."
	}
	return "The server could not complete the request."
}

// WriteInline writes a complete reply whose body is small enough to live in
// the header buffer, such as the JSON acknowledgment of an upload.
func WriteInline(buf *buffer.Buffer, code int, keepAlive bool, contentType string, body []byte) {
	r := Response{code: code, keepAlive: keepAlive}
	r.writeHead(buf, contentType, len(body))
	buf.Append(body)
}
