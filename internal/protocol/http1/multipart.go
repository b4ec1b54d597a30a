package http1

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/marmos91/mediaforge/pkg/buffer"
)

// multipartGrammar handles multipart/form-data bodies carrying one file
// part, optionally preceded by text parts.
//
// File bytes are never held across calls: whatever is buffered and is not
// the closing boundary is written to the sink immediately. A closing
// boundary split across two reads is therefore not recognised and lands in
// the file as data.
type multipartGrammar struct{}

func (multipartGrammar) pending() Outcome { return UploadStreaming }
func (multipartGrammar) done() Outcome { return UploadComplete }
func (multipartGrammar) failure() Outcome { return UploadFailed }

func (multipartGrammar) advance(r *Request, buf *buffer.Buffer) (bool, error) {
	switch r.state {
	case StateBodyStart:
		line, ok, err := r.nextLine(buf)
		if err != nil || !ok {
			return false, err
		}
		if line != r.openMarker {
			return false, fmt.Errorf("%w: expected %q, got %q", ErrMalformedMultipart, r.openMarker, truncate(line, 64))
		}
		r.state = StateBodyData
		return true, nil

	case StateBodyData:
		if r.inFilePart {
			return r.streamFile(buf)
		}
		return r.partLine(buf)

	case StateBodyEnd:
		return r.endBody(buf)
	}
	return false, nil
}

func isMultipart(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "multipart/")
}

// boundaryParam extracts the boundary parameter, surrounding quotes removed.
func boundaryParam(contentType string) string {
	_, params, ok := strings.Cut(contentType, ";")
	if !ok {
		return ""
	}
	v, _ := param(params, "boundary")
	return v
}

// param finds key=value in a ';' separated parameter list. Keys match
// case-insensitively; quotes around the value are stripped.
func param(params, key string) (string, bool) {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), key) {
			continue
		}
		v = strings.TrimSpace(v)
		if len(v) >= 2 && v[0] == '"' {
			if end := strings.LastIndexByte(v, '"'); end > 0 {
				v = v[1:end]
			}
		}
		return v, true
	}
	return "", false
}

// partLine consumes one line of part headers or of a text part's value.
func (r *Request) partLine(buf *buffer.Buffer) (bool, error) {
	line, ok, err := r.nextLine(buf)
	if err != nil || !ok {
		return false, err
	}

	switch {
	case line == r.closeMarker:
		r.flushTextPart()
		r.state = StateBodyEnd
	case line == r.openMarker:
		r.flushTextPart()
		r.isFilePart = false
		r.partName = ""
	case r.inText:
		r.textBytes += len(line) + 2
		if r.textBytes > r.opts.MaxFormBytes {
			return false, ErrBodyTooLarge
		}
		r.partValue = append(r.partValue, line)
	case line == "":
		if !r.isFilePart {
			r.inText = true
			break
		}
		if err := r.openFilePart(); err != nil {
			return false, err
		}
	default:
		r.partHeader(line)
	}
	return true, nil
}

func (r *Request) partHeader(line string) {
	name, value, ok := strings.Cut(line, ":")
	if !ok || !strings.EqualFold(strings.TrimSpace(name), "content-disposition") {
		return
	}
	_, params, _ := strings.Cut(value, ";")
	if fn, ok := param(params, "filename"); ok {
		r.isFilePart = true
		r.filename = fn
	}
	if n, ok := param(params, "name"); ok {
		r.partName = n
	}
}

func (r *Request) flushTextPart() {
	if r.inText && r.partName != "" {
		r.form[r.partName] = strings.Join(r.partValue, "\r\n")
	}
	r.inText = false
	r.partValue = r.partValue[:0]
}

func (r *Request) openFilePart() error {
	if r.filename == "" {
		return fmt.Errorf("%w: file part without filename", ErrMalformedMultipart)
	}
	if r.opts.OpenSink == nil {
		return ErrNoSink
	}
	sink, err := r.opts.OpenSink(r.filename)
	if err != nil {
		return fmt.Errorf("open sink for %q: %w", r.filename, err)
	}
	r.sink = sink
	r.inFilePart = true
	return nil
}

// streamFile writes buffered file bytes to the sink. The file ends two bytes
// before a closing boundary that directly follows CRLF.
func (r *Request) streamFile(buf *buffer.Buffer) (bool, error) {
	data := buf.Peek()
	if len(data) == 0 {
		return false, nil
	}

	if end := closingBoundary(data, r.closeMarker); end >= 0 {
		if err := r.writeSink(data[:end]); err != nil {
			return false, err
		}
		buf.Retrieve(end + 2 + len(r.closeMarker))
		r.inFilePart = false
		if err := r.closeSink(); err != nil {
			return false, fmt.Errorf("close upload sink: %w", err)
		}
		r.uploadDone = true
		r.state = StateFinish
		return true, nil
	}

	if err := r.writeSink(data); err != nil {
		return false, err
	}
	buf.RetrieveAll()
	return true, nil
}

// closingBoundary returns the offset of the CRLF preceding the first
// occurrence of marker that has one, or -1.
func closingBoundary(data []byte, marker string) int {
	m := []byte(marker)
	from := 0
	for {
		i := bytes.Index(data[from:], m)
		if i < 0 {
			return -1
		}
		at := from + i
		if at >= 2 && data[at-2] == '\r' && data[at-1] == '\n' {
			return at - 2
		}
		from = at + 1
	}
}

func (r *Request) writeSink(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := r.sink.Write(p)
	r.received += int64(n)
	if err != nil {
		return fmt.Errorf("write upload sink: %w", err)
	}
	return nil
}

// endBody consumes the CRLF trailing the closing boundary, if buffered.
func (r *Request) endBody(buf *buffer.Buffer) (bool, error) {
	if data := buf.Peek(); len(data) >= 2 && data[0] == '\r' && data[1] == '\n' {
		buf.Retrieve(2)
	}
	if err := r.closeSink(); err != nil {
		return false, fmt.Errorf("close upload sink: %w", err)
	}
	r.state = StateFinish
	return true, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
