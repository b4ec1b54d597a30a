package web

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"

	"github.com/marmos91/mediaforge/pkg/pathsafe"
)

// uploadSink streams a file part to disk and hashes it on the way.
// A partially written file is left in place if the upload is aborted.
type uploadSink struct {
	path    string
	f       *os.File
	h       *blake3.Hasher
	written int64
	closed  bool
}

// openUpload creates dir/filename. The client-supplied name must pass the
// path allow-list and stay inside dir.
func openUpload(dir, filename string) (*uploadSink, error) {
	if filename == "" {
		return nil, fmt.Errorf("upload without filename: %w", pathsafe.ErrUnsafeInput)
	}
	path, err := pathsafe.Join(dir, filename)
	if err != nil {
		return nil, fmt.Errorf("upload %q: %w", filename, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	f, err := os.OpenFile(path.String(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	return &uploadSink{path: path.String(), f: f, h: blake3.New()}, nil
}

func (s *uploadSink) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	_, _ = s.h.Write(p[:n])
	s.written += int64(n)
	return n, err
}

func (s *uploadSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

// Checksum is the hex BLAKE3 digest of the bytes written so far.
func (s *uploadSink) Checksum() string {
	return hex.EncodeToString(s.h.Sum(nil))
}
