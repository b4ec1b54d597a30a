//go:build linux

package netpoll

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"
)

// FDTransport performs non-blocking reads and vectored writes on a socket
// descriptor. EAGAIN surfaces as ErrWouldBlock and EINTR is retried.
type FDTransport struct {
	fd     int
	remote string
}

// NewFDTransport wraps an already non-blocking descriptor.
func NewFDTransport(fd int, remote string) *FDTransport {
	return &FDTransport{fd: fd, remote: remote}
}

func (t *FDTransport) FD() int { return t.fd }
func (t *FDTransport) RemoteAddr() string { return t.remote }

// Read reads once. A zero-byte read is reported as io.EOF.
func (t *FDTransport) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(t.fd, p)
		switch {
		case err == nil:
			if n == 0 && len(p) > 0 {
				return 0, io.EOF
			}
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, ErrWouldBlock
		default:
			return 0, err
		}
	}
}

// Writev writes the segments in one writev(2) call.
func (t *FDTransport) Writev(iov [][]byte) (int, error) {
	for {
		n, err := unix.Writev(t.fd, iov)
		if n < 0 {
			n = 0
		}
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return n, ErrWouldBlock
		default:
			return n, err
		}
	}
}

// Shutdown disables both directions without releasing the descriptor, so
// the owner still observes a hangup and closes it.
func (t *FDTransport) Shutdown() error {
	return unix.Shutdown(t.fd, unix.SHUT_RDWR)
}

// Close releases the descriptor.
func (t *FDTransport) Close() error {
	return unix.Close(t.fd)
}
