package web

import "github.com/marmos91/mediaforge/internal/netpoll"

// ErrWouldBlock is returned by a Transport that cannot make progress until
// the socket is ready again.
var ErrWouldBlock = netpoll.ErrWouldBlock

// Transport is the non-blocking byte stream under a Conn.
//
// Read follows io.Reader, with ErrWouldBlock when no data is available and
// io.EOF on an orderly peer close. Writev writes the segments in order and
// returns how many bytes the peer accepted, with ErrWouldBlock once the
// send buffer is full.
type Transport interface {
	Read(p []byte) (int, error)
	Writev(iov [][]byte) (int, error)
	Close() error
}

// shutdowner is implemented by transports that can be half-closed without
// releasing the descriptor; idle eviction relies on it.
type shutdowner interface {
	Shutdown() error
}
