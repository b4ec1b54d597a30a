// Package netpoll is the readiness layer under the web adapter: an epoll
// instance, a raw non-blocking listening socket and a file-descriptor
// transport whose calls return instead of blocking.
//
// Only Linux is supported; on other platforms the constructors fail with
// ErrUnsupported.
package netpoll

import "errors"

var (
	// ErrWouldBlock is returned by non-blocking calls that cannot make
	// progress until the descriptor becomes ready again.
	ErrWouldBlock = errors.New("netpoll: operation would block")

	// ErrUnsupported is returned on platforms without epoll.
	ErrUnsupported = errors.New("netpoll: platform not supported")
)
