//go:build linux

package netpoll

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// DefaultBacklog is the listen(2) backlog used when none is given.
const DefaultBacklog = 1024

// Listener is a non-blocking TCP listening socket.
type Listener struct {
	fd   int
	addr string
	port int
}

// Listen binds a non-blocking, close-on-exec TCP socket with SO_REUSEADDR.
// An empty bindAddress listens on all IPv4 interfaces.
func Listen(bindAddress string, port, backlog int) (*Listener, error) {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}

	family, sa, err := sockaddr(bindAddress, port)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", net.JoinHostPort(bindAddress, strconv.Itoa(port)), err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("getsockname: %w", err)
	}

	l := &Listener{fd: fd, addr: sockaddrString(bound)}
	switch b := bound.(type) {
	case *unix.SockaddrInet4:
		l.port = b.Port
	case *unix.SockaddrInet6:
		l.port = b.Port
	}
	return l, nil
}

func sockaddr(bindAddress string, port int) (int, unix.Sockaddr, error) {
	if bindAddress == "" {
		return unix.AF_INET, &unix.SockaddrInet4{Port: port}, nil
	}

	ip := net.ParseIP(bindAddress)
	if ip == nil {
		return 0, nil, fmt.Errorf("invalid bind address %q", bindAddress)
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa, nil
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return unix.AF_INET6, sa, nil
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrUnix:
		return a.Name
	}
	return ""
}

func (l *Listener) FD() int { return l.fd }
func (l *Listener) Addr() string { return l.addr }
func (l *Listener) Port() int { return l.port }
func (l *Listener) Close() error { return unix.Close(l.fd) }

// Accept returns one pending connection as a non-blocking transport, or
// ErrWouldBlock when the backlog is empty.
func (l *Listener) Accept() (*FDTransport, error) {
	for {
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			switch {
			case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
				continue
			case errors.Is(err, unix.EAGAIN):
				return nil, ErrWouldBlock
			}
			return nil, fmt.Errorf("accept4: %w", err)
		}

		// Latency matters more than segment count for small replies.
		_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		return &FDTransport{fd: nfd, remote: sockaddrString(sa)}, nil
	}
}
