//go:build linux

package netpoll

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Event is a set of epoll interest or readiness bits.
type Event uint32

const (
	EventRead    Event = unix.EPOLLIN | unix.EPOLLRDHUP
	EventWrite   Event = unix.EPOLLOUT
	EventEdge    Event = unix.EPOLLET
	EventOneShot Event = unix.EPOLLONESHOT

	eventHangup Event = unix.EPOLLHUP | unix.EPOLLRDHUP | unix.EPOLLERR
)

func (e Event) Readable() bool { return e&unix.EPOLLIN != 0 }
func (e Event) Writable() bool { return e&unix.EPOLLOUT != 0 }

// Hangup reports a peer close or socket error.
func (e Event) Hangup() bool { return e&eventHangup != 0 }

// Ready is one readiness notification.
type Ready struct {
	FD     int
	Events Event
}

// Poller wraps an epoll instance plus an eventfd used to wake Wait.
type Poller struct {
	epfd   int
	wakeFD int
	events []unix.EpollEvent
}

// NewPoller creates an epoll instance reporting up to maxEvents per Wait.
func NewPoller(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		maxEvents = 1024
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	wfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	p := &Poller{epfd: epfd, wakeFD: wfd, events: make([]unix.EpollEvent, maxEvents)}
	if err := p.ctl(unix.EPOLL_CTL_ADD, wfd, unix.EPOLLIN); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Poller) ctl(op, fd int, ev Event) error {
	e := unix.EpollEvent{Events: uint32(ev), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, op, fd, &e); err != nil {
		return fmt.Errorf("epoll_ctl(%d, fd %d): %w", op, fd, err)
	}
	return nil
}

// Add registers fd with the given interest.
func (p *Poller) Add(fd int, ev Event) error { return p.ctl(unix.EPOLL_CTL_ADD, fd, ev) }

// Arm replaces the interest of a registered fd; with EventOneShot this
// re-enables a descriptor that fired.
func (p *Poller) Arm(fd int, ev Event) error { return p.ctl(unix.EPOLL_CTL_MOD, fd, ev) }

// Remove unregisters fd. It must be called before fd is closed.
func (p *Poller) Remove(fd int) error { return p.ctl(unix.EPOLL_CTL_DEL, fd, 0) }

// Wake interrupts a concurrent Wait.
func (p *Poller) Wake() error {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	_, err := unix.Write(p.wakeFD, one[:])
	if errors.Is(err, unix.EAGAIN) {
		return nil
	}
	return err
}

// Wait blocks until descriptors are ready, Wake is called or timeout
// elapses, and appends the notifications to dst. A negative timeout waits
// forever. Wake-ups themselves are not reported.
func (p *Poller) Wait(timeout time.Duration, dst []Ready) ([]Ready, error) {
	msec := -1
	if timeout >= 0 {
		msec = int(timeout.Milliseconds())
	}

	n, err := unix.EpollWait(p.epfd, p.events, msec)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return dst, nil
		}
		return dst, fmt.Errorf("epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		ev := p.events[i]
		if int(ev.Fd) == p.wakeFD {
			p.drainWake()
			continue
		}
		dst = append(dst, Ready{FD: int(ev.Fd), Events: Event(ev.Events)})
	}
	return dst, nil
}

func (p *Poller) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakeFD, buf[:]); err != nil {
			return
		}
	}
}

// Close releases the epoll instance and the wake descriptor.
func (p *Poller) Close() error {
	err := unix.Close(p.wakeFD)
	if cerr := unix.Close(p.epfd); err == nil {
		err = cerr
	}
	return err
}
