//go:build linux

package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/mediaforge/internal/logger"
	"github.com/marmos91/mediaforge/internal/netpoll"
)

// Serve binds the listener and runs the reactor until shutdown.
//
// Returns nil on graceful shutdown, or an error if the listener could not
// be created or connections had to be force-closed.
func (a *Adapter) Serve(ctx context.Context) error {
	r, err := newReactor(ctx, a)
	if err != nil {
		return err
	}

	a.SetListening(r.ln.Addr(), r.ln.Port())
	a.OnShutdown(r.stopAccepting)
	a.WatchContext(ctx)

	r.start()
	<-a.Shutdown

	shutdownErr := a.GracefulShutdown()
	if loopErr := r.stop(); loopErr != nil {
		return loopErr
	}
	return shutdownErr
}

// task is one readiness notification for a worker.
type task struct {
	t  *tracked
	ev netpoll.Event
}

// tracked pairs a Conn with its descriptor. mu orders closing the
// descriptor against shutdown(2) calls from the sweep and from shutdown,
// so those never hit a reused descriptor number.
type tracked struct {
	conn *Conn
	tr   *netpoll.FDTransport
	fd   int

	mu     sync.Mutex
	closed bool
}

func (t *tracked) RemoteAddr() string { return t.conn.RemoteAddr() }

// Interrupt half-closes an idle connection; its worker then sees a hangup.
func (t *tracked) Interrupt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed && t.conn.Idle() {
		_ = t.tr.Shutdown()
	}
}

func (t *tracked) ForceClose() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	return t.tr.Shutdown()
}

func (t *tracked) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return t.conn.Close()
}

type reactor struct {
	a      *Adapter
	ctx    context.Context
	poller *netpoll.Poller
	ln     *netpoll.Listener
	lnFD   int

	lnMu     sync.Mutex
	lnClosed bool

	mu    sync.Mutex
	conns map[int]*tracked
	ids   atomic.Uint64

	tasks    chan task
	workers  sync.WaitGroup
	stopping atomic.Bool
	loopDone chan struct{}
	loopErr  error
}

func newReactor(ctx context.Context, a *Adapter) (*reactor, error) {
	poller, err := netpoll.NewPoller(1024)
	if err != nil {
		return nil, fmt.Errorf("create %s poller: %w", a.Protocol(), err)
	}

	ln, err := netpoll.Listen(a.cfg.BindAddress, a.cfg.Port, netpoll.DefaultBacklog)
	if err != nil {
		_ = poller.Close()
		return nil, fmt.Errorf("failed to create %s listener on port %d: %w", a.Protocol(), a.cfg.Port, err)
	}

	lnEvents := netpoll.EventRead
	if a.cfg.ListenEdgeTriggered {
		lnEvents |= netpoll.EventEdge
	}
	if err := poller.Add(ln.FD(), lnEvents); err != nil {
		_ = ln.Close()
		_ = poller.Close()
		return nil, err
	}

	return &reactor{
		a:        a,
		ctx:      context.WithoutCancel(ctx),
		poller:   poller,
		ln:       ln,
		lnFD:     ln.FD(),
		conns:    make(map[int]*tracked),
		tasks:    make(chan task, a.cfg.Workers*64),
		loopDone: make(chan struct{}),
	}, nil
}

func (r *reactor) start() {
	for i := 0; i < r.a.cfg.Workers; i++ {
		r.workers.Add(1)
		go r.worker()
	}
	go r.loop()

	logger.Debug(r.a.Protocol()+" reactor started",
		"workers", r.a.cfg.Workers, "edge_triggered", r.a.cfg.EdgeTriggered,
		"listen_edge_triggered", r.a.cfg.ListenEdgeTriggered)
}

func (r *reactor) connEvents(ev netpoll.Event) netpoll.Event {
	ev |= netpoll.EventOneShot
	if r.a.cfg.EdgeTriggered {
		ev |= netpoll.EventEdge
	}
	return ev
}

func (r *reactor) sweepInterval() time.Duration {
	idle := r.a.cfg.IdleTimeout
	if idle <= 0 {
		return time.Second
	}
	return min(max(idle/4, 10*time.Millisecond), time.Second)
}

func (r *reactor) loop() {
	defer close(r.loopDone)

	interval := r.sweepInterval()
	lastSweep := time.Now()
	var ready []netpoll.Ready

	for !r.stopping.Load() {
		var err error
		ready, err = r.poller.Wait(interval, ready[:0])
		if err != nil {
			r.loopErr = err
			logger.Error(r.a.Protocol()+" event loop failed", logger.KeyError, err)
			r.a.InitiateShutdown()
			return
		}

		for _, ev := range ready {
			if ev.FD == r.lnFD {
				r.accept()
				continue
			}
			r.mu.Lock()
			t := r.conns[ev.FD]
			r.mu.Unlock()
			if t != nil {
				r.tasks <- task{t: t, ev: ev.Events}
			}
		}

		if now := time.Now(); now.Sub(lastSweep) >= interval {
			lastSweep = now
			r.sweepIdle(now)
		}
	}
}

func (r *reactor) accept() {
	r.lnMu.Lock()
	defer r.lnMu.Unlock()

	for !r.lnClosed {
		tr, err := r.ln.Accept()
		if err != nil {
			if !errors.Is(err, netpoll.ErrWouldBlock) {
				logger.Debug("Error accepting "+r.a.Protocol()+" connection", logger.KeyError, err)
			}
			return
		}
		r.register(tr)

		if !r.a.cfg.ListenEdgeTriggered {
			return
		}
	}
}

func (r *reactor) register(tr *netpoll.FDTransport) {
	id := r.ids.Add(1)
	t := &tracked{
		conn: NewConn(id, tr.RemoteAddr(), tr, &r.a.cfg, r.a.deps),
		tr:   tr,
		fd:   tr.FD(),
	}

	if !r.a.Admit(id, t) {
		_ = t.close()
		return
	}

	r.mu.Lock()
	r.conns[t.fd] = t
	r.mu.Unlock()

	if err := r.poller.Add(t.fd, r.connEvents(netpoll.EventRead)); err != nil {
		logger.Debug("Register connection failed", logger.KeyConnID, id, logger.KeyError, err)
		r.closeConn(t)
	}
}

// sweepIdle half-closes connections silent for longer than IdleTimeout.
func (r *reactor) sweepIdle(now time.Time) {
	idle := r.a.cfg.IdleTimeout
	if idle <= 0 {
		return
	}

	r.mu.Lock()
	var stale []*tracked
	for _, t := range r.conns {
		if now.Sub(t.conn.LastActive()) > idle {
			stale = append(stale, t)
		}
	}
	r.mu.Unlock()

	for _, t := range stale {
		logger.Debug("Evicting idle connection", logger.KeyConnID, t.conn.ID(), logger.KeyClient, t.RemoteAddr())
		_ = t.ForceClose()
	}
}

func (r *reactor) worker() {
	defer r.workers.Done()
	for tk := range r.tasks {
		r.handle(tk)
	}
}

func (r *reactor) handle(tk task) {
	switch {
	case tk.ev.Writable():
		r.onWritable(tk.t)
	case tk.ev.Readable():
		r.onReadable(tk.t)
	default:
		r.closeConn(tk.t)
	}
}

// onReadable reads and processes. Bytes that arrived together with the
// peer's close are still processed, so a final upload chunk completes.
func (r *reactor) onReadable(t *tracked) {
	c := t.conn

	_, err := c.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Debug("Read failed", logger.KeyConnID, c.ID(), logger.KeyError, err)
		r.closeConn(t)
		return
	}

	action := c.Process(r.ctx)
	if err != nil {
		if action == ActionWrite {
			_, _ = c.Write()
		}
		r.closeConn(t)
		return
	}
	r.apply(t, action)
}

func (r *reactor) onWritable(t *tracked) {
	c := t.conn

	if _, err := c.Write(); err != nil && !errors.Is(err, ErrWouldBlock) {
		logger.Debug("Write failed", logger.KeyConnID, c.ID(), logger.KeyError, err)
		r.closeConn(t)
		return
	}
	r.apply(t, c.AfterWrite())
}

func (r *reactor) apply(t *tracked, action Action) {
	var ev netpoll.Event
	switch action {
	case ActionRead:
		if r.a.IsShuttingDown() && t.conn.Idle() {
			r.closeConn(t)
			return
		}
		ev = netpoll.EventRead
	case ActionWrite:
		ev = netpoll.EventWrite
	default:
		r.closeConn(t)
		return
	}

	if err := r.poller.Arm(t.fd, r.connEvents(ev)); err != nil {
		logger.Debug("Re-arm failed", logger.KeyConnID, t.conn.ID(), logger.KeyError, err)
		r.closeConn(t)
	}
}

// closeConn unregisters before closing, so a descriptor number the kernel
// hands out again never maps to a stale connection.
func (r *reactor) closeConn(t *tracked) {
	r.mu.Lock()
	if r.conns[t.fd] == t {
		delete(r.conns, t.fd)
	}
	r.mu.Unlock()

	_ = r.poller.Remove(t.fd)
	if err := t.close(); err != nil {
		logger.Debug("Close connection failed", logger.KeyConnID, t.conn.ID(), logger.KeyError, err)
	}
	r.a.Release(t.conn.ID())
}

// stopAccepting runs as a shutdown hook.
func (r *reactor) stopAccepting() {
	r.lnMu.Lock()
	if !r.lnClosed {
		r.lnClosed = true
		_ = r.poller.Remove(r.lnFD)
		if err := r.ln.Close(); err != nil {
			logger.Debug("Error closing "+r.a.Protocol()+" listener", logger.KeyError, err)
		}
	}
	r.lnMu.Unlock()
	_ = r.poller.Wake()
}

// stop ends the loop and the workers, then closes whatever connections
// survived the graceful phase.
func (r *reactor) stop() error {
	r.stopping.Store(true)
	_ = r.poller.Wake()
	<-r.loopDone

	close(r.tasks)
	r.workers.Wait()

	r.mu.Lock()
	remaining := make([]*tracked, 0, len(r.conns))
	for _, t := range r.conns {
		remaining = append(remaining, t)
	}
	r.mu.Unlock()
	for _, t := range remaining {
		r.closeConn(t)
	}

	r.stopAccepting()
	if err := r.poller.Close(); err != nil {
		logger.Debug("Close poller failed", logger.KeyError, err)
	}
	return r.loopErr
}
