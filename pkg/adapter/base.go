package adapter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/mediaforge/internal/logger"
)

// BaseConfig holds configuration common to all adapters.
type BaseConfig struct {
	// BindAddress is the IP address to bind to.
	// Empty string or "0.0.0.0" binds to all interfaces.
	BindAddress string

	// Port is the TCP port to listen on. 0 picks an ephemeral port.
	Port int

	// MaxConnections limits the number of concurrent client connections.
	// 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout is the maximum duration to wait for active connections
	// to complete during graceful shutdown.
	ShutdownTimeout time.Duration

	// MetricsLogInterval is the interval at which to log server metrics.
	// 0 disables periodic metrics logging.
	MetricsLogInterval time.Duration
}

// MetricsRecorder records connection lifecycle metrics.
// metrics.HTTPMetrics satisfies it.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionRejected()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// TrackedConn is a live connection as seen by the lifecycle code. The
// adapter that owns the connection decides how Interrupt and ForceClose map
// onto its event loop; neither may release connection state directly since
// a worker may be driving it.
type TrackedConn interface {
	// RemoteAddr is the peer address, for logs.
	RemoteAddr() string

	// Interrupt asks an idle connection to wind down at shutdown.
	// Connections in the middle of a request are left to finish.
	Interrupt()

	// ForceClose tears the connection down regardless of its state.
	ForceClose() error
}

// BaseAdapter provides shared lifecycle management for event-loop adapters:
// connection admission and tracking, graceful shutdown with a timeout, and
// periodic metrics logging. The adapter embedding it owns the listener and
// the I/O loop.
//
// All exported methods are safe for concurrent use. The shutdown mechanism
// uses sync.Once so Stop may be called repeatedly.
type BaseAdapter struct {
	// Config holds the shared configuration (bind address, port, limits, timeouts)
	Config BaseConfig

	// protocolName is the human-readable protocol name for logging
	protocolName string

	// Metrics is an optional recorder for connection lifecycle metrics.
	// If nil, no metrics are collected.
	Metrics MetricsRecorder

	// activeConns tracks all admitted connections for graceful shutdown.
	activeConns sync.WaitGroup

	// shutdownOnce ensures shutdown is only initiated once.
	shutdownOnce sync.Once

	// Shutdown is closed when graceful shutdown begins.
	Shutdown chan struct{}

	// ConnCount tracks the current number of active connections.
	ConnCount atomic.Int32

	// ShutdownCtx is cancelled during shutdown to abort in-flight work.
	ShutdownCtx context.Context

	// CancelRequests cancels ShutdownCtx.
	CancelRequests context.CancelFunc

	// ActiveConnections maps connection id (uint64) to TrackedConn.
	ActiveConnections sync.Map

	// ListenerReady is closed once the listener is bound.
	// Used by tests to synchronize with server startup.
	ListenerReady chan struct{}

	listenerMu   sync.RWMutex
	listenerAddr string
	boundPort    int
	readyOnce    sync.Once

	hooksMu    sync.Mutex
	onShutdown []func()
}

// NewBaseAdapter creates a BaseAdapter in the stopped state.
//
// Returns a pointer to avoid copying sync primitives.
func NewBaseAdapter(config BaseConfig, protocol string) *BaseAdapter {
	if config.MaxConnections > 0 {
		logger.Debug(protocol+" connection limit", "max_connections", config.MaxConnections)
	} else {
		logger.Debug(protocol+" connection limit", "max_connections", "unlimited")
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &BaseAdapter{
		Config:         config,
		protocolName:   protocol,
		Shutdown:       make(chan struct{}),
		ShutdownCtx:    shutdownCtx,
		CancelRequests: cancelRequests,
		ListenerReady:  make(chan struct{}),
	}
}

// SetListening records the bound address and signals ListenerReady.
func (b *BaseAdapter) SetListening(addr string, port int) {
	b.listenerMu.Lock()
	b.listenerAddr = addr
	b.boundPort = port
	b.listenerMu.Unlock()
	b.readyOnce.Do(func() { close(b.ListenerReady) })

	logger.Info(b.protocolName+" server listening", "address", addr, "port", port)
}

// OnShutdown registers fn to run once when shutdown is initiated, after the
// Shutdown channel is closed. Adapters use it to close their listener and
// wake their event loop.
func (b *BaseAdapter) OnShutdown(fn func()) {
	b.hooksMu.Lock()
	b.onShutdown = append(b.onShutdown, fn)
	b.hooksMu.Unlock()
}

// WatchContext initiates shutdown when ctx is cancelled.
func (b *BaseAdapter) WatchContext(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			logger.Info(b.protocolName+" shutdown signal received", "error", ctx.Err())
			b.InitiateShutdown()
		case <-b.Shutdown:
		}
	}()

	if b.Config.MetricsLogInterval > 0 {
		go b.logMetrics(ctx)
	}
}

// Admit registers a new connection. It returns false, and records a
// rejection, when the server is shutting down or at MaxConnections; the
// caller must then close the connection itself.
func (b *BaseAdapter) Admit(id uint64, conn TrackedConn) bool {
	select {
	case <-b.Shutdown:
		return false
	default:
	}

	if limit := b.Config.MaxConnections; limit > 0 && int(b.ConnCount.Load()) >= limit {
		if b.Metrics != nil {
			b.Metrics.RecordConnectionRejected()
		}
		logger.Debug(b.protocolName+" connection rejected: limit reached",
			logger.KeyClient, conn.RemoteAddr(), "max_connections", limit)
		return false
	}

	b.activeConns.Add(1)
	current := b.ConnCount.Add(1)
	b.ActiveConnections.Store(id, conn)

	if b.Metrics != nil {
		b.Metrics.RecordConnectionAccepted()
		b.Metrics.SetActiveConnections(current)
	}

	logger.Debug(b.protocolName+" connection accepted",
		logger.KeyConnID, id, logger.KeyClient, conn.RemoteAddr(), "active", current)
	return true
}

// Release unregisters a connection admitted with Admit. It must be called
// exactly once per admitted connection.
func (b *BaseAdapter) Release(id uint64) {
	v, ok := b.ActiveConnections.LoadAndDelete(id)
	if !ok {
		return
	}

	current := b.ConnCount.Add(-1)
	b.activeConns.Done()

	if b.Metrics != nil {
		b.Metrics.RecordConnectionClosed()
		b.Metrics.SetActiveConnections(current)
	}

	logger.Debug(b.protocolName+" connection closed",
		logger.KeyConnID, id, logger.KeyClient, v.(TrackedConn).RemoteAddr(), "active", current)
}

// InitiateShutdown signals the server to begin graceful shutdown.
//
// Shutdown sequence:
//  1. Close the Shutdown channel (admission stops)
//  2. Run OnShutdown hooks (listener close, loop wake-up)
//  3. Interrupt idle connections
//  4. Cancel ShutdownCtx
//
// Safe to call multiple times and from multiple goroutines.
func (b *BaseAdapter) InitiateShutdown() {
	b.shutdownOnce.Do(func() {
		logger.Debug(b.protocolName + " shutdown initiated")

		close(b.Shutdown)

		b.hooksMu.Lock()
		hooks := b.onShutdown
		b.hooksMu.Unlock()
		for _, fn := range hooks {
			fn()
		}

		b.interruptIdle()

		b.CancelRequests()
		logger.Debug(b.protocolName + " request cancellation signal sent to all in-flight operations")
	})
}

// IsShuttingDown reports whether InitiateShutdown has run.
func (b *BaseAdapter) IsShuttingDown() bool {
	select {
	case <-b.Shutdown:
		return true
	default:
		return false
	}
}

func (b *BaseAdapter) interruptIdle() {
	b.ActiveConnections.Range(func(_, value any) bool {
		value.(TrackedConn).Interrupt()
		return true
	})
	logger.Debug(b.protocolName + " shutdown: interrupted idle connections")
}

// GracefulShutdown waits for active connections to complete, up to
// Config.ShutdownTimeout, then force-closes the rest.
//
// Returns nil if all connections completed, an error if some had to be
// force-closed.
func (b *BaseAdapter) GracefulShutdown() error {
	activeCount := b.ConnCount.Load()
	logger.Info(b.protocolName+" graceful shutdown: waiting for active connections",
		"active", activeCount, "timeout", b.Config.ShutdownTimeout)

	select {
	case <-b.drained():
		logger.Info(b.protocolName + " graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(b.Config.ShutdownTimeout):
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown timeout exceeded - forcing closure",
			"active", remaining, "timeout", b.Config.ShutdownTimeout)

		b.forceCloseConnections()

		return fmt.Errorf("%s shutdown timeout: %d connections force-closed", b.protocolName, remaining)
	}
}

// drained closes once every admitted connection has been released.
func (b *BaseAdapter) drained() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()
	return done
}

func (b *BaseAdapter) forceCloseConnections() {
	logger.Info("Force-closing active " + b.protocolName + " connections")

	closedCount := 0
	b.ActiveConnections.Range(func(key, value any) bool {
		conn := value.(TrackedConn)

		if err := conn.ForceClose(); err != nil {
			logger.Debug("Error force-closing connection", logger.KeyConnID, key, logger.KeyError, err)
		} else {
			closedCount++
			logger.Debug("Force-closed connection", logger.KeyConnID, key, logger.KeyClient, conn.RemoteAddr())
			if b.Metrics != nil {
				b.Metrics.RecordConnectionForceClosed()
			}
		}

		return true
	})

	if closedCount == 0 {
		logger.Debug("No connections to force-close")
	} else {
		logger.Info("Force-closed connections", "count", closedCount)
	}
}

// Stop initiates graceful shutdown and waits for active connections until
// ctx is done. A nil ctx waits up to Config.ShutdownTimeout.
func (b *BaseAdapter) Stop(ctx context.Context) error {
	b.InitiateShutdown()

	if ctx == nil {
		return b.GracefulShutdown()
	}

	activeCount := b.ConnCount.Load()
	logger.Info(b.protocolName+" graceful shutdown: waiting for active connections (context timeout)",
		"active", activeCount)

	select {
	case <-b.drained():
		logger.Info(b.protocolName + " graceful shutdown complete: all connections closed")
		return nil

	case <-ctx.Done():
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown context cancelled",
			"active", remaining, logger.KeyError, ctx.Err())
		return ctx.Err()
	}
}

// logMetrics periodically logs server metrics for monitoring.
func (b *BaseAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Shutdown:
			return
		case <-ticker.C:
			logger.Info(b.protocolName+" metrics", "active_connections", b.ConnCount.Load())
		}
	}
}

// GetActiveConnections returns the current number of active connections.
func (b *BaseAdapter) GetActiveConnections() int32 {
	return b.ConnCount.Load()
}

// GetListenerAddr returns the address the server is listening on.
// It blocks until the listener is ready, making it safe for tests.
func (b *BaseAdapter) GetListenerAddr() string {
	<-b.ListenerReady

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()
	return b.listenerAddr
}

// Port returns the bound TCP port once listening, else the configured one.
func (b *BaseAdapter) Port() int {
	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()
	if b.boundPort != 0 {
		return b.boundPort
	}
	return b.Config.Port
}

// Protocol returns the human-readable protocol name.
func (b *BaseAdapter) Protocol() string {
	return b.protocolName
}
