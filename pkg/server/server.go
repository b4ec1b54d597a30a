// Package server runs the mediaforge components as one process: protocol
// adapters, the transcode pipeline, the admin API and the metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/mediaforge/internal/logger"
	"github.com/marmos91/mediaforge/pkg/adapter"
	"github.com/marmos91/mediaforge/pkg/api"
	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/metrics"
	"github.com/marmos91/mediaforge/pkg/transcode"
)

// ErrAlreadyServing is returned when components are added after Serve.
var ErrAlreadyServing = errors.New("server already serving")

// Server owns the process-wide components and their shutdown order.
//
// Shutdown runs in dependency order: adapters stop accepting and drain
// first so no new uploads arrive, then the pipeline finishes queued jobs,
// then the API and metrics servers stop and the store is closed last.
type Server struct {
	store           media.Store
	shutdownTimeout time.Duration

	mu        sync.Mutex
	served    bool
	adapters  []adapter.Adapter
	pipeline  *transcode.Pipeline
	apiServer *api.Server
	metrics   *metrics.Server

	serveOnce sync.Once
}

// New creates a server over store. The store is closed when Serve returns.
func New(store media.Store, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &Server{store: store, shutdownTimeout: shutdownTimeout}
}

// AddAdapter registers a protocol adapter.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.served {
		return ErrAlreadyServing
	}
	for _, existing := range s.adapters {
		if existing.Protocol() == a.Protocol() && existing.Port() == a.Port() && a.Port() != 0 {
			return fmt.Errorf("%s adapter on port %d already registered", a.Protocol(), a.Port())
		}
	}
	s.adapters = append(s.adapters, a)
	return nil
}

// SetPipeline registers the transcode pipeline. It is started by Serve.
func (s *Server) SetPipeline(p *transcode.Pipeline) {
	s.mu.Lock()
	s.pipeline = p
	s.mu.Unlock()
}

// SetAPIServer registers the admin API server.
func (s *Server) SetAPIServer(a *api.Server) {
	s.mu.Lock()
	s.apiServer = a
	s.mu.Unlock()
}

// SetMetricsServer registers the Prometheus endpoint.
func (s *Server) SetMetricsServer(m *metrics.Server) {
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
}

// Serve starts every component and blocks until ctx is cancelled or one
// of them fails. Returns nil when shutdown was requested through ctx.
//
// Serve runs at most once; later calls return nil immediately.
func (s *Server) Serve(ctx context.Context) error {
	var err error
	s.serveOnce.Do(func() {
		s.mu.Lock()
		s.served = true
		s.mu.Unlock()
		err = s.serve(ctx)
	})
	return err
}

type componentErr struct {
	name string
	err  error
}

func (s *Server) serve(ctx context.Context) error {
	logger.Info("Starting mediaforge", "adapters", len(s.adapters))

	// The pipeline outlives ctx so queued jobs can finish during shutdown.
	if s.pipeline != nil {
		s.pipeline.Start(context.WithoutCancel(ctx))
	}

	adapterCtx, cancelAdapters := context.WithCancel(ctx)
	defer cancelAdapters()

	errs := make(chan componentErr, len(s.adapters)+2)
	var adaptersDone sync.WaitGroup
	for _, a := range s.adapters {
		adaptersDone.Add(1)
		go func(a adapter.Adapter) {
			defer adaptersDone.Done()
			if err := a.Serve(adapterCtx); err != nil {
				errs <- componentErr{name: a.Protocol() + " adapter", err: err}
			}
		}(a)
	}

	if s.apiServer != nil {
		go func() {
			if err := s.apiServer.Start(ctx); err != nil {
				errs <- componentErr{name: "API server", err: err}
			}
		}()
	}
	if s.metrics != nil {
		go func() {
			if err := s.metrics.Start(ctx); err != nil {
				errs <- componentErr{name: "metrics server", err: err}
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", context.Cause(ctx))
	case ce := <-errs:
		logger.Error("Component failed, initiating shutdown", "component", ce.name, logger.KeyError, ce.err)
		serveErr = fmt.Errorf("%s: %w", ce.name, ce.err)
	}

	s.shutdown(cancelAdapters, &adaptersDone)
	logger.Info("mediaforge stopped")
	return serveErr
}

func (s *Server) shutdown(cancelAdapters context.CancelFunc, adaptersDone *sync.WaitGroup) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logger.Info("Stopping adapters")
	cancelAdapters()
	for _, a := range s.adapters {
		if err := a.Stop(shutdownCtx); err != nil {
			logger.Warn("Adapter stop error", "protocol", a.Protocol(), logger.KeyError, err)
		}
	}
	adaptersDone.Wait()

	if s.pipeline != nil {
		logger.Info("Draining transcode pipeline", "pending", s.pipeline.Pending())
		if err := s.pipeline.Stop(shutdownCtx); err != nil {
			logger.Warn("Transcode pipeline stop error", logger.KeyError, err)
		}
	}

	if s.apiServer != nil {
		if err := s.apiServer.Stop(shutdownCtx); err != nil {
			logger.Warn("API server stop error", logger.KeyError, err)
		}
	}
	if s.metrics != nil {
		if err := s.metrics.Stop(shutdownCtx); err != nil {
			logger.Warn("Metrics server stop error", logger.KeyError, err)
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logger.Warn("Media store close error", logger.KeyError, err)
		}
	}
}
