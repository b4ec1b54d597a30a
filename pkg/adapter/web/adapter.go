package web

import (
	"github.com/marmos91/mediaforge/pkg/adapter"
)

// ProtocolName labels the adapter in logs and metrics.
const ProtocolName = "HTTP"

// Adapter serves Conns from an epoll reactor and a pool of workers.
//
// One goroutine waits on epoll and accepts; readiness of a connection is
// handed to a worker as a task. Connections are armed one-shot, so a
// connection fires at most once until the worker that handled it re-arms
// it: no two workers ever drive the same Conn.
type Adapter struct {
	*adapter.BaseAdapter

	cfg  Config
	deps *Deps
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates an adapter. Defaults are applied to cfg.
func New(cfg Config, deps Deps) *Adapter {
	cfg.ApplyDefaults()

	base := adapter.NewBaseAdapter(cfg.baseConfig(), ProtocolName)
	if deps.Metrics != nil {
		base.Metrics = deps.Metrics
	}

	return &Adapter{BaseAdapter: base, cfg: cfg, deps: &deps}
}

// Config returns the effective configuration.
func (a *Adapter) Config() Config { return a.cfg }
