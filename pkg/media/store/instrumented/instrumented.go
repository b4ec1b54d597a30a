// Package instrumented wraps a media.Store with latency and outcome
// metrics for every call.
package instrumented

import (
	"context"
	"time"

	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/metrics"
)

// CacheReporter is implemented by backends with an internal cache whose
// hit ratios are worth exporting. They are sampled on every Healthcheck.
type CacheReporter interface {
	CacheHitRatios() map[string]float64
}

// Store records every call of the wrapped store.
type Store struct {
	inner media.Store
	name  string
	m     metrics.StoreMetrics
}

// Wrap instruments inner under the backend label name. With nil metrics
// inner is returned unchanged.
func Wrap(inner media.Store, name string, m metrics.StoreMetrics) media.Store {
	if m == nil {
		return inner
	}
	return &Store{inner: inner, name: name, m: m}
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.m.ObserveOperation(s.name, op, time.Since(start), err)
}

func (s *Store) InsertMediaRecord(ctx context.Context, rec *media.Record) error {
	start := time.Now()
	err := s.inner.InsertMediaRecord(ctx, rec)
	s.observe("InsertMediaRecord", start, err)
	return err
}

func (s *Store) UpdateMediaStatus(ctx context.Context, id string, status media.Status, storagePath string) error {
	start := time.Now()
	err := s.inner.UpdateMediaStatus(ctx, id, status, storagePath)
	s.observe("UpdateMediaStatus", start, err)
	return err
}

func (s *Store) QueryReadyMediaPath(ctx context.Context, id string) (string, bool, error) {
	start := time.Now()
	path, ok, err := s.inner.QueryReadyMediaPath(ctx, id)
	s.observe("QueryReadyMediaPath", start, err)
	return path, ok, err
}

func (s *Store) GetMedia(ctx context.Context, id string) (*media.Record, error) {
	start := time.Now()
	rec, err := s.inner.GetMedia(ctx, id)
	s.observe("GetMedia", start, err)
	return rec, err
}

func (s *Store) ListMedia(ctx context.Context, opts media.ListOptions) ([]*media.Record, error) {
	start := time.Now()
	recs, err := s.inner.ListMedia(ctx, opts)
	s.observe("ListMedia", start, err)
	return recs, err
}

func (s *Store) Healthcheck(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Healthcheck(ctx)
	s.observe("Healthcheck", start, err)

	if cr, ok := s.inner.(CacheReporter); ok && err == nil {
		for cache, ratio := range cr.CacheHitRatios() {
			s.m.RecordCacheHitRatio(s.name, cache, ratio)
		}
	}
	return err
}

func (s *Store) Close() error {
	return s.inner.Close()
}

var _ media.Store = (*Store)(nil)
