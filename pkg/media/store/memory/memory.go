// Package memory is an in-process media store for tests and single-run
// deployments. Records are lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/mediaforge/pkg/account"
	"github.com/marmos91/mediaforge/pkg/media"
)

// Store keeps records in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]*media.Record
	users   map[string]account.User
	now     func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]*media.Record),
		users:   make(map[string]account.User),
		now:     time.Now,
	}
}

func (s *Store) InsertMediaRecord(ctx context.Context, rec *media.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !rec.Status.Valid() {
		return media.ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return media.ErrDuplicateMedia
	}
	now := s.now().UTC()
	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.records[rec.ID] = &cp

	rec.CreatedAt, rec.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	return nil
}

func (s *Store) UpdateMediaStatus(ctx context.Context, id string, status media.Status, storagePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !status.Valid() {
		return media.ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return media.ErrMediaNotFound
	}
	rec.Status = status
	if storagePath != "" {
		rec.StoragePath = storagePath
	}
	rec.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) QueryReadyMediaPath(ctx context.Context, id string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok || rec.Status != media.StatusReady {
		return "", false, nil
	}
	return rec.StoragePath, true, nil
}

func (s *Store) GetMedia(ctx context.Context, id string) (*media.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, media.ErrMediaNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) ListMedia(ctx context.Context, opts media.ListOptions) ([]*media.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]*media.Record, 0, len(s.records))
	for _, rec := range s.records {
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error { return nil }

var _ media.Store = (*Store)(nil)

func (s *Store) CreateUser(ctx context.Context, u *account.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.Username]; exists {
		return account.ErrDuplicateUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.users[u.Username] = *u
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*account.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, account.ErrUserNotFound
	}
	return &u, nil
}

var _ account.Store = (*Store)(nil)
