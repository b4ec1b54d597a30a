// Package badger stores media records in an embedded BadgerDB. Each record
// lives under "media/<id>" as a CBOR document.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/marmos91/mediaforge/internal/logger"
	"github.com/marmos91/mediaforge/pkg/media"
)

const keyPrefix = "media/"

func keyMedia(id string) []byte {
	return []byte(keyPrefix + id)
}

// entry is the on-disk form of a media.Record. Integer keys keep documents
// small; timestamps are unix nanoseconds so they round-trip exactly.
type entry struct {
	ID           string `cbor:"1,keyasint"`
	OriginalName string `cbor:"2,keyasint"`
	StoragePath  string `cbor:"3,keyasint"`
	Status       string `cbor:"4,keyasint"`
	SizeBytes    int64  `cbor:"5,keyasint"`
	Checksum     string `cbor:"6,keyasint,omitempty"`
	CreatedAt    int64  `cbor:"7,keyasint"`
	UpdatedAt    int64  `cbor:"8,keyasint"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("badger: CBOR encoder initialization failed: " + err.Error())
	}
}

func encode(rec *media.Record) ([]byte, error) {
	return encMode.Marshal(entry{
		ID:           rec.ID,
		OriginalName: rec.OriginalName,
		StoragePath:  rec.StoragePath,
		Status:       string(rec.Status),
		SizeBytes:    rec.SizeBytes,
		Checksum:     rec.Checksum,
		CreatedAt:    rec.CreatedAt.UnixNano(),
		UpdatedAt:    rec.UpdatedAt.UnixNano(),
	})
}

func decode(data []byte) (*media.Record, error) {
	var e entry
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode media entry: %w", err)
	}
	return &media.Record{
		ID:           e.ID,
		OriginalName: e.OriginalName,
		StoragePath:  e.StoragePath,
		Status:       media.Status(e.Status),
		SizeBytes:    e.SizeBytes,
		Checksum:     e.Checksum,
		CreatedAt:    time.Unix(0, e.CreatedAt).UTC(),
		UpdatedAt:    time.Unix(0, e.UpdatedAt).UTC(),
	}, nil
}

// Config configures the BadgerDB store.
type Config struct {
	// Path is the data directory. Empty runs BadgerDB in memory.
	Path string `mapstructure:"path" yaml:"path"`
}

// Store implements media.Store on BadgerDB.
type Store struct {
	db *badgerdb.DB
}

// New opens (or creates) the database at cfg.Path.
func New(cfg Config) (*Store, error) {
	opts := badgerdb.DefaultOptions(cfg.Path).WithLogger(badgerLogger{})
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) get(txn *badgerdb.Txn, id string) (*media.Record, error) {
	item, err := txn.Get(keyMedia(id))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, media.ErrMediaNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec *media.Record
	err = item.Value(func(val []byte) error {
		rec, err = decode(val)
		return err
	})
	return rec, err
}

func (s *Store) put(txn *badgerdb.Txn, rec *media.Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}
	return txn.Set(keyMedia(rec.ID), data)
}

func (s *Store) InsertMediaRecord(ctx context.Context, rec *media.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !rec.Status.Valid() {
		return media.ErrInvalidStatus
	}

	now := time.Now().UTC()
	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keyMedia(rec.ID))
		if err == nil {
			return media.ErrDuplicateMedia
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return s.put(txn, &cp)
	})
	if err != nil {
		return err
	}

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

	return s.db.Update(func(txn *badgerdb.Txn) error {
		rec, err := s.get(txn, id)
		if err != nil {
			return err
		}
		rec.Status = status
		if storagePath != "" {
			rec.StoragePath = storagePath
		}
		rec.UpdatedAt = time.Now().UTC()
		return s.put(txn, rec)
	})
}

func (s *Store) QueryReadyMediaPath(ctx context.Context, id string) (string, bool, error) {
	rec, err := s.GetMedia(ctx, id)
	if errors.Is(err, media.ErrMediaNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if rec.Status != media.StatusReady {
		return "", false, nil
	}
	return rec.StoragePath, true, nil
}

func (s *Store) GetMedia(ctx context.Context, id string) (*media.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *media.Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		rec, err = s.get(txn, id)
		return err
	})
	return rec, err
}

func (s *Store) ListMedia(ctx context.Context, opts media.ListOptions) ([]*media.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := []*media.Record{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		iopts := badgerdb.DefaultIteratorOptions
		iopts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec *media.Record
			err := it.Item().Value(func(val []byte) error {
				var err error
				rec, err = decode(val)
				return err
			})
			if err != nil {
				return err
			}
			if opts.Status != "" && rec.Status != opts.Status {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

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

// Healthcheck verifies a read transaction can be started.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CacheHitRatios reports the block and index cache hit ratios. A disabled
// cache reports 0.
func (s *Store) CacheHitRatios() map[string]float64 {
	return map[string]float64{
		"block": s.db.BlockCacheMetrics().Ratio(),
		"index": s.db.IndexCacheMetrics().Ratio(),
	}
}

// badgerLogger routes BadgerDB's printf-style logging into the server
// logger. Badger's info chatter is demoted to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, args ...any) { logger.Error(badgerMsg(f, args), logger.KeyStore, "badger") }
func (badgerLogger) Warningf(f string, args ...any) { logger.Warn(badgerMsg(f, args), logger.KeyStore, "badger") }
func (badgerLogger) Infof(f string, args ...any) { logger.Debug(badgerMsg(f, args), logger.KeyStore, "badger") }
func (badgerLogger) Debugf(f string, args ...any) { logger.Debug(badgerMsg(f, args), logger.KeyStore, "badger") }

func badgerMsg(f string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(f, args...))
}

var _ media.Store = (*Store)(nil)
