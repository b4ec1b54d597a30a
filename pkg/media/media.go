// Package media defines uploaded media records, the persistence contract for
// them, and the lookup that maps playback request paths onto HLS files.
package media

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// Status is the lifecycle state of a media record.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusFailed:
		return true
	}
	return false
}

// ParseStatus validates a status name. The empty string is rejected.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown media status %q", s)
	}
	return st, nil
}

var (
	ErrMediaNotFound  = errors.New("media not found")
	ErrDuplicateMedia = errors.New("media already exists")
	ErrInvalidStatus  = errors.New("invalid media status")
)

// Record describes one uploaded file and its transcoded output.
type Record struct {
	ID           string    `json:"id" gorm:"primaryKey;size:64"`
	OriginalName string    `json:"original_name" gorm:"size:255;not null"`
	StoragePath  string    `json:"storage_path" gorm:"size:1024;not null"`
	Status       Status    `json:"status" gorm:"size:16;not null;index"`
	SizeBytes    int64     `json:"size_bytes"`
	Checksum     string    `json:"checksum,omitempty" gorm:"size:64"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName pins the table name for GORM.
func (Record) TableName() string { return "media" }

// ListOptions filters ListMedia.
type ListOptions struct {
	Status Status // empty matches every status
	Limit  int    // <= 0 means no limit
}

// Store persists media records. Implementations must be safe for
// concurrent use: pipeline workers and the admin API share one store.
type Store interface {
	// InsertMediaRecord creates rec. ErrDuplicateMedia if the id exists.
	InsertMediaRecord(ctx context.Context, rec *Record) error

	// UpdateMediaStatus sets the status of id, and its storage path when
	// storagePath is non-empty. ErrMediaNotFound if id is unknown.
	UpdateMediaStatus(ctx context.Context, id string, status Status, storagePath string) error

	// QueryReadyMediaPath returns the storage path of id only when the
	// record is ready. ok is false for unknown and non-ready records.
	QueryReadyMediaPath(ctx context.Context, id string) (path string, ok bool, err error)

	// GetMedia returns one record or ErrMediaNotFound.
	GetMedia(ctx context.Context, id string) (*Record, error)

	// ListMedia returns records newest first.
	ListMedia(ctx context.Context, opts ListOptions) ([]*Record, error)

	Healthcheck(ctx context.Context) error
	Close() error
}

// IDPrefix starts every media identifier.
const IDPrefix = "vid_"

// NewID synthesises "vid_<unix seconds>_<0..9999>". Two uploads in the same
// second may collide; uniqueness is best effort and enforced by the store.
func NewID(now time.Time) string {
	return fmt.Sprintf("%s%d_%d", IDPrefix, now.Unix(), rand.IntN(10000))
}

// ExtractID finds the "vid_..." segment of a request path and returns it
// with the remainder that follows it ("/720p/index001.ts", "/", or "").
func ExtractID(p string) (id, rest string, ok bool) {
	i := strings.Index(p, IDPrefix)
	if i < 0 || (i > 0 && p[i-1] != '/') {
		return "", "", false
	}
	seg := p[i:]
	if j := strings.IndexByte(seg, '/'); j >= 0 {
		return seg[:j], seg[j:], true
	}
	return seg, "", true
}
