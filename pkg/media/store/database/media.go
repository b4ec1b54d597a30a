package database

import (
	"context"
	"time"

	"github.com/marmos91/mediaforge/pkg/media"
)

func (s *Store) InsertMediaRecord(ctx context.Context, rec *media.Record) error {
	if !rec.Status.Valid() {
		return media.ErrInvalidStatus
	}
	if !rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.CreatedAt.UTC()
	}

	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicateKey(err) {
			return media.ErrDuplicateMedia
		}
		return err
	}
	return nil
}

func (s *Store) UpdateMediaStatus(ctx context.Context, id string, status media.Status, storagePath string) error {
	if !status.Valid() {
		return media.ErrInvalidStatus
	}

	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if storagePath != "" {
		updates["storage_path"] = storagePath
	}

	result := s.db.WithContext(ctx).Model(&media.Record{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return media.ErrMediaNotFound
	}
	return nil
}

func (s *Store) QueryReadyMediaPath(ctx context.Context, id string) (string, bool, error) {
	var paths []string
	err := s.db.WithContext(ctx).Model(&media.Record{}).
		Where("id = ? AND status = ?", id, media.StatusReady).
		Limit(1).
		Pluck("storage_path", &paths).Error
	if err != nil {
		return "", false, err
	}
	if len(paths) == 0 {
		return "", false, nil
	}
	return paths[0], true, nil
}

func (s *Store) GetMedia(ctx context.Context, id string) (*media.Record, error) {
	var rec media.Record
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (s *Store) ListMedia(ctx context.Context, opts media.ListOptions) ([]*media.Record, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	results := []*media.Record{}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

var _ media.Store = (*Store)(nil)
