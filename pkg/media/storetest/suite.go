// Package storetest holds the behaviour every media.Store implementation
// must share, plus the account.Store behaviour of backends that keep users. Stores run it from their own *_conformance_test.go.
package storetest

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mediaforge/pkg/account"
	"github.com/marmos91/mediaforge/pkg/media"
)

// StoreFactory creates a fresh store for each subtest. It receives
// *testing.T so it can use t.TempDir() and register t.Cleanup().
type StoreFactory func(t *testing.T) media.Store

// RunConformanceSuite runs every store scenario against factory.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("Insert", func(t *testing.T) { runInsertTests(t, factory) })
	t.Run("Status", func(t *testing.T) { runStatusTests(t, factory) })
	t.Run("List", func(t *testing.T) { runListTests(t, factory) })

	t.Run("Healthcheck", func(t *testing.T) {
		store := factory(t)
		assert.NoError(t, store.Healthcheck(t.Context()))
	})

	if _, ok := factory(t).(account.Store); ok {
		t.Run("Users", func(t *testing.T) { runUserTests(t, factory) })
	}
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecord(id string, status media.Status, offset time.Duration) *media.Record {
	return &media.Record{
		ID:           id,
		OriginalName: id + ".mp4",
		StoragePath:  "/var/media/hls/" + id + "_out/master.m3u8",
		Status:       status,
		SizeBytes:    1024,
		CreatedAt:    epoch.Add(offset),
	}
}

func runInsertTests(t *testing.T, factory StoreFactory) {
	t.Run("GetReturnsInsertedRecord", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		rec := newRecord("vid_1700000000_1", media.StatusPending, 0)
		rec.Checksum = "abc123"
		require.NoError(t, store.InsertMediaRecord(ctx, rec))

		got, err := store.GetMedia(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.OriginalName, got.OriginalName)
		assert.Equal(t, rec.StoragePath, got.StoragePath)
		assert.Equal(t, media.StatusPending, got.Status)
		assert.Equal(t, int64(1024), got.SizeBytes)
		assert.Equal(t, "abc123", got.Checksum)
		assert.True(t, got.CreatedAt.Equal(epoch), "created_at %v", got.CreatedAt)
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("DuplicateID", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		require.NoError(t, store.InsertMediaRecord(ctx, newRecord("vid_1_1", media.StatusPending, 0)))
		err := store.InsertMediaRecord(ctx, newRecord("vid_1_1", media.StatusReady, time.Second))
		assert.ErrorIs(t, err, media.ErrDuplicateMedia)

		got, err := store.GetMedia(ctx, "vid_1_1")
		require.NoError(t, err)
		assert.Equal(t, media.StatusPending, got.Status)
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		store := factory(t)
		err := store.InsertMediaRecord(t.Context(), newRecord("vid_1_2", "archived", 0))
		assert.ErrorIs(t, err, media.ErrInvalidStatus)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		store := factory(t)
		_, err := store.GetMedia(t.Context(), "vid_0_0")
		assert.ErrorIs(t, err, media.ErrMediaNotFound)
	})

	t.Run("ReturnedRecordIsACopy", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		require.NoError(t, store.InsertMediaRecord(ctx, newRecord("vid_1_3", media.StatusPending, 0)))
		got, err := store.GetMedia(ctx, "vid_1_3")
		require.NoError(t, err)
		got.Status = media.StatusFailed

		again, err := store.GetMedia(ctx, "vid_1_3")
		require.NoError(t, err)
		assert.Equal(t, media.StatusPending, again.Status)
	})
}

func runStatusTests(t *testing.T, factory StoreFactory) {
	t.Run("PendingIsNotServable", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		require.NoError(t, store.InsertMediaRecord(ctx, newRecord("vid_2_1", media.StatusPending, 0)))
		path, ok, err := store.QueryReadyMediaPath(ctx, "vid_2_1")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, path)
	})

	t.Run("ReadyWithNewPath", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		require.NoError(t, store.InsertMediaRecord(ctx, newRecord("vid_2_2", media.StatusPending, 0)))
		require.NoError(t, store.UpdateMediaStatus(ctx, "vid_2_2", media.StatusReady, "/srv/hls/vid_2_2_out/master.m3u8"))

		path, ok, err := store.QueryReadyMediaPath(ctx, "vid_2_2")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "/srv/hls/vid_2_2_out/master.m3u8", path)
	})

	t.Run("EmptyPathKeepsPrevious", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		rec := newRecord("vid_2_3", media.StatusPending, 0)
		require.NoError(t, store.InsertMediaRecord(ctx, rec))
		require.NoError(t, store.UpdateMediaStatus(ctx, rec.ID, media.StatusReady, ""))

		path, ok, err := store.QueryReadyMediaPath(ctx, rec.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, rec.StoragePath, path)
	})

	t.Run("FailedIsNotServable", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		require.NoError(t, store.InsertMediaRecord(ctx, newRecord("vid_2_4", media.StatusReady, 0)))
		require.NoError(t, store.UpdateMediaStatus(ctx, "vid_2_4", media.StatusFailed, ""))

		_, ok, err := store.QueryReadyMediaPath(ctx, "vid_2_4")
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := store.GetMedia(ctx, "vid_2_4")
		require.NoError(t, err)
		assert.Equal(t, media.StatusFailed, got.Status)
	})

	t.Run("UpdateUnknown", func(t *testing.T) {
		store := factory(t)
		err := store.UpdateMediaStatus(t.Context(), "vid_0_0", media.StatusReady, "")
		assert.ErrorIs(t, err, media.ErrMediaNotFound)
	})

	t.Run("UpdateInvalidStatus", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		require.NoError(t, store.InsertMediaRecord(ctx, newRecord("vid_2_5", media.StatusPending, 0)))
		err := store.UpdateMediaStatus(ctx, "vid_2_5", "done", "")
		assert.ErrorIs(t, err, media.ErrInvalidStatus)
	})

	t.Run("QueryUnknown", func(t *testing.T) {
		store := factory(t)
		_, ok, err := store.QueryReadyMediaPath(t.Context(), "vid_0_0")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func runListTests(t *testing.T, factory StoreFactory) {
	seed := func(t *testing.T, store media.Store) {
		t.Helper()
		statuses := []media.Status{media.StatusReady, media.StatusPending, media.StatusReady, media.StatusFailed, media.StatusReady}
		for i, st := range statuses {
			id := fmt.Sprintf("vid_3_%d", i)
			require.NoError(t, store.InsertMediaRecord(t.Context(), newRecord(id, st, time.Duration(i)*time.Minute)))
		}
	}

	ids := func(recs []*media.Record) []string {
		out := make([]string, len(recs))
		for i, r := range recs {
			out[i] = r.ID
		}
		return out
	}

	t.Run("NewestFirst", func(t *testing.T) {
		store := factory(t)
		seed(t, store)

		recs, err := store.ListMedia(t.Context(), media.ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"vid_3_4", "vid_3_3", "vid_3_2", "vid_3_1", "vid_3_0"}, ids(recs))
	})

	t.Run("FilterByStatus", func(t *testing.T) {
		store := factory(t)
		seed(t, store)

		recs, err := store.ListMedia(t.Context(), media.ListOptions{Status: media.StatusReady})
		require.NoError(t, err)
		assert.Equal(t, []string{"vid_3_4", "vid_3_2", "vid_3_0"}, ids(recs))
	})

	t.Run("Limit", func(t *testing.T) {
		store := factory(t)
		seed(t, store)

		recs, err := store.ListMedia(t.Context(), media.ListOptions{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"vid_3_4", "vid_3_3"}, ids(recs))
	})

	t.Run("Empty", func(t *testing.T) {
		store := factory(t)
		recs, err := store.ListMedia(t.Context(), media.ListOptions{Status: media.StatusFailed})
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}
