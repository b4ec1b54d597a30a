package media_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/media/store/memory"
	"github.com/marmos91/mediaforge/pkg/pathsafe"
)

func newLookup(t *testing.T) *media.Lookup {
	t.Helper()
	store := memory.New()
	ctx := t.Context()

	require.NoError(t, store.InsertMediaRecord(ctx, &media.Record{
		ID: "vid_1700000000_42", OriginalName: "clip.mp4",
		StoragePath: "/srv/hls/vid_1700000000_42_out/master.m3u8", Status: media.StatusReady,
	}))
	require.NoError(t, store.InsertMediaRecord(ctx, &media.Record{
		ID: "vid_1700000000_7", OriginalName: "slow.mp4",
		StoragePath: "/srv/hls/vid_1700000000_7_out/master.m3u8", Status: media.StatusPending,
	}))
	return media.NewLookup(store)
}

func TestLookupResolve(t *testing.T) {
	l := newLookup(t)
	ctx := t.Context()

	t.Run("Playlist", func(t *testing.T) {
		for _, p := range []string{"/vid_1700000000_42", "/vid_1700000000_42/"} {
			res, ok, err := l.Resolve(ctx, p)
			require.NoError(t, err)
			require.True(t, ok, p)
			assert.Equal(t, "/srv/hls/vid_1700000000_42_out/master.m3u8", res.File)
			assert.Equal(t, "vid_1700000000_42", res.MediaID)
		}
	})

	t.Run("Segment", func(t *testing.T) {
		res, ok, err := l.Resolve(ctx, "/vid_1700000000_42/720p/index003.ts")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "/srv/hls/vid_1700000000_42_out/720p/index003.ts", res.File)
	})

	t.Run("NotReady", func(t *testing.T) {
		res, ok, err := l.Resolve(ctx, "/vid_1700000000_7/")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "vid_1700000000_7", res.MediaID)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, ok, err := l.Resolve(ctx, "/vid_1_1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("NoID", func(t *testing.T) {
		_, ok, err := l.Resolve(ctx, "/index.html")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Escape", func(t *testing.T) {
		_, ok, err := l.Resolve(ctx, "/vid_1700000000_42/../../etc/passwd")
		assert.False(t, ok)
		assert.ErrorIs(t, err, pathsafe.ErrEscapesRoot)
	})

	t.Run("UnsafeBytes", func(t *testing.T) {
		_, ok, err := l.Resolve(ctx, "/vid_1700000000_42/a b.ts")
		assert.False(t, ok)
		assert.ErrorIs(t, err, pathsafe.ErrUnsafeInput)
	})
}
