package storetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mediaforge/pkg/account"
	"github.com/marmos91/mediaforge/pkg/media"
)

func runUserTests(t *testing.T, factory StoreFactory) {
	users := func(t *testing.T) account.Store {
		return factory(t).(account.Store)
	}

	t.Run("GetReturnsCreatedUser", func(t *testing.T) {
		store := users(t)
		ctx := t.Context()

		require.NoError(t, store.CreateUser(ctx, &account.User{Username: "alice", PasswordHash: "$2a$04$hash"}))

		got, err := store.GetUser(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, "$2a$04$hash", got.PasswordHash)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		store := users(t)
		ctx := t.Context()

		require.NoError(t, store.CreateUser(ctx, &account.User{Username: "bob", PasswordHash: "first"}))
		err := store.CreateUser(ctx, &account.User{Username: "bob", PasswordHash: "second"})
		assert.ErrorIs(t, err, account.ErrDuplicateUser)

		got, err := store.GetUser(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "first", got.PasswordHash, "the original user is kept")
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, err := users(t).GetUser(t.Context(), "nobody")
		assert.ErrorIs(t, err, account.ErrUserNotFound)
	})

	t.Run("UsersDoNotAppearAsMedia", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		require.NoError(t, store.(account.Store).CreateUser(ctx, &account.User{Username: "carol", PasswordHash: "h"}))
		recs, err := store.ListMedia(ctx, media.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}
