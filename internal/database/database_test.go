package database

import (
	"context"
	"path/filepath"
	"testing"

	"setlist/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), 1, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabase(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	playlist := &models.Playlist{
		OwnerID:      "user-1",
		Name:         "Road Trip",
		Description:  "songs for the car",
		ThumbnailURL: "/thumbnails/a.jpg",
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		require.NoError(t, db.CreatePlaylist(ctx, playlist))
		require.NotEmpty(t, playlist.ID)
		assert.False(t, playlist.CreatedAt.IsZero())

		got, err := db.GetPlaylist(ctx, playlist.ID)
		require.NoError(t, err)
		assert.Equal(t, "Road Trip", got.Name)
		assert.Equal(t, "songs for the car", got.Description)
		assert.Equal(t, "user-1", got.OwnerID)
		assert.Equal(t, "/thumbnails/a.jpg", got.ThumbnailURL)
		assert.True(t, got.CreatedAt.Equal(playlist.CreatedAt))
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := db.GetPlaylist(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Update", func(t *testing.T) {
		playlist.Name = "Road Trip 2"
		playlist.Description = ""
		require.NoError(t, db.UpdatePlaylist(ctx, playlist))

		got, err := db.GetPlaylist(ctx, playlist.ID)
		require.NoError(t, err)
		assert.Equal(t, "Road Trip 2", got.Name)
		assert.Equal(t, "", got.Description)
		assert.Equal(t, "/thumbnails/a.jpg", got.ThumbnailURL)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		err := db.UpdatePlaylist(ctx, &models.Playlist{ID: "nope", Name: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListFiltersByOwner", func(t *testing.T) {
		other := &models.Playlist{OwnerID: "user-2", Name: "Focus"}
		require.NoError(t, db.CreatePlaylist(ctx, other))

		all, err := db.ListPlaylists(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
		// newest first
		assert.Equal(t, other.ID, all[0].ID)

		mine, err := db.ListPlaylists(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, playlist.ID, mine[0].ID)

		none, err := db.ListPlaylists(ctx, "user-3")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, db.DeletePlaylist(ctx, playlist.ID))
		_, err := db.GetPlaylist(ctx, playlist.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, db.DeletePlaylist(ctx, playlist.ID), ErrNotFound)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, db.Ping(ctx))
	})
}
