package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"setlist/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewFileStore(filepath.Join(t.TempDir(), "client", "storage.json"), logger)
}

func TestStatic(t *testing.T) {
	ctx := context.Background()

	_, err := Static{}.Current(ctx)
	assert.ErrorIs(t, err, ErrNoUser)

	_, err = Static{Identity: &models.Identity{}}.Current(ctx)
	assert.ErrorIs(t, err, ErrNoUser)

	id, err := Static{Identity: &models.Identity{ID: "u1"}}.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.ID)
}

func TestFileStoreMissingFile(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.Get(UserKey)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestFileStoreLoginLogout(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Login("user-42"))

	id, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id.ID)

	// The record is kept as a JSON string under "User"
	raw, ok, err := store.Get(UserKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"user-42"}`, raw)

	require.NoError(t, store.Logout())
	_, err = store.Current(ctx)
	assert.ErrorIs(t, err, ErrNoUser)

	require.NoError(t, store.Logout(), "logout twice should be a no-op")
	assert.Error(t, store.Login(""))
}

func TestFileStoreKeepsOtherKeys(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("theme", "dark"))
	require.NoError(t, store.Login("u1"))
	require.NoError(t, store.Logout())

	value, ok, err := store.Get("theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", value)
}

func TestFileStoreReadsExistingDocument(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0755))
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"User":"{\"id\":\"abc\"}"}`), 0644))

	id, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", id.ID)
}

func TestFileStoreRejectsCorruptRecords(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0755))

	require.NoError(t, os.WriteFile(store.Path(), []byte(`not json`), 0644))
	_, err := store.Current(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoUser)

	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"User":"nope"}`), 0644))
	_, err = store.Current(context.Background())
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"User":"{}"}`), 0644))
	_, err = store.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestWatchedStoreFollowsChanges(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Login("first"))

	changes := make(chan string, 8)
	ws, err := NewWatchedStore(store, func(id *models.Identity) {
		if id == nil {
			changes <- ""
			return
		}
		changes <- id.ID
	})
	require.NoError(t, err)
	defer ws.Close()

	ctx := context.Background()
	id, err := ws.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", id.ID)
	assert.Equal(t, "first", <-changes)

	require.NoError(t, store.Login("second"))
	require.Eventually(t, func() bool {
		id, err := ws.Current(ctx)
		return err == nil && id.ID == "second"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, store.Logout())
	require.Eventually(t, func() bool {
		_, err := ws.Current(ctx)
		return err == ErrNoUser
	}, 2*time.Second, 10*time.Millisecond)

	assert.NoError(t, ws.Close())
	assert.NoError(t, ws.Close())
}
