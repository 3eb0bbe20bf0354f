package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"setlist/pkg/models"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// WatchedStore keeps the current identity in memory and refreshes it whenever
// the storage file changes on disk, e.g. after `setlist login` in another shell.
type WatchedStore struct {
	store   *FileStore
	logger  *logrus.Logger
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	current  *models.Identity
	onChange func(*models.Identity)

	done      chan struct{}
	closeOnce sync.Once
}

// NewWatchedStore loads the current identity and starts watching the storage
// file's directory. onChange may be nil.
func NewWatchedStore(store *FileStore, onChange func(*models.Identity)) (*WatchedStore, error) {
	dir := filepath.Dir(store.Path())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// The file is replaced by rename, so watch the directory rather than the file
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	ws := &WatchedStore{
		store:    store,
		logger:   store.logger,
		watcher:  watcher,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	ws.refresh()

	go ws.watch()

	ws.logger.WithField("storage_file", store.Path()).Debug("Identity watcher started")
	return ws, nil
}

// Current implements Provider from the in-memory copy.
func (ws *WatchedStore) Current(ctx context.Context) (*models.Identity, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	if ws.current == nil {
		return nil, ErrNoUser
	}
	id := *ws.current
	return &id, nil
}

// Close stops watching (idempotent).
func (ws *WatchedStore) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		err = ws.watcher.Close()
		<-ws.done
	})
	return err
}

func (ws *WatchedStore) watch() {
	defer close(ws.done)

	target := filepath.Clean(ws.store.Path())
	for {
		select {
		case event, ok := <-ws.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				ws.refresh()
			}

		case err, ok := <-ws.watcher.Errors:
			if !ok {
				return
			}
			ws.logger.WithError(err).Error("Identity watcher error")
		}
	}
}

func (ws *WatchedStore) refresh() {
	id, err := ws.store.Current(context.Background())
	if err != nil && !errors.Is(err, ErrNoUser) {
		ws.logger.WithError(err).Warn("Failed to reload user record")
		return
	}

	ws.mu.Lock()
	changed := !sameIdentity(ws.current, id)
	ws.current = id
	callback := ws.onChange
	ws.mu.Unlock()

	if !changed {
		return
	}
	ws.logger.WithField("user_id", identityID(id)).Info("Current user changed")
	if callback != nil {
		callback(id)
	}
}

func sameIdentity(a, b *models.Identity) bool {
	return identityID(a) == identityID(b)
}

func identityID(id *models.Identity) string {
	if id == nil {
		return ""
	}
	return id.ID
}
