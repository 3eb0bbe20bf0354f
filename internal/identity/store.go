package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"setlist/pkg/models"

	"github.com/sirupsen/logrus"
)

// FileStore is a string key/value store persisted as one JSON object on disk.
// Values are stored as strings; the user record is a JSON document kept as a
// string under UserKey.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger *logrus.Logger
}

// NewFileStore creates a store backed by path. The file is created lazily.
func NewFileStore(path string, logger *logrus.Logger) *FileStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value stored under key.
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		return "", false, err
	}
	value, ok := items[key]
	return value, ok, nil
}

// Set stores value under key.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		return err
	}
	items[key] = value
	return s.write(items)
}

// Remove deletes key. Removing a missing key is not an error.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return s.write(items)
}

// Current implements Provider by decoding the record under UserKey.
func (s *FileStore) Current(ctx context.Context) (*models.Identity, error) {
	raw, ok, err := s.Get(UserKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, ErrNoUser
	}

	var id models.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil, fmt.Errorf("failed to decode user record: %w", err)
	}
	if id.ID == "" {
		return nil, ErrNoUser
	}
	return &id, nil
}

// Login records id as the current user.
func (s *FileStore) Login(id string) error {
	if id == "" {
		return errors.New("user id cannot be empty")
	}
	record, err := json.Marshal(models.Identity{ID: id})
	if err != nil {
		return err
	}
	if err := s.Set(UserKey, string(record)); err != nil {
		return err
	}
	s.logger.WithField("user_id", id).Info("User registered")
	return nil
}

// Logout forgets the current user.
func (s *FileStore) Logout() error {
	if err := s.Remove(UserKey); err != nil {
		return err
	}
	s.logger.Info("User removed")
	return nil
}

func (s *FileStore) read() (map[string]string, error) {
	items := make(map[string]string)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse storage file: %w", err)
	}
	return items, nil
}

// write replaces the file atomically so watchers never see a partial document.
func (s *FileStore) write(items map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".storage-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace storage file: %w", err)
	}
	return nil
}
