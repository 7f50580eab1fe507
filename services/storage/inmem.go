package storagesvc

import (
	"context"
	"io"
	"sync"

	"github.com/trezvolt/darasa/core"
)

// InMemStorage keeps uploaded files in memory. Used in DEV and in tests.
type InMemStorage struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ core.FileStorage = (*InMemStorage)(nil)

func NewInMemStorage() *InMemStorage {
	return &InMemStorage{files: make(map[string][]byte)}
}

func (s *InMemStorage) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.files[key] = data
	s.mu.Unlock()
	return "mem://" + key, nil
}

func (s *InMemStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.files, key)
	s.mu.Unlock()
	return nil
}

// Get returns a stored file's contents for assertions in tests.
func (s *InMemStorage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[key]
	return data, ok
}
