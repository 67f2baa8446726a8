package memory

import (
	"context"
	"sync"
)

// LocalStorage is a process-local key/value store. Tokens kept here do not
// survive a restart.
type LocalStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewLocalStorage() *LocalStorage {
	return &LocalStorage{values: make(map[string]string)}
}

func (s *LocalStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *LocalStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *LocalStorage) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}
