package memsession

import (
	"context"
	"sync"

	"mydiscovery/service"
)

// Store is a volatile session store keeping values in a process-local
// map. It preserves rich Go values, is safe for concurrent access and
// is best suited for tests and single-process deployments.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// New creates an empty in-memory session store.
func New() *Store {
	return &Store{
		values: make(map[string]any),
	}
}

func (s *Store) Get(_ context.Context, key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, service.NewEntityNotFoundError("session key not found", nil)
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}
