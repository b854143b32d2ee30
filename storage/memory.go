package storage

import (
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/pkg/errors"
)

// MemoryStore is an in-process Store, ordered by name.
type MemoryStore struct {
	mu      sync.Mutex
	entries *treemap.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: treemap.NewWithStringComparator()}
}

func (s *MemoryStore) Put(name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Put(name, append([]byte(nil), data...))
	return nil
}

func (s *MemoryStore) Get(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries.Get(name)
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	return append([]byte(nil), v.([]byte)...), nil
}

func (s *MemoryStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.entries.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.(string)
	}
	return names, nil
}

// Len reports the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Size()
}
