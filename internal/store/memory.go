package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is a map-backed Store used by tests and ephemeral mode. It
// honors the same contract minus durability across process restarts.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]json.RawMessage
}

func NewMemory() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]json.RawMessage)}
}

func (s *MemoryStore) Get(_ context.Context, collection, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Put(_ context.Context, collection, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.data[collection]
	if !ok {
		col = make(map[string]json.RawMessage)
		s.data[collection] = col
	}
	cp := make(json.RawMessage, len(value))
	copy(cp, value)
	col[key] = cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], key)
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data[collection]))
	for k := range s.data[collection] {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *MemoryStore) Scan(_ context.Context, collection string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]Record, 0, len(s.data[collection]))
	for k, v := range s.data[collection] {
		recs = append(recs, Record{Key: k, Value: v})
	}
	return recs, nil
}

var _ Store = (*MemoryStore)(nil)
