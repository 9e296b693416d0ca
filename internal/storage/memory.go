package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process EntityStore used by tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		kind := s.data[rec.Kind]
		if kind == nil {
			kind = make(map[string][]byte)
			s.data[rec.Kind] = kind
		}
		value := make([]byte, len(rec.Value))
		copy(value, rec.Value)
		kind[rec.Key] = value
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, kind, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[kind][key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *MemoryStore) Scan(ctx context.Context, kind string, fn func(key string, value []byte) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data[kind]))
	for k := range s.data[kind] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.mu.RUnlock()

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.RLock()
		value := s.data[kind][k]
		s.mu.RUnlock()
		if err := fn(k, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
