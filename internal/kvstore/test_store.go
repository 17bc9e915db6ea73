package kvstore

import (
	"context"
	"encoding/json"
	"sync"
)

// TestStore is an in-memory Store used by unit tests across packages.
type TestStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewTestStore() *TestStore {
	return &TestStore{
		data: map[string][]byte{},
	}
}

func (s *TestStore) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	valueBytes, ok := s.data[key]
	if !ok {
		return ErrKeyNotFound
	}
	return json.Unmarshal(valueBytes, dest)
}

func (s *TestStore) Set(_ context.Context, key string, value interface{}) error {
	valueBytes, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = valueBytes
	return nil
}

func (s *TestStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
