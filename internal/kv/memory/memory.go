package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"financeiro/internal/kv"
)

// Store keeps values in a map. A positive quota caps the total size of
// keys and values in bytes, like browser local storage.
type Store struct {
	mu    sync.Mutex
	items map[string]string
	quota int
	used  int
}

func New() *Store {
	return &Store{items: make(map[string]string)}
}

// NewWithQuota returns a store that rejects writes growing past quota bytes.
func NewWithQuota(quota int) *Store {
	s := New()
	s.quota = quota
	return s
}

// NewFromDir seeds a store with every <key>.json file in dir. A missing dir
// yields an empty store.
func NewFromDir(dir string) (*Store, error) {
	s := New()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read seed %s: %w", e.Name(), err)
		}
		s.put(strings.TrimSuffix(e.Name(), ".json"), string(data))
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quota > 0 {
		next := s.used - s.sizeOf(key) + len(key) + len(value)
		if next > s.quota {
			return fmt.Errorf("set %s (%d bytes): %w", key, len(value), kv.ErrQuotaExceeded)
		}
	}
	s.put(key, value)
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used -= s.sizeOf(key)
	delete(s.items, key)
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) put(key, value string) {
	s.used += len(key) + len(value) - s.sizeOf(key)
	s.items[key] = value
}

func (s *Store) sizeOf(key string) int {
	v, ok := s.items[key]
	if !ok {
		return 0
	}
	return len(key) + len(v)
}

var _ kv.Store = (*Store)(nil)
