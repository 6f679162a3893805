// Package cache memoizes computed report responses.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"sync"
	"time"

	applog "financeiro/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Key derives a cache key from an endpoint, its query parameters and the
// request body. Parameters are encoded in sorted order.
func Key(endpoint string, params url.Values, body []byte) string {
	sum := sha256.Sum256(body)
	return endpoint + "?" + params.Encode() + "#" + hex.EncodeToString(sum[:])
}

// LookupObserver is told about every Memo lookup.
type LookupObserver interface {
	ObserveCacheLookup(hit bool)
}

// Memo fronts a cache with a compute function.
type Memo[T any] struct {
	cache    Cache[T]
	observer LookupObserver
}

func NewMemo[T any](c Cache[T], observer LookupObserver) *Memo[T] {
	return &Memo[T]{cache: c, observer: observer}
}

// Get returns the cached value for key or computes and stores it. Failed
// computations are not cached.
func (m *Memo[T]) Get(key string, compute func() (T, error)) (T, bool, error) {
	if v, ok := m.cache.Get(key); ok {
		m.observe(true)
		return v, true, nil
	}
	m.observe(false)
	v, err := compute()
	if err != nil {
		return v, false, err
	}
	m.cache.Set(key, v)
	return v, false, nil
}

func (m *Memo[T]) observe(hit bool) {
	if m.observer != nil {
		m.observer.ObserveCacheLookup(hit)
	}
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	caches      []Cleaner
	logger      *slog.Logger
	started     bool
	stopOnce    sync.Once
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:      logger.With(applog.FieldComponent, applog.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// CleanAll runs one cleanup pass and returns the number of removed entries.
func (m *Manager) CleanAll() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// StartCleanup begins periodic cleanup until ctx is done or Stop is called.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	m.started = true
	go m.cleanup(ctx, interval)
}

func (m *Manager) cleanup(ctx context.Context, interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanAll(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "removed", n)
			}
		case <-ctx.Done():
			return
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup routine started by StartCleanup and waits for it.
func (m *Manager) Stop() {
	if !m.started {
		return
	}
	m.stopOnce.Do(func() { close(m.stopCleanup) })
	<-m.cleanupDone
}
