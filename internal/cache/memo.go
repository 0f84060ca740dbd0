package cache

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/cloudplay/internal/metrics"
	"golang.org/x/sync/singleflight"
)

type memoEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memo holds values for a fixed time. Stale entries are deleted when read.
type Memo[V any] struct {
	mu    sync.Mutex
	items map[string]memoEntry[V]
	group singleflight.Group
	now   func() time.Time
}

// NewMemo returns an empty memoizer. A nil clock uses [time.Now].
func NewMemo[V any](now func() time.Time) *Memo[V] {
	if now == nil {
		now = time.Now
	}
	return &Memo[V]{items: make(map[string]memoEntry[V]), now: now}
}

// Get returns the value for key if it was set less than its ttl ago.
func (m *Memo[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, ok := m.items[key]
	if !ok {
		metrics.MemoLookups.WithLabelValues("miss").Inc()
		return zero, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.items, key)
		metrics.MemoLookups.WithLabelValues("expired").Inc()
		return zero, false
	}
	metrics.MemoLookups.WithLabelValues("hit").Inc()
	return e.value, true
}

// Set stores value for ttl. A non-positive ttl removes key instead.
func (m *Memo[V]) Set(key string, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl <= 0 {
		delete(m.items, key)
		return
	}
	m.items[key] = memoEntry[V]{value: value, expiresAt: m.now().Add(ttl)}
}

// GetOrLoad returns the memoized value or calls load once per key across concurrent callers.
//
// Errors are returned to every waiting caller and nothing is stored.
func (m *Memo[V]) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (V, error)) (V, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}

	res, err, _ := m.group.Do(key, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		m.Set(key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Delete removes key.
func (m *Memo[V]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

// Len returns the number of stored entries, stale ones included until they are read.
func (m *Memo[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
