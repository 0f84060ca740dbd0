// Package cache implements the integrity-checked blob cache and the response memoizer.
//
// A [Cache] indexes blobs held by a [Blobs] store with {key, md5, size, last access} metadata,
// verifies every read against the recorded hash, and evicts least-recently-used entries to stay
// within a byte budget. One key may be protected from eviction; it is skipped during the eviction
// scan, as is the key being inserted, so the new entry is always admitted even when nothing else
// can be evicted.
//
// A [Memo] holds decoded API responses for a TTL and is never persisted.
package cache

import (
	"cmp"
	"container/list"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudplay/internal/metrics"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/shared"
)

// Options configures a [Cache].
type Options struct {
	Namespace string
	Budget    int64 // bytes; zero means unbounded
	Index     Index
	Logger    *log.Logger
	Now       func() time.Time
}

// Stats is a point-in-time summary of a [Cache].
type Stats struct {
	Namespace  string `json:"namespace"`
	Entries    int    `json:"entries"`
	Bytes      int64  `json:"bytes"`
	Budget     int64  `json:"budget"`
	Protected  string `json:"protected,omitempty"`
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
	Evictions  int64  `json:"evictions"`
	Mismatches int64  `json:"mismatches"`
}

// Cache is a size-bounded, integrity-checked index over a blob store.
type Cache struct {
	namespace string
	budget    int64
	blobs     Blobs
	index     Index
	logger    *log.Logger
	now       func() time.Time
	locks     *keyLocks

	mu        sync.Mutex
	lru       *list.List // front is least recently used
	entries   map[string]*list.Element
	total     int64
	seq       int64
	protected string
	stats     Stats
}

// Hash returns the hex MD5 of data, the form the music service reports for streams.
func Hash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Open builds a cache over blobs, loading metadata from the index when one is configured.
//
// Entries whose blob has gone missing are dropped. When there is no stored metadata the cache is
// rebuilt from the blobs themselves.
func Open(ctx context.Context, blobs Blobs, opts Options) (*Cache, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("%w: cache namespace is required", shared.ErrInvalidInput)
	}
	if opts.Budget < 0 {
		return nil, fmt.Errorf("%w: negative cache budget", shared.ErrInvalidInput)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache{
		namespace: opts.Namespace,
		budget:    opts.Budget,
		blobs:     blobs,
		index:     opts.Index,
		logger:    shared.WithLogger(opts.Logger, "namespace", opts.Namespace),
		now:       opts.Now,
		locks:     newKeyLocks(),
		lru:       list.New(),
		entries:   make(map[string]*list.Element),
	}

	var loaded []models.CacheEntry
	if c.index != nil {
		var err error
		loaded, err = c.index.Load(ctx, c.namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to load cache index: %w", err)
		}
	}

	if len(loaded) == 0 {
		if _, err := c.Rebuild(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sortLRU(loaded)
	for _, e := range loaded {
		if _, err := c.blobs.SizeOf(e.Key); errors.Is(err, shared.ErrNotFound) {
			c.logger.Debug("dropping index entry without blob", "key", e.Key)
			c.removeIndexLocked(ctx, e.Key)
			continue
		}
		entry := e
		c.entries[e.Key] = c.lru.PushBack(&entry)
		c.total += e.SizeBytes
		c.seq = max(c.seq, e.Seq)
	}
	c.evictLocked(ctx, "")
	c.observeLocked()

	c.logger.Debug("cache opened", "entries", len(c.entries), "bytes", c.total)
	return c, nil
}

// Namespace returns the cache namespace.
func (c *Cache) Namespace() string { return c.namespace }

// Budget returns the byte budget; zero means unbounded.
func (c *Cache) Budget() int64 { return c.budget }

// CurrentSize returns the sum of SizeBytes over all entries.
func (c *Cache) CurrentSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Len returns the number of indexed entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Contains reports whether key is indexed, without verifying or touching it.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// SetProtectedKey marks key as immune to eviction, replacing any previous protected key.
//
// An empty key clears protection.
func (c *Cache) SetProtectedKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.protected = key
}

// ProtectedKey returns the key currently immune to eviction.
func (c *Cache) ProtectedKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protected
}

// Lookup returns the verified blob for key.
//
// A missing entry yields [shared.ErrNotFound]. A blob whose hash disagrees with the index is
// removed together with its entry and reported as [shared.ErrNotFound] wrapping
// [shared.ErrIntegrityMismatch]. Store failures are returned as is.
func (c *Cache) Lookup(ctx context.Context, key string) ([]byte, error) {
	unlock := c.locks.Lock(key)
	defer unlock()

	data, err := c.verifyLocked(ctx, key)
	if err != nil {
		return nil, err
	}
	c.touch(ctx, key)
	return data, nil
}

// LookupPath verifies key like [Cache.Lookup] and returns the blob's path for the native player.
func (c *Cache) LookupPath(ctx context.Context, key string) (string, error) {
	if _, err := c.Lookup(ctx, key); err != nil {
		return "", err
	}
	return c.blobs.Path(key), nil
}

// Insert stores data under key, then records its metadata and evicts to fit the budget.
//
// An empty hash is computed from data; a non-empty hash that disagrees with data is rejected
// with [shared.ErrIntegrityMismatch] and nothing is stored. A non-positive size defaults to len(data).
func (c *Cache) Insert(ctx context.Context, key string, data []byte, hash string, size int64) error {
	sum := Hash(data)
	if hash != "" && !strings.EqualFold(hash, sum) {
		return fmt.Errorf("%w: %s: expected %s, got %s", shared.ErrIntegrityMismatch, key, strings.ToLower(hash), sum)
	}
	if size <= 0 {
		size = int64(len(data))
	}

	unlock := c.locks.Lock(key)
	defer unlock()

	if _, err := c.blobs.Put(key, data); err != nil {
		return err
	}

	c.admit(ctx, key, sum, size)
	return nil
}

// Register indexes a blob that is already present in the store, computing its hash and size.
func (c *Cache) Register(ctx context.Context, key string) error {
	unlock := c.locks.Lock(key)
	defer unlock()

	data, err := c.blobs.Get(key)
	if err != nil {
		return err
	}

	c.admit(ctx, key, Hash(data), int64(len(data)))
	return nil
}

// Invalidate removes key's metadata and blob.
//
// It returns [shared.ErrNotFound] only when neither existed.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	unlock := c.locks.Lock(key)
	defer unlock()

	indexed := c.unindex(ctx, key)
	err := c.blobs.Delete(key)
	switch {
	case errors.Is(err, shared.ErrNotFound) && indexed:
		return nil
	case err != nil:
		return err
	}

	c.logger.Debug("invalidated", "key", key)
	return nil
}

// Verify re-reads every entry and removes the ones whose blob is missing or corrupted.
//
// Access times are left unchanged. The removed keys are returned in LRU order.
func (c *Cache) Verify(ctx context.Context) ([]string, error) {
	var removed []string
	for _, e := range c.Entries() {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		unlock := c.locks.Lock(e.Key)
		_, err := c.verifyLocked(ctx, e.Key)
		unlock()

		switch {
		case err == nil:
		case errors.Is(err, shared.ErrNotFound):
			removed = append(removed, e.Key)
		default:
			return removed, err
		}
	}
	return removed, nil
}

// Rebuild discards all metadata and re-derives it by scanning the store.
//
// Hashes and sizes are recomputed from the blobs and the file modification time becomes the last
// access time. It returns the number of entries indexed.
func (c *Cache) Rebuild(ctx context.Context) (int, error) {
	keys, err := c.blobs.Keys()
	if err != nil {
		return 0, err
	}

	rebuilt := make([]models.CacheEntry, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		data, err := c.blobs.Get(key)
		if err != nil {
			c.logger.Warn("skipping unreadable blob", "key", key, "error", err)
			continue
		}

		modTime := c.now()
		if info, err := os.Stat(c.blobs.Path(key)); err == nil {
			modTime = info.ModTime()
		}
		rebuilt = append(rebuilt, models.CacheEntry{
			Key:           key,
			IntegrityHash: Hash(data),
			SizeBytes:     int64(len(data)),
			LastAccess:    modTime,
		})
	}
	slices.SortStableFunc(rebuilt, func(a, b models.CacheEntry) int { return a.LastAccess.Compare(b.LastAccess) })

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Init()
	clear(c.entries)
	c.total, c.seq = 0, 0
	if c.index != nil {
		if err := c.index.Clear(ctx, c.namespace); err != nil {
			c.logger.Warn("failed to clear cache index", "error", err)
		}
	}

	for _, e := range rebuilt {
		c.seq++
		entry := e
		entry.Seq = c.seq
		c.entries[e.Key] = c.lru.PushBack(&entry)
		c.total += e.SizeBytes
		c.upsertIndexLocked(ctx, entry)
	}
	c.evictLocked(ctx, "")
	c.observeLocked()

	if len(rebuilt) > 0 {
		c.logger.Info("rebuilt cache index", "entries", len(c.entries), "bytes", c.total)
	}
	return len(c.entries), nil
}

// Clear removes every entry and its blob.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for key := range c.entries {
		if err := c.blobs.Delete(key); err != nil && !errors.Is(err, shared.ErrNotFound) {
			errs = append(errs, err)
		}
	}

	c.lru.Init()
	clear(c.entries)
	c.total = 0
	if c.index != nil {
		if err := c.index.Clear(ctx, c.namespace); err != nil {
			c.logger.Warn("failed to clear cache index", "error", err)
		}
	}
	c.observeLocked()
	return errors.Join(errs...)
}

// Entries returns a copy of the metadata in eviction order, least recently used first.
func (c *Cache) Entries() []models.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.CacheEntry, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*models.CacheEntry))
	}
	return out
}

// Stats returns counters and sizes for reporting.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Namespace = c.namespace
	s.Entries = len(c.entries)
	s.Bytes = c.total
	s.Budget = c.budget
	s.Protected = c.protected
	return s
}

// verifyLocked reads and checks key's blob. The caller holds key's lock.
func (c *Cache) verifyLocked(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	el, ok := c.entries[key]
	var want string
	if ok {
		want = el.Value.(*models.CacheEntry).IntegrityHash
	}
	c.mu.Unlock()

	if !ok {
		c.recordMiss()
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, key)
	}

	data, err := c.blobs.Get(key)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		c.logger.Debug("blob missing, dropping entry", "key", key)
		c.unindex(ctx, key)
		c.recordMiss()
		return nil, err
	case err != nil:
		return nil, err
	}

	if got := Hash(data); got != want {
		c.logger.Warn("integrity mismatch, removing entry", "key", key, "want", want, "got", got)
		c.unindex(ctx, key)
		if err := c.blobs.Delete(key); err != nil && !errors.Is(err, shared.ErrNotFound) {
			c.logger.Warn("failed to remove corrupted blob", "key", key, "error", err)
		}

		c.mu.Lock()
		c.stats.Mismatches++
		c.mu.Unlock()
		metrics.CacheIntegrityMismatches.WithLabelValues(c.namespace).Inc()

		c.recordMiss()
		return nil, fmt.Errorf("%w: %w: %s", shared.ErrNotFound, shared.ErrIntegrityMismatch, key)
	}
	return data, nil
}

// admit records metadata for a blob already in the store. The caller holds key's lock.
func (c *Cache) admit(ctx context.Context, key, hash string, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.unlinkLocked(el)
	}

	c.seq++
	entry := &models.CacheEntry{Key: key, IntegrityHash: hash, SizeBytes: size, LastAccess: c.now(), Seq: c.seq}
	c.entries[key] = c.lru.PushBack(entry)
	c.total += size
	c.upsertIndexLocked(ctx, *entry)

	c.evictLocked(ctx, key)
	c.observeLocked()
}

// evictLocked drops least recently used entries until the budget holds or nothing is evictable.
//
// The protected key, skip and any key another goroutine is working on are passed over.
func (c *Cache) evictLocked(ctx context.Context, skip string) {
	if c.budget == 0 {
		return
	}

	for el := c.lru.Front(); el != nil && c.total > c.budget; {
		next := el.Next()
		entry := el.Value.(*models.CacheEntry)
		if entry.Key == c.protected || entry.Key == skip {
			el = next
			continue
		}

		unlock, ok := c.locks.TryLock(entry.Key)
		if !ok {
			el = next
			continue
		}

		if err := c.blobs.Delete(entry.Key); err != nil && !errors.Is(err, shared.ErrNotFound) {
			c.logger.Warn("failed to delete evicted blob", "key", entry.Key, "error", err)
		}
		c.unlinkLocked(el)
		c.removeIndexLocked(ctx, entry.Key)
		unlock()

		c.stats.Evictions++
		metrics.CacheEvictions.WithLabelValues(c.namespace).Inc()
		c.logger.Debug("evicted", "key", entry.Key, "size", entry.SizeBytes)
		el = next
	}
}

// unindex removes key's metadata and reports whether it was present.
func (c *Cache) unindex(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.unlinkLocked(el)
	c.removeIndexLocked(ctx, key)
	c.observeLocked()
	return true
}

func (c *Cache) unlinkLocked(el *list.Element) {
	entry := c.lru.Remove(el).(*models.CacheEntry)
	delete(c.entries, entry.Key)
	c.total -= entry.SizeBytes
}

func (c *Cache) touch(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return
	}
	entry := el.Value.(*models.CacheEntry)
	entry.LastAccess = c.now()
	c.lru.MoveToBack(el)

	c.stats.Hits++
	metrics.CacheHits.WithLabelValues(c.namespace).Inc()

	if c.index != nil {
		if err := c.index.Touch(ctx, c.namespace, key, entry.LastAccess); err != nil {
			c.logger.Warn("failed to record access", "key", key, "error", err)
		}
	}
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	metrics.CacheMisses.WithLabelValues(c.namespace).Inc()
}

func (c *Cache) upsertIndexLocked(ctx context.Context, entry models.CacheEntry) {
	if c.index == nil {
		return
	}
	if err := c.index.Upsert(ctx, c.namespace, entry); err != nil {
		c.logger.Warn("failed to persist cache entry", "key", entry.Key, "error", err)
	}
}

func (c *Cache) removeIndexLocked(ctx context.Context, key string) {
	if c.index == nil {
		return
	}
	if err := c.index.Remove(ctx, c.namespace, key); err != nil {
		c.logger.Warn("failed to remove cache entry from index", "key", key, "error", err)
	}
}

func (c *Cache) observeLocked() {
	metrics.CacheBytes.WithLabelValues(c.namespace).Set(float64(c.total))
	metrics.CacheEntries.WithLabelValues(c.namespace).Set(float64(len(c.entries)))
}

// sortLRU orders entries by last access, breaking ties by insertion sequence.
func sortLRU(entries []models.CacheEntry) {
	slices.SortFunc(entries, func(a, b models.CacheEntry) int {
		if n := a.LastAccess.Compare(b.LastAccess); n != 0 {
			return n
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
}
