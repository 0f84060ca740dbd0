// Package queue implements the playback queue and its refresh gate.
//
// A [Queue] is an ordered list of [models.QueueItem] with no two items sharing a TrackID. Index 0 is
// the item now playing. Mutations are in-memory and atomic with respect to each other.
//
// Rebuilds that need network I/O go through the refresh gate: [Queue.RequestRefresh] stores one
// [RebuildRequest] and signals [Queue.Changes]; the single listener calls [Queue.ConsumeRefresh],
// which runs the request through the [Rebuilder] and releases the gate. Requests made while the
// gate is held are dropped.
package queue

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudplay/internal/metrics"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/shared"
)

// Rebuilder carries out a [RebuildRequest] against q.
type Rebuilder interface {
	Rebuild(ctx context.Context, q *Queue, req RebuildRequest) error
}

// Queue is the ordered, deduplicated playback queue of one session.
type Queue struct {
	mu      sync.Mutex
	items   []models.QueueItem
	gate    bool
	taken   bool
	pending RebuildRequest

	rebuilder Rebuilder
	changes   chan struct{}
	logger    *log.Logger
}

// New returns an empty queue. The rebuilder may be nil, in which case refreshes only re-read the queue.
func New(rebuilder Rebuilder, logger *log.Logger) *Queue {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Queue{
		rebuilder: rebuilder,
		changes:   make(chan struct{}, 1),
		logger:    logger,
	}
}

// Changes signals that the queue should be re-read through [Queue.ConsumeRefresh].
//
// It fires when a refresh request is accepted and after every mutation. Signals coalesce.
func (q *Queue) Changes() <-chan struct{} {
	return q.changes
}

// Add appends items and removes duplicates by TrackID, keeping the first occurrence.
func (q *Queue) Add(items ...models.QueueItem) {
	q.mutate(func() { q.items = dedup(slices.Concat(q.items, items)) })
}

// Replace swaps the whole queue for items in one mutation and moves startTrackID to the head when
// it is set and present.
func (q *Queue) Replace(items []models.QueueItem, startTrackID int64) {
	q.mutate(func() {
		q.items = dedup(items)
		if startTrackID == 0 {
			return
		}
		if idx := q.indexLocked(models.QueueItem{TrackID: startTrackID}); idx > 0 {
			q.rotateLocked(idx)
		}
	})
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mutate(func() { q.items = nil })
}

// Shift rotates the queue so item is first, keeping the cyclic order of the rest.
//
// It is a no-op when item is absent or already first.
func (q *Queue) Shift(item models.QueueItem) {
	q.mutate(func() {
		if idx := q.indexLocked(item); idx > 0 {
			q.rotateLocked(idx)
		}
	})
}

// Rotate left-rotates the queue by n positions. Negative n rotates right.
func (q *Queue) Rotate(n int) {
	q.mutate(func() { q.rotateLocked(n) })
}

// Random shuffles every item after the first with a uniform Fisher-Yates pass.
func (q *Queue) Random() {
	q.mutate(func() {
		for i := len(q.items) - 1; i > 1; i-- {
			j := 1 + rand.IntN(i)
			q.items[i], q.items[j] = q.items[j], q.items[i]
		}
	})
}

// Delete removes the item with item's TrackID if present.
func (q *Queue) Delete(item models.QueueItem) {
	q.mutate(func() {
		if idx := q.indexLocked(item); idx >= 0 {
			q.items = slices.Delete(q.items, idx, idx+1)
		}
	})
}

// IndexOf returns the position of item's TrackID, or -1.
func (q *Queue) IndexOf(item models.QueueItem) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexLocked(item)
}

// Head returns the item now playing.
func (q *Queue) Head() (models.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.QueueItem{}, false
	}
	return q.items[0], true
}

// Peek returns up to n items following the head.
func (q *Queue) Peek(n int) []models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) <= 1 || n <= 0 {
		return nil
	}
	end := min(len(q.items), 1+n)
	return slices.Clone(q.items[1:end])
}

// Len returns the number of items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the items in order.
func (q *Queue) Snapshot() []models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

// RequestRefresh stores req and signals listeners unless a refresh is already pending.
//
// It reports whether req was accepted. A dropped request is not an error.
func (q *Queue) RequestRefresh(req RebuildRequest) bool {
	q.mu.Lock()
	if q.gate {
		q.mu.Unlock()
		q.logger.Debug("refresh pending, request dropped", "request", req)
		metrics.QueueRefreshes.WithLabelValues("dropped").Inc()
		return false
	}
	q.gate = true
	q.pending = req
	q.mu.Unlock()

	metrics.QueueRefreshes.WithLabelValues("accepted").Inc()
	q.notify()
	return true
}

// ConsumeRefresh takes the pending request, runs it, releases the gate and returns the queue.
//
// Only the call that takes a held gate releases it; a call with nothing pending just returns the
// snapshot. The gate is released even when the rebuild fails; the error is returned with the
// unchanged snapshot.
func (q *Queue) ConsumeRefresh(ctx context.Context) ([]models.QueueItem, error) {
	q.mu.Lock()
	if !q.gate || q.taken {
		q.mu.Unlock()
		return q.Snapshot(), nil
	}
	req := q.pending
	q.pending = RebuildRequest{}
	q.taken = true
	q.mu.Unlock()

	err := q.run(ctx, req)
	return q.Snapshot(), err
}

// Pending returns the stored request and whether the gate is held.
func (q *Queue) Pending() (RebuildRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending, q.gate
}

func (q *Queue) run(ctx context.Context, req RebuildRequest) error {
	defer func() {
		q.mu.Lock()
		q.gate, q.taken = false, false
		q.mu.Unlock()
	}()

	if req.IsZero() || q.rebuilder == nil {
		return nil
	}

	if err := q.rebuilder.Rebuild(ctx, q, req); err != nil {
		q.logger.Error("queue rebuild failed", "request", req, "error", err)
		metrics.QueueRefreshes.WithLabelValues("failed").Inc()
		return err
	}
	return nil
}

func (q *Queue) mutate(fn func()) {
	q.mu.Lock()
	fn()
	n := len(q.items)
	q.mu.Unlock()

	metrics.QueueLength.Set(float64(n))
	q.notify()
}

func (q *Queue) notify() {
	select {
	case q.changes <- struct{}{}:
	default:
	}
}

func dedup(items []models.QueueItem) []models.QueueItem {
	seen := make(map[int64]struct{}, len(items))
	out := make([]models.QueueItem, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.TrackID]; dup {
			continue
		}
		seen[item.TrackID] = struct{}{}
		out = append(out, item)
	}
	return out
}

func (q *Queue) indexLocked(item models.QueueItem) int {
	return slices.IndexFunc(q.items, item.Same)
}

func (q *Queue) rotateLocked(n int) {
	l := len(q.items)
	if l == 0 {
		return
	}
	n = ((n % l) + l) % l
	if n == 0 {
		return
	}
	q.items = slices.Concat(q.items[n:], q.items[:n])
}
