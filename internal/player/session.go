package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudplay/internal/lyrics"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/queue"
	"github.com/desertthunder/cloudplay/internal/shared"
)

// QueueStore persists queue snapshots between runs.
type QueueStore interface {
	Save(ctx context.Context, sessionID string, items []models.QueueItem) error
	Load(ctx context.Context, sessionID string) ([]models.QueueItem, error)
}

// Status is what the view shows about playback.
type Status struct {
	Item     models.QueueItem
	Loaded   bool
	Playing  bool
	Position time.Duration
	Volume   int
	Lyric    string
}

// Session owns the queue and caches of one player and plays the queue head.
type Session struct {
	id       string
	queue    *queue.Queue
	resolver *Resolver
	native   NativePlayer
	caches   Caches
	store    QueueStore
	logger   *log.Logger

	// step serializes track changes.
	step sync.Mutex

	mu      sync.Mutex
	current models.QueueItem
	loaded  bool
	playing bool
	volume  int
	lyric   lyrics.LyricData
}

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithQueueStore persists the queue through store.
func WithQueueStore(store QueueStore) SessionOption {
	return func(s *Session) { s.store = store }
}

// WithSessionID reuses an existing session ID, for example to restore a saved queue.
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithVolume sets the initial volume.
func WithVolume(level int) SessionOption {
	return func(s *Session) { s.volume = clampVolume(level) }
}

// NewSession wires a queue, resolver and backend into a session.
func NewSession(q *queue.Queue, resolver *Resolver, native NativePlayer, logger *log.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	s := &Session{
		queue:    q,
		resolver: resolver,
		native:   native,
		caches:   resolver.caches,
		volume:   100,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = shared.GenerateID()
	}
	s.logger = shared.WithLogger(logger, "session", s.id)
	native.SetVolume(s.volume)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Queue returns the session's queue.
func (s *Session) Queue() *queue.Queue { return s.queue }

// Play loads and starts the queue head, protecting its cache entry from eviction.
func (s *Session) Play(ctx context.Context) error {
	s.step.Lock()
	defer s.step.Unlock()
	return s.play(ctx)
}

func (s *Session) play(ctx context.Context) error {
	item, ok := s.queue.Head()
	if !ok {
		return shared.ErrQueueEmpty
	}

	s.caches.Music.SetProtectedKey(item.CacheKey)

	path, err := s.resolver.Resolve(ctx, item)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", item, err)
	}

	if !s.native.Load(path) {
		return fmt.Errorf("%w: cannot load %s", shared.ErrPlayerFailed, path)
	}
	if !s.native.Play() {
		return fmt.Errorf("%w: cannot play %s", shared.ErrPlayerFailed, path)
	}

	lyric, err := s.resolver.Lyric(ctx, item)
	if err != nil {
		s.logger.Warn("lyric unavailable", "track", item.TrackID, "error", err)
	}

	s.mu.Lock()
	s.current, s.loaded, s.playing, s.lyric = item, true, true, lyric
	s.mu.Unlock()

	s.logger.Info("playing", "track", item.TrackID, "title", item.Title)
	return nil
}

// Next rotates the queue forward by one and plays the new head.
func (s *Session) Next(ctx context.Context) error {
	s.step.Lock()
	defer s.step.Unlock()
	s.queue.Rotate(1)
	return s.play(ctx)
}

// Previous rotates the queue back by one and plays the new head.
func (s *Session) Previous(ctx context.Context) error {
	s.step.Lock()
	defer s.step.Unlock()
	s.queue.Rotate(-1)
	return s.play(ctx)
}

// PlayItem moves item to the head, keeping the cyclic order, and plays it.
func (s *Session) PlayItem(ctx context.Context, item models.QueueItem) error {
	s.step.Lock()
	defer s.step.Unlock()
	if s.queue.IndexOf(item) < 0 {
		return fmt.Errorf("%w: %s is not queued", shared.ErrTrackNotFound, item)
	}
	s.queue.Shift(item)
	return s.play(ctx)
}

// Toggle pauses a playing track or resumes a paused one. It starts the head when nothing is loaded.
func (s *Session) Toggle(ctx context.Context) error {
	s.step.Lock()
	defer s.step.Unlock()

	s.mu.Lock()
	loaded, playing := s.loaded, s.playing
	s.mu.Unlock()

	switch {
	case !loaded:
		return s.play(ctx)
	case playing:
		s.native.Pause()
	default:
		if !s.native.Play() {
			return fmt.Errorf("%w: cannot resume", shared.ErrPlayerFailed)
		}
	}

	s.mu.Lock()
	s.playing = !playing
	s.mu.Unlock()
	return nil
}

// Stop stops playback and releases the protected cache key.
func (s *Session) Stop() {
	s.native.Stop()
	s.caches.Music.SetProtectedKey("")

	s.mu.Lock()
	s.loaded, s.playing = false, false
	s.lyric = lyrics.LyricData{}
	s.mu.Unlock()
}

// SetVolume sets the level, clamped to 0..100.
func (s *Session) SetVolume(level int) {
	level = clampVolume(level)
	s.native.SetVolume(level)

	s.mu.Lock()
	s.volume = level
	s.mu.Unlock()
}

// AdjustVolume changes the level by delta.
func (s *Session) AdjustVolume(delta int) {
	s.mu.Lock()
	level := s.volume + delta
	s.mu.Unlock()
	s.SetVolume(level)
}

// Finished reports whether the playing track has run out. It does not block.
func (s *Session) Finished() bool {
	s.mu.Lock()
	playing := s.playing
	s.mu.Unlock()
	return playing && s.native.Empty()
}

// Tick advances to the next track when the playing one has finished. It reports whether it advanced.
//
// The check is repeated after any track change in progress completes, so a finished track is
// advanced past at most once.
func (s *Session) Tick(ctx context.Context) (bool, error) {
	s.step.Lock()
	defer s.step.Unlock()

	if !s.Finished() {
		return false, nil
	}
	s.queue.Rotate(1)
	return true, s.play(ctx)
}

// Status returns the playback state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Item: s.current, Loaded: s.loaded, Playing: s.playing, Volume: s.volume}
	if s.loaded {
		st.Position = s.native.Position()
		st.Lyric = s.lyric.At(st.Position)
	}
	return st
}

// Save persists the current queue.
func (s *Session) Save(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	items := s.queue.Snapshot()
	if err := s.store.Save(ctx, s.id, items); err != nil {
		return fmt.Errorf("failed to save queue: %w", err)
	}
	s.logger.Debug("queue saved", "items", len(items))
	return nil
}

// Restore replaces the queue with the snapshot saved for this session.
func (s *Session) Restore(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	items, err := s.store.Load(ctx, s.id)
	if err != nil {
		return 0, fmt.Errorf("failed to restore queue: %w", err)
	}
	s.queue.Replace(items, 0)
	return s.queue.Len(), nil
}
