// package library indexes a user's local audio directory so queue items can play from disk.
package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudplay/internal/cache"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/desertthunder/cloudplay/internal/store"
	"github.com/dhowden/tag"
	"github.com/fsnotify/fsnotify"
)

// LocalTrack is an audio file found in the library directory.
type LocalTrack struct {
	Key    string `json:"key"`
	Path   string `json:"path"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
}

// Library maps normalized title/artist pairs to files in a [store.DirStore] and keeps the
// local [cache.Cache] in step with the directory.
type Library struct {
	dir    *store.DirStore
	cache  *cache.Cache
	logger *log.Logger
	settle time.Duration

	mu     sync.RWMutex
	tracks map[string]LocalTrack // by store key
	byName map[string]string     // normalized title|artist -> store key
}

// settleDelay is how long a written file must go without events before it is read.
const settleDelay = 500 * time.Millisecond

// New creates a library over dir whose blobs are indexed by local.
func New(dir *store.DirStore, local *cache.Cache, logger *log.Logger) *Library {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Library{
		dir:    dir,
		cache:  local,
		logger: shared.WithLogger(logger, "component", "library"),
		settle: settleDelay,
		tracks: make(map[string]LocalTrack),
		byName: make(map[string]string),
	}
}

// Scan reads the tags of every audio file and returns the number of tracks indexed.
func (l *Library) Scan(ctx context.Context) (int, error) {
	keys, err := l.dir.Keys()
	if err != nil {
		return 0, err
	}

	tracks := make(map[string]LocalTrack, len(keys))
	byName := make(map[string]string, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		t := l.readTrack(key)
		tracks[key] = t
		byName[shared.NormalizeTrackKey(t.Title, t.Artist)] = key

		if l.cache != nil && !l.cache.Contains(key) {
			if err := l.cache.Register(ctx, key); err != nil {
				l.logger.Warn("failed to register local file", "key", key, "error", err)
			}
		}
	}

	l.mu.Lock()
	l.tracks = tracks
	l.byName = byName
	l.mu.Unlock()

	l.logger.Debug("library scanned", "dir", l.dir.Dir(), "tracks", len(tracks))
	return len(tracks), nil
}

// Tracks returns the indexed tracks sorted by key.
func (l *Library) Tracks() []LocalTrack {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LocalTrack, 0, len(l.tracks))
	for _, t := range l.tracks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Find returns the file for a title and artist.
func (l *Library) Find(title, artist string) (LocalTrack, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	key, ok := l.byName[shared.NormalizeTrackKey(title, artist)]
	if !ok {
		return LocalTrack{}, false
	}
	return l.tracks[key], true
}

// Match finds a local file for a queue item, trying each credited artist, the joined artist
// list, and the title with its alias removed.
func (l *Library) Match(item models.QueueItem) (LocalTrack, bool) {
	titles := []string{item.Title}
	if base, _, ok := strings.Cut(item.Title, " ("); ok {
		titles = append(titles, base)
	}
	artists := append(append([]string{}, item.Artists...), item.Description())

	for _, title := range titles {
		for _, artist := range artists {
			if t, ok := l.Find(title, artist); ok {
				return t, true
			}
		}
	}
	return LocalTrack{}, false
}

// Watch applies directory changes to the index and the local cache until ctx is done.
//
// Created or written audio files are (re)registered; removed or renamed ones are invalidated.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			l.logger.Error("failed to close file watcher", "error", err)
		}
	}()

	count := l.addDirectories(watcher, l.dir.Dir())
	l.logger.Debug("library watcher started", "directories", count)

	ticker := time.NewTicker(l.settle)
	defer ticker.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			l.handleEvent(ctx, watcher, event, pending)
		case now := <-ticker.C:
			l.flush(ctx, pending, now)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("watcher error", "error", err)
		}
	}
}

func (l *Library) addDirectories(watcher *fsnotify.Watcher, root string) int {
	count := 0
	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			l.logger.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		l.logger.Error("failed to walk library for watcher", "error", err)
	}
	return count
}

// handleEvent records created or written audio files in pending; they are read once writes settle.
func (l *Library) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event, pending map[string]time.Time) {
	if strings.Contains(filepath.ToSlash(event.Name), "/.") {
		return
	}

	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if watcher != nil {
				l.addDirectories(watcher, event.Name)
			}
			return
		}
		if store.IsAudio(event.Name) {
			pending[event.Name] = time.Now()
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if store.IsAudio(event.Name) {
			delete(pending, event.Name)
			l.remove(ctx, event.Name)
		}
	}
}

// flush adds every pending file with no event in the last settle interval.
func (l *Library) flush(ctx context.Context, pending map[string]time.Time, now time.Time) {
	for path, last := range pending {
		if now.Sub(last) < l.settle {
			continue
		}
		delete(pending, path)
		l.add(ctx, path)
	}
}

func (l *Library) add(ctx context.Context, path string) {
	key, err := l.dir.Key(path)
	if err != nil {
		return
	}
	t := l.readTrack(key)

	l.mu.Lock()
	if old, ok := l.tracks[key]; ok {
		delete(l.byName, shared.NormalizeTrackKey(old.Title, old.Artist))
	}
	l.tracks[key] = t
	l.byName[shared.NormalizeTrackKey(t.Title, t.Artist)] = key
	l.mu.Unlock()

	if l.cache != nil {
		if err := l.cache.Register(ctx, key); err != nil {
			l.logger.Warn("failed to register local file", "key", key, "error", err)
			return
		}
	}
	l.logger.Debug("local file added", "key", key, "title", t.Title)
}

func (l *Library) remove(ctx context.Context, path string) {
	key, err := l.dir.Key(path)
	if err != nil {
		return
	}

	l.mu.Lock()
	if old, ok := l.tracks[key]; ok {
		delete(l.byName, shared.NormalizeTrackKey(old.Title, old.Artist))
		delete(l.tracks, key)
	}
	l.mu.Unlock()

	if l.cache != nil {
		if err := l.cache.Invalidate(ctx, key); err != nil && !errors.Is(err, shared.ErrNotFound) {
			l.logger.Warn("failed to invalidate local file", "key", key, "error", err)
		}
	}
	l.logger.Debug("local file removed", "key", key)
}

// readTrack reads embedded tags, falling back to an "Artist - Title" file name.
func (l *Library) readTrack(key string) LocalTrack {
	path := l.dir.Path(key)
	t := LocalTrack{Key: key, Path: path}

	if f, err := os.Open(path); err == nil {
		m, err := tag.ReadFrom(f)
		f.Close()
		if err == nil {
			t.Title = strings.TrimSpace(m.Title())
			t.Artist = strings.TrimSpace(m.Artist())
			t.Album = strings.TrimSpace(m.Album())
		}
	}

	if t.Title == "" || t.Artist == "" {
		title, artist := fromFileName(path)
		if t.Title == "" {
			t.Title = title
		}
		if t.Artist == "" {
			t.Artist = artist
		}
	}
	return t
}

func fromFileName(path string) (title, artist string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if a, ttl, ok := strings.Cut(base, " - "); ok {
		return strings.TrimSpace(ttl), strings.TrimSpace(a)
	}
	return strings.TrimSpace(base), ""
}
