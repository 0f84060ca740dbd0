package player

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/cloudplay/internal/cache"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/queue"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/desertthunder/cloudplay/internal/store"
	tu "github.com/desertthunder/cloudplay/internal/testing"
)

type fakeNative struct {
	mu       sync.Mutex
	loaded   string
	playing  bool
	finished bool
	volume   int
	failLoad bool
	loads    []string
}

func (f *fakeNative) Load(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad {
		return false
	}
	f.loaded, f.playing, f.finished = path, false, false
	f.loads = append(f.loads, path)
	return true
}

func (f *fakeNative) Play() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = f.loaded != ""
	return f.playing
}

func (f *fakeNative) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
}

func (f *fakeNative) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded, f.playing = "", false
}

func (f *fakeNative) SetVolume(level int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = level
}

func (f *fakeNative) Position() time.Duration { return 2 * time.Second }

func (f *fakeNative) Empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded == "" || f.finished
}

func (f *fakeNative) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
}

type memQueueStore struct {
	saved map[string][]models.QueueItem
}

func (m *memQueueStore) Save(ctx context.Context, id string, items []models.QueueItem) error {
	m.saved[id] = items
	return nil
}

func (m *memQueueStore) Load(ctx context.Context, id string) ([]models.QueueItem, error) {
	items, ok := m.saved[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return items, nil
}

func media(id int64) []byte {
	return bytes.Repeat([]byte{byte(id)}, 10)
}

func newSource(ids ...int64) *tu.MockService {
	svc := &tu.MockService{
		Details: map[int64]models.SongDetail{},
		Media:   map[string][]byte{},
		Lyrics:  map[int64]string{},
	}
	for _, id := range ids {
		url := "http://media/" + strconv.FormatInt(id, 10)
		svc.Details[id] = models.SongDetail{ID: id, URL: url, MD5: cache.Hash(media(id)), Size: 10}
		svc.Media[url] = media(id)
		svc.Lyrics[id] = "[00:01.00]line " + strconv.FormatInt(id, 10)
	}
	return svc
}

func item(id int64) models.QueueItem {
	return models.NewQueueItem(models.Track{ID: id, Name: "Song " + strconv.FormatInt(id, 10), Artists: []models.Artist{{Name: "A"}}}, 0)
}

func newCaches(t *testing.T, budget int64) Caches {
	t.Helper()
	ctx := context.Background()
	logger := shared.NewLogger(&bytes.Buffer{})
	root := t.TempDir()

	musicStore, err := store.New(root, "music")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	lyricStore, err := store.New(root, "lyric", store.WithCompression(1))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { lyricStore.Close() })

	music, err := cache.Open(ctx, musicStore, cache.Options{Namespace: "music", Budget: budget, Logger: logger})
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	lyric, err := cache.Open(ctx, lyricStore, cache.Options{Namespace: "lyric", Logger: logger})
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	return Caches{Music: music, Lyric: lyric}
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(&bytes.Buffer{})

	t.Run("Downloads On Miss And Hits Afterwards", func(t *testing.T) {
		svc := newSource(1)
		caches := newCaches(t, 0)
		r := NewResolver(svc, caches, nil, 320000, logger)

		path, err := r.Resolve(ctx, item(1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertFileExists(t, path)

		if _, err := r.Resolve(ctx, item(1)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc.Calls("SongURL") != 1 || svc.Calls("Download") != 1 {
			t.Errorf("expected one download, got %d url / %d download calls", svc.Calls("SongURL"), svc.Calls("Download"))
		}
	})

	t.Run("Corrupted Download Is Rejected", func(t *testing.T) {
		svc := newSource(2)
		svc.Media["http://media/2"] = []byte("tampered")
		caches := newCaches(t, 0)
		r := NewResolver(svc, caches, nil, 0, logger)

		_, err := r.Resolve(ctx, item(2))
		if !errors.Is(err, shared.ErrIntegrityMismatch) {
			t.Errorf("expected ErrIntegrityMismatch, got %v", err)
		}
		if caches.Music.Contains("2") {
			t.Error("corrupted download should not be cached")
		}
	})

	t.Run("Fetch Failure", func(t *testing.T) {
		svc := newSource()
		r := NewResolver(svc, newCaches(t, 0), nil, 0, logger)

		if _, err := r.Resolve(ctx, item(9)); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("Concurrent Ensure Shares One Download", func(t *testing.T) {
		svc := newSource(3)
		r := NewResolver(svc, newCaches(t, 0), nil, 0, logger)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := r.Ensure(ctx, item(3)); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if got := svc.Calls("Download"); got < 1 || got > 8 {
			t.Errorf("unexpected download count %d", got)
		}
		if !r.caches.Music.Contains("3") {
			t.Error("expected track to be cached")
		}
	})

	t.Run("Lyric Is Cached", func(t *testing.T) {
		svc := newSource(4)
		r := NewResolver(svc, newCaches(t, 0), nil, 0, logger)

		for range 2 {
			data, err := r.Lyric(ctx, item(4))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if data.At(time.Second) != "line 4" {
				t.Errorf("unexpected lyric %+v", data)
			}
		}
		if svc.Calls("Lyric") != 1 {
			t.Errorf("expected one lyric request, got %d", svc.Calls("Lyric"))
		}
	})
}

func newSession(t *testing.T, budget int64, ids ...int64) (*Session, *fakeNative, *tu.MockService) {
	t.Helper()
	logger := shared.NewLogger(&bytes.Buffer{})
	svc := newSource(ids...)
	native := &fakeNative{}
	q := queue.New(nil, logger)
	for _, id := range ids {
		q.Add(item(id))
	}
	r := NewResolver(svc, newCaches(t, budget), nil, 0, logger)
	return NewSession(q, r, native, logger, WithVolume(70)), native, svc
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Play Protects Head", func(t *testing.T) {
		s, native, _ := newSession(t, 0, 1, 2, 3)

		if err := s.Play(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.caches.Music.ProtectedKey() != "1" {
			t.Errorf("expected key 1 protected, got %q", s.caches.Music.ProtectedKey())
		}
		if native.volume != 70 {
			t.Errorf("expected volume 70, got %d", native.volume)
		}

		st := s.Status()
		if !st.Playing || st.Item.TrackID != 1 || st.Lyric != "line 1" {
			t.Errorf("unexpected status %+v", st)
		}
	})

	t.Run("Next And Previous Rotate", func(t *testing.T) {
		s, _, _ := newSession(t, 0, 1, 2, 3)

		tests := []struct {
			step func(context.Context) error
			head int64
		}{
			{s.Next, 2},
			{s.Next, 3},
			{s.Next, 1},
			{s.Previous, 3},
		}
		for _, tt := range tests {
			if err := tt.step(ctx); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if head, _ := s.Queue().Head(); head.TrackID != tt.head {
				t.Errorf("expected head %d, got %d", tt.head, head.TrackID)
			}
		}
		if got := s.Queue().Len(); got != 3 {
			t.Errorf("rotation should keep all items, got %d", got)
		}
	})

	t.Run("PlayItem", func(t *testing.T) {
		s, _, _ := newSession(t, 0, 1, 2, 3)

		if err := s.PlayItem(ctx, item(3)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		snap := s.Queue().Snapshot()
		if snap[0].TrackID != 3 || snap[1].TrackID != 1 || snap[2].TrackID != 2 {
			t.Errorf("unexpected order %v", snap)
		}
		if err := s.PlayItem(ctx, item(8)); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("Empty Queue", func(t *testing.T) {
		s, _, _ := newSession(t, 0)
		if err := s.Play(ctx); !errors.Is(err, shared.ErrQueueEmpty) {
			t.Errorf("expected ErrQueueEmpty, got %v", err)
		}
	})

	t.Run("Load Failure", func(t *testing.T) {
		s, native, _ := newSession(t, 0, 1)
		native.failLoad = true
		if err := s.Play(ctx); !errors.Is(err, shared.ErrPlayerFailed) {
			t.Errorf("expected ErrPlayerFailed, got %v", err)
		}
	})

	t.Run("Toggle", func(t *testing.T) {
		s, native, _ := newSession(t, 0, 1)

		if err := s.Toggle(ctx); err != nil || !native.playing {
			t.Fatalf("expected toggle to start playback, err=%v", err)
		}
		if err := s.Toggle(ctx); err != nil || native.playing || s.Status().Playing {
			t.Errorf("expected pause, err=%v", err)
		}
		if err := s.Toggle(ctx); err != nil || !native.playing {
			t.Errorf("expected resume, err=%v", err)
		}
	})

	t.Run("Tick Advances Finished Track", func(t *testing.T) {
		s, native, _ := newSession(t, 0, 1, 2)
		if err := s.Play(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if advanced, _ := s.Tick(ctx); advanced {
			t.Fatal("should not advance while playing")
		}
		native.finish()
		advanced, err := s.Tick(ctx)
		if err != nil || !advanced {
			t.Fatalf("expected advance, got %v %v", advanced, err)
		}
		if s.Status().Item.TrackID != 2 {
			t.Errorf("expected track 2, got %d", s.Status().Item.TrackID)
		}
	})

	t.Run("Tick After Manual Next Does Not Skip", func(t *testing.T) {
		s, native, _ := newSession(t, 0, 1, 2, 3)
		if err := s.Play(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		native.finish()
		if !s.Finished() {
			t.Fatal("expected finished track")
		}

		s.step.Lock()
		ticked := make(chan bool, 1)
		go func() {
			advanced, err := s.Tick(ctx)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			ticked <- advanced
		}()
		s.queue.Rotate(1)
		if err := s.play(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		s.step.Unlock()

		if <-ticked {
			t.Error("tick should not advance past a track that just started")
		}
		if got := s.Status().Item.TrackID; got != 2 {
			t.Errorf("expected one advance to track 2, got %d", got)
		}
		if s.Finished() {
			t.Error("new track should not be finished")
		}
	})

	t.Run("Stop Releases Protection", func(t *testing.T) {
		s, _, _ := newSession(t, 0, 1)
		s.Play(ctx)
		s.Stop()
		if s.caches.Music.ProtectedKey() != "" || s.Status().Loaded {
			t.Error("expected stop to clear state")
		}
	})

	t.Run("Playing Track Survives Eviction", func(t *testing.T) {
		s, _, _ := newSession(t, 10, 1, 2, 3)
		if err := s.Play(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.resolver.Ensure(ctx, item(2)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.resolver.Ensure(ctx, item(3)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		music := s.caches.Music
		if !music.Contains("1") || music.Contains("2") || !music.Contains("3") {
			t.Errorf("expected playing 1 and newest 3 cached, got %v", music.Entries())
		}
	})

	t.Run("Volume Is Clamped", func(t *testing.T) {
		s, native, _ := newSession(t, 0, 1)
		s.AdjustVolume(50)
		if native.volume != 100 {
			t.Errorf("expected 100, got %d", native.volume)
		}
		s.SetVolume(-5)
		if native.volume != 0 {
			t.Errorf("expected 0, got %d", native.volume)
		}
	})

	t.Run("Save And Restore", func(t *testing.T) {
		s, _, _ := newSession(t, 0, 1, 2)
		qs := &memQueueStore{saved: map[string][]models.QueueItem{}}
		s.store = qs

		if err := s.Save(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.Queue().Clear()

		n, err := s.Restore(ctx)
		if err != nil || n != 2 {
			t.Fatalf("expected 2 restored items, got %d (%v)", n, err)
		}
	})
}

func TestCommandPlayer(t *testing.T) {
	logger := shared.NewLogger(&bytes.Buffer{})

	t.Run("Missing Command", func(t *testing.T) {
		p := NewCommandPlayer("cloudplay-no-such-player", nil, 50, logger)
		if p.Load("/tmp/x.mp3") {
			t.Error("expected load to fail")
		}
		if !p.Empty() {
			t.Error("expected empty player")
		}
	})

	t.Run("Volume Placeholder", func(t *testing.T) {
		p := NewCommandPlayer("mpv", []string{"--no-video", "--volume={volume}"}, 150, logger)
		p.path = "a.mp3"
		if got := p.Describe(); got != "mpv --no-video --volume=100 a.mp3" {
			t.Errorf("unexpected command line %q", got)
		}
	})

	t.Run("Runs To Completion", func(t *testing.T) {
		if _, err := exec.LookPath("sleep"); err != nil {
			t.Skip("sleep not available")
		}
		p := NewCommandPlayer("sleep", nil, 50, logger)

		if !p.Load("0.2") || !p.Play() {
			t.Fatal("expected sleep to start")
		}
		if p.Empty() {
			t.Error("should not be empty while running")
		}

		deadline := time.Now().Add(3 * time.Second)
		for !p.Empty() && time.Now().Before(deadline) {
			time.Sleep(20 * time.Millisecond)
		}
		if !p.Empty() {
			t.Error("expected track to finish")
		}
		if p.Position() <= 0 {
			t.Error("expected a positive position")
		}
		p.Stop()
	})

	t.Run("Stop Kills Process", func(t *testing.T) {
		if _, err := exec.LookPath("sleep"); err != nil {
			t.Skip("sleep not available")
		}
		p := NewCommandPlayer("sleep", nil, 50, logger)
		p.Load("30")
		p.Play()
		p.Pause()
		p.Stop()
		if !p.Empty() || p.Position() != 0 {
			t.Error("expected stopped player to be empty")
		}
	})
}
