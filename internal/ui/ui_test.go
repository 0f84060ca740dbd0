package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cloudplay/internal/cache"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/player"
	"github.com/desertthunder/cloudplay/internal/queue"
	"github.com/desertthunder/cloudplay/internal/services"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/desertthunder/cloudplay/internal/store"
	tu "github.com/desertthunder/cloudplay/internal/testing"
)

type silentNative struct {
	volume int
	empty  bool
}

func (n *silentNative) Load(string) bool        { return true }
func (n *silentNative) Play() bool              { return true }
func (n *silentNative) Pause()                  {}
func (n *silentNative) Stop()                   {}
func (n *silentNative) SetVolume(level int)     { n.volume = level }
func (n *silentNative) Position() time.Duration { return 0 }
func (n *silentNative) Empty() bool             { return n.empty }

// stalledSource blocks downloads of url until release is closed.
type stalledSource struct {
	*tu.MockService
	url     string
	release chan struct{}
}

func (s *stalledSource) Download(ctx context.Context, url string) ([]byte, error) {
	if url == s.url {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.MockService.Download(ctx, url)
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	svc := &tu.MockService{
		Playlists: map[int64][]models.Playlist{7: {{ID: 1, Name: "Morning"}, {ID: 2, Name: "Evening"}}},
		Tracks:    map[int64][]models.Track{1: {{ID: 10, Name: "Ten"}, {ID: 11, Name: "Eleven"}}},
	}
	return buildModel(t, svc, svc, &silentNative{})
}

func buildModel(t *testing.T, svc services.Service, src player.Source, native player.NativePlayer) *Model {
	t.Helper()
	ctx := context.Background()
	logger := shared.NewLogger(&bytes.Buffer{})

	blobs, err := store.New(t.TempDir(), "music")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	music, err := cache.Open(ctx, blobs, cache.Options{Namespace: "music", Logger: logger})
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}

	q := queue.New(queue.NewProvider(svc, logger), logger)
	resolver := player.NewResolver(src, player.Caches{Music: music}, nil, 0, logger)
	session := player.NewSession(q, resolver, native, logger)
	return NewModel(ctx, svc, session, nil, Options{UserID: 7})
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel(t *testing.T) {
	t.Run("Playlists Fetched", func(t *testing.T) {
		m := newTestModel(t)
		msg := m.fetchPlaylists()()
		m.Update(msg)

		if len(m.playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(m.playlists))
		}
		if len(m.playlistList.Items()) != 2 {
			t.Errorf("expected 2 list items, got %d", len(m.playlistList.Items()))
		}
	})

	t.Run("Playlist Fetch Error", func(t *testing.T) {
		m := newTestModel(t)
		m.Update(playlistsFetchedMsg(nil, shared.ErrServiceUnavailable))

		if !errors.Is(m.err, shared.ErrServiceUnavailable) {
			t.Errorf("expected service unavailable, got %v", m.err)
		}
		if !strings.Contains(m.View(), "Error:") {
			t.Error("expected error to be rendered")
		}
	})

	t.Run("Selecting A Playlist Requests A Refresh", func(t *testing.T) {
		m := newTestModel(t)
		m.Update(m.fetchPlaylists()())
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})

		if m.view != QueueView {
			t.Errorf("expected queue view, got %v", m.view)
		}
		req, ok := m.session.Queue().Pending()
		if !ok {
			t.Fatal("expected a pending refresh")
		}
		if req.PlaylistID != 1 {
			t.Errorf("expected playlist 1, got %d", req.PlaylistID)
		}
	})

	t.Run("Change Listener Consumes Refresh", func(t *testing.T) {
		m := newTestModel(t)
		m.session.Queue().RequestRefresh(queue.PlayPlaylist(1, 0))

		msg := m.waitForChanges()()
		m.Update(msg)

		if len(m.items) != 2 {
			t.Fatalf("expected 2 queued items, got %d", len(m.items))
		}
		if _, ok := m.session.Queue().Pending(); ok {
			t.Error("refresh should have been consumed")
		}
	})

	t.Run("Queue Keys", func(t *testing.T) {
		tests := []struct {
			name string
			key  tea.KeyMsg
			want int
		}{
			{name: "Shuffle Keeps Items", key: runes("s"), want: 2},
			{name: "Clear Empties Queue", key: runes("c"), want: 0},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				m := newTestModel(t)
				m.view = QueueView
				m.session.Queue().Add(
					models.QueueItem{TrackID: 1, Title: "One", CacheKey: "1"},
					models.QueueItem{TrackID: 2, Title: "Two", CacheKey: "2"},
				)
				m.Update(tt.key)

				if got := m.session.Queue().Len(); got != tt.want {
					t.Errorf("expected %d items, got %d", tt.want, got)
				}
			})
		}
	})

	t.Run("Volume Keys", func(t *testing.T) {
		m := newTestModel(t)
		m.view = QueueView
		m.Update(runes("-"))

		if m.status.Volume != 95 {
			t.Errorf("expected volume 95, got %d", m.status.Volume)
		}
	})

	t.Run("Escape Returns To Playlists", func(t *testing.T) {
		m := newTestModel(t)
		m.view = QueueView
		m.Update(tea.KeyMsg{Type: tea.KeyEsc})

		if m.view != PlaylistListView {
			t.Errorf("expected playlist view, got %v", m.view)
		}
	})

	t.Run("Tick Does Not Block On Download", func(t *testing.T) {
		ctx := context.Background()
		svc := &tu.MockService{
			Details: map[int64]models.SongDetail{
				10: {ID: 10, URL: "http://media/10", MD5: cache.Hash([]byte("ten"))},
				11: {ID: 11, URL: "http://media/11", MD5: cache.Hash([]byte("eleven"))},
			},
			Media: map[string][]byte{"http://media/10": []byte("ten"), "http://media/11": []byte("eleven")},
		}
		src := &stalledSource{MockService: svc, url: "http://media/11", release: make(chan struct{})}
		t.Cleanup(func() { close(src.release) })

		native := &silentNative{}
		m := buildModel(t, svc, src, native)
		m.session.Queue().Add(
			models.QueueItem{TrackID: 10, Title: "Ten", CacheKey: "10"},
			models.QueueItem{TrackID: 11, Title: "Eleven", CacheKey: "11"},
		)
		if err := m.session.Play(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		native.empty = true

		returned := make(chan struct{})
		go func() {
			m.Update(tickMsg())
			close(returned)
		}()
		select {
		case <-returned:
		case <-time.After(2 * time.Second):
			t.Fatal("tick blocked the update loop")
		}

		if !m.advancing {
			t.Error("expected an advance to be scheduled")
		}
		if got := svc.Calls("Download"); got != 1 {
			t.Errorf("expected only the first track downloaded during update, got %d", got)
		}

		m.Update(tickMsg())
		m.Update(playbackMsg(nil))
		if m.advancing {
			t.Error("playback result should clear the pending advance")
		}
	})

	t.Run("Idle Queue View", func(t *testing.T) {
		m := newTestModel(t)
		m.view = QueueView
		if !strings.Contains(m.View(), "Nothing playing") {
			t.Error("expected idle header")
		}
	})
}

func TestFormatPosition(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{61 * time.Second, "1:01"},
		{754*time.Second + 600*time.Millisecond, "12:35"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatPosition(tt.in); got != tt.want {
				t.Errorf("formatPosition(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
