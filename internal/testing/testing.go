// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/shared"
)

// MockService is a test double for [services.Service] and [services.Downloader].
//
// Unknown ids return [shared.ErrPlaylistNotFound] or [shared.ErrTrackNotFound].
type MockService struct {
	Playlists map[int64][]models.Playlist
	Tracks    map[int64][]models.Track
	Albums    map[int64][]models.Track
	Details   map[int64]models.SongDetail
	Lyrics    map[int64]string
	Media     map[string][]byte
	Err       error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockService) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
	return m.Err
}

// Calls returns how many times method was invoked.
func (m *MockService) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockService) UserPlaylists(ctx context.Context, uid int64) ([]models.Playlist, error) {
	if err := m.record("UserPlaylists"); err != nil {
		return nil, err
	}
	return m.Playlists[uid], nil
}

func (m *MockService) PlaylistTracks(ctx context.Context, playlistID int64) ([]models.Track, error) {
	if err := m.record("PlaylistTracks"); err != nil {
		return nil, err
	}
	tracks, ok := m.Tracks[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", shared.ErrPlaylistNotFound, playlistID)
	}
	return tracks, nil
}

func (m *MockService) AlbumTracks(ctx context.Context, albumID int64) ([]models.Track, error) {
	if err := m.record("AlbumTracks"); err != nil {
		return nil, err
	}
	tracks, ok := m.Albums[albumID]
	if !ok {
		return nil, fmt.Errorf("%w: album %d", shared.ErrPlaylistNotFound, albumID)
	}
	return tracks, nil
}

func (m *MockService) SongURL(ctx context.Context, trackID int64, bitrate int) (models.SongDetail, error) {
	if err := m.record("SongURL"); err != nil {
		return models.SongDetail{}, err
	}
	detail, ok := m.Details[trackID]
	if !ok {
		return models.SongDetail{}, fmt.Errorf("%w: %d", shared.ErrTrackNotFound, trackID)
	}
	return detail, nil
}

func (m *MockService) Lyric(ctx context.Context, trackID int64) (string, error) {
	if err := m.record("Lyric"); err != nil {
		return "", err
	}
	return m.Lyrics[trackID], nil
}

func (m *MockService) Download(ctx context.Context, url string) ([]byte, error) {
	if err := m.record("Download"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := m.Media[url]
	if !ok {
		return nil, fmt.Errorf("%w: no media at %s", shared.ErrFetchFailed, url)
	}
	return data, nil
}

func (m *MockService) Name() string { return "mock" }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
