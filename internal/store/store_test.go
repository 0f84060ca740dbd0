package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/cloudplay/internal/shared"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append(opts, WithLogger(shared.NewLogger(&bytes.Buffer{})))
	s, err := New(t.TempDir(), "music", opts...)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	t.Run("Put And Get", func(t *testing.T) {
		s := newTestStore(t)

		path, err := s.Put("track-1", []byte("audio"))
		if err != nil {
			t.Fatalf("failed to put: %v", err)
		}
		if path != s.Path("track-1") {
			t.Errorf("expected published path %s, got %s", s.Path("track-1"), path)
		}
		if filepath.Base(filepath.Dir(path)) != filepath.Base(path)[:2] {
			t.Errorf("expected two-character fan-out directory, got %s", path)
		}

		data, err := s.Get("track-1")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if string(data) != "audio" {
			t.Errorf("expected audio, got %q", data)
		}

		size, err := s.SizeOf("track-1")
		if err != nil || size != 5 {
			t.Errorf("expected size 5, got %d (%v)", size, err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := newTestStore(t)
		s.Put("k", []byte("first"))
		s.Put("k", []byte("second"))

		data, _ := s.Get("k")
		if string(data) != "second" {
			t.Errorf("expected second write to win, got %q", data)
		}
	})

	t.Run("Missing Keys", func(t *testing.T) {
		s := newTestStore(t)

		if _, err := s.Get("nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("Get: expected ErrNotFound, got %v", err)
		}
		if _, err := s.SizeOf("nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("SizeOf: expected ErrNotFound, got %v", err)
		}
		if err := s.Delete("nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("Delete: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := newTestStore(t)
		s.Put("k", []byte("v"))

		if err := s.Delete("k"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := os.Stat(s.Path("k") + keySuffix); !os.IsNotExist(err) {
			t.Error("key file should be removed with the blob")
		}
		if _, err := s.Get("k"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("Keys Cleans Orphans", func(t *testing.T) {
		s := newTestStore(t)
		s.Put("a", []byte("1"))
		s.Put("b", []byte("2"))

		orphan := filepath.Join(s.Dir(), "ff", strings.Repeat("f", 64))
		os.MkdirAll(filepath.Dir(orphan), 0755)
		os.WriteFile(orphan, []byte("stray"), 0644)

		tmp := s.Path("a") + tmpMarker + "abandoned"
		os.WriteFile(tmp, []byte("partial"), 0644)

		os.Remove(s.Path("b"))

		keys, err := s.Keys()
		if err != nil {
			t.Fatalf("failed to list keys: %v", err)
		}
		if !slices.Equal(keys, []string{"a"}) {
			t.Errorf("expected [a], got %v", keys)
		}

		for _, path := range []string{orphan, tmp, s.Path("b") + keySuffix} {
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Errorf("expected %s to be removed", path)
			}
		}
	})

	t.Run("Compression", func(t *testing.T) {
		s := newTestStore(t, WithCompression(3))
		payload := bytes.Repeat([]byte("[00:01.00]la la la\n"), 200)

		if _, err := s.Put("lyric", payload); err != nil {
			t.Fatalf("failed to put: %v", err)
		}

		data, err := s.Get("lyric")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if !bytes.Equal(data, payload) {
			t.Error("decompressed payload differs from original")
		}

		size, _ := s.SizeOf("lyric")
		if size >= int64(len(payload)) {
			t.Errorf("expected compressed size below %d, got %d", len(payload), size)
		}
	})

	t.Run("Invalid Namespace", func(t *testing.T) {
		if _, err := New(t.TempDir(), "a/b"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestDirStore(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "album", ".hidden"), 0755)
	os.WriteFile(filepath.Join(dir, "album", "01.mp3"), []byte("one"), 0644)
	os.WriteFile(filepath.Join(dir, "album", "cover.jpg"), []byte("img"), 0644)
	os.WriteFile(filepath.Join(dir, "album", ".hidden", "x.flac"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "02.FLAC"), []byte("two"), 0644)

	d, err := NewDir(dir)
	if err != nil {
		t.Fatalf("failed to open dir store: %v", err)
	}

	t.Run("Keys", func(t *testing.T) {
		keys, err := d.Keys()
		if err != nil {
			t.Fatalf("failed to list keys: %v", err)
		}
		slices.Sort(keys)
		if !slices.Equal(keys, []string{"02.FLAC", "album/01.mp3"}) {
			t.Errorf("unexpected keys %v", keys)
		}
	})

	t.Run("Get And SizeOf", func(t *testing.T) {
		data, err := d.Get("album/01.mp3")
		if err != nil || string(data) != "one" {
			t.Errorf("expected one, got %q (%v)", data, err)
		}
		size, err := d.SizeOf("02.FLAC")
		if err != nil || size != 3 {
			t.Errorf("expected size 3, got %d (%v)", size, err)
		}
	})

	t.Run("Delete Keeps User File", func(t *testing.T) {
		if err := d.Delete("album/01.mp3"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "album", "01.mp3")); err != nil {
			t.Errorf("user file should survive Delete: %v", err)
		}
		if err := d.Delete("missing.mp3"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Rejects Escaping Keys", func(t *testing.T) {
		if _, err := d.Get("../outside.mp3"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Missing Directory", func(t *testing.T) {
		if _, err := NewDir(filepath.Join(dir, "nope")); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
