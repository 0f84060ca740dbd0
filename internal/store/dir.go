package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/desertthunder/cloudplay/internal/shared"
)

// AudioExtensions lists the file extensions [DirStore.Keys] reports.
var AudioExtensions = []string{".mp3", ".flac", ".m4a", ".aac", ".ogg", ".opus", ".wav"}

// DirStore exposes a user directory of audio files as a blob store.
//
// Keys are slash-separated paths relative to the directory. Delete never removes a user file.
type DirStore struct {
	dir string
}

// NewDir returns a [DirStore] over dir, which must exist.
func NewDir(dir string) (*DirStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", shared.ErrInvalidInput, dir)
	}
	return &DirStore{dir: abs}, nil
}

// Dir returns the absolute directory path.
func (d *DirStore) Dir() string { return d.dir }

// Path returns the file path for key.
func (d *DirStore) Path(key string) string {
	return filepath.Join(d.dir, filepath.FromSlash(key))
}

// Key converts a path inside the directory into its key.
func (d *DirStore) Key(path string) (string, error) {
	rel, err := filepath.Rel(d.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s is outside %s", shared.ErrInvalidInput, path, d.dir)
	}
	return filepath.ToSlash(rel), nil
}

// Put writes data to the file named by key.
func (d *DirStore) Put(key string, data []byte) (string, error) {
	path, err := d.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	if err := writeAtomic(path, data); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	return path, nil
}

// Get reads the file named by key.
func (d *DirStore) Get(key string) ([]byte, error) {
	path, err := d.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapReadErr(key, err)
	}
	return data, nil
}

// Delete reports whether the file exists but leaves it in place.
func (d *DirStore) Delete(key string) error {
	_, err := d.SizeOf(key)
	return err
}

// SizeOf returns the size of the file named by key.
func (d *DirStore) SizeOf(key string) (int64, error) {
	path, err := d.resolve(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, wrapReadErr(key, err)
	}
	return info.Size(), nil
}

// Keys walks the directory and returns the key of every audio file.
func (d *DirStore) Keys() ([]string, error) {
	var keys []string
	err := filepath.WalkDir(d.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != d.dir && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsAudio(path) {
			return nil
		}
		key, err := d.Key(path)
		if err != nil {
			return nil
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan %s: %v", shared.ErrStoreIO, d.dir, err)
	}
	return keys, nil
}

// IsAudio reports whether path has one of [AudioExtensions].
func IsAudio(path string) bool {
	return slices.Contains(AudioExtensions, strings.ToLower(filepath.Ext(path)))
}

func (d *DirStore) resolve(key string) (string, error) {
	path := d.Path(key)
	if _, err := d.Key(path); err != nil {
		return "", err
	}
	return path, nil
}
