// Package store keeps cache blobs on the local filesystem.
//
// [Store] lays blobs out under <root>/<namespace>/<hh>/<sha256(key)> with a companion
// "<hash>.key" file holding the original key, so a namespace can be re-scanned without any
// other metadata. Writes go to a uniquely named temp file and are published with a rename.
//
// [DirStore] exposes a user-managed directory through the same methods without ever removing
// the user's files.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

const (
	keySuffix = ".key"
	tmpMarker = ".tmp-"
)

// Store is a namespaced, content-addressed blob directory.
type Store struct {
	dir       string
	namespace string
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	level     int
	logger    *log.Logger
}

// Option configures a [Store].
type Option func(*Store)

// WithCompression stores every blob as a zstd frame at the given level (1-22).
func WithCompression(level int) Option {
	return func(s *Store) { s.level = level }
}

// WithLogger sets the logger used for orphan cleanup messages.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates the namespace directory under root and returns a [Store] for it.
func New(root, namespace string, opts ...Option) (*Store, error) {
	if namespace == "" || strings.ContainsAny(namespace, `/\`) {
		return nil, fmt.Errorf("%w: invalid namespace %q", shared.ErrInvalidInput, namespace)
	}

	s := &Store{dir: filepath.Join(root, namespace), namespace: namespace}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = shared.NewLogger(nil)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create store directory: %v", shared.ErrStoreIO, err)
	}

	if s.level > 0 {
		var err error
		s.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(s.level)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		s.decoder, err = zstd.NewReader(nil)
		if err != nil {
			s.encoder.Close()
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
	}
	return s, nil
}

// Namespace returns the namespace name.
func (s *Store) Namespace() string { return s.namespace }

// Dir returns the namespace directory.
func (s *Store) Dir() string { return s.dir }

// Compressed reports whether blobs are stored as zstd frames.
func (s *Store) Compressed() bool { return s.encoder != nil }

// Path returns the blob path for key whether or not it exists.
func (s *Store) Path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(s.dir, name[:2], name)
}

// Put writes data for key and returns the published path.
func (s *Store) Put(key string, data []byte) (string, error) {
	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}

	payload := data
	if s.encoder != nil {
		payload = s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	}

	if err := writeAtomic(path, payload); err != nil {
		return "", fmt.Errorf("%w: failed to write blob for %q: %v", shared.ErrStoreIO, key, err)
	}
	if err := writeAtomic(path+keySuffix, []byte(key)); err != nil {
		return "", fmt.Errorf("%w: failed to write key file for %q: %v", shared.ErrStoreIO, key, err)
	}
	return path, nil
}

// Get returns the blob for key, or [shared.ErrNotFound] when it does not exist.
func (s *Store) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		return nil, wrapReadErr(key, err)
	}

	if s.decoder != nil {
		out, err := s.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decompress %q: %v", shared.ErrStoreIO, key, err)
		}
		return out, nil
	}
	return data, nil
}

// Delete removes the blob and its key file.
func (s *Store) Delete(key string) error {
	path := s.Path(key)
	if err := os.Remove(path); err != nil {
		return wrapReadErr(key, err)
	}
	if err := os.Remove(path + keySuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	return nil
}

// SizeOf returns the on-disk size of the blob, which is the compressed size for compressed stores.
func (s *Store) SizeOf(key string) (int64, error) {
	info, err := os.Stat(s.Path(key))
	if err != nil {
		return 0, wrapReadErr(key, err)
	}
	return info.Size(), nil
}

// Keys lists every key with a published blob.
//
// Blobs without a key file, key files without a blob and abandoned temp files are removed.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		switch {
		case strings.Contains(name, tmpMarker):
			s.removeOrphan(path)
		case strings.HasSuffix(name, keySuffix):
			blob := strings.TrimSuffix(path, keySuffix)
			if _, err := os.Stat(blob); err != nil {
				s.removeOrphan(path)
				return nil
			}
			key, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if s.Path(string(key)) != blob {
				s.removeOrphan(path)
				return nil
			}
			keys = append(keys, string(key))
		default:
			if _, err := os.Stat(path + keySuffix); errors.Is(err, fs.ErrNotExist) {
				s.removeOrphan(path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan %s: %v", shared.ErrStoreIO, s.dir, err)
	}
	return keys, nil
}

// Close releases the zstd encoder and decoder.
func (s *Store) Close() error {
	if s.encoder != nil {
		s.decoder.Close()
		return s.encoder.Close()
	}
	return nil
}

func (s *Store) removeOrphan(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove orphan", "namespace", s.namespace, "path", path, "error", err)
		return
	}
	s.logger.Debug("removed orphan", "namespace", s.namespace, "path", path)
}

// writeAtomic writes data to a temp file beside path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp := path + tmpMarker + uuid.NewString()

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func wrapReadErr(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, key)
	}
	return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
}
