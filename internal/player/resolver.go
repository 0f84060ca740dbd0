package player

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudplay/internal/cache"
	"github.com/desertthunder/cloudplay/internal/library"
	"github.com/desertthunder/cloudplay/internal/lyrics"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/services"
	"github.com/desertthunder/cloudplay/internal/shared"
	"golang.org/x/sync/singleflight"
)

// Source is the remote API and media downloader the resolver fetches misses from.
type Source interface {
	services.Service
	services.Downloader
}

// Caches groups the three cache instances a session plays from.
type Caches struct {
	Music *cache.Cache
	Lyric *cache.Cache
	Local *cache.Cache // nil without a local library
}

// Resolver turns queue items into playable file paths, preferring the local library, then the
// music cache, then a download that is verified and inserted into the music cache.
type Resolver struct {
	source  Source
	caches  Caches
	library *library.Library
	bitrate int
	logger  *log.Logger
	group   singleflight.Group
}

// NewResolver creates a resolver. lib may be nil.
func NewResolver(source Source, caches Caches, lib *library.Library, bitrate int, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Resolver{
		source:  source,
		caches:  caches,
		library: lib,
		bitrate: bitrate,
		logger:  shared.WithLogger(logger, "component", "resolver"),
	}
}

// Resolve returns a local path for item, downloading it on a cache miss.
func (r *Resolver) Resolve(ctx context.Context, item models.QueueItem) (string, error) {
	if path, ok := r.local(ctx, item); ok {
		return path, nil
	}

	path, err := r.caches.Music.LookupPath(ctx, item.CacheKey)
	if err == nil {
		return path, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return "", err
	}

	if err := r.Ensure(ctx, item); err != nil {
		return "", err
	}
	return r.caches.Music.LookupPath(ctx, item.CacheKey)
}

// Ensure populates the music cache for item without touching an existing entry.
//
// Concurrent calls for one key share a single download.
func (r *Resolver) Ensure(ctx context.Context, item models.QueueItem) error {
	if r.caches.Music.Contains(item.CacheKey) {
		return nil
	}

	_, err, joined := r.group.Do("music:"+item.CacheKey, func() (any, error) {
		return nil, r.download(ctx, item)
	})
	if joined {
		r.logger.Debug("joined in-flight download", "key", item.CacheKey)
	}
	return err
}

func (r *Resolver) download(ctx context.Context, item models.QueueItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	detail, err := r.source.SongURL(ctx, item.TrackID, r.bitrate)
	if err != nil {
		return err
	}
	data, err := r.source.Download(ctx, detail.URL)
	if err != nil {
		return err
	}

	if err := r.caches.Music.Insert(ctx, item.CacheKey, data, detail.MD5, int64(len(data))); err != nil {
		return fmt.Errorf("failed to cache %s: %w", item, err)
	}
	r.logger.Info("cached track", "key", item.CacheKey, "title", item.Title, "bytes", len(data))
	return nil
}

func (r *Resolver) local(ctx context.Context, item models.QueueItem) (string, bool) {
	if r.library == nil || r.caches.Local == nil {
		return "", false
	}
	t, ok := r.library.Match(item)
	if !ok {
		return "", false
	}
	path, err := r.caches.Local.LookupPath(ctx, t.Key)
	if err != nil {
		r.logger.Debug("local match unusable", "key", t.Key, "error", err)
		return "", false
	}
	return path, true
}

// Lyric returns the parsed lyric for item from the lyric cache, fetching it on a miss.
func (r *Resolver) Lyric(ctx context.Context, item models.QueueItem) (lyrics.LyricData, error) {
	if r.caches.Lyric == nil {
		return lyrics.LyricData{}, nil
	}

	data, err := r.caches.Lyric.Lookup(ctx, item.CacheKey)
	if err == nil {
		return lyrics.Parse(string(data)), nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return lyrics.LyricData{}, err
	}

	v, err, _ := r.group.Do("lyric:"+item.CacheKey, func() (any, error) {
		text, err := r.source.Lyric(ctx, item.TrackID)
		if err != nil {
			return "", err
		}
		if err := r.caches.Lyric.Insert(ctx, item.CacheKey, []byte(text), "", 0); err != nil {
			r.logger.Warn("failed to cache lyric", "key", item.CacheKey, "error", err)
		}
		return text, nil
	})
	if err != nil {
		return lyrics.LyricData{}, err
	}
	return lyrics.Parse(v.(string)), nil
}
