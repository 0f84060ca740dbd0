package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/cloudplay/internal/cache"
	"github.com/desertthunder/cloudplay/internal/library"
	"github.com/desertthunder/cloudplay/internal/player"
	"github.com/desertthunder/cloudplay/internal/queue"
	"github.com/desertthunder/cloudplay/internal/repositories"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/desertthunder/cloudplay/internal/store"
	"github.com/desertthunder/cloudplay/internal/tasks"
)

const lyricCompressionLevel = 3

// runtime is the persistent state a command works on: the database, the three caches over their
// stores and the optional local library.
type runtime struct {
	db         *sql.DB
	index      *repositories.CacheEntryRepository
	queues     *repositories.QueueRepository
	lyricStore *store.Store
	caches     player.Caches
	library    *library.Library
}

// openRuntime opens the database and caches described by the runner's config.
func (r *Runner) openRuntime(ctx context.Context) (*runtime, error) {
	root, err := r.config.Cache.CacheRoot()
	if err != nil {
		return nil, err
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	rt := &runtime{
		db:     db,
		index:  repositories.NewCacheEntryRepository(db),
		queues: repositories.NewQueueRepository(db),
	}

	if err := rt.openCaches(ctx, r, root); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) openCaches(ctx context.Context, r *Runner, root string) error {
	musicStore, err := store.New(root, "music", store.WithLogger(r.logger))
	if err != nil {
		return err
	}
	rt.caches.Music, err = cache.Open(ctx, musicStore, cache.Options{
		Namespace: "music",
		Budget:    r.config.Cache.MusicBudget(),
		Index:     rt.index,
		Logger:    r.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open music cache: %w", err)
	}

	rt.lyricStore, err = store.New(root, "lyric", store.WithCompression(lyricCompressionLevel), store.WithLogger(r.logger))
	if err != nil {
		return err
	}
	rt.caches.Lyric, err = cache.Open(ctx, rt.lyricStore, cache.Options{
		Namespace: "lyric",
		Budget:    r.config.Cache.LyricBudget(),
		Index:     rt.index,
		Logger:    r.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open lyric cache: %w", err)
	}

	if r.config.Cache.LocalDirectory == "" {
		return nil
	}

	dir, err := store.NewDir(r.config.Cache.LocalDirectory)
	if err != nil {
		return err
	}
	rt.caches.Local, err = cache.Open(ctx, dir, cache.Options{Namespace: "local", Index: rt.index, Logger: r.logger})
	if err != nil {
		return fmt.Errorf("failed to open local cache: %w", err)
	}
	rt.library = library.New(dir, rt.caches.Local, r.logger)
	if _, err := rt.library.Scan(ctx); err != nil {
		r.logger.Warn("local library scan failed", "error", err)
	}
	return nil
}

// cacheFor returns the cache registered under namespace.
func (rt *runtime) cacheFor(namespace string) (*cache.Cache, error) {
	for _, c := range rt.all() {
		if c.Namespace() == namespace {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown cache namespace %q", shared.ErrInvalidArgument, namespace)
}

// all returns the open caches in a stable order.
func (rt *runtime) all() []*cache.Cache {
	caches := []*cache.Cache{}
	for _, c := range []*cache.Cache{rt.caches.Music, rt.caches.Lyric, rt.caches.Local} {
		if c != nil {
			caches = append(caches, c)
		}
	}
	return caches
}

// resolver builds a resolver fetching misses from the runner's source.
func (r *Runner) resolver(rt *runtime) *player.Resolver {
	return player.NewResolver(r.source, rt.caches, rt.library, r.config.API.Quality, r.logger)
}

// prefetchEngine builds an engine whose prefetch fills the music cache through resolver.
func (r *Runner) prefetchEngine(rt *runtime, resolver *player.Resolver) *tasks.Engine {
	var client tasks.APIClient
	if r.api != nil {
		client = r.api
	}
	return tasks.NewEngine(resolver, rt.caches.Music, client, r.logger)
}

// newQueue creates an empty queue rebuilt from the runner's source.
func (r *Runner) newQueue() *queue.Queue {
	return queue.New(queue.NewProvider(r.source, r.logger), r.logger)
}

// Close releases the stores and the database.
func (rt *runtime) Close() error {
	var errs []error
	if rt.lyricStore != nil {
		errs = append(errs, rt.lyricStore.Close())
	}
	if rt.db != nil {
		errs = append(errs, rt.db.Close())
	}
	return errors.Join(errs...)
}
