package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cloudplay/internal/cache"
	"github.com/desertthunder/cloudplay/internal/formatter"
	"github.com/desertthunder/cloudplay/internal/queue"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/desertthunder/cloudplay/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// CacheStats prints per-cache sizes, budgets and counters.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	rt, err := r.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	stats := []cache.Stats{}
	for _, c := range rt.all() {
		stats = append(stats, c.Stats())
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}

	r.writePlainHeader("Caches")
	_, err = r.output.Write(formatter.CacheStatsTable(stats))
	return err
}

// CacheEntries lists the entries of one cache in eviction order.
func (r *Runner) CacheEntries(ctx context.Context, cmd *cli.Command) error {
	return r.withCache(ctx, cmd.StringArg("namespace"), func(c *cache.Cache) error {
		entries := c.Entries()
		r.writePlainHeader(fmt.Sprintf("%s: %d entries, %s", c.Namespace(), len(entries), humanize.IBytes(uint64(c.CurrentSize()))))
		_, err := r.output.Write(formatter.CacheEntriesTable(entries))
		return err
	})
}

// CacheVerify re-hashes every entry and reports the ones that were dropped.
func (r *Runner) CacheVerify(ctx context.Context, cmd *cli.Command) error {
	return r.withCache(ctx, cmd.StringArg("namespace"), func(c *cache.Cache) error {
		dropped, err := c.Verify(ctx)
		if err != nil {
			return fmt.Errorf("failed to verify %s cache: %w", c.Namespace(), err)
		}

		for _, key := range dropped {
			r.writePlain("✗ %s\n", key)
		}
		r.logger.Info("cache verified", "namespace", c.Namespace(), "dropped", len(dropped))
		return r.writePlain("✓ %d entries verified, %d dropped\n", c.Len(), len(dropped))
	})
}

// CacheRebuild rebuilds the index of a cache from its blobs.
func (r *Runner) CacheRebuild(ctx context.Context, cmd *cli.Command) error {
	return r.withCache(ctx, cmd.StringArg("namespace"), func(c *cache.Cache) error {
		n, err := c.Rebuild(ctx)
		if err != nil {
			return fmt.Errorf("failed to rebuild %s cache: %w", c.Namespace(), err)
		}
		return r.writePlain("✓ Rebuilt %s cache: %d entries, %s\n", c.Namespace(), n, humanize.IBytes(uint64(c.CurrentSize())))
	})
}

// CacheClear removes every entry of a cache.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	return r.withCache(ctx, cmd.StringArg("namespace"), func(c *cache.Cache) error {
		freed := c.CurrentSize()
		if err := c.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear %s cache: %w", c.Namespace(), err)
		}
		return r.writePlain("✓ Cleared %s cache, freed %s\n", c.Namespace(), humanize.IBytes(uint64(freed)))
	})
}

// CacheInvalidate removes one key from a cache.
func (r *Runner) CacheInvalidate(ctx context.Context, cmd *cli.Command) error {
	key := cmd.StringArg("key")
	if key == "" {
		return fmt.Errorf("%w: key", shared.ErrMissingArgument)
	}

	return r.withCache(ctx, cmd.StringArg("namespace"), func(c *cache.Cache) error {
		if err := c.Invalidate(ctx, key); err != nil {
			return fmt.Errorf("failed to invalidate %s: %w", key, err)
		}
		return r.writePlain("✓ Invalidated %s/%s\n", c.Namespace(), key)
	})
}

// CachePrefetch downloads every track of a playlist that is not cached yet.
func (r *Runner) CachePrefetch(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSource(); err != nil {
		return err
	}

	rt, err := r.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	q := r.newQueue()
	q.RequestRefresh(queue.PlayPlaylist(cmd.Int64("playlist"), 0))
	items, err := q.ConsumeRefresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to load playlist: %w", err)
	}

	engine := r.prefetchEngine(rt, r.resolver(rt))
	opts := tasks.PrefetchOpts{NumWorkers: cmd.Int("workers"), RateLimit: cmd.Float64("rate")}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
		}
	}()

	result, err := engine.Prefetch(ctx, progress, items, opts)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	for _, failure := range result.Errors {
		r.logger.Warn("prefetch failed", "track", failure.Item.TrackID, "error", failure.Error)
	}
	r.writePlainln("✓ %d fetched, %d already cached, %d failed (%s in music cache)",
		result.Fetched, result.Skipped, result.Failed, humanize.IBytes(uint64(rt.caches.Music.CurrentSize())))
	return nil
}

// withCache opens the runtime and runs fn against the cache for namespace.
func (r *Runner) withCache(ctx context.Context, namespace string, fn func(*cache.Cache) error) error {
	rt, err := r.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	c, err := rt.cacheFor(namespace)
	if err != nil {
		return err
	}
	return fn(c)
}
