package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/urfave/cli/v3"
)

// LibraryScan indexes the local music directory and lists what it found.
func (r *Runner) LibraryScan(ctx context.Context, cmd *cli.Command) error {
	if r.config.Cache.LocalDirectory == "" {
		return fmt.Errorf("%w: cache.local_directory", shared.ErrMissingConfig)
	}

	rt, err := r.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	tracks := rt.library.Tracks()
	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}

	r.writePlainHeader(fmt.Sprintf("Local library: %s", r.config.Cache.LocalDirectory))
	for _, t := range tracks {
		artist := t.Artist
		if artist == "" {
			artist = "unknown artist"
		}
		r.writePlain("%s - %s  (%s)\n", t.Title, artist, t.Key)
	}
	return r.writePlainln("%d tracks, %d registered in the local cache", len(tracks), rt.caches.Local.Len())
}

// LibraryWatch keeps the local cache in sync with the directory until interrupted.
func (r *Runner) LibraryWatch(ctx context.Context, cmd *cli.Command) error {
	if r.config.Cache.LocalDirectory == "" {
		return fmt.Errorf("%w: cache.local_directory", shared.ErrMissingConfig)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := r.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	r.logger.Info("watching local library", "dir", r.config.Cache.LocalDirectory, "tracks", len(rt.library.Tracks()))
	return rt.library.Watch(ctx)
}
