package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cloudplay/internal/formatter"
	"github.com/desertthunder/cloudplay/internal/queue"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/urfave/cli/v3"
)

// QueueLoad rebuilds a queue from a playlist or album and saves it under a session ID.
func (r *Runner) QueueLoad(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSource(); err != nil {
		return err
	}

	var req queue.RebuildRequest
	switch {
	case cmd.Int64("playlist") != 0:
		req = queue.PlayPlaylist(cmd.Int64("playlist"), cmd.Int64("start"))
	case cmd.Int64("album") != 0:
		req = queue.PlayAlbum(cmd.Int64("album"), cmd.Int64("start"))
	default:
		return fmt.Errorf("%w: --playlist or --album", shared.ErrMissingArgument)
	}

	rt, err := r.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	q := r.newQueue()
	q.RequestRefresh(req)
	items, err := q.ConsumeRefresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to build queue: %w", err)
	}
	if cmd.Bool("shuffle") {
		q.Random()
		items = q.Snapshot()
	}

	sessionID := cmd.String("session")
	if sessionID == "" {
		sessionID = shared.GenerateID()
	}
	if err := rt.queues.Save(ctx, sessionID, items); err != nil {
		return fmt.Errorf("failed to save queue: %w", err)
	}

	r.logger.Info("queue saved", "session", sessionID, "request", req, "items", len(items))
	r.writePlain("✓ Queued %d tracks\n", len(items))
	r.writePlain("Session: %s\n", sessionID)
	return nil
}

// QueueShow prints a saved queue.
func (r *Runner) QueueShow(ctx context.Context, cmd *cli.Command) error {
	rt, err := r.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessionID, err := r.sessionID(ctx, rt, cmd.String("session"))
	if err != nil {
		return err
	}

	items, err := rt.queues.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load queue %s: %w", sessionID, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, true)
	}

	r.writePlainHeader("Session " + sessionID)
	for i, item := range items {
		mark := " "
		if rt.caches.Music.Contains(item.CacheKey) {
			mark = "●"
		}
		r.writePlain("%s %3d. %s\n", mark, i+1, item)
	}
	return nil
}

// QueueExport writes a saved queue to a file.
func (r *Runner) QueueExport(ctx context.Context, cmd *cli.Command) error {
	var format formatter.Format
	if f := cmd.String("format"); f != "" {
		parsed, err := formatter.ParseFormat(f)
		if err != nil {
			return err
		}
		format = parsed
	}

	rt, err := r.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessionID, err := r.sessionID(ctx, rt, cmd.String("session"))
	if err != nil {
		return err
	}

	items, err := rt.queues.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load queue %s: %w", sessionID, err)
	}

	path, err := formatter.WriteQueueExport(items, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("queue exported", "session", sessionID, "path", path)
	return r.writePlain("✓ Exported %d tracks to %s\n", len(items), path)
}

// QueueDelete removes a saved queue.
func (r *Runner) QueueDelete(ctx context.Context, cmd *cli.Command) error {
	rt, err := r.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessionID := cmd.String("session")
	if err := rt.queues.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete queue %s: %w", sessionID, err)
	}
	return r.writePlain("✓ Deleted session %s\n", sessionID)
}

// sessionID returns flag, or the most recently saved session when flag is empty.
func (r *Runner) sessionID(ctx context.Context, rt *runtime, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	id, err := rt.queues.Latest(ctx)
	if err != nil {
		return "", fmt.Errorf("no saved queue: %w", err)
	}
	return id, nil
}
