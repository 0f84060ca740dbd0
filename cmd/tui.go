package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cloudplay/internal/metrics"
	"github.com/desertthunder/cloudplay/internal/player"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/desertthunder/cloudplay/internal/tasks"
	"github.com/desertthunder/cloudplay/internal/ui"
	"github.com/urfave/cli/v3"
)

// Play launches the interactive player.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSource(); err != nil {
		return err
	}
	uid, err := r.userID(cmd.Int64("uid"))
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := r.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := r.config.Player
	native := player.NewCommandPlayer(cfg.Command, cfg.Args, cfg.Volume, r.logger)
	resolver := r.resolver(rt)

	opts := []player.SessionOption{player.WithQueueStore(rt.queues), player.WithVolume(cfg.Volume)}
	if id := cmd.String("session"); id != "" {
		opts = append(opts, player.WithSessionID(id))
	}
	session := player.NewSession(r.newQueue(), resolver, native, r.logger, opts...)

	if cmd.String("session") != "" {
		n, err := session.Restore(ctx)
		if err != nil {
			return err
		}
		r.logger.Info("queue restored", "session", session.ID(), "items", n)
	}

	if rt.library != nil {
		go func() {
			if err := rt.library.Watch(ctx); err != nil {
				r.logger.Error("library watcher stopped", "error", err)
			}
		}()
	}

	if addr := r.config.Metrics.Addr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				r.logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	model := ui.NewModel(ctx, r.source, session, r.prefetchEngine(rt, resolver), ui.Options{
		UserID:        uid,
		PrefetchCount: r.config.Prefetch.Count,
		Prefetch:      tasks.PrefetchOpts{NumWorkers: r.config.Prefetch.Workers},
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	_, runErr := p.Run()
	session.Stop()
	cancel()

	if err := session.Save(context.Background()); err != nil {
		r.logger.Warn("failed to save queue", "error", err)
	} else {
		r.writePlain("Session %s saved\n", session.ID())
	}

	if runErr != nil {
		return fmt.Errorf("error running TUI: %w", runErr)
	}
	return nil
}
