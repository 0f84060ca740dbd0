package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/cloudplay/internal/metrics"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/urfave/cli/v3"
)

// MetricsServe exposes /metrics until interrupted.
func (r *Runner) MetricsServe(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Metrics.Addr
	}
	if addr == "" {
		return fmt.Errorf("%w: --addr or metrics.addr", shared.ErrMissingConfig)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("serving metrics", "addr", addr)
	return metrics.Serve(ctx, addr)
}
