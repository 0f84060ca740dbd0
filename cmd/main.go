package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/cloudplay/internal/cache"
	"github.com/desertthunder/cloudplay/internal/services"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	} else if err := shared.ApplyEnv(config); err != nil {
		logger.Warn("ignoring invalid environment overrides", "error", err)
	}

	apiService := services.NewAPIService(config.API.BaseURL, nil,
		services.WithRateLimit(config.API.RateLimit),
		services.WithMemo(cache.NewMemo[[]byte](nil), config.Cache.MemoTTL),
		services.WithLogger(logger),
	)

	runner := NewRunner(RunnerOpts{
		Config: config,
		API:    apiService,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "cloudplay",
		Usage:    "Play cloud music playlists from a local integrity-checked cache",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
