// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "migrations",
				Usage:  "List schema migrations and whether they are applied",
				Action: r.SetupMigrations,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent schema migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// playlistsCommand lists the account's playlists and their tracks.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Browse playlists from the music API",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the user's playlists",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "uid",
						Usage: "User ID (defaults to api.user_id)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.PlaylistsList,
			},
			{
				Name:  "tracks",
				Usage: "List the tracks of a playlist or album",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "id",
						Usage: "Playlist ID",
					},
					&cli.Int64Flag{
						Name:  "album",
						Usage: "Album ID (instead of a playlist)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistsTracks,
			},
		},
	}
}

// queueCommand manages persisted play queues.
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "queue",
		Aliases: []string{"q"},
		Usage:   "Build, inspect and export play queues",
		Commands: []*cli.Command{
			{
				Name:  "load",
				Usage: "Build a queue from a playlist or album and save it",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "playlist",
						Usage: "Playlist ID",
					},
					&cli.Int64Flag{
						Name:  "album",
						Usage: "Album ID",
					},
					&cli.Int64Flag{
						Name:  "start",
						Usage: "Track ID to start from",
					},
					&cli.StringFlag{
						Name:  "session",
						Usage: "Session ID to save under (default: new)",
					},
					&cli.BoolFlag{
						Name:  "shuffle",
						Usage: "Shuffle the queue after loading",
					},
				},
				Action: r.QueueLoad,
			},
			{
				Name:  "show",
				Usage: "Print a saved queue",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "session",
						Usage: "Session ID (default: most recent)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.QueueShow,
			},
			{
				Name:  "export",
				Usage: "Export a saved queue to CSV, Markdown, JSON or text",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "session",
						Usage: "Session ID (default: most recent)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "queue.csv",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "csv, md, json or txt (default: from extension)",
					},
				},
				Action: r.QueueExport,
			},
			{
				Name:  "delete",
				Usage: "Delete a saved queue",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "session",
						Usage:    "Session ID",
						Required: true,
					},
				},
				Action: r.QueueDelete,
			},
		},
	}
}

// cacheCommand inspects and maintains the integrity caches.
func cacheCommand(r *Runner) *cli.Command {
	namespaceArg := []cli.Argument{&cli.StringArg{Name: "namespace", Value: "music"}}

	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the music, lyric and local caches",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show size, budget and hit counters per cache",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheStats,
			},
			{
				Name:      "entries",
				Usage:     "List entries of a cache, least recently used first",
				Arguments: namespaceArg,
				Action:    r.CacheEntries,
			},
			{
				Name:      "verify",
				Usage:     "Re-hash every entry and drop the ones that no longer match",
				Arguments: namespaceArg,
				Action:    r.CacheVerify,
			},
			{
				Name:      "rebuild",
				Usage:     "Rebuild the index from the blobs on disk",
				Arguments: namespaceArg,
				Action:    r.CacheRebuild,
			},
			{
				Name:      "clear",
				Usage:     "Remove every entry of a cache",
				Arguments: namespaceArg,
				Action:    r.CacheClear,
			},
			{
				Name:  "invalidate",
				Usage: "Remove one entry from a cache",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "namespace"},
					&cli.StringArg{Name: "key"},
				},
				Action: r.CacheInvalidate,
			},
			{
				Name:  "prefetch",
				Usage: "Download the tracks of a playlist into the music cache",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "playlist",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent downloads",
						Value: 2,
					},
					&cli.Float64Flag{
						Name:  "rate",
						Usage: "Downloads started per second",
						Value: 2,
					},
				},
				Action: r.CachePrefetch,
			},
		},
	}
}

// libraryCommand manages the local music directory.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Index the local music directory",
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "Scan cache.local_directory and list matched tracks",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.LibraryScan,
			},
			{
				Name:   "watch",
				Usage:  "Keep the local cache in sync with the directory until interrupted",
				Action: r.LibraryWatch,
			},
		},
	}
}

// apiCommand handles direct (proxy) API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls to the music API proxy",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET to the proxy, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:  "dump",
				Usage: "Account state dump (login, playlists, liked songs, history)",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "uid",
						Usage: "User ID (defaults to api.user_id)",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Save dump to api_dump.json",
						Value: false,
					},
				},
				Action: r.APIDump,
			},
		},
	}
}

// metricsCommand exposes prometheus metrics.
func metricsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "Serve prometheus metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to metrics.addr)",
			},
		},
		Action: r.MetricsServe,
	}
}

// playCommand returns the top-level command for the interactive player.
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "play",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the interactive player",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "uid",
				Usage: "User ID (defaults to api.user_id)",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Restore a saved queue",
			},
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log file path",
				Value: "./tmp/cloudplay-tui.log",
			},
		},
		Action: r.Play,
	}
}
