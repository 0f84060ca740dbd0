package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cloudplay/internal/formatter"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/queue"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistsList prints the playlists of a user.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSource(); err != nil {
		return err
	}
	uid, err := r.userID(cmd.Int64("uid"))
	if err != nil {
		return err
	}

	r.logger.Info("fetching playlists", "uid", uid)

	playlists, err := r.source.UserPlaylists(ctx, uid)
	if err != nil {
		return fmt.Errorf("failed to fetch playlists: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(playlists)))
	_, err = r.output.Write(formatter.PlaylistsTable(playlists))
	return err
}

// PlaylistsTracks prints the tracks of a playlist or album in queue order.
func (r *Runner) PlaylistsTracks(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSource(); err != nil {
		return err
	}

	playlistID, albumID := cmd.Int64("id"), cmd.Int64("album")

	var tracks []models.Track
	var err error
	switch {
	case playlistID != 0:
		tracks, err = r.source.PlaylistTracks(ctx, playlistID)
	case albumID != 0:
		tracks, err = r.source.AlbumTracks(ctx, albumID)
	default:
		return fmt.Errorf("%w: --id or --album", shared.ErrMissingArgument)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch tracks: %w", err)
	}

	items := queue.Items(tracks, playlistID)
	if cmd.Bool("json") {
		return r.writeJSON(items, true)
	}

	_, err = r.output.Write(formatter.QueueToText(items))
	return err
}
