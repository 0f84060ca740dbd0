package queue

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/shared"
)

// TrackLoader fetches the tracks a rebuild needs.
type TrackLoader interface {
	PlaylistTracks(ctx context.Context, playlistID int64) ([]models.Track, error)
	AlbumTracks(ctx context.Context, albumID int64) ([]models.Track, error)
}

// Provider rebuilds a queue from playlists, albums and loose tracks.
type Provider struct {
	loader TrackLoader
	logger *log.Logger
}

// NewProvider returns a [Provider] that loads tracks through loader.
func NewProvider(loader TrackLoader, logger *log.Logger) *Provider {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Provider{loader: loader, logger: logger}
}

// Rebuild applies req to q.
//
// Play requests replace the queue in one mutation, starting at the start track when one is set.
// Append requests only add. Tracks are fetched before the queue is touched, so a failed fetch
// leaves q unchanged.
func (p *Provider) Rebuild(ctx context.Context, q *Queue, req RebuildRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch req.Kind {
	case RebuildPlayPlaylist:
		tracks, err := p.loader.PlaylistTracks(ctx, req.PlaylistID)
		if err != nil {
			return fmt.Errorf("failed to load playlist %d: %w", req.PlaylistID, err)
		}
		q.Replace(Items(tracks, req.PlaylistID), req.StartTrackID)
	case RebuildAppendPlaylist:
		tracks, err := p.loader.PlaylistTracks(ctx, req.PlaylistID)
		if err != nil {
			return fmt.Errorf("failed to load playlist %d: %w", req.PlaylistID, err)
		}
		q.Add(Items(tracks, req.PlaylistID)...)
	case RebuildPlayAlbum:
		tracks, err := p.loader.AlbumTracks(ctx, req.AlbumID)
		if err != nil {
			return fmt.Errorf("failed to load album %d: %w", req.AlbumID, err)
		}
		q.Replace(Items(tracks, 0), req.StartTrackID)
	case RebuildAppendTracks:
		q.Add(Items(req.Tracks, req.PlaylistID)...)
	case RebuildNone:
	default:
		return fmt.Errorf("%w: unknown rebuild kind %s", shared.ErrInvalidArgument, req.Kind)
	}

	p.logger.Debug("queue rebuilt", "request", req, "len", q.Len())
	return nil
}

// Items converts tracks into queue items attributed to playlistID.
func Items(tracks []models.Track, playlistID int64) []models.QueueItem {
	items := make([]models.QueueItem, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, models.NewQueueItem(t, playlistID))
	}
	return items
}
