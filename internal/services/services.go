package services

import (
	"context"

	"github.com/desertthunder/cloudplay/internal/models"
)

// Service is the remote music API the player depends on.
type Service interface {
	// UserPlaylists returns the playlists created or subscribed to by uid.
	UserPlaylists(ctx context.Context, uid int64) ([]models.Playlist, error)

	// PlaylistTracks returns every track of a playlist in order.
	PlaylistTracks(ctx context.Context, playlistID int64) ([]models.Track, error)

	// AlbumTracks returns every track of an album in order.
	AlbumTracks(ctx context.Context, albumID int64) ([]models.Track, error)

	// SongURL resolves a stream for trackID at the requested bitrate.
	SongURL(ctx context.Context, trackID int64, bitrate int) (models.SongDetail, error)

	// Lyric returns the LRC text for trackID, empty when the track has none.
	Lyric(ctx context.Context, trackID int64) (string, error)

	// Name returns the name of the service
	Name() string
}

// Downloader fetches media bytes from a resolved stream URL.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}
