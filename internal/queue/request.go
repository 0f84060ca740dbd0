package queue

import (
	"fmt"

	"github.com/desertthunder/cloudplay/internal/models"
)

// RebuildKind names what a pending refresh should rebuild.
type RebuildKind int

const (
	RebuildNone           RebuildKind = iota
	RebuildPlayPlaylist               // replace the queue with a playlist, optionally starting at a track
	RebuildAppendPlaylist             // append a playlist's tracks
	RebuildPlayAlbum                  // replace the queue with an album, optionally starting at a track
	RebuildAppendTracks               // append the tracks carried by the request
)

func (k RebuildKind) String() string {
	switch k {
	case RebuildNone:
		return "none"
	case RebuildPlayPlaylist:
		return "play-playlist"
	case RebuildAppendPlaylist:
		return "append-playlist"
	case RebuildPlayAlbum:
		return "play-album"
	case RebuildAppendTracks:
		return "append-tracks"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// RebuildRequest describes the rebuild a refresh will run.
type RebuildRequest struct {
	Kind         RebuildKind
	PlaylistID   int64
	AlbumID      int64
	StartTrackID int64
	Tracks       []models.Track
}

// PlayPlaylist requests that the queue be replaced by playlistID, starting at startTrackID when non-zero.
func PlayPlaylist(playlistID, startTrackID int64) RebuildRequest {
	return RebuildRequest{Kind: RebuildPlayPlaylist, PlaylistID: playlistID, StartTrackID: startTrackID}
}

// AppendPlaylist requests that playlistID's tracks be appended.
func AppendPlaylist(playlistID int64) RebuildRequest {
	return RebuildRequest{Kind: RebuildAppendPlaylist, PlaylistID: playlistID}
}

// PlayAlbum requests that the queue be replaced by albumID, starting at startTrackID when non-zero.
func PlayAlbum(albumID, startTrackID int64) RebuildRequest {
	return RebuildRequest{Kind: RebuildPlayAlbum, AlbumID: albumID, StartTrackID: startTrackID}
}

// AppendTracks requests that tracks be appended, attributed to playlistID.
func AppendTracks(playlistID int64, tracks ...models.Track) RebuildRequest {
	return RebuildRequest{Kind: RebuildAppendTracks, PlaylistID: playlistID, Tracks: tracks}
}

// IsZero reports whether the request asks for nothing.
func (r RebuildRequest) IsZero() bool {
	return r.Kind == RebuildNone
}

func (r RebuildRequest) String() string {
	switch r.Kind {
	case RebuildPlayPlaylist:
		return fmt.Sprintf("%s playlist=%d start=%d", r.Kind, r.PlaylistID, r.StartTrackID)
	case RebuildAppendPlaylist:
		return fmt.Sprintf("%s playlist=%d", r.Kind, r.PlaylistID)
	case RebuildPlayAlbum:
		return fmt.Sprintf("%s album=%d start=%d", r.Kind, r.AlbumID, r.StartTrackID)
	case RebuildAppendTracks:
		return fmt.Sprintf("%s playlist=%d tracks=%d", r.Kind, r.PlaylistID, len(r.Tracks))
	default:
		return r.Kind.String()
	}
}
