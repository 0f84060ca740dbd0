package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Artist is a credited performer.
type Artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Album is the release a track belongs to.
type Album struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Track is song metadata returned by playlist and album endpoints.
type Track struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Alias      []string `json:"alia,omitempty"`
	Artists    []Artist `json:"ar"`
	Album      Album    `json:"al"`
	DurationMS int64    `json:"dt"`
}

// ArtistNames returns the names of the credited artists in order.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// Duration returns the track length.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// Playlist is playlist metadata from the user's library.
type Playlist struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	PlayCount       int64  `json:"playCount"`
	SubscribedCount int64  `json:"subscribedCount"`
	TrackCount      int    `json:"trackCount"`
	UserID          int64  `json:"userId"`
}

// SongDetail is a resolved stream for a track.
type SongDetail struct {
	ID   int64  `json:"id"`
	URL  string `json:"url"`
	MD5  string `json:"md5"`
	Size int64  `json:"size"`
}

// Validate reports whether the detail can be downloaded and cached.
func (s SongDetail) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("song %d has no url", s.ID)
	}
	return nil
}

// QueueItem is one entry of the playback queue.
type QueueItem struct {
	TrackID          int64    `json:"track_id"`
	Title            string   `json:"title"`
	Artists          []string `json:"artists"`
	SourcePlaylistID int64    `json:"source_playlist_id,omitempty"`
	CacheKey         string   `json:"cache_key"`
}

// NewQueueItem builds a queue entry from a remote track.
//
// The title carries the first alias in parentheses and the cache key is the track ID.
func NewQueueItem(t Track, playlistID int64) QueueItem {
	title := t.Name
	if len(t.Alias) > 0 && t.Alias[0] != "" {
		title = fmt.Sprintf("%s (%s)", t.Name, t.Alias[0])
	}
	return QueueItem{
		TrackID:          t.ID,
		Title:            title,
		Artists:          t.ArtistNames(),
		SourcePlaylistID: playlistID,
		CacheKey:         strconv.FormatInt(t.ID, 10),
	}
}

// Same reports whether two items refer to the same track.
func (q QueueItem) Same(other QueueItem) bool {
	return q.TrackID == other.TrackID
}

// Description renders the artists joined with "/".
func (q QueueItem) Description() string {
	return strings.Join(q.Artists, "/")
}

// String renders "title - artists" for logs and plain output.
func (q QueueItem) String() string {
	if len(q.Artists) == 0 {
		return q.Title
	}
	return q.Title + " - " + q.Description()
}

// CacheEntry is the metadata an integrity cache keeps per stored blob.
type CacheEntry struct {
	Key           string    `json:"key"`
	IntegrityHash string    `json:"integrity_hash"`
	SizeBytes     int64     `json:"size_bytes"`
	LastAccess    time.Time `json:"last_access"`
	Seq           int64     `json:"-"`
}

// Validate checks the fields the cache relies on.
func (e CacheEntry) Validate() error {
	if e.Key == "" {
		return fmt.Errorf("cache entry key is required")
	}
	if e.IntegrityHash == "" {
		return fmt.Errorf("cache entry %q has no integrity hash", e.Key)
	}
	if e.SizeBytes < 0 {
		return fmt.Errorf("cache entry %q has negative size", e.Key)
	}
	return nil
}
