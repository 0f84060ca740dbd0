// Package models defines the domain records shared by the cloudplay packages.
//
// The package contains two categories of types:
//
// 1. Remote records: data returned by the music API
//   - [Track] : Song metadata with artists and album
//   - [Playlist] : Playlist metadata owned by a user
//   - [SongDetail] : Streamable URL with the service-provided MD5 and size
//
// 2. Local records: state the player owns
//   - [QueueItem] : One playable entry of the playback queue, identified by TrackID
//   - [CacheEntry] : Metadata for one blob held by an integrity cache
//
// [QueueItem] values compare by TrackID only; use [QueueItem.Same] rather than ==.
package models
