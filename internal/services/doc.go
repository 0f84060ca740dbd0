// Package services defines the [Service] interface for the remote music API and implements it with [APIService].
//
// # Service Interface
//
// The player consumes the remote API through a small surface: the user's playlists, the tracks
// of a playlist or album, a stream URL for a track and its lyric text.
//
// # API Implementation
//
// [APIService] talks JSON over HTTP to a cloud-music API proxy at a configurable base URL.
// Requests pass through a token-bucket limiter. Listing and lyric responses are memoized for a
// TTL; stream URLs are not, since they expire server side.
//
// # Error Handling
//
// Transport failures, non-2xx statuses and non-200 response codes are wrapped in [shared.ErrFetchFailed].
// Empty stream URLs are reported as [shared.ErrTrackNotFound].
package services
