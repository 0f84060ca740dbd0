// Package tasks runs background jobs for the player with real-time progress reporting.
//
// # Core Operations
//
// [Engine] provides two operations:
//
//  1. [Engine.Prefetch] : populate the music cache for upcoming queue items
//     - Resolves and downloads items on a bounded worker pool
//     - Requests are spaced by a rate limiter so the API is not flooded
//     - Items already cached are skipped without touching their access time
//
//  2. [Engine.Dump] : fetch raw account data from the API proxy
//     - Retrieves login status, playlists, liked songs and listening history
//     - Failed endpoints are collected instead of aborting the dump
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
