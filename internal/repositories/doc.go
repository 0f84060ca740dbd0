// Package repositories implements SQLite persistence for cloudplay's local state.
//
// Key Implementations:
//   - [CacheEntryRepository] : Sidecar metadata index for the integrity caches, one row per blob
//   - [QueueRepository] : Last known playback queue per session
//
// Tables are created by the embedded migrations in the shared package.
package repositories
