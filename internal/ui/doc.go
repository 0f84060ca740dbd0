// Package ui implements an interactive terminal player using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [PlaylistListView] : Browse the account's playlists and play or append one
//  2. [QueueView] : The playback queue with the now-playing header, lyrics and prefetch progress
//
// The (view) [Model] is the queue's single refresh listener. It waits on [queue.Queue.Changes],
// calls [queue.Queue.ConsumeRefresh] (running any pending rebuild) and renders the returned snapshot.
// User actions only mutate the queue or request a refresh; they never redraw the list directly.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
