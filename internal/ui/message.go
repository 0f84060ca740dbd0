package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgQueueRefreshed
	MsgPlayback
	MsgProgressUpdate
	MsgPrefetchComplete
	MsgTick
)

type playlistsData struct {
	playlists []models.Playlist
	err       error
}

type queueData struct {
	items []models.QueueItem
	err   error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsData{playlists, err}}
}

// queueRefreshedMsg is the constructor for [MsgQueueRefreshed]
func queueRefreshedMsg(items []models.QueueItem, err error) Msg {
	return Msg{kind: MsgQueueRefreshed, data: queueData{items, err}}
}

// playbackMsg is the constructor for [MsgPlayback]
func playbackMsg(err error) Msg {
	return Msg{kind: MsgPlayback, data: err}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// prefetchCompleteMsg is the constructor for [MsgPrefetchComplete]
func prefetchCompleteMsg(result *tasks.PrefetchResult) Msg {
	return Msg{kind: MsgPrefetchComplete, data: result}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg() Msg {
	return Msg{kind: MsgTick}
}
