package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/cloudplay/internal/models"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = queueItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	if i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Description)
	}
	return desc
}

// queueItem wraps [models.QueueItem] to implement [list.Item].
type queueItem struct {
	item    models.QueueItem
	playing bool
}

func (i queueItem) FilterValue() string { return i.item.Title }
func (i queueItem) Title() string {
	if i.playing {
		return "▶ " + i.item.Title
	}
	return i.item.Title
}
func (i queueItem) Description() string { return i.item.Description() }
