package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = newPalette(map[string]string{
	"title":   "#7D56F4",
	"playing": "#04B575",
	"lyric":   "#E0C3FC",
	"err":     "#FF0000",
	"warn":    "#FFA500",
	"help":    "#626262",
})

// palette is the stylesheet for the player views
type palette struct {
	title   lipgloss.Style
	playing lipgloss.Style
	lyric   lipgloss.Style
	err     lipgloss.Style
	warn    lipgloss.Style
	help    lipgloss.Style
}

func newPalette(colors map[string]string) *palette {
	return &palette{
		title:   newBold(colors["title"]).MarginBottom(1),
		playing: newBold(colors["playing"]),
		lyric:   newEm(colors["lyric"]),
		err:     newBold(colors["err"]),
		warn:    newStyle(colors["warn"]),
		help:    newEm(colors["help"]),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

func newEm(fg string) lipgloss.Style {
	return newStyle(fg).Italic(true)
}
