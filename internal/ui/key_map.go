package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	enter   key.Binding
	append  key.Binding
	back    key.Binding
	toggle  key.Binding
	next    key.Binding
	prev    key.Binding
	shuffle key.Binding
	remove  key.Binding
	clear   key.Binding
	louder  key.Binding
	quieter key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		append:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "append")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "playlists")),
		toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause")),
		next:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		prev:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		shuffle: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		remove:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove")),
		clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
		louder:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "louder")),
		quieter: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "quieter")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.append},
		{k.toggle, k.next, k.prev, k.louder, k.quieter},
		{k.shuffle, k.remove, k.clear, k.back, k.quit},
	}
}
