package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/player"
	"github.com/desertthunder/cloudplay/internal/queue"
	"github.com/desertthunder/cloudplay/internal/services"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/desertthunder/cloudplay/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	QueueView
)

const tickInterval = time.Second

// Options configures the TUI model.
type Options struct {
	UserID        int64
	PrefetchCount int
	Prefetch      tasks.PrefetchOpts
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	service services.Service
	session *player.Session
	engine  *tasks.Engine
	opts    Options

	width        int
	height       int
	playlistList list.Model
	playlists    []models.Playlist
	queueList    list.Model
	items        []models.QueueItem
	status       player.Status
	advancing    bool
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies. engine may be nil to disable prefetch.
func NewModel(ctx context.Context, service services.Service, session *player.Session, engine *tasks.Engine, opts Options) *Model {
	m := &Model{
		ctx:     ctx,
		view:    PlaylistListView,
		service: service,
		session: session,
		engine:  engine,
		opts:    opts,
		help:    help.New(),
		keys:    newKeyMap(),
	}
	m.playlistList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.playlistList.Title = "Playlists"
	m.queueList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.queueList.Title = "Queue"
	m.queueList.SetFilteringEnabled(false)
	return m
}

// Init fetches playlists and starts listening for queue changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPlaylists(), m.waitForChanges(), m.tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.queueList.SetSize(msg.Width-4, msg.Height-10)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case QueueView:
			return m.handleQueueKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsData)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.playlists = data.playlists
		items := make([]list.Item, len(data.playlists))
		for i, pl := range data.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		return m, m.playlistList.SetItems(items)

	case MsgQueueRefreshed:
		data := msg.data.(queueData)
		m.err = data.err
		wasEmpty := len(m.items) == 0
		m.items = data.items
		cmds := []tea.Cmd{m.setQueueItems(), m.waitForChanges()}
		if wasEmpty && len(data.items) > 0 && !m.status.Loaded {
			cmds = append(cmds, m.play(m.session.Play))
		}
		return m, tea.Batch(cmds...)

	case MsgPlayback:
		m.advancing = false
		if err, _ := msg.data.(error); err != nil {
			m.err = err
		} else {
			m.err = nil
		}
		m.status = m.session.Status()
		return m, tea.Batch(m.setQueueItems(), m.startPrefetch())

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgPrefetchComplete:
		m.progressChan = nil
		if result, _ := msg.data.(*tasks.PrefetchResult); result != nil && result.Failed > 0 {
			m.progress.Message = fmt.Sprintf("prefetch: %d fetched, %d failed", result.Fetched, result.Failed)
		}
		return m, nil

	case MsgTick:
		m.status = m.session.Status()
		cmds := []tea.Cmd{m.tick()}
		if !m.advancing && m.session.Finished() {
			m.advancing = true
			cmds = append(cmds, m.play(m.advance))
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case PlaylistListView:
		body = m.renderPlaylistList()
	case QueueView:
		body = m.renderQueue()
	}

	if m.err != nil {
		body += "\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}
	return body
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.playlistList, cmd = m.playlistList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter), key.Matches(msg, m.keys.append):
		selected, ok := m.playlistList.SelectedItem().(playlistItem)
		if !ok {
			return m, nil
		}
		req := queue.PlayPlaylist(selected.playlist.ID, 0)
		if key.Matches(msg, m.keys.append) {
			req = queue.AppendPlaylist(selected.playlist.ID)
		} else {
			m.session.Stop()
			m.status = m.session.Status()
			m.items = nil
		}
		m.session.Queue().RequestRefresh(req)
		m.view = QueueView
		return m, nil
	case key.Matches(msg, m.keys.back):
		m.view = QueueView
		return m, nil
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	q := m.session.Queue()

	switch {
	case key.Matches(msg, m.keys.quit):
		m.session.Stop()
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if selected, ok := m.queueList.SelectedItem().(queueItem); ok {
			item := selected.item
			return m, m.play(func(ctx context.Context) error { return m.session.PlayItem(ctx, item) })
		}
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		return m, m.play(m.session.Toggle)
	case key.Matches(msg, m.keys.next):
		return m, m.play(m.session.Next)
	case key.Matches(msg, m.keys.prev):
		return m, m.play(m.session.Previous)
	case key.Matches(msg, m.keys.shuffle):
		q.Random()
		return m, nil
	case key.Matches(msg, m.keys.remove):
		if selected, ok := m.queueList.SelectedItem().(queueItem); ok && !selected.playing {
			q.Delete(selected.item)
		}
		return m, nil
	case key.Matches(msg, m.keys.clear):
		m.session.Stop()
		m.status = m.session.Status()
		q.Clear()
		return m, nil
	case key.Matches(msg, m.keys.louder):
		m.session.AdjustVolume(5)
		m.status = m.session.Status()
		return m, nil
	case key.Matches(msg, m.keys.quieter):
		m.session.AdjustVolume(-5)
		m.status = m.session.Status()
		return m, nil
	}

	var cmd tea.Cmd
	m.queueList, cmd = m.queueList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case QueueView:
		m.queueList, cmd = m.queueList.Update(msg)
	}
	return m, cmd
}

func (m *Model) setQueueItems() tea.Cmd {
	items := make([]list.Item, len(m.items))
	for i, it := range m.items {
		items[i] = queueItem{item: it, playing: i == 0 && m.status.Loaded && it.Same(m.status.Item)}
	}
	return m.queueList.SetItems(items)
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.service.UserPlaylists(m.ctx, m.opts.UserID)
		return playlistsFetchedMsg(playlists, err)
	}
}

// waitForChanges blocks until the queue signals, then consumes the pending refresh.
func (m *Model) waitForChanges() tea.Cmd {
	q := m.session.Queue()
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case <-q.Changes():
		}
		items, err := q.ConsumeRefresh(m.ctx)
		return queueRefreshedMsg(items, err)
	}
}

func (m *Model) play(action func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		err := action(m.ctx)
		if errors.Is(err, shared.ErrQueueEmpty) {
			err = nil
		}
		return playbackMsg(err)
	}
}

// advance moves past a finished track off the event loop; resolving the next track may download it.
func (m *Model) advance(ctx context.Context) error {
	_, err := m.session.Tick(ctx)
	return err
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg() })
}

func (m *Model) startPrefetch() tea.Cmd {
	if m.engine == nil || m.opts.PrefetchCount <= 0 || m.progressChan != nil {
		return nil
	}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	ch := m.progressChan
	q := m.session.Queue()

	done := make(chan *tasks.PrefetchResult, 1)
	go func() {
		result, _ := m.engine.PrefetchQueue(m.ctx, ch, q, m.opts.PrefetchCount, m.opts.Prefetch)
		done <- result
		close(ch)
	}()

	return m.waitForProgressOn(ch, done)
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.progressChan == nil {
		return nil
	}
	return m.waitForProgressOn(m.progressChan, nil)
}

func (m *Model) waitForProgressOn(ch chan tasks.ProgressUpdate, done <-chan *tasks.PrefetchResult) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			var result *tasks.PrefetchResult
			if done != nil {
				result = <-done
			}
			return prefetchCompleteMsg(result)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderPlaylistList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.append, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderQueue() string {
	var b strings.Builder

	if m.status.Loaded {
		state := "▶"
		if !m.status.Playing {
			state = "⏸"
		}
		b.WriteString(styles.playing.Render(fmt.Sprintf("%s %s", state, m.status.Item)))
		b.WriteString("\n")
		b.WriteString(styles.help.Render(fmt.Sprintf("%s  vol %d%%", formatPosition(m.status.Position), m.status.Volume)))
		if m.status.Lyric != "" {
			b.WriteString("\n" + styles.lyric.Render(m.status.Lyric))
		}
	} else {
		b.WriteString(styles.title.Render("Nothing playing"))
	}
	b.WriteString("\n\n")

	if _, pending := m.session.Queue().Pending(); pending {
		b.WriteString(styles.warn.Render("Loading queue...") + "\n")
	}

	b.WriteString(m.queueList.View())

	if m.progress.Message != "" {
		b.WriteString("\n" + styles.help.Render(m.progress.Message))
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.toggle, m.keys.next, m.keys.prev, m.keys.shuffle, m.keys.remove, m.keys.clear, m.keys.back, m.keys.quit}
	b.WriteString("\n\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}

func formatPosition(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
