package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabnav/internal/analyzer"
	"github.com/lotas/tabnav/internal/applog"
	"github.com/lotas/tabnav/internal/popup"
	"github.com/lotas/tabnav/internal/server"
	"github.com/lotas/tabnav/internal/types"
)

// DefaultTimeout bounds every host call made from the TUI.
const DefaultTimeout = 10 * time.Second

// --- Messages ---

type tabsFetchedMsg struct {
	tabs []*types.Tab
	err  error
}

type switchedMsg struct {
	tab types.Tab
	err error
}

type removedMsg struct {
	tab types.Tab
	err error
}

type extensionConnectedMsg struct{}

// tabsChangedMsg is sent when the extension reports a tab event.
type tabsChangedMsg struct{}

type focusPane int

const (
	paneNav focusPane = iota
	paneRows
)

// Options configures the TUI.
type Options struct {
	Source types.Source
	Label  string // shown in the top bar, e.g. the profile or endpoint
	// Server is set for the bridge source. The TUI waits for the extension
	// and reloads on its tab events.
	Server    *server.Server
	Timeout   time.Duration
	StaleDays int // 0 disables stale markers
}

// Model is the popup as a Bubble Tea program.
type Model struct {
	ctrl    *popup.Controller
	opts    Options
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	nav   listPane
	rows  listPane
	focus focusPane
	hints analyzer.Hints

	confirm   *ConfirmDialog
	loading   bool
	fetching  bool
	stale     bool // tab events arrived during a fetch
	loaded    bool
	err       error
	status    string
	statusErr bool

	width  int
	height int
}

func NewModel(ctrl *popup.Controller, opts Options) Model {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	m := Model{
		ctrl:     ctrl,
		opts:     opts,
		keys:     defaultKeyMap(),
		help:     help.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		loading:  true,
		fetching: opts.Server == nil, // Init starts the first fetch
	}
	m.layout()
	return m
}

// --- Command helpers ---

func fetchTabs(ctrl *popup.Controller, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		tabs, err := ctrl.Fetch(ctx)
		return tabsFetchedMsg{tabs: tabs, err: err}
	}
}

func switchTab(ctrl *popup.Controller, tab types.Tab, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return switchedMsg{tab: tab, err: ctrl.Activate(ctx, tab.ID)}
	}
}

func removeTab(ctrl *popup.Controller, tab types.Tab, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return removedMsg{tab: tab, err: ctrl.Remove(ctx, tab.ID)}
	}
}

func recordClosed(ctrl *popup.Controller, closed popup.ClosedTab, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ctrl.Record(ctx, closed)
		return nil
	}
}

func waitForExtension(srv *server.Server) tea.Cmd {
	return func() tea.Msg {
		if err := srv.WaitConnected(context.Background()); err != nil {
			return tabsFetchedMsg{err: err}
		}
		return extensionConnectedMsg{}
	}
}

func listenWebSocket(srv *server.Server) tea.Cmd {
	return func() tea.Msg {
		for {
			msg, ok := <-srv.Messages()
			if !ok {
				return nil
			}
			if strings.HasPrefix(msg.Type, "tab.") {
				return tabsChangedMsg{}
			}
			// Unknown message type, skip and keep listening
		}
	}
}

func (m Model) Init() tea.Cmd {
	if m.opts.Server != nil {
		return tea.Batch(m.spinner.Tick, waitForExtension(m.opts.Server), listenWebSocket(m.opts.Server))
	}
	return tea.Batch(m.spinner.Tick, fetchTabs(m.ctrl, m.opts.Timeout))
}

func (m *Model) fetch() tea.Cmd {
	m.fetching = true
	m.stale = false
	return fetchTabs(m.ctrl, m.opts.Timeout)
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.layout()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case extensionConnectedMsg:
		applog.Info("tui.connected")
		return m, m.fetch()

	case tabsChangedMsg:
		next := listenWebSocket(m.opts.Server)
		if m.fetching {
			m.stale = true
			return m, next
		}
		return m, tea.Batch(next, m.fetch())

	case tabsFetchedMsg:
		m.fetching = false
		m.loading = false
		if msg.err != nil {
			if !m.loaded {
				m.err = msg.err
			} else {
				m.setStatus(msg.err.Error(), true)
			}
			return m, nil
		}
		m.err = nil
		m.applyTabs(msg.tabs)
		if m.stale {
			return m, m.fetch()
		}
		return m, nil

	case switchedMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		m.setStatus("Switched to "+popup.ConfirmTitle(msg.tab.Title), false)
		return m, nil

	case removedMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		closed, ok := m.ctrl.Applied(msg.tab.ID)
		m.refreshHints()
		m.syncCursors()
		if !ok {
			return m, nil
		}
		m.setStatus("Closed "+popup.ConfirmTitle(msg.tab.Title), false)
		return m, recordClosed(m.ctrl, closed, m.opts.Timeout)

	case tea.KeyMsg:
		if m.confirm != nil {
			return m.updateConfirm(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

// applyTabs loads a fresh listing, keeping the expanded group on reloads
// when it still exists.
func (m *Model) applyTabs(tabs []*types.Tab) {
	s := m.ctrl.Session()
	prev := s.Expanded()
	s.Load(tabs)
	if m.loaded && prev != "" && prev != s.Expanded() {
		if err := s.Expand(prev); err != nil && !errors.Is(err, popup.ErrUnknownGroup) {
			applog.Error("tui.expand", err, "group", prev)
		}
	}
	m.loaded = true
	m.refreshHints()
	m.syncCursors()
}

func (m *Model) refreshHints() {
	m.hints = analyzer.Analyze(m.ctrl.Session().AllTabs(), m.opts.StaleDays, time.Now())
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		d := m.confirm
		m.confirm = nil
		tab, ok := m.ctrl.Session().Tab(d.TabID)
		if !ok {
			return m, nil
		}
		return m, removeTab(m.ctrl, *tab, m.opts.Timeout)
	case key.Matches(msg, m.keys.Cancel):
		m.confirm = nil
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Reload) {
		if m.fetching {
			return m, nil
		}
		m.status = ""
		if !m.loaded {
			m.err = nil
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.fetch())
		}
		return m, m.fetch()
	}
	if m.loading || m.err != nil {
		return m, nil
	}

	s := m.ctrl.Session()
	nav := s.Navigation()
	rows := s.Rows()

	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()

	case key.Matches(msg, m.keys.Up):
		if m.focus == paneNav {
			m.nav.MoveUp()
		} else {
			m.rows.MoveUp()
		}

	case key.Matches(msg, m.keys.Down):
		if m.focus == paneNav {
			m.nav.MoveDown(len(nav))
		} else {
			m.rows.MoveDown(len(rows))
		}

	case key.Matches(msg, m.keys.Left):
		m.focus = paneNav

	case key.Matches(msg, m.keys.Right):
		if len(rows) > 0 {
			m.focus = paneRows
		}

	case key.Matches(msg, m.keys.Pane):
		if m.focus == paneNav && len(rows) > 0 {
			m.focus = paneRows
		} else {
			m.focus = paneNav
		}

	case key.Matches(msg, m.keys.Group):
		n := int(msg.String()[0] - '0')
		if n <= len(nav) {
			m.expand(nav[n-1].Key)
		}

	case key.Matches(msg, m.keys.Enter):
		if m.focus == paneNav {
			if m.nav.Cursor < len(nav) {
				m.expand(nav[m.nav.Cursor].Key)
			}
			return m, nil
		}
		if m.rows.Cursor >= len(rows) {
			return m, nil
		}
		row := rows[m.rows.Cursor]
		if !row.Switchable {
			m.setStatus("Already on this tab", false)
			return m, nil
		}
		m.status = ""
		return m, switchTab(m.ctrl, *row.Tab, m.opts.Timeout)

	case key.Matches(msg, m.keys.Delete):
		if m.focus != paneRows || m.rows.Cursor >= len(rows) {
			return m, nil
		}
		tab, err := s.CheckDeletable(rows[m.rows.Cursor].Tab.ID)
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.status = ""
		m.confirm = NewConfirmDialog(tab)
	}

	return m, nil
}

func (m *Model) expand(groupKey string) {
	if err := m.ctrl.Session().Expand(groupKey); err != nil {
		m.setStatus(err.Error(), true)
		return
	}
	m.rows.Cursor = 0
	m.rows.Offset = 0
	m.focus = paneRows
	m.syncCursors()
}

// syncCursors points the site cursor at the expanded group and keeps both
// cursors inside their lists after the session changed.
func (m *Model) syncCursors() {
	s := m.ctrl.Session()
	nav := s.Navigation()
	for i, e := range nav {
		if e.Key == s.Expanded() {
			m.nav.Cursor = i
			break
		}
	}
	m.nav.Clamp(len(nav))
	rows := s.Rows()
	m.rows.Clamp(len(rows))
	if len(rows) == 0 {
		m.focus = paneNav
	}
}

func (m *Model) layout() {
	width, height := m.width, m.height
	if width == 0 {
		width, height = 80, 24
	}
	navWidth := width * NavWidthPct / 100
	m.nav.Width = navWidth
	m.rows.Width = width - navWidth - 4 // borders
	paneHeight := height - 4 - lipgloss.Height(m.help.View(m.keys))
	if paneHeight < 3 {
		paneHeight = 3
	}
	m.nav.Height = paneHeight
	m.rows.Height = paneHeight - 1 // group title line
	m.syncCursors()
}

func (m Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("\n  Error: %v\n\n  Press 'r' to retry, 'q' to quit.\n", m.err)
	}

	if m.loading {
		if m.opts.Server != nil && !m.opts.Server.Connected() {
			return fmt.Sprintf("\n  %s Waiting for extension connection on :%d...\n", m.spinner.View(), m.opts.Server.Port())
		}
		return fmt.Sprintf("\n  %s Loading tabs...\n", m.spinner.View())
	}

	width, height := m.width, m.height
	if width == 0 {
		width, height = 80, 24
	}

	if m.confirm != nil {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, m.confirm.View(width))
	}

	s := m.ctrl.Session()

	// Top bar
	topBarStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	sourceStr := string(m.opts.Source)
	if m.opts.Label != "" {
		sourceStr += " " + m.opts.Label
	}
	if m.opts.Server != nil {
		if m.opts.Server.Connected() {
			sourceStr += " ● connected"
		} else {
			sourceStr += " ○ waiting..."
		}
	}
	nav := s.Navigation()
	statsStr := fmt.Sprintf("%d tabs · %d sites", s.TabCount(), len(nav))
	dup, stale := m.hints.Counts()
	if dup > 0 {
		statsStr += fmt.Sprintf(" · %d dup", dup)
	}
	if stale > 0 {
		statsStr += fmt.Sprintf(" · %d stale", stale)
	}
	topBar := topBarStyle.Render(sourceStr + "  " + statsStr)

	// Panes
	navBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(paneColor(m.focus == paneNav)).
		Width(m.nav.Width).
		Height(m.nav.Height)
	rowsBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(paneColor(m.focus == paneRows)).
		Width(m.rows.Width).
		Height(m.nav.Height)

	var navContent, rowsContent string
	if len(nav) == 0 {
		navContent = dimStyle.Render("No tabs in this window.")
	} else {
		navContent = m.nav.render(navLines(nav, s.Expanded(), m.nav.Width), m.focus == paneNav)
	}
	switch rows := s.Rows(); {
	case s.State() == popup.StateEmpty || len(rows) == 0:
		rowsContent = dimStyle.Render("Pick a site on the left.")
	default:
		rowsContent = rowsTitle(s.Expanded(), len(rows), m.rows.Width) + "\n" +
			m.rows.render(rowLines(rows, m.hints, m.rows.Width), m.focus == paneRows)
	}
	panes := lipgloss.JoinHorizontal(lipgloss.Top, navBorder.Render(navContent), rowsBorder.Render(rowsContent))

	// Bottom bar
	bottomBarStyle := lipgloss.NewStyle().Padding(0, 1)
	status := ""
	if m.status != "" {
		if m.statusErr {
			status = errorStyle.Render(m.status)
		} else {
			status = countStyle.Render(m.status)
		}
	}
	bottomBar := bottomBarStyle.Render(status + "\n" + m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, topBar, panes, bottomBar)
}

func paneColor(focused bool) lipgloss.Color {
	if focused {
		return lipgloss.Color("62")
	}
	return lipgloss.Color("240")
}
