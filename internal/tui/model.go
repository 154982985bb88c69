// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"grimm.is/sockwatch/internal/scout"
)

// View represents the currently active screen.
type View int

const (
	ViewMain View = iota
	ViewDetail
)

type TickMsg time.Time

type snapshotMsg struct{ snap *Snapshot }

type pollError struct{ err error }

// Model is the dashboard application state.
type Model struct {
	App *App

	ActiveView View
	Width      int
	Height     int

	keys keyMap
	help help.Model

	snap     *Snapshot
	lastErr  string
	notice   string
	cursor   int
	scroll   int
	selected ConnRow
}

// NewModel creates the initial model around an app.
func NewModel(app *App) Model {
	return Model{
		App:  app,
		keys: newKeyMap(),
		help: help.New(),
	}
}

// Init kicks off the first poll immediately; later polls follow the
// tick cadence.
func (m Model) Init() tea.Cmd {
	return m.poll()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.App.Interval(), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) poll() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.App.Poll(context.Background())
		if err != nil {
			return pollError{err: err}
		}
		return snapshotMsg{snap: snap}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TickMsg:
		return m, m.poll()

	case snapshotMsg:
		m.snap = msg.snap
		m.lastErr = ""
		m.clampCursor()
		if msg.snap.FollowEnded {
			// Nothing left to follow.
			return m, tea.Quit
		}
		return m, m.tick()

	case pollError:
		m.lastErr = msg.err.Error()
		// Keep ticking; a transient source error should not kill the UI.
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit

	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, k.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		m.clampScroll()
		return m, nil

	case key.Matches(msg, k.Down):
		m.cursor++
		m.clampCursor()
		m.clampScroll()
		return m, nil

	case key.Matches(msg, k.Enter):
		if row, ok := m.rowAtCursor(); ok {
			m.selected = row
			m.ActiveView = ViewDetail
		}
		return m, nil

	case key.Matches(msg, k.Back):
		m.ActiveView = ViewMain
		return m, nil

	case key.Matches(msg, k.Grouping):
		name := m.App.CycleGrouping()
		m.notice = "grouping: " + name
		return m, m.poll()

	case key.Matches(msg, k.Linger):
		on := m.App.ToggleLinger()
		m.notice = fmt.Sprintf("linger: %v", on)
		return m, nil

	case key.Matches(msg, k.Resolve):
		on := m.App.ToggleResolve()
		m.notice = fmt.Sprintf("resolve: %v", on)
		return m, nil

	case key.Matches(msg, k.IPv4):
		m.App.SetAFMode(scout.AFIPv4Only)
		m.notice = "family: ipv4"
		return m, nil

	case key.Matches(msg, k.IPv6):
		m.App.SetAFMode(scout.AFIPv6Only)
		m.notice = "family: ipv6"
		return m, nil

	case key.Matches(msg, k.AnyAF):
		m.App.SetAFMode(scout.AFAll)
		m.notice = "family: any"
		return m, nil
	}
	return m, nil
}

// rowAtCursor maps the flat cursor position back to a connection row.
// Group banner lines are not selectable; the cursor indexes connection
// lines only.
func (m Model) rowAtCursor() (ConnRow, bool) {
	if m.snap == nil {
		return ConnRow{}, false
	}
	i := m.cursor
	for _, section := range [][]GroupRow{m.snap.Listen, m.snap.Out, m.snap.Procs} {
		for _, g := range section {
			if i < len(g.Conns) {
				return g.Conns[i], true
			}
			i -= len(g.Conns)
		}
	}
	return ConnRow{}, false
}

func (m *Model) connCount() int {
	if m.snap == nil {
		return 0
	}
	n := 0
	for _, section := range [][]GroupRow{m.snap.Listen, m.snap.Out, m.snap.Procs} {
		for _, g := range section {
			n += len(g.Conns)
		}
	}
	return n
}

func (m *Model) clampCursor() {
	if max := m.connCount() - 1; m.cursor > max {
		m.cursor = max
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) clampScroll() {
	visible := m.bodyHeight()
	if visible <= 0 {
		return
	}
	if m.cursor < m.scroll {
		m.scroll = m.cursor
	}
	if m.cursor >= m.scroll+visible {
		m.scroll = m.cursor - visible + 1
	}
}

func (m Model) bodyHeight() int {
	// Header, status bar and help line.
	return m.Height - 4
}

// View renders the application.
func (m Model) View() string {
	var body string
	switch m.ActiveView {
	case ViewDetail:
		body = m.viewDetail()
	default:
		body = m.viewMain()
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(m.viewStatus())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) viewHeader() string {
	title := StyleHeader.Render("SOCKWATCH")
	if m.snap == nil {
		return title + StyleFaint.Render("  waiting for first round...")
	}
	s := m.snap.Stats
	info := fmt.Sprintf("  %d tracked  %d new  %d ignored  %d listeners",
		s.Tracked, s.New, s.Ignored, s.Listeners)
	return title + StyleFaint.Render(info)
}

func (m Model) viewStatus() string {
	if m.lastErr != "" {
		return StyleError.Render("poll failed: " + m.lastErr)
	}
	if m.snap == nil {
		return ""
	}
	items := []string{
		"grouping=" + m.snap.Grouping,
		fmt.Sprintf("linger=%v", m.snap.Linger),
		fmt.Sprintf("resolve=%v", m.snap.Resolve),
	}
	if m.snap.Follow {
		items = append(items, "follow")
	}
	line := " " + strings.Join(items, "  ")
	if m.notice != "" {
		line += "  " + StyleTitle.Render("["+m.notice+"]")
	}
	if m.Width > 0 {
		return StyleStatusBar.Width(m.Width).Render(line)
	}
	return StyleStatusBar.Render(line)
}

func (m Model) viewMain() string {
	if m.snap == nil {
		return ""
	}
	var lines []string
	idx := 0
	appendGroup := func(g GroupRow) {
		banner := StyleGroup.Render(g.Title)
		if g.NewCount > 0 {
			banner += StyleNew.Render(fmt.Sprintf("  +%d", g.NewCount))
		}
		lines = append(lines, banner)
		for _, c := range g.Conns {
			lines = append(lines, m.renderConn(c, idx == m.cursor))
			idx++
		}
	}

	if len(m.snap.Listen) > 0 {
		lines = append(lines, StyleTitle.Render("Listening"))
		for _, g := range m.snap.Listen {
			appendGroup(g)
		}
	}
	if len(m.snap.Out) > 0 {
		lines = append(lines, StyleTitle.Render("Outbound"))
		for _, g := range m.snap.Out {
			appendGroup(g)
		}
	}
	if len(m.snap.Procs) > 0 {
		lines = append(lines, StyleTitle.Render("Following"))
		for _, g := range m.snap.Procs {
			appendGroup(g)
		}
	}
	if len(lines) == 0 {
		return StyleFaint.Render("  no connections")
	}

	if h := m.bodyHeight(); h > 0 && len(lines) > h {
		start := m.scroll
		if start > len(lines)-h {
			start = len(lines) - h
		}
		if start < 0 {
			start = 0
		}
		lines = lines[start : start+h]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderConn(c ConnRow, selected bool) string {
	remote := c.Remote
	if c.RemoteName != "" {
		remote = c.RemoteName
	}
	state := c.State
	if c.Service != "" {
		state += " " + c.Service
	}
	line := fmt.Sprintf("  %-2s %-24s %-32s %s", c.Dir, c.Local, remote, state)

	style := lipgloss.NewStyle()
	switch {
	case c.Dead:
		style = StyleDead
	case c.Warn:
		style = StyleWarn
	case c.New:
		style = StyleNew
	}
	if selected {
		style = style.Background(ColorDeep)
	}
	return style.Render(line)
}

func (m Model) viewDetail() string {
	c := m.selected
	rows := [][2]string{
		{"Local", c.Local},
		{"Remote", c.Remote},
		{"Remote name", c.RemoteName},
		{"Service", c.Service},
		{"State", c.State},
		{"Direction", c.Dir},
		{"Interface", c.Ifname},
		{"Gateway", c.Gateway},
		{"Age", c.Age.Round(time.Second).String()},
	}
	var b strings.Builder
	b.WriteString(StyleTitle.Render("Connection") + "\n")
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		b.WriteString(fmt.Sprintf("  %-12s %s\n", StyleFaint.Render(r[0]), r[1]))
	}
	b.WriteString("\n" + StyleFaint.Render("  esc to go back"))
	return StyleCard.Render(b.String())
}
