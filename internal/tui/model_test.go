// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/scout"
)

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func testSnapshot() *Snapshot {
	return &Snapshot{
		When:     time.Now(),
		Grouping: "address",
		Listen: []GroupRow{{
			Title: "192.168.1.5:22 (ssh)",
			Conns: []ConnRow{{
				Local:  "192.168.1.5:22",
				Remote: "10.0.0.9:50001",
				State:  "ESTABLISHED",
				Dir:    "in",
			}},
		}},
		Out: []GroupRow{{
			Title: "to 151.101.1.140",
			Conns: []ConnRow{{
				Local:  "192.168.1.5:41000",
				Remote: "151.101.1.140:443",
				State:  "ESTABLISHED",
				Dir:    "out",
				New:    true,
			}},
		}},
	}
}

func testModel(t *testing.T) Model {
	t.Helper()
	app := newTestApp(t, &fakeSource{obs: []scout.Observation{
		{Local: ap("192.168.1.5:41000"), Remote: ap("151.101.1.140:443"), State: conn.Established},
	}})
	return NewModel(app)
}

func TestModelSnapshotSchedulesTick(t *testing.T) {
	m := testModel(t)
	next, cmd := m.Update(snapshotMsg{snap: testSnapshot()})
	m = next.(Model)

	require.NotNil(t, m.snap)
	assert.NotNil(t, cmd, "a tick must follow each snapshot")
	assert.Empty(t, m.lastErr)
}

func TestModelPollErrorKeepsTicking(t *testing.T) {
	m := testModel(t)
	next, cmd := m.Update(pollError{err: assert.AnError})
	m = next.(Model)

	assert.NotEmpty(t, m.lastErr)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "poll failed")
}

func TestModelQuit(t *testing.T) {
	m := testModel(t)
	_, cmd := m.Update(keyPress('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModelDetailView(t *testing.T) {
	m := testModel(t)
	next, _ := m.Update(snapshotMsg{snap: testSnapshot()})
	m = next.(Model)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Equal(t, ViewDetail, m.ActiveView)
	assert.Contains(t, m.View(), "10.0.0.9:50001")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.Equal(t, ViewMain, m.ActiveView)
}

func TestModelCursorClamped(t *testing.T) {
	m := testModel(t)
	next, _ := m.Update(snapshotMsg{snap: testSnapshot()})
	m = next.(Model)

	for i := 0; i < 10; i++ {
		next, _ = m.Update(keyPress('j'))
		m = next.(Model)
	}
	assert.Equal(t, 1, m.cursor, "two selectable rows, cursor stays on the last")

	for i := 0; i < 10; i++ {
		next, _ = m.Update(keyPress('k'))
		m = next.(Model)
	}
	assert.Equal(t, 0, m.cursor)
}

func TestModelGroupingKeyPolls(t *testing.T) {
	m := testModel(t)
	next, cmd := m.Update(keyPress('g'))
	m = next.(Model)

	assert.Equal(t, "grouping: port", m.notice)
	assert.NotNil(t, cmd, "grouping change triggers an immediate poll")
}

func followSnapshot() *Snapshot {
	return &Snapshot{
		When:     time.Now(),
		Grouping: "address",
		Follow:   true,
		Procs: []GroupRow{{
			Title: "curl [42]",
			Conns: []ConnRow{{
				Local:  "192.168.1.5:41000",
				Remote: "151.101.1.140:443",
				State:  "ESTABLISHED",
				Dir:    "out",
			}},
		}},
	}
}

func TestModelViewRendersFollowedProcs(t *testing.T) {
	m := testModel(t)
	m.Width = 100
	m.Height = 40
	next, _ := m.Update(snapshotMsg{snap: followSnapshot()})
	m = next.(Model)

	out := m.View()
	assert.Contains(t, out, "Following")
	assert.Contains(t, out, "curl [42]")
	assert.Contains(t, out, "151.101.1.140:443")

	// Process rows are selectable like any other connection line.
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Equal(t, ViewDetail, m.ActiveView)
	assert.Contains(t, m.View(), "151.101.1.140:443")
}

func TestModelFollowEndedQuits(t *testing.T) {
	m := testModel(t)
	snap := &Snapshot{When: time.Now(), Follow: true, FollowEnded: true}
	_, cmd := m.Update(snapshotMsg{snap: snap})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModelViewRendersGroups(t *testing.T) {
	m := testModel(t)
	m.Width = 100
	m.Height = 40
	next, _ := m.Update(snapshotMsg{snap: testSnapshot()})
	m = next.(Model)

	out := m.View()
	assert.Contains(t, out, "SOCKWATCH")
	assert.Contains(t, out, "Listening")
	assert.Contains(t, out, "Outbound")
	assert.Contains(t, out, "to 151.101.1.140")
	assert.Contains(t, out, "grouping=address")
}
