package ui

import (
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/litescript/crsfit/internal/fit"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
	"github.com/litescript/crsfit/internal/state"
)

func sampleSnapshot() state.Snapshot {
	mgr := state.NewManager(state.DefaultConfig())
	mgr.Record(fit.Attempt{Type: projection.None, Unit: geodesy.Metre, Ellipsoid: geodesy.WGS84, Error: 4.2})
	mgr.Record(fit.Attempt{Type: projection.Krovak, Unit: geodesy.Metre, Ellipsoid: geodesy.WGS84, Error: math.Inf(1), Err: projection.ErrUnsupportedProjection})
	mgr.Record(fit.Attempt{Type: projection.TransverseMercator, Unit: geodesy.Metre, Ellipsoid: geodesy.WGS84, Error: 0.001})
	return mgr.Snapshot()
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestAttemptsNewestFirst(t *testing.T) {
	m := NewAttemptsModel().SetSize(120, 30).UpdateData(sampleSnapshot())
	out := m.View()

	tm := strings.Index(out, projection.TransverseMercator.String())
	none := strings.Index(out, "None")
	if tm < 0 || none < 0 || tm > none {
		t.Errorf("newest attempt should be listed first:\n%s", out)
	}
	if !strings.Contains(out, "FAILED") {
		t.Error("failed attempt should be listed")
	}
}

func TestAttemptsHideFailed(t *testing.T) {
	m := NewAttemptsModel().SetSize(120, 30).UpdateData(sampleSnapshot())

	m, _ = m.Update(key("f"))
	if !m.hideFailed {
		t.Fatal("f should hide failures")
	}
	if len(m.visible()) != 2 {
		t.Errorf("visible = %d, want 2", len(m.visible()))
	}
	if strings.Contains(m.View(), "FAILED") {
		t.Error("failed attempt still shown")
	}

	m, _ = m.Update(key("f"))
	if len(m.visible()) != 3 {
		t.Errorf("visible = %d, want 3 after toggling back", len(m.visible()))
	}
}

func TestAttemptsScrollClamped(t *testing.T) {
	m := NewAttemptsModel().SetSize(120, 30).UpdateData(sampleSnapshot())

	m, _ = m.Update(key("up"))
	if m.scrollY != 0 {
		t.Errorf("scrollY = %d, want 0", m.scrollY)
	}
	for i := 0; i < 10; i++ {
		m, _ = m.Update(key("down"))
	}
	if m.scrollY != 2 {
		t.Errorf("scrollY = %d, want 2 (last event)", m.scrollY)
	}
}

func TestAttemptsEmpty(t *testing.T) {
	out := NewAttemptsModel().View()
	if !strings.Contains(out, "No attempts yet") {
		t.Errorf("empty view = %q", out)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"Transverse Mercator", 10, "Transve..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestRootModelNavigation(t *testing.T) {
	mgr := state.NewManager(state.DefaultConfig())
	m := New(mgr, Run{Title: "fit"})

	if m.View() != "Initializing..." {
		t.Error("view before the first resize should be the placeholder")
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	if !strings.Contains(m.View(), "Search") {
		t.Error("progress view should be active by default")
	}

	next, _ = m.Update(key("tab"))
	m = next.(Model)
	if m.viewMode != ViewAttempts {
		t.Errorf("viewMode = %d, want attempts", m.viewMode)
	}
	next, _ = m.Update(key("1"))
	m = next.(Model)
	if m.viewMode != ViewProgress {
		t.Errorf("viewMode = %d, want progress", m.viewMode)
	}

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestRootModelTickStopsWhenDone(t *testing.T) {
	mgr := state.NewManager(state.DefaultConfig())
	m := New(mgr, Run{})

	next, cmd := m.Update(TickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should reschedule while running")
	}
	m = next.(Model)

	mgr.Finish(nil, nil)
	next, cmd = m.Update(TickMsg(time.Now()))
	m = next.(Model)
	if cmd != nil {
		t.Error("tick should stop once the run is done")
	}
	if !m.snapshot.Done {
		t.Error("snapshot should be refreshed on tick")
	}

	next, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if !strings.Contains(next.(Model).View(), "done") {
		t.Error("footer should report completion")
	}
}
