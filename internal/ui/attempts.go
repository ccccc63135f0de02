package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/crsfit/internal/state"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	improvedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#14B8A6"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)

// AttemptsModel lists the recent run events, newest first.
type AttemptsModel struct {
	width      int
	height     int
	scrollY    int
	hideFailed bool
	snapshot   state.Snapshot
}

// NewAttemptsModel creates a new attempts model.
func NewAttemptsModel() AttemptsModel {
	return AttemptsModel{}
}

// SetSize updates the viewport size.
func (m AttemptsModel) SetSize(width, height int) AttemptsModel {
	m.width = width
	m.height = height
	return m
}

// UpdateData updates with new data snapshot.
func (m AttemptsModel) UpdateData(snapshot state.Snapshot) AttemptsModel {
	m.snapshot = snapshot
	m.clampScroll()
	return m
}

// Update handles messages.
func (m AttemptsModel) Update(msg tea.Msg) (AttemptsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			m.scrollY--
		case "down", "j":
			m.scrollY++
		case "home":
			m.scrollY = 0
		case "f":
			m.hideFailed = !m.hideFailed
		}
		m.clampScroll()
	}
	return m, nil
}

func (m *AttemptsModel) clampScroll() {
	m.scrollY = min(m.scrollY, len(m.visible())-1)
	m.scrollY = max(m.scrollY, 0)
}

// visible returns the events to list, newest first.
func (m AttemptsModel) visible() []state.Event {
	events := m.snapshot.Events
	out := make([]state.Event, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		if m.hideFailed && events[i].Type == state.EventFailed {
			continue
		}
		out = append(out, events[i])
	}
	return out
}

// View renders the event list.
func (m AttemptsModel) View() string {
	var b strings.Builder

	title := "Attempts"
	if m.hideFailed {
		title += " (failures hidden, f to show)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	events := m.visible()
	if len(events) == 0 {
		b.WriteString(dimStyle.Render("  No attempts yet"))
		b.WriteString("\n")
		return b.String()
	}

	header := fmt.Sprintf("%-9s %-34s %-7s %-8s %-18s %s",
		"Event", "Method", "Rounded", "Unit", "Ellipsoid", "Error")
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	rows := len(events)
	if m.height > 4 {
		rows = min(rows, m.height-4)
	}
	end := min(m.scrollY+rows, len(events))
	for _, e := range events[m.scrollY:end] {
		b.WriteString(renderEvent(e))
		b.WriteString("\n")
	}
	if end < len(events) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  … %d more", len(events)-end)))
		b.WriteString("\n")
	}

	return b.String()
}

func renderEvent(e state.Event) string {
	rounded := ""
	if e.Rounding {
		rounded = "yes"
	}
	errCol := fmt.Sprintf("%.3g°", e.Error)
	switch e.Type {
	case state.EventFailed:
		errCol = truncate(e.Err, 40)
	case state.EventFinished:
		if e.Err != "" {
			errCol += " " + truncate(e.Err, 30)
		}
	}

	line := fmt.Sprintf("%-9s %-34s %-7s %-8s %-18s %s",
		e.Type, truncate(e.Method, 34), rounded, truncate(e.Unit, 8), truncate(e.Ellipsoid, 18), errCol)

	switch e.Type {
	case state.EventImproved, state.EventFinished:
		return improvedStyle.Render(line)
	case state.EventFailed:
		return failedStyle.Render(line)
	default:
		return valueStyle.Render(line)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
