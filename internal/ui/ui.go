// Package ui provides the terminal progress view using Bubble Tea.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/crsfit/internal/state"
	"github.com/litescript/crsfit/internal/version"
)

// ViewMode represents the current UI view.
type ViewMode int

const (
	ViewProgress ViewMode = iota
	ViewAttempts
)

// Msg types for Bubble Tea
type (
	// TickMsg triggers a snapshot refresh.
	TickMsg time.Time

	// AnimTickMsg triggers fast animation updates.
	AnimTickMsg time.Time

	// DoneMsg signals the fitting run has returned.
	DoneMsg struct {
		Snapshot state.Snapshot
	}
)

// Run describes the job shown in the header.
type Run struct {
	Title          string
	Input          string
	MaxEvaluations int64
	Timeout        time.Duration
}

// Model is the root Bubble Tea model.
type Model struct {
	state *state.Manager
	run   Run

	viewMode ViewMode
	width    int
	height   int
	ready    bool
	animTick int

	progress ProgressModel
	attempts AttemptsModel

	snapshot state.Snapshot
}

// New creates a new root UI model reading from stateMgr.
func New(stateMgr *state.Manager, run Run) Model {
	return Model{
		state:    stateMgr,
		run:      run,
		viewMode: ViewProgress,
		progress: NewProgressModel(run),
		attempts: NewAttemptsModel(),
		snapshot: stateMgr.Snapshot(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
		animTickCmd(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "1", "p":
			m.viewMode = ViewProgress
		case "2", "a":
			m.viewMode = ViewAttempts
		case "tab":
			m.viewMode = (m.viewMode + 1) % 2
		default:
			cmds = append(cmds, m.updateActiveView(msg))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		// Logo ~10 lines, footer ~2 lines
		contentHeight := msg.Height - 13
		m.progress = m.progress.SetSize(msg.Width, contentHeight)
		m.attempts = m.attempts.SetSize(msg.Width, contentHeight)

	case TickMsg:
		m.setSnapshot(m.state.Snapshot())
		if !m.snapshot.Done {
			cmds = append(cmds, m.tickCmd())
		}

	case AnimTickMsg:
		m.animTick++
		m.progress = m.progress.SetAnimTick(m.animTick)
		if !m.snapshot.Done {
			cmds = append(cmds, animTickCmd())
		}

	case DoneMsg:
		m.setSnapshot(msg.Snapshot)

	default:
		cmds = append(cmds, m.updateActiveView(msg))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) setSnapshot(s state.Snapshot) {
	m.snapshot = s
	m.progress = m.progress.UpdateData(s)
	m.attempts = m.attempts.UpdateData(s)
}

func (m *Model) updateActiveView(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.viewMode {
	case ViewProgress:
		m.progress, cmd = m.progress.Update(msg)
	case ViewAttempts:
		m.attempts, cmd = m.attempts.Update(msg)
	}
	return cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var content string
	switch m.viewMode {
	case ViewProgress:
		content = m.progress.View()
	case ViewAttempts:
		content = m.attempts.View()
	}

	return m.renderFrame(content)
}

func (m Model) renderFrame(content string) string {
	return m.renderLogo() + m.renderTabs() + "\n" + content + "\n" + m.renderFooter()
}

func (m Model) renderLogo() string {
	logo := []string{
		`   ██████╗██████╗ ███████╗███████╗██╗████████╗`,
		`  ██╔════╝██╔══██╗██╔════╝██╔════╝██║╚══██╔══╝`,
		`  ██║     ██████╔╝███████╗█████╗  ██║   ██║   `,
		`  ██║     ██╔══██╗╚════██║██╔══╝  ██║   ██║   `,
		`  ╚██████╗██║  ██║███████║██║     ██║   ██║   `,
		`   ╚═════╝╚═╝  ╚═╝╚══════╝╚═╝     ╚═╝   ╚═╝   `,
	}

	var b strings.Builder
	b.WriteString("\n")

	for row, line := range logo {
		runes := []rune(line)
		for col, r := range runes {
			color := gradientColor(col, row, len(runes), len(logo))
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(string(r)))
		}
		b.WriteString("\n")
	}

	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	tagline := "  Coordinate reference system best fit"
	if m.run.Title != "" {
		tagline += " · " + m.run.Title
	}
	b.WriteString(muted.Render(tagline))
	b.WriteString("\n")
	b.WriteString(muted.Render(fmt.Sprintf("  v%s", version.Version)))
	b.WriteString("\n\n")

	return b.String()
}

// gradientColor returns a hex color for a position in the logo gradient:
// teal -> blue -> violet, darker toward the bottom.
func gradientColor(col, row, width, height int) string {
	xRatio := float64(col) / float64(max(width, 1))
	yRatio := float64(row) / float64(max(height, 1))

	var r, g, b float64
	if xRatio < 0.5 {
		t := xRatio / 0.5
		r = 20 + t*(59-20)
		g = 184 + t*(130-184)
		b = 166 + t*(246-166)
	} else {
		t := (xRatio - 0.5) / 0.5
		r = 59 + t*(139-59)
		g = 130 + t*(92-130)
		b = 246
	}

	f := 1.0 - yRatio*0.5
	clamp := func(v float64) int { return min(max(int(v*f), 0), 255) }
	return fmt.Sprintf("#%02X%02X%02X", clamp(r), clamp(g), clamp(b))
}

func (m Model) renderTabs() string {
	tabs := []string{"[1] Progress", "[2] Attempts"}
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))

	var parts []string
	for i, tab := range tabs {
		if ViewMode(i) == m.viewMode {
			parts = append(parts, activeStyle.Render("▶ "+tab))
		} else {
			parts = append(parts, dimStyle.Render("  "+tab))
		}
	}
	return "  " + strings.Join(parts, "  ") + "\n"
}

func (m Model) renderFooter() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#14B8A6"))
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))

	spinnerFrames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinner := spinnerFrames[m.animTick%len(spinnerFrames)]

	snap := m.snapshot
	var status string
	switch {
	case snap.Done && snap.Err != nil:
		status = errStyle.Render("FAILED: " + snap.Err.Error())
	case snap.Done:
		status = okStyle.Render("✓ done") + dimStyle.Render(" in "+snap.Elapsed.Round(time.Millisecond).String())
	case snap.Attempts == 0:
		status = accentStyle.Render(spinner) + " " + renderShimmerText("Searching...", m.animTick)
	default:
		status = accentStyle.Render(spinner) + dimStyle.Render(fmt.Sprintf(" %s elapsed", snap.Elapsed.Round(time.Second)))
	}

	var help string
	switch m.viewMode {
	case ViewAttempts:
		help = dimStyle.Render("↑↓: scroll | tab: switch view | q: quit")
	default:
		help = dimStyle.Render("tab: switch view | q: quit")
	}

	return "  " + status + "  " + dimStyle.Render("|") + "  " + help
}

func (m Model) tickCmd() tea.Cmd {
	d := m.state.RefreshInterval()
	if d <= 0 {
		d = 250 * time.Millisecond
	}
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func animTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return AnimTickMsg(t)
	})
}

// SendDone creates a command that reports the finished run.
func SendDone(snapshot state.Snapshot) tea.Cmd {
	return func() tea.Msg {
		return DoneMsg{Snapshot: snapshot}
	}
}

// renderShimmerText renders text with a subtle moving shine effect.
func renderShimmerText(text string, tick int) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}

	pos := tick % (len(runes) + 8)

	var result strings.Builder
	for i, r := range runes {
		dist := i - pos + 4
		if dist < 0 {
			dist = -dist
		}

		var r8, g8, b8 int
		switch {
		case dist <= 1:
			r8, g8, b8 = 160, 200, 240
		case dist <= 3:
			r8, g8, b8 = 120, 160, 210
		case dist <= 5:
			r8, g8, b8 = 90, 120, 170
		default:
			r8, g8, b8 = 70, 90, 130
		}

		hexColor := fmt.Sprintf("#%02X%02X%02X", r8, g8, b8)
		result.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor)).Render(string(r)))
	}

	return result.String()
}
