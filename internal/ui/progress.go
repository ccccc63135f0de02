package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/crsfit/internal/report"
	"github.com/litescript/crsfit/internal/state"
)

// SparklineWidth is the number of cells in the best-error history.
const SparklineWidth = 48

// sparklineBlocks are the Unicode block characters for sparkline (0 = lowest, 7 = highest).
var sparklineBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// ProgressModel shows the best candidate so far, budget use and the
// best-error history.
type ProgressModel struct {
	width    int
	height   int
	animTick int
	run      Run
	snapshot state.Snapshot
}

// NewProgressModel creates a new progress model.
func NewProgressModel(run Run) ProgressModel {
	return ProgressModel{run: run}
}

// SetSize updates the viewport size.
func (m ProgressModel) SetSize(width, height int) ProgressModel {
	m.width = width
	m.height = height
	return m
}

// SetAnimTick updates the animation frame.
func (m ProgressModel) SetAnimTick(tick int) ProgressModel {
	m.animTick = tick
	return m
}

// UpdateData updates the model with a new snapshot.
func (m ProgressModel) UpdateData(snapshot state.Snapshot) ProgressModel {
	m.snapshot = snapshot
	return m
}

// Update handles messages. The progress view has no keys of its own.
func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	return m, nil
}

// View renders the progress view.
func (m ProgressModel) View() string {
	var b strings.Builder
	snap := m.snapshot

	b.WriteString(titleStyle.Render("Search"))
	b.WriteString("\n")
	if m.run.Input != "" {
		b.WriteString(row("Input", m.run.Input))
	}
	b.WriteString(row("Attempts", fmt.Sprintf("%d (%d failed)", snap.Attempts, snap.Failures)))
	if m.run.MaxEvaluations > 0 {
		frac := float64(snap.Evaluations) / float64(m.run.MaxEvaluations)
		b.WriteString(row("Evaluations", m.renderBar(frac, 20)+fmt.Sprintf(" %d / %d", snap.Evaluations, m.run.MaxEvaluations)))
	}
	if m.run.Timeout > 0 {
		frac := float64(snap.Elapsed) / float64(m.run.Timeout)
		b.WriteString(row("Time", m.renderBar(frac, 20)+fmt.Sprintf(" %s / %s", snap.Elapsed.Round(time.Second), m.run.Timeout)))
	}
	b.WriteString("\n")

	b.WriteString(titleStyle.Render("Best so far"))
	b.WriteString("\n")
	if snap.Best == nil {
		b.WriteString("  " + m.renderShimmerSparkline("Waiting for the first candidate..."))
		b.WriteString("\n")
	} else {
		best := snap.Best
		method := best.Type.String()
		if best.Rounding {
			method += " (rounded)"
		}
		b.WriteString(row("Method", method))
		b.WriteString(row("Unit", best.Unit.Name))
		b.WriteString(row("Ellipsoid", best.Ellipsoid.Name))
		b.WriteString(row("Error", fmt.Sprintf("%.3g° (~%s)", best.Error, report.FormatDistance(best.Error*111_320))))
		b.WriteString(row("History", renderSparkline(historyValues(snap.BestHistory), SparklineWidth)))
	}

	if snap.Done {
		b.WriteString("\n")
		b.WriteString(m.renderResult())
	}

	return b.String()
}

func (m ProgressModel) renderResult() string {
	var b strings.Builder
	snap := m.snapshot

	if snap.Err != nil && snap.Result == nil {
		b.WriteString(errorStyle.Render("Error: " + snap.Err.Error()))
		b.WriteString("\n")
		return b.String()
	}
	if snap.Result == nil {
		return ""
	}

	res := snap.Result
	title := "Result"
	if res.Partial {
		title += " (partial)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	if res.Code != 0 {
		b.WriteString(row("EPSG", fmt.Sprintf("%d %s", res.Code, res.Name)))
	}
	b.WriteString(row("Projection", res.Model.Type.String()))
	names := res.Model.Type.ParameterNames()
	for i, v := range res.Model.Params() {
		b.WriteString(row(names[i], report.FormatValue(v)))
	}
	if res.Shift != nil {
		v := res.Shift.TOWGS84()
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = report.FormatValue(x)
		}
		b.WriteString(row("TOWGS84", strings.Join(parts, ", ")))
	}
	b.WriteString(row("Error", fmt.Sprintf("%.3g°", res.Error)))
	return b.String()
}

func row(label, value string) string {
	return "  " + labelStyle.Render(fmt.Sprintf("%-18s", label)) + valueStyle.Render(value) + "\n"
}

func (m ProgressModel) renderBar(frac float64, width int) string {
	frac = max(frac, 0)
	filled := int(frac * float64(width))
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return "[" + barStyle.Render(bar) + "]"
}

func historyValues(h []state.TimeSeries) []float64 {
	out := make([]float64, len(h))
	for i, p := range h {
		out[i] = p.Value
	}
	return out
}

// renderSparkline draws the last width values on a log scale; the lowest
// value gets the lowest block.
func renderSparkline(values []float64, width int) string {
	if len(values) > width {
		values = values[len(values)-width:]
	}
	if len(values) == 0 {
		return ""
	}

	logs := make([]float64, len(values))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range values {
		logs[i] = math.Log10(max(v, 1e-12))
		lo, hi = min(lo, logs[i]), max(hi, logs[i])
	}

	var sb strings.Builder
	for _, l := range logs {
		t := 0.0
		if hi > lo {
			t = (l - lo) / (hi - lo)
		}
		idx := min(int(t*7.0), 7)
		sb.WriteRune(sparklineBlocks[idx])
	}
	return barStyle.Render(sb.String())
}

// renderShimmerSparkline renders a loading animation sparkline.
func (m ProgressModel) renderShimmerSparkline(msg string) string {
	var sb strings.Builder

	offset := m.animTick % SparklineWidth
	for i := 0; i < SparklineWidth; i++ {
		dist := (i - offset + SparklineWidth) % SparklineWidth
		gray := 60
		if dist < 8 {
			gray = 60 + dist*8
		}
		color := fmt.Sprintf("#%02x%02x%02x", gray, gray, gray)
		sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("▄"))
	}

	sb.WriteString(" ")
	sb.WriteString(dimStyle.Render(msg))

	return sb.String()
}
