package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/litescript/crsfit/internal/fit"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
	"github.com/litescript/crsfit/internal/state"
)

func TestRenderBar(t *testing.T) {
	m := ProgressModel{}

	tests := []struct {
		name       string
		frac       float64
		width      int
		wantFilled int
	}{
		{"empty", 0.0, 10, 0},
		{"full", 1.0, 10, 10},
		{"half", 0.5, 10, 5},
		{"quarter", 0.25, 8, 2},
		{"over 100%", 1.5, 10, 10}, // capped at width
		{"negative", -0.5, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := m.renderBar(tt.frac, tt.width)

			if !strings.HasPrefix(bar, "[") || !strings.HasSuffix(bar, "]") {
				t.Errorf("bar should have brackets, got %q", bar)
			}

			filledCount := strings.Count(bar, "█")
			if filledCount != tt.wantFilled {
				t.Errorf("filled count = %d, want %d", filledCount, tt.wantFilled)
			}
			if total := filledCount + strings.Count(bar, "░"); total != tt.width {
				t.Errorf("bar width = %d, want %d", total, tt.width)
			}
		})
	}
}

func TestRenderSparkline(t *testing.T) {
	if got := renderSparkline(nil, 10); got != "" {
		t.Errorf("empty history = %q, want empty", got)
	}

	// Strictly improving errors: the last cell is the lowest block
	got := renderSparkline([]float64{1, 0.1, 0.01, 0.001}, 10)
	if !strings.Contains(got, "█") || !strings.Contains(got, "▁") {
		t.Errorf("sparkline %q should span the full block range", got)
	}
	if strings.Index(got, "█") > strings.Index(got, "▁") {
		t.Errorf("highest error should come first in %q", got)
	}

	// Only the last width values are drawn
	long := make([]float64, 100)
	for i := range long {
		long[i] = 1
	}
	if n := strings.Count(renderSparkline(long, 10), "▁"); n != 10 {
		t.Errorf("cells = %d, want 10", n)
	}
}

func TestProgressViewStates(t *testing.T) {
	run := Run{Input: "points.csv", MaxEvaluations: 1000, Timeout: time.Minute}
	m := NewProgressModel(run).SetSize(100, 40)

	out := m.View()
	if !strings.Contains(out, "Waiting for the first candidate") {
		t.Errorf("empty view should show the waiting line:\n%s", out)
	}
	if !strings.Contains(out, "points.csv") {
		t.Error("view should show the input file")
	}

	mgr := state.NewManager(state.DefaultConfig())
	mgr.Record(fit.Attempt{Type: projection.TransverseMercator, Rounding: true, Unit: geodesy.Metre, Ellipsoid: geodesy.Xian1980, Error: 2e-6})
	mgr.SetEvaluations(500)
	m = m.UpdateData(mgr.Snapshot())

	out = m.View()
	for _, want := range []string{"Transverse Mercator (rounded)", "Xian 1980", "500 / 1000"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Result") {
		t.Error("result section shown before the run finished")
	}

	model, err := projection.NewWithParams(projection.TransverseMercator, []float64{0, 111, 1, 500000, 0})
	if err != nil {
		t.Fatal(err)
	}
	mgr.Finish(&fit.Result{Model: model, Ellipsoid: geodesy.Xian1980, Error: 2e-6, Partial: true}, nil)
	out = m.UpdateData(mgr.Snapshot()).View()
	for _, want := range []string{"Result (partial)", "central_meridian", "500000"} {
		if !strings.Contains(out, want) {
			t.Errorf("finished view missing %q:\n%s", want, out)
		}
	}
}

func TestProgressViewCatalogResult(t *testing.T) {
	model, err := projection.NewWithParams(projection.TransverseMercator, []float64{0, 9, 1, 3500000, 0})
	if err != nil {
		t.Fatal(err)
	}
	mgr := state.NewManager(state.DefaultConfig())
	mgr.Finish(&fit.Result{Model: model, Ellipsoid: geodesy.Bessel1841, Error: 1e-7, Code: 31467, Name: "DHDN / 3-degree Gauss-Kruger zone 3"}, nil)

	out := NewProgressModel(Run{}).SetSize(100, 40).UpdateData(mgr.Snapshot()).View()
	if !strings.Contains(out, "31467 DHDN / 3-degree Gauss-Kruger zone 3") {
		t.Errorf("finished view should name the EPSG system:\n%s", out)
	}
}

func TestProgressViewError(t *testing.T) {
	mgr := state.NewManager(state.DefaultConfig())
	mgr.Finish(nil, errors.New("no candidate could be fitted"))

	out := NewProgressModel(Run{}).UpdateData(mgr.Snapshot()).View()
	if !strings.Contains(out, "no candidate could be fitted") {
		t.Errorf("view should show the run error:\n%s", out)
	}
}
