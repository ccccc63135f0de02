package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/litescript/crsfit/internal/bursawolf"
	"github.com/litescript/crsfit/internal/dataset"
	"github.com/litescript/crsfit/internal/engine"
	"github.com/litescript/crsfit/internal/fit"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
	"github.com/litescript/crsfit/internal/report"
	"github.com/litescript/crsfit/internal/state"
	"github.com/litescript/crsfit/internal/ui"
)

// job is one fitting run over a prepared fitter.
type job func(ctx context.Context, f *fit.Fitter) (fit.Result, error)

// outputFlags select what is written after a run.
type outputFlags struct {
	jsonPath    string
	geojsonPath string
	attempts    bool
	tui         bool
}

func (o *outputFlags) register(cmd *cobra.Command, listAttempts bool) {
	cmd.Flags().StringVar(&o.jsonPath, "json", "", "Write the result as JSON to file (use - for stdout)")
	cmd.Flags().StringVar(&o.geojsonPath, "geojson", "", "Write per-point residuals as GeoJSON to file (use - for stdout)")
	cmd.Flags().BoolVar(&o.attempts, "attempts", listAttempts, "Print every candidate tried")
	cmd.Flags().BoolVar(&o.tui, "tui", false, "Show the progress view (TTY only)")
}

// crsFlags describe what is already known about the target CRS.
type crsFlags struct {
	typeName  string
	params    string
	ellipsoid string
	unit      string
	towgs84   string
}

func (c *crsFlags) register(cmd *cobra.Command, defaultType string) {
	cmd.Flags().StringVar(&c.typeName, "type", defaultType, "Projection method, e.g. \"Transverse Mercator\" or \"EPSG:9807\"")
	cmd.Flags().StringVar(&c.params, "params", "", "Comma-separated projection parameters in slot order")
	cmd.Flags().StringVar(&c.ellipsoid, "ellipsoid", "", "Ellipsoid name, EPSG code or \"a,invf\" (default: search)")
	cmd.Flags().StringVar(&c.unit, "unit", "", "Linear unit name or EPSG code (default: search)")
	cmd.Flags().StringVar(&c.towgs84, "towgs84", "", "Datum shift as dx,dy,dz,rx,ry,rz,ppm (default: estimate)")
}

// request converts the flags into a fit request.
func (c *crsFlags) request() (fit.Request, error) {
	var req fit.Request
	t, err := projection.ParseType(c.typeName)
	if err != nil {
		return req, err
	}
	req.Type = t
	if c.params != "" {
		if !t.Determined() {
			return req, fmt.Errorf("--params needs a concrete --type, got %s", t)
		}
		req.Params, err = parseFloats(c.params, t.Arity())
		if err != nil {
			return req, fmt.Errorf("--params: %w", err)
		}
	}
	if c.ellipsoid != "" {
		e, err := parseEllipsoid(c.ellipsoid)
		if err != nil {
			return req, err
		}
		req.Ellipsoid = &e
	}
	if c.unit != "" {
		u, ok := geodesy.LookupUnit(c.unit)
		if !ok {
			return req, fmt.Errorf("unknown unit %q", c.unit)
		}
		req.Unit = &u
	}
	if c.towgs84 != "" {
		s, err := parseTOWGS84(c.towgs84)
		if err != nil {
			return req, err
		}
		req.Shift = &s
	}
	return req, nil
}

func newFitCmd(a *app) *cobra.Command {
	var (
		crs      crsFlags
		out      outputFlags
		rounding bool
	)
	cmd := &cobra.Command{
		Use:   "fit <file>",
		Short: "Fit a CRS to point pairs, using whatever is already known",
		Long: `Fit a CRS to WGS84/target point pairs read from a CSV, YAML or JSON file.

Unknown parts (projection, unit, ellipsoid, datum shift) are searched for.
With a concrete --type, --ellipsoid and --unit, an explicit --rounding
fits that projection once with the given rounding instead of trying both.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := crs.request()
			if err != nil {
				return err
			}
			direct := cmd.Flags().Changed("rounding") && req.Type.Determined() &&
				req.Params == nil && req.Ellipsoid != nil && req.Unit != nil

			j := func(ctx context.Context, f *fit.Fitter) (fit.Result, error) {
				if !direct {
					return f.Detect(ctx, req)
				}
				r, err := f.FitProjection(ctx, req.Type, *req.Ellipsoid, *req.Unit, rounding)
				if err != nil {
					return r, err
				}
				return f.FitSpatial(ctx, r.Model, *req.Ellipsoid, req.Shift)
			}
			return a.run(cmd, args[0], "fit "+req.Type.String(), out, j)
		},
	}
	crs.register(cmd, projection.Automatic.String())
	out.register(cmd, false)
	cmd.Flags().BoolVar(&rounding, "rounding", true, "Round parameters to conventional values when the error allows")
	return cmd
}

func newDetectCmd(a *app) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "detect <file>",
		Short: "Search projection, unit, ellipsoid and datum shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := fit.Request{Type: projection.Automatic}
			return a.run(cmd, args[0], "detect", out, func(ctx context.Context, f *fit.Fitter) (fit.Result, error) {
				return f.Detect(ctx, req)
			})
		},
	}
	out.register(cmd, true)
	return cmd
}

func newRotatedCmd(a *app) *cobra.Command {
	var (
		out     outputFlags
		yaw     float64
		unit    string
		towgs84 string
	)
	cmd := &cobra.Command{
		Use:   "rotated <file>",
		Short: "Fit a rotated local site grid (oblique Mercator on GRS 1980)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, ok := geodesy.LookupUnit(unit)
			if !ok {
				return fmt.Errorf("unknown unit %q", unit)
			}
			var shift *bursawolf.Params
			if towgs84 != "" {
				s, err := parseTOWGS84(towgs84)
				if err != nil {
					return err
				}
				shift = &s
			}
			title := fmt.Sprintf("rotated grid, yaw %g°", yaw)
			return a.run(cmd, args[0], title, out, func(ctx context.Context, f *fit.Fitter) (fit.Result, error) {
				return f.FitRotated(ctx, yaw, u, shift)
			})
		},
	}
	out.register(cmd, false)
	cmd.Flags().Float64Var(&yaw, "yaw", 0, "Grid rotation from north in degrees")
	cmd.Flags().StringVar(&unit, "unit", geodesy.Metre.Name, "Linear unit of the grid")
	cmd.Flags().StringVar(&towgs84, "towgs84", "", "Datum shift as dx,dy,dz,rx,ry,rz,ppm (default: estimate)")
	return cmd
}

func newSampleCmd(a *app) *cobra.Command {
	var (
		crs     crsFlags
		seed    uint64
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate a point-pair CSV from a known CRS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if crs.typeName == "" {
				return errors.New("--type is required")
			}
			req, err := crs.request()
			if err != nil {
				return err
			}
			if !req.Type.Determined() {
				return fmt.Errorf("--type must name a projection method, got %s", req.Type)
			}
			m := projection.New(req.Type)
			if req.Params != nil {
				if m, err = projection.NewWithParams(req.Type, req.Params); err != nil {
					return err
				}
			}
			e := geodesy.WGS84
			if req.Ellipsoid != nil {
				e = *req.Ellipsoid
			}
			if req.Unit != nil {
				m.Unit = *req.Unit
			}
			h, err := m.Realize(engine.New(), e, req.Shift)
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewPCG(seed, seed))
			org, target := a.cfg.Sampler().Sample(h, fit.Center(h), rng)
			ds, err := dataset.New(org, target)
			if err != nil {
				return err
			}
			a.logger.Info("Sampled %d points around %v", ds.Len(), fit.Center(h))
			return writeTo(cmd, outPath, ds.WriteCSV)
		},
	}
	crs.register(cmd, "")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed for the grid jitter")
	cmd.Flags().StringVarP(&outPath, "output", "o", "-", "Output CSV file (use - for stdout)")
	return cmd
}

// run loads the point pairs, executes the job headless or under the
// progress view and writes the requested outputs.
func (a *app) run(cmd *cobra.Command, path, title string, out outputFlags, j job) error {
	ds, err := dataset.Load(path)
	if err != nil {
		return err
	}
	a.logger.Info("Loaded %d point pairs from %s", ds.Len(), path)

	ctx := cmd.Context()
	if a.cfg.Fit.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Fit.Timeout)
		defer cancel()
	}

	stateCfg := state.DefaultConfig()
	stateCfg.RefreshInterval = a.cfg.UI.RefreshInterval
	mgr := state.NewManager(stateCfg)

	useTUI := out.tui && term.IsTerminal(int(os.Stdout.Fd()))
	if useTUI {
		a.logger.SetOutput(io.Discard)
	}

	f, err := fit.New(engine.New(), ds.WGS84(), ds.Targets(), a.cfg.FitOptions(a.logger, mgr))
	if err != nil {
		return err
	}

	var res fit.Result
	if useTUI {
		run := ui.Run{Title: title, Input: path, MaxEvaluations: a.cfg.Fit.MaxEvaluations, Timeout: a.cfg.Fit.Timeout}
		res, err = runTUI(ctx, mgr, f, j, run)
	} else {
		res, err = j(ctx, f)
		mgr.SetEvaluations(f.Evaluations())
		finish(mgr, res, err)
	}
	if err != nil {
		if out.attempts {
			report.WriteAttempts(cmd.OutOrStdout(), f.Attempts())
		}
		return err
	}
	if res.Partial {
		a.logger.Warn("Search stopped early; reporting the best result found so far")
	}
	a.logger.Info("Best fit %s on %s, error %.3g° after %d evaluations",
		res.Model.Type, res.Ellipsoid.Name, res.Error, f.Evaluations())

	exp := report.Build(res, ds, f.Evaluations())
	if out.jsonPath != "" {
		if err := writeTo(cmd, out.jsonPath, exp.WriteJSON); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
	}
	if out.geojsonPath != "" {
		err := writeTo(cmd, out.geojsonPath, func(w io.Writer) error {
			return report.WriteGeoJSON(w, ds, exp.Residuals)
		})
		if err != nil {
			return fmt.Errorf("write GeoJSON: %w", err)
		}
	}
	if out.jsonPath != "-" && out.geojsonPath != "-" {
		report.WriteSummaryTable(cmd.OutOrStdout(), exp)
		if out.attempts {
			report.WriteAttempts(cmd.OutOrStdout(), f.Attempts())
		}
	}
	return nil
}

func finish(mgr *state.Manager, res fit.Result, err error) {
	if err != nil && res.Handle == nil {
		mgr.Finish(nil, err)
		return
	}
	mgr.Finish(&res, err)
}

// runTUI runs the job in the background while the progress view owns the
// terminal. Quitting the view early cancels the job and keeps its best
// result so far.
func runTUI(ctx context.Context, mgr *state.Manager, f *fit.Fitter, j job, run ui.Run) (fit.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(ui.New(mgr, run), tea.WithAltScreen())

	type outcome struct {
		res fit.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		stop := make(chan struct{})
		go pollEvaluations(mgr, f, stop)
		res, err := j(ctx, f)
		close(stop)
		mgr.SetEvaluations(f.Evaluations())
		finish(mgr, res, err)
		done <- outcome{res, err}
		p.Send(ui.DoneMsg{Snapshot: mgr.Snapshot()})
	}()

	_, err := p.Run()
	cancel()
	o := <-done
	if err != nil {
		return o.res, fmt.Errorf("run TUI: %w", err)
	}
	return o.res, o.err
}

func pollEvaluations(mgr *state.Manager, f *fit.Fitter, stop <-chan struct{}) {
	ticker := time.NewTicker(mgr.RefreshInterval())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			mgr.SetEvaluations(f.Evaluations())
		}
	}
}

// writeTo writes to a file, or to the command output for "-".
func writeTo(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(cmd.OutOrStdout())
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(fh); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func parseFloats(s string, n int) ([]float64, error) {
	fields := strings.Split(s, ",")
	if n > 0 && len(fields) != n {
		return nil, fmt.Errorf("want %d comma-separated values, got %d", n, len(fields))
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseTOWGS84(s string) (bursawolf.Params, error) {
	v, err := parseFloats(s, 7)
	if err != nil {
		return bursawolf.Params{}, fmt.Errorf("--towgs84: %w", err)
	}
	return bursawolf.FromTOWGS84([7]float64(v)), nil
}

// parseEllipsoid accepts a catalog name or code, or "a,invf".
func parseEllipsoid(s string) (geodesy.Ellipsoid, error) {
	if e, ok := geodesy.LookupEllipsoid(s); ok {
		return e, nil
	}
	v, err := parseFloats(s, 2)
	if err != nil {
		return geodesy.Ellipsoid{}, fmt.Errorf("unknown ellipsoid %q", s)
	}
	e := geodesy.UserOptimized(v[0], v[1])
	if !e.Valid() {
		return geodesy.Ellipsoid{}, fmt.Errorf("invalid ellipsoid %q", s)
	}
	return e, nil
}
