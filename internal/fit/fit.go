// Package fit searches for the coordinate reference system that best maps
// raw target coordinates onto known WGS84 positions: projection parameters,
// reference ellipsoid and datum shift.
package fit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/litescript/crsfit/internal/bursawolf"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/logging"
	"github.com/litescript/crsfit/internal/minimize"
	"github.com/litescript/crsfit/internal/projection"
)

var (
	ErrAllBranchesFailed = errors.New("fit: every seed branch failed")
	ErrNoCandidate       = errors.New("fit: no candidate could be fitted")
	ErrPointCount        = errors.New("fit: need at least two matching point pairs")
	ErrNoCatalog         = errors.New("fit: engine has no catalogue of predefined systems")
)

// Options tunes the search. Zero fields take the DefaultOptions value.
type Options struct {
	// RoundingTolerance is the largest error ratio a rounded model may
	// have against the unrounded one and still be kept.
	RoundingTolerance float64
	// NoShiftTolerance: the shift-free result is kept when
	// errNoShift*NoShiftTolerance < errShift.
	NoShiftTolerance float64
	// ImprovementRatio: a later candidate replaces the best only if its
	// error is below ImprovementRatio times the best error.
	ImprovementRatio float64
	// ErrorGoal in degrees stops unit and ellipsoid searches early.
	ErrorGoal float64

	StepBudget      int
	ShiftBudget     int
	EllipsoidBudget int
	Workers         int
	// MaxEvaluations caps objective evaluations across one Fitter.
	MaxEvaluations int64

	Logger   *logging.Logger
	Recorder Recorder
}

// DefaultOptions returns the standard tolerances and budgets.
func DefaultOptions() Options {
	return Options{
		RoundingTolerance: 1.01,
		NoShiftTolerance:  0.99,
		ImprovementRatio:  0.99,
		ErrorGoal:         0.005,
		StepBudget:        100,
		ShiftBudget:       500,
		EllipsoidBudget:   100,
		Workers:           runtime.GOMAXPROCS(0),
		MaxEvaluations:    2_000_000,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RoundingTolerance <= 0 {
		o.RoundingTolerance = d.RoundingTolerance
	}
	if o.NoShiftTolerance <= 0 {
		o.NoShiftTolerance = d.NoShiftTolerance
	}
	if o.ImprovementRatio <= 0 {
		o.ImprovementRatio = d.ImprovementRatio
	}
	if o.ErrorGoal <= 0 {
		o.ErrorGoal = d.ErrorGoal
	}
	if o.StepBudget <= 0 {
		o.StepBudget = d.StepBudget
	}
	if o.ShiftBudget <= 0 {
		o.ShiftBudget = d.ShiftBudget
	}
	if o.EllipsoidBudget <= 0 {
		o.EllipsoidBudget = d.EllipsoidBudget
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.MaxEvaluations == 0 {
		o.MaxEvaluations = d.MaxEvaluations
	}
	return o
}

// Result is a fitted CRS. Results are compared only by Error.
type Result struct {
	Handle    projection.Handle
	Model     projection.Model
	Ellipsoid geodesy.Ellipsoid
	Shift     *bursawolf.Params
	// Error is the combined RMS angular deviation in degrees.
	Error float64
	// Partial is set when a timeout or the evaluation budget cut the
	// search short and this is the best result found until then.
	Partial bool
	// Code and Name identify a predefined system from the engine's
	// catalogue; Code is 0 for fitted systems.
	Code int
	Name string
}

// Attempt records one scored (or failed) candidate.
type Attempt struct {
	Type      projection.Type
	Rounding  bool
	Unit      geodesy.Unit
	Ellipsoid geodesy.Ellipsoid
	Error     float64
	Err       error
	// Code is the EPSG code of a catalogue candidate.
	Code int
}

// Failed reports whether the attempt produced no usable result.
func (a Attempt) Failed() bool {
	return a.Err != nil || math.IsInf(a.Error, 1) || math.IsNaN(a.Error)
}

// Recorder receives attempts as they complete. Implementations must be
// safe for concurrent use.
type Recorder interface {
	Record(Attempt)
}

// Fitter holds one set of point pairs and fits models against them. It is
// safe for concurrent use.
type Fitter struct {
	engine projection.Engine
	org    []geodesy.GeodeticPosition
	target []geodesy.Point3D
	opts   Options
	log    *logging.Logger
	budget *minimize.Budget
	min    minimize.Minimizer

	mu       sync.Mutex
	attempts []Attempt
}

// New returns a fitter for the WGS84 reference positions org and the raw
// target coordinates, which must correspond index by index.
func New(eng projection.Engine, org []geodesy.GeodeticPosition, target []geodesy.Point3D, opts Options) (*Fitter, error) {
	if len(org) < 2 || len(org) != len(target) {
		return nil, fmt.Errorf("%w: %d reference, %d target", ErrPointCount, len(org), len(target))
	}
	opts = opts.withDefaults()
	budget := minimize.NewBudget(opts.MaxEvaluations)
	return &Fitter{
		engine: eng,
		org:    append([]geodesy.GeodeticPosition(nil), org...),
		target: append([]geodesy.Point3D(nil), target...),
		opts:   opts,
		log:    opts.Logger,
		budget: budget,
		min:    minimize.Minimizer{Budget: budget},
	}, nil
}

// Evaluations returns the number of objective evaluations so far.
func (f *Fitter) Evaluations() int64 { return f.budget.Used() }

// Attempts returns every attempt recorded so far, in completion order.
func (f *Fitter) Attempts() []Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Attempt(nil), f.attempts...)
}

func (f *Fitter) record(a Attempt) {
	f.mu.Lock()
	f.attempts = append(f.attempts, a)
	f.mu.Unlock()
	if f.opts.Recorder != nil {
		f.opts.Recorder.Record(a)
	}
	if a.Err != nil {
		f.log.Debug("attempt %s rounding=%t on %s failed: %v", a.Type, a.Rounding, a.Ellipsoid.Name, a.Err)
		return
	}
	f.log.Info("attempt %s rounding=%t unit=%s on %s: %.3g°", a.Type, a.Rounding, a.Unit.Name, a.Ellipsoid.Name, a.Error)
}

// Error evaluates a fixed model, ellipsoid and shift without optimizing.
func (f *Fitter) Error(m projection.Model, e geodesy.Ellipsoid, shift *bursawolf.Params) (Result, error) {
	h, err := m.Realize(f.engine, e, shift)
	if err != nil {
		return Result{}, err
	}
	return f.result(h, m, e, shift), nil
}

func (f *Fitter) result(h projection.Handle, m projection.Model, e geodesy.Ellipsoid, shift *bursawolf.Params) Result {
	return Result{
		Handle:    h,
		Model:     m,
		Ellipsoid: e,
		Shift:     shift,
		Error:     geodesy.Deviation(f.org, h.ToWGS84(f.target), geodesy.MetricCombined),
	}
}

// deviation scores a model; realize failures score +Inf.
func (f *Fitter) deviation(m projection.Model, e geodesy.Ellipsoid, shift *bursawolf.Params, metric geodesy.Metric) float64 {
	h, err := m.Realize(f.engine, e, shift)
	if err != nil {
		return math.Inf(1)
	}
	return geodesy.Deviation(f.org, h.ToWGS84(f.target), metric)
}

// interrupted reports whether err means the run as a whole must stop.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, minimize.ErrBudgetExhausted)
}
