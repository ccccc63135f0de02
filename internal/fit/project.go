package fit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/minimize"
	"github.com/litescript/crsfit/internal/projection"
)

// hotineAzimuths returns the azimuth seed grid for oblique Mercator fits.
func hotineAzimuths() []float64 {
	var out []float64
	for i := 0; ; i++ {
		az := -89.9 + 22.4*float64(i)
		if az >= 89.9 {
			return out
		}
		out = append(out, az)
	}
}

// seed holds the starting values shared by all branches of one fit.
type seed struct {
	lat, lon float64
	fe, fn   float64
	scales   []float64
	// a is the WGS84 semi-major axis in the model unit.
	a float64
}

func (f *Fitter) initialGuess(t projection.Type, unit geodesy.Unit) seed {
	factor := unit.FactorOrOne()
	lat, lon := geodesy.MeanPosition(f.org)
	x, y := geodesy.MeanPoint(f.target)
	s := seed{lat: lat, lon: lon, fe: x, fn: y, scales: []float64{1}, a: geodesy.WGS84.SemiMajorAxis / factor}
	if t.Conformal() {
		orgExtent := geodesy.GeodeticExtent(f.org, lat, lon, geodesy.WGS84)
		targetExtent := geodesy.PlanarExtent(f.target, x, y, factor)
		s.scales = []float64{1, 3.28}
		if orgExtent > 0 && targetExtent > 0 {
			s.scales = append(s.scales, targetExtent/orgExtent)
		}
		s.fe = s.a
	}
	return s
}

// FitProjection fits the parameters of a projection type on the target
// ellipsoid, without a datum shift. With rounding set, the parameters are
// snapped to round values when that does not cost accuracy.
func (f *Fitter) FitProjection(ctx context.Context, t projection.Type, e geodesy.Ellipsoid, unit geodesy.Unit, rounding bool) (Result, error) {
	if !t.Determined() {
		return Result{}, fmt.Errorf("fit %s: %w", t, projection.ErrUndeterminedProjectionType)
	}
	if unit.IsZero() {
		unit = geodesy.Metre
	}
	if t == projection.None {
		m := projection.New(projection.None)
		m.Unit = unit
		return f.Error(m, e, nil)
	}

	trial := projection.New(t)
	trial.Unit = unit
	if _, err := trial.Realize(f.engine, e, nil); errors.Is(err, projection.ErrUnsupportedProjection) {
		return Result{}, fmt.Errorf("fit %s: %w", t, err)
	}

	s := f.initialGuess(t, unit)
	branches := make([]branch, len(s.scales))
	for i, k := range s.scales {
		base := projection.New(t)
		base.Unit = unit
		base = base.WithNamed(projection.Named{
			LatitudeOrigin:  s.lat,
			LongitudeOrigin: s.lon,
			ScaleFactor:     k,
			FalseEasting:    s.fe,
			FalseNorthing:   s.fn,
		})
		branches[i] = func(ctx context.Context) (Result, error) {
			var (
				m   projection.Model
				err error
			)
			switch {
			case t.IsHotine():
				m, err = f.hotine(ctx, base, e, s)
			case t == projection.LambertConicConformal2SP:
				m, err = f.conic(ctx, base, e, s)
			default:
				m, err = f.descend(ctx, base, e, 3)
			}
			if err == nil && rounding {
				m = f.round(m, e)
			}
			h, rerr := m.Realize(f.engine, e, nil)
			if rerr != nil {
				if err != nil {
					return Result{}, err
				}
				return Result{}, rerr
			}
			res := f.result(h, m, e, nil)
			res.Partial = err != nil
			return res, err
		}
	}
	res, err := bestBranch(ctx, f.opts.Workers, branches)
	if err != nil {
		return Result{}, fmt.Errorf("fit %s: %w", t, err)
	}
	f.log.Debug("fitted %s on %s: %.3g°", res.Model, e.Name, res.Error)
	return res, nil
}

// hotine seeds the oblique Mercator over the azimuth grid.
func (f *Fitter) hotine(ctx context.Context, base projection.Model, e geodesy.Ellipsoid, s seed) (projection.Model, error) {
	perms := []struct{ fe, skew float64 }{
		{0, 90},
		{-s.a, 90},
		{0, -90},
		{s.a, -90},
	}
	var seeds []projection.Model
	for _, az := range hotineAzimuths() {
		for _, p := range perms {
			seeds = append(seeds, base.
				With(projection.SlotFalseEasting, p.fe).
				With(projection.SlotFalseNorthing, 0).
				With(projection.SlotAzimuth, az).
				With(projection.SlotSkew, p.skew))
		}
	}
	m, err := f.bestOf(ctx, seeds, e, []projection.Slot{projection.SlotFalseEasting, projection.SlotSkew}, geodesy.MetricCombined)
	if err != nil {
		return m, err
	}
	if m, _, err = f.refine(ctx, m, e, []projection.Slot{projection.SlotLatitude, projection.SlotScale, projection.SlotFalseEasting}, geodesy.MetricCombined); err != nil {
		return m, err
	}
	m, _, err = f.refine(ctx, m, e, []projection.Slot{projection.SlotLongitude, projection.SlotScale, projection.SlotFalseNorthing}, geodesy.MetricCombined)
	return m, err
}

// conic fits a two-standard-parallel cone.
func (f *Fitter) conic(ctx context.Context, base projection.Model, e geodesy.Ellipsoid, s seed) (projection.Model, error) {
	m := base.
		With(projection.SlotAzimuth, s.lat+2).
		With(projection.SlotSkew, s.lat+1)
	var err error
	for range 3 {
		if m, err = f.descend(ctx, m, e, 1); err != nil {
			return m, err
		}
		m, _, err = f.refine(ctx, m, e, []projection.Slot{
			projection.SlotLatitude, projection.SlotFalseNorthing, projection.SlotAzimuth, projection.SlotSkew,
		}, geodesy.MetricCombined)
		if err != nil {
			return m, err
		}
	}
	return m, nil
}

// descend runs rounds of coordinate descent: east-west first, then
// north-south, then both together, then the scale factor.
func (f *Fitter) descend(ctx context.Context, m projection.Model, e geodesy.Ellipsoid, rounds int) (projection.Model, error) {
	const (
		lat = projection.SlotLatitude
		lon = projection.SlotLongitude
		fe  = projection.SlotFalseEasting
		fn  = projection.SlotFalseNorthing
	)
	var err error
	for range rounds {
		m, err = f.bestOf(ctx, []projection.Model{
			m.With(lon, 0).With(fe, 0),
			m.With(fe, 0),
			m.With(lon, 0),
			m,
		}, e, []projection.Slot{lon, fe}, geodesy.MetricLongitude)
		if err != nil {
			return m, err
		}

		m, err = f.bestOf(ctx, []projection.Model{
			m.With(lat, 0.001).With(fn, 0),
			m.With(lat, 0.001),
			m.With(fn, 0),
			m,
		}, e, []projection.Slot{lat, fn}, geodesy.MetricLatitude)
		if err != nil {
			return m, err
		}

		if m, _, err = f.refine(ctx, m, e, []projection.Slot{lat, lon, fe, fn}, geodesy.MetricCombined); err != nil {
			return m, err
		}

		// Types with a fixed scale (Mercator among them) skip this step.
		// The tuned scale is the starting point of the next round.
		if m.Type.Free(projection.SlotScale) {
			if m, _, err = f.refine(ctx, m, e, []projection.Slot{projection.SlotScale}, geodesy.MetricCombined); err != nil {
				return m, err
			}
		}
	}
	return m, nil
}

// bestOf refines every seed over slots and keeps the lowest error, first
// seed on ties.
func (f *Fitter) bestOf(ctx context.Context, seeds []projection.Model, e geodesy.Ellipsoid, slots []projection.Slot, metric geodesy.Metric) (projection.Model, error) {
	best := seeds[len(seeds)-1]
	bestErr := math.Inf(1)
	for _, s := range seeds {
		m, v, err := f.refine(ctx, s, e, slots, metric)
		if v < bestErr {
			best, bestErr = m, v
		}
		if err != nil {
			return best, err
		}
	}
	return best, nil
}

// refine minimizes the metric over the free slots among those listed.
func (f *Fitter) refine(ctx context.Context, m projection.Model, e geodesy.Ellipsoid, slots []projection.Slot, metric geodesy.Metric) (projection.Model, float64, error) {
	all := m.Type.Slots()
	idx := make([]int, 0, len(slots))
	steps := make([]float64, 0, len(slots))
	for _, s := range slots {
		if i := slices.Index(all, s); i >= 0 && m.Type.Free(s) {
			idx = append(idx, i)
			steps = append(steps, stepSize(m, s))
		}
	}
	base := m.Params()
	x0, objective := minimize.Subset(base, idx, func(x []float64) float64 {
		return f.deviation(withParams(m, x), e, nil, metric)
	})
	res, err := f.min.Minimize(ctx, objective, x0, steps, f.opts.StepBudget)
	return withParams(m, minimize.Expand(base, idx, res.X)), res.F, err
}

// withParams returns m with a full positional parameter vector.
func withParams(m projection.Model, x []float64) projection.Model {
	if err := m.SetParams(x); err != nil {
		panic(err)
	}
	return m
}

// stepSize is the initial simplex extent for one slot.
func stepSize(m projection.Model, s projection.Slot) float64 {
	v := math.Abs(m.Get(s))
	switch {
	case s.IsLinear():
		return max(100/m.Unit.FactorOrOne(), 0.05*v)
	case s == projection.SlotScale:
		return 0.01
	}
	return max(0.5, 0.02*v)
}
