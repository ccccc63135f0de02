package fit

import (
	"context"
	"fmt"
	"math"

	"github.com/litescript/crsfit/internal/bursawolf"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
)

// shiftSteps are the initial simplex extents for the Bursa-Wolfe
// refinement: metres, radians, then dimensionless scale.
var shiftSteps = []float64{1, 1, 1, 1e-6, 1e-6, 1e-6, 1e-6}

// FitSpatial completes a projection model into a full CRS on the ellipsoid.
// A given shift is applied as is. Without one a Bursa-Wolfe shift to WGS84
// is estimated and refined, and kept only if it clearly lowers the error.
func (f *Fitter) FitSpatial(ctx context.Context, m projection.Model, e geodesy.Ellipsoid, shift *bursawolf.Params) (Result, error) {
	if shift != nil {
		s := *shift
		return f.Error(m, e, &s)
	}
	plain, err := f.Error(m, e, nil)
	if err != nil {
		return Result{}, err
	}
	if e.Equal(geodesy.WGS84) {
		return plain, nil
	}

	source := geodesy.ToECEFAll(f.org, geodesy.WGS84)
	target := geodesy.ToECEFAll(plain.Handle.ToGeographic(f.target), e)
	est, err := bursawolf.Estimate(source, target)
	if err != nil {
		f.log.Warn("datum shift for %s on %s: %v; keeping no shift", m.Type, e.Name, err)
		return plain, nil
	}

	objective := func(x []float64) float64 {
		p := bursawolf.FromVector(x)
		return f.deviation(m, e, &p, geodesy.MetricCombined)
	}
	res, err := f.min.Minimize(ctx, objective, est.Vector(), shiftSteps, f.opts.ShiftBudget)
	if err != nil && !interrupted(err) {
		f.log.Warn("datum shift refinement for %s on %s: %v", m.Type, e.Name, err)
	}
	best := bursawolf.FromVector(res.X)

	shifted, rerr := f.Error(m, e, &best)
	if rerr != nil {
		return plain, nil
	}
	shifted.Partial = interrupted(err)
	if math.IsInf(shifted.Error, 1) || plain.Error*f.opts.NoShiftTolerance < shifted.Error {
		plain.Partial = shifted.Partial
		return plain, nil
	}
	f.log.Debug("shift %s lowers %s on %s from %.3g° to %.3g°", best, m.Type, e.Name, plain.Error, shifted.Error)
	return shifted, nil
}

// FitEllipsoid searches a custom ellipsoid for a fixed model, starting from
// WGS84, with the inverse flattening held within [250, 350].
func (f *Fitter) FitEllipsoid(ctx context.Context, m projection.Model, shift *bursawolf.Params) (geodesy.Ellipsoid, error) {
	clamp := func(invf float64) float64 { return max(250, min(350, invf)) }
	objective := func(x []float64) float64 {
		return f.deviation(m, geodesy.UserOptimized(x[0], clamp(x[1])), shift, geodesy.MetricCombined)
	}
	x0 := []float64{geodesy.WGS84.SemiMajorAxis, geodesy.WGS84.InverseFlattening}
	res, err := f.min.Minimize(ctx, objective, x0, []float64{100, 0.5}, f.opts.EllipsoidBudget)
	e := geodesy.UserOptimized(res.X[0], clamp(res.X[1]))
	if err != nil {
		return e, fmt.Errorf("fit ellipsoid: %w", err)
	}
	return e, nil
}
