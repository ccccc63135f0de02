package fit

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/litescript/crsfit/internal/bursawolf"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
)

// Request describes what is known about the target CRS. Nil fields are
// searched for.
type Request struct {
	// Type may be Automatic to search the projection method.
	Type projection.Type
	// Params fixes the projection parameters of a concrete Type.
	Params    []float64
	Ellipsoid *geodesy.Ellipsoid
	Shift     *bursawolf.Params
	Unit      *geodesy.Unit
}

// secondary are the methods tried when Transverse Mercator is far off.
var secondary = []projection.Type{
	projection.Polyconic,
	projection.CassiniSoldner,
	projection.LambertAzimuthalEqualArea,
	projection.Mercator,
	projection.ObliqueStereographic,
	projection.HotineObliqueMercatorA,
	projection.LambertConicConformal2SP,
}

// detectionUnits are tried in order when the linear unit is unknown.
var detectionUnits = []geodesy.Unit{geodesy.Metre, geodesy.Foot}

// Detect finds the best CRS consistent with the request. When the method is
// searched and the result misses the error goal, the engine's catalogue of
// predefined systems is consulted too and wins on a clear improvement.
func (f *Fitter) Detect(ctx context.Context, req Request) (Result, error) {
	if req.Type == projection.Unknown {
		req.Type = projection.Automatic
	}
	best, err := f.detectUnits(ctx, req)
	if req.Type != projection.Automatic || ctx.Err() != nil {
		return best, err
	}
	if err == nil && best.Error <= f.opts.ErrorGoal {
		return best, nil
	}

	ref, cerr := f.searchCatalog(ctx, req)
	switch {
	case cerr != nil:
		if !errors.Is(cerr, ErrNoCatalog) {
			f.log.Debug("catalogue search: %v", cerr)
		}
		return best, err
	case err != nil:
		f.log.Info("Automatic search failed; using EPSG:%d %s", ref.Code, ref.Name)
		return ref, nil
	case ref.Error < f.opts.ImprovementRatio*best.Error:
		f.log.Info("EPSG:%d %s beats the fitted CRS: %.3g° against %.3g°", ref.Code, ref.Name, ref.Error, best.Error)
		return ref, nil
	}
	return best, nil
}

func (f *Fitter) detectUnits(ctx context.Context, req Request) (Result, error) {
	if req.Unit != nil {
		return f.detectUnit(ctx, req)
	}

	var (
		best  Result
		found bool
		errs  []error
	)
	for _, u := range detectionUnits {
		r := req
		r.Unit = &u
		res, err := f.detectUnit(ctx, r)
		if err != nil {
			errs = append(errs, fmt.Errorf("unit %s: %w", u.Name, err))
			if interrupted(err) {
				break
			}
			continue
		}
		if !found || res.Error < f.opts.ImprovementRatio*best.Error {
			best, found = res, true
		}
		if best.Error <= f.opts.ErrorGoal || res.Partial {
			break
		}
	}
	if !found {
		return Result{}, errors.Join(append([]error{ErrNoCandidate}, errs...)...)
	}
	return best, nil
}

func (f *Fitter) detectUnit(ctx context.Context, req Request) (Result, error) {
	unit := *req.Unit
	e := geodesy.WGS84
	if req.Ellipsoid != nil {
		e = *req.Ellipsoid
	}

	m, partial, err := f.resolveModel(ctx, req, e, unit)
	if err != nil {
		return Result{}, err
	}
	res, err := f.FitSpatial(ctx, m, e, req.Shift)
	if err != nil {
		return Result{}, err
	}
	res.Partial = res.Partial || partial
	if req.Ellipsoid != nil || res.Partial {
		return res, nil
	}

	// Ellipsoid unknown: keep the model and compare reference ellipsoids.
	best := res
	for _, known := range geodesy.KnownEllipsoids() {
		if known.Equal(e) {
			continue
		}
		r, err := f.FitSpatial(ctx, m, known, req.Shift)
		f.record(attemptOf(m, false, unit, known, r, err))
		if err != nil {
			continue
		}
		if r.Error < f.opts.ImprovementRatio*best.Error {
			best = r
		}
		if best.Error <= f.opts.ErrorGoal {
			break
		}
	}
	if best.Error > f.opts.ErrorGoal {
		custom, err := f.FitEllipsoid(ctx, m, best.Shift)
		if err != nil && !interrupted(err) {
			f.log.Warn("ellipsoid search: %v", err)
		} else if r, serr := f.FitSpatial(ctx, m, custom, req.Shift); serr == nil {
			f.record(attemptOf(m, false, unit, custom, r, nil))
			if r.Error < f.opts.ImprovementRatio*best.Error {
				best = r
			}
		}
	}

	if req.Type == projection.Automatic && !best.Ellipsoid.Equal(e) {
		el := best.Ellipsoid
		r := req
		r.Ellipsoid = &el
		again, err := f.detectUnit(ctx, r)
		if err == nil && again.Error <= best.Error {
			return again, nil
		}
	}
	return best, nil
}

// resolveModel produces a projection model with parameters: given, fitted
// for the requested type, or searched across types.
func (f *Fitter) resolveModel(ctx context.Context, req Request, e geodesy.Ellipsoid, unit geodesy.Unit) (projection.Model, bool, error) {
	switch {
	case req.Type == projection.Automatic:
		res, err := f.searchProjection(ctx, e, unit, req.Shift)
		return res.Model, res.Partial, err
	case len(req.Params) > 0:
		m, err := projection.NewWithParams(req.Type, req.Params)
		m.Unit = unit
		return m, false, err
	}

	branches := make([]branch, 0, 2)
	for _, rounding := range []bool{true, false} {
		branches = append(branches, func(ctx context.Context) (Result, error) {
			res, err := f.FitProjection(ctx, req.Type, e, unit, rounding)
			f.record(attemptOf(projection.New(req.Type), rounding, unit, e, res, err))
			return res, err
		})
	}
	res, err := bestBranch(ctx, f.opts.Workers, branches)
	if err != nil {
		return projection.Model{}, false, errors.Join(ErrNoCandidate, err)
	}
	return res.Model, res.Partial, nil
}

type candidate struct {
	t        projection.Type
	rounding bool
}

// searchProjection fits candidate projection methods and returns the one
// with the lowest error after the datum shift fit. The secondary methods are
// only tried when Transverse Mercator is off by more than a degree.
func (f *Fitter) searchProjection(ctx context.Context, e geodesy.Ellipsoid, unit geodesy.Unit, shift *bursawolf.Params) (Result, error) {
	fitted, errs := f.fitCandidates(ctx, []candidate{{t: projection.None}}, e, unit, shift)
	for _, rounding := range []bool{true, false} {
		if ctx.Err() != nil {
			break
		}
		tm, terrs := f.fitCandidates(ctx, []candidate{{projection.TransverseMercator, rounding}}, e, unit, shift)
		fitted = append(fitted, tm...)
		errs = append(errs, terrs...)
		if len(tm) == 1 && tm[0].Error <= 1 {
			continue
		}
		group := make([]candidate, len(secondary))
		for i, t := range secondary {
			group[i] = candidate{t, rounding}
		}
		more, merrs := f.fitCandidates(ctx, group, e, unit, shift)
		fitted = append(fitted, more...)
		errs = append(errs, merrs...)
	}

	best := -1
	for i, r := range fitted {
		if best < 0 || r.Error < fitted[best].Error {
			best = i
		}
	}
	if best < 0 {
		return Result{}, errors.Join(append([]error{ErrNoCandidate}, errs...)...)
	}
	return fitted[best], nil
}

// fitCandidates fits the candidates in parallel, scores each through the
// datum shift fit and returns the successes in candidate order.
func (f *Fitter) fitCandidates(ctx context.Context, cands []candidate, e geodesy.Ellipsoid, unit geodesy.Unit, shift *bursawolf.Params) ([]Result, []error) {
	results := make([]Result, len(cands))
	errs := make([]error, len(cands))
	branches := make([]branch, len(cands))
	for i, c := range cands {
		branches[i] = func(ctx context.Context) (Result, error) {
			res, err := f.FitProjection(ctx, c.t, e, unit, c.rounding)
			if err == nil {
				var spatial Result
				spatial, err = f.FitSpatial(ctx, res.Model, e, shift)
				if err == nil {
					spatial.Partial = spatial.Partial || res.Partial
					res = spatial
				}
			}
			f.record(attemptOf(projection.New(c.t), c.rounding, unit, e, res, err))
			results[i], errs[i] = res, err
			return res, err
		}
	}
	_, _ = bestBranch(ctx, f.opts.Workers, branches)

	var ok []Result
	var failed []error
	for i := range cands {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		ok = append(ok, results[i])
	}
	return ok, failed
}

func attemptOf(m projection.Model, rounding bool, unit geodesy.Unit, e geodesy.Ellipsoid, r Result, err error) Attempt {
	a := Attempt{Type: m.Type, Rounding: rounding, Unit: unit, Ellipsoid: e, Error: r.Error, Err: err}
	if err != nil {
		a.Error = math.Inf(1)
	}
	return a
}
