package fit

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
)

// catalogFits is how many of the best quick-tested catalogue systems get a
// datum shift fit of their own.
const catalogFits = 3

// searchCatalog scores the engine's predefined systems whose area of use
// contains the data centre, each with its published datum shift, then fits
// a shift for the best few. Systems contradicting the request's ellipsoid or
// unit are skipped.
func (f *Fitter) searchCatalog(ctx context.Context, req Request) (Result, error) {
	cat, ok := f.engine.(projection.Catalog)
	if !ok {
		return Result{}, ErrNoCatalog
	}
	lat, lon := geodesy.MeanPosition(f.org)

	var (
		quick []Result
		errs  []error
	)
	for _, code := range cat.CodesCover(lon, lat) {
		if ctx.Err() != nil {
			break
		}
		ref, err := cat.Lookup(code)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m, err := projection.FromRealized(ref.Handle)
		if err != nil {
			errs = append(errs, fmt.Errorf("EPSG:%d: %w", code, err))
			continue
		}
		e := ref.Handle.Ellipsoid()
		if !matchesRequest(req, m, e) {
			continue
		}
		shift := ref.Handle.Shift()
		if req.Shift != nil {
			s := *req.Shift
			shift = &s
		}

		res, err := f.Error(m, e, shift)
		a := attemptOf(m, false, m.Unit, e, res, err)
		a.Code = code
		f.record(a)
		if err != nil {
			errs = append(errs, fmt.Errorf("EPSG:%d: %w", code, err))
			continue
		}
		res.Code, res.Name = ref.Code, ref.Name
		quick = append(quick, res)
	}
	if len(quick) == 0 {
		return Result{}, errors.Join(append([]error{ErrNoCandidate}, errs...)...)
	}
	slices.SortStableFunc(quick, func(a, b Result) int { return cmp.Compare(a.Error, b.Error) })

	best := quick[0]
	if req.Shift == nil {
		for _, q := range quick[:min(catalogFits, len(quick))] {
			r, err := f.FitSpatial(ctx, q.Model, q.Ellipsoid, nil)
			if err != nil {
				continue
			}
			if r.Error < best.Error {
				r.Code, r.Name = q.Code, q.Name
				best = r
			}
		}
	}
	best.Partial = best.Partial || ctx.Err() != nil
	return best, nil
}

func matchesRequest(req Request, m projection.Model, e geodesy.Ellipsoid) bool {
	if req.Ellipsoid != nil && !req.Ellipsoid.Equal(e) {
		return false
	}
	if req.Unit != nil && m.Type != projection.None && m.Unit.Code != req.Unit.Code {
		return false
	}
	return true
}
