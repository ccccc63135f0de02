package fit

import (
	"context"
	"fmt"

	"github.com/litescript/crsfit/internal/bursawolf"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
)

// rotatedSeeds builds the oblique Mercator seeds for a site grid whose
// x axis points along yaw degrees from north.
func rotatedSeeds(base projection.Model, yaw, a float64) []projection.Model {
	az, skew, fe := yaw, 90.0, -a
	if yaw >= 180 {
		az -= 180
		skew = -90
		fe = -fe
	}
	type pose struct{ fe, az, skew float64 }
	var poses []pose
	for _, rot := range []float64{0, 90} {
		for _, e := range []float64{fe, -fe} {
			poses = append(poses,
				pose{e, az + rot, skew},
				pose{e, az + rot, -skew},
				pose{e, az + rot, skew},
				pose{e, -az + rot, -skew},
			)
		}
	}
	out := make([]projection.Model, len(poses))
	for i, p := range poses {
		out[i] = base.
			With(projection.SlotFalseEasting, p.fe).
			With(projection.SlotAzimuth, p.az).
			With(projection.SlotSkew, p.skew)
	}
	return out
}

// FitRotated fits an oblique Mercator on GRS80 for a local grid with known
// orientation yaw (degrees) and unknown origin, then completes it with a
// datum shift fit. A non-nil shift is applied instead of being estimated.
func (f *Fitter) FitRotated(ctx context.Context, yaw float64, unit geodesy.Unit, shift *bursawolf.Params) (Result, error) {
	if unit.IsZero() {
		unit = geodesy.Metre
	}
	e := geodesy.GRS80
	lat, lon := geodesy.MeanPosition(f.org)
	base := projection.New(projection.HotineObliqueMercatorA)
	base.Unit = unit
	base = base.WithNamed(projection.Named{
		LatitudeOrigin:  lat,
		LongitudeOrigin: lon,
		ScaleFactor:     1,
	})

	if _, err := base.Realize(f.engine, e, nil); err != nil {
		return Result{}, fmt.Errorf("fit rotated: %w", err)
	}

	a := geodesy.WGS84.SemiMajorAxis / unit.FactorOrOne()
	m, err := f.bestOf(ctx, rotatedSeeds(base, yaw, a), e, []projection.Slot{projection.SlotFalseEasting}, geodesy.MetricCombined)
	if err == nil {
		m, _, err = f.refine(ctx, m, e, []projection.Slot{
			projection.SlotLatitude, projection.SlotLongitude, projection.SlotFalseEasting,
		}, geodesy.MetricCombined)
	}
	if err != nil && !interrupted(err) {
		return Result{}, fmt.Errorf("fit rotated: %w", err)
	}

	res, serr := f.FitSpatial(ctx, m, e, shift)
	if serr != nil {
		return Result{}, fmt.Errorf("fit rotated: %w", serr)
	}
	res.Partial = res.Partial || err != nil
	f.record(Attempt{Type: m.Type, Unit: unit, Ellipsoid: e, Error: res.Error})
	return res, nil
}
