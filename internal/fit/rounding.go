package fit

import (
	"math"

	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
)

// significant rounds v to the given number of significant digits, halves
// away from zero.
func significant(v float64, digits int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	exp := int(math.Floor(math.Log10(math.Abs(v))))
	if shift := exp - digits + 1; shift >= 0 {
		// Integer grid: the step is an exact power of ten.
		q := math.Pow(10, float64(shift))
		return math.Round(v/q) * q
	}
	p := math.Pow(10, float64(digits-1-exp))
	return math.Round(v*p) / p
}

func halfDegree(v float64) float64 { return math.Round(2*v) / 2 }

func snapSmall(v float64) float64 {
	if math.Abs(v) < 0.1 {
		return 0
	}
	return v
}

// roundFine snaps origin to 0.5°, scale to 4 significant digits and the
// false origin to 4 significant digits on a 1/3 grid.
func roundFine(m projection.Model) projection.Model {
	return roundWith(m, func(v float64) float64 {
		return snapSmall(math.Round(significant(v, 4)*3) / 3)
	})
}

// roundCoarse is roundFine with the false origin cut to one significant
// digit.
func roundCoarse(m projection.Model) projection.Model {
	return roundWith(m, func(v float64) float64 {
		return snapSmall(significant(v, 1))
	})
}

func roundWith(m projection.Model, linear func(float64) float64) projection.Model {
	t := m.Type
	if t.Free(projection.SlotLatitude) {
		m = m.With(projection.SlotLatitude, halfDegree(m.Get(projection.SlotLatitude)))
	}
	if t.Free(projection.SlotLongitude) {
		lon := halfDegree(m.Get(projection.SlotLongitude))
		if lon > 180 {
			lon -= 360
		}
		m = m.With(projection.SlotLongitude, lon)
	}
	if t.Free(projection.SlotScale) {
		m = m.With(projection.SlotScale, significant(math.Abs(m.Get(projection.SlotScale)), 4))
	}
	for _, s := range []projection.Slot{projection.SlotFalseEasting, projection.SlotFalseNorthing} {
		if t.Free(s) {
			m = m.With(s, linear(m.Get(s)))
		}
	}
	return m
}

// round returns the coarsest rounding of m whose error stays within the
// rounding tolerance of the unrounded error, or m itself.
func (f *Fitter) round(m projection.Model, e geodesy.Ellipsoid) projection.Model {
	base := f.deviation(m, e, nil, geodesy.MetricCombined)
	if math.IsInf(base, 1) || math.IsNaN(base) {
		return m
	}
	limit := f.opts.RoundingTolerance * base
	for _, candidate := range []projection.Model{roundCoarse(m), roundFine(m)} {
		if f.deviation(candidate, e, nil, geodesy.MetricCombined) <= limit {
			return candidate
		}
	}
	return m
}
