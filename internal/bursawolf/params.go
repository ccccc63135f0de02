// Package bursawolf models the seven-parameter Bursa-Wolfe (Helmert) datum
// shift and estimates it from corresponding geocentric coordinates.
package bursawolf

import (
	"errors"
	"fmt"
	"math"

	"github.com/litescript/crsfit/internal/geodesy"
)

var (
	// ErrInsufficientCorrespondences is returned when fewer than three
	// coordinate pairs are given, or the two sets differ in length.
	ErrInsufficientCorrespondences = errors.New("bursawolf: insufficient correspondences")
	// ErrDegenerateGeometry is returned when the points do not determine the
	// rotation, e.g. when they are collinear.
	ErrDegenerateGeometry = errors.New("bursawolf: degenerate geometry")
)

const arcSecPerRad = 180 / math.Pi * 3600

// Params is a position-vector Helmert transformation. Translations are in
// metres, rotations in radians and Scale is the dimensionless deviation from
// unity (1e-6 == 1 ppm).
type Params struct {
	DX    float64 `json:"dx"`
	DY    float64 `json:"dy"`
	DZ    float64 `json:"dz"`
	RX    float64 `json:"rx"`
	RY    float64 `json:"ry"`
	RZ    float64 `json:"rz"`
	Scale float64 `json:"scale"`
}

// FromTOWGS84 builds parameters from the proj/WKT TOWGS84 convention:
// metres, arc-seconds and parts per million.
func FromTOWGS84(v [7]float64) Params {
	return Params{
		DX:    v[0],
		DY:    v[1],
		DZ:    v[2],
		RX:    v[3] / arcSecPerRad,
		RY:    v[4] / arcSecPerRad,
		RZ:    v[5] / arcSecPerRad,
		Scale: v[6] * 1e-6,
	}
}

// TOWGS84 returns the parameters in the proj/WKT convention.
func (p Params) TOWGS84() [7]float64 {
	return [7]float64{
		p.DX, p.DY, p.DZ,
		p.RX * arcSecPerRad, p.RY * arcSecPerRad, p.RZ * arcSecPerRad,
		p.Scale * 1e6,
	}
}

// Vector returns the parameters in slot order dx, dy, dz, rx, ry, rz, scale.
func (p Params) Vector() []float64 {
	return []float64{p.DX, p.DY, p.DZ, p.RX, p.RY, p.RZ, p.Scale}
}

// FromVector is the inverse of Vector. It panics if v has fewer than seven
// elements.
func FromVector(v []float64) Params {
	return Params{DX: v[0], DY: v[1], DZ: v[2], RX: v[3], RY: v[4], RZ: v[5], Scale: v[6]}
}

// IsZero reports whether the transformation is the identity.
func (p Params) IsZero() bool {
	return p == Params{}
}

// Apply transforms a geocentric coordinate:
//
//	x' = (1+s)(x - rz*y + ry*z) + dx
//	y' = (1+s)(y + rz*x - rx*z) + dy
//	z' = (1+s)(z - ry*x + rx*y) + dz
func (p Params) Apply(v geodesy.ECEF) geodesy.ECEF {
	x, y, z := p.Forward(v.X, v.Y, v.Z)
	return geodesy.ECEF{X: x, Y: y, Z: z}
}

// ApplyAll transforms every coordinate, preserving order.
func (p Params) ApplyAll(vs []geodesy.ECEF) []geodesy.ECEF {
	out := make([]geodesy.ECEF, len(vs))
	for i, v := range vs {
		out[i] = p.Apply(v)
	}
	return out
}

// Forward implements wgs84.Transformation.
func (p Params) Forward(x, y, z float64) (x0, y0, z0 float64) {
	m := 1 + p.Scale
	x0 = m*(x-p.RZ*y+p.RY*z) + p.DX
	y0 = m*(y+p.RZ*x-p.RX*z) + p.DY
	z0 = m*(z-p.RY*x+p.RX*y) + p.DZ
	return x0, y0, z0
}

// Inverse implements wgs84.Transformation. The rotation is solved by
// fixed-point iteration, which converges in a few steps for geodetic
// rotation magnitudes.
func (p Params) Inverse(x0, y0, z0 float64) (x, y, z float64) {
	m := 1 + p.Scale
	if m == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	bx := (x0 - p.DX) / m
	by := (y0 - p.DY) / m
	bz := (z0 - p.DZ) / m
	x, y, z = bx, by, bz
	for range 8 {
		x = bx + p.RZ*y - p.RY*z
		y = by - p.RZ*x + p.RX*z
		z = bz + p.RY*x - p.RX*y
	}
	return x, y, z
}

// String formats the parameters as a TOWGS84 clause.
func (p Params) String() string {
	v := p.TOWGS84()
	return fmt.Sprintf("TOWGS84[%.4f,%.4f,%.4f,%.6f,%.6f,%.6f,%.6f]",
		v[0], v[1], v[2], v[3], v[4], v[5], v[6])
}
