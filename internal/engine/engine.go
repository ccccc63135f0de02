// Package engine realizes projection models as coordinate reference
// systems backed by github.com/wroge/wgs84.
package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/wroge/wgs84"

	"github.com/litescript/crsfit/internal/bursawolf"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
)

// ErrInvalidModel is returned for parameters no CRS can be built from.
var ErrInvalidModel = errors.New("engine: invalid model")

// tangentOffset separates the two standard parallels used to emulate a
// one-standard-parallel Lambert cone with the two-parallel formulas.
const tangentOffset = 1e-4

// referenceSystem is the part of a wgs84 CRS the engine uses: conversion to
// and from WGS84 geocentric coordinates.
type referenceSystem interface {
	ToWGS84(a, b, c float64) (x0, y0, z0 float64)
	FromWGS84(x0, y0, z0 float64) (a, b, c float64)
}

var everywhere = wgs84.AreaFunc(func(lon, lat float64) bool { return true })

// Engine builds handles. The zero value is ready to use.
type Engine struct{}

// New returns an engine.
func New() *Engine { return &Engine{} }

// Supports reports whether the engine can realize t.
func Supports(t projection.Type) bool {
	switch t {
	case projection.None,
		projection.TransverseMercator,
		projection.TransverseMercatorSouthOrientated,
		projection.LambertConicConformal1SP,
		projection.LambertConicConformal2SP,
		projection.AlbersConicEqualArea,
		projection.LambertAzimuthalEqualArea:
		return true
	}
	return false
}

// Realize builds a handle for the model on the ellipsoid, with an optional
// datum shift to WGS84.
func (Engine) Realize(m projection.Model, e geodesy.Ellipsoid, shift *bursawolf.Params) (projection.Handle, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("%w: ellipsoid %s (a=%g, 1/f=%g)", ErrInvalidModel, e, e.SemiMajorAxis, e.InverseFlattening)
	}
	if !Supports(m.Type) {
		return nil, fmt.Errorf("%w: %s", projection.ErrUnsupportedProjection, m.Type)
	}
	for _, v := range m.Params() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite parameter in %s", ErrInvalidModel, m)
		}
	}

	var tr wgs84.Transformation
	if shift != nil {
		tr = *shift
	}
	shifted := wgs84.Datum{Spheroid: e, Transformation: tr, Area: everywhere}
	plain := wgs84.Datum{Spheroid: e, Area: everywhere}

	h := &handle{
		model:     m,
		ellipsoid: e,
		factor:    m.Unit.FactorOrOne(),
		toNative:  identity,
		fromNat:   identity,
	}
	if shift != nil {
		s := *shift
		h.shift = &s
	}

	n := m.Named()
	f := h.factor
	feM, fnM := n.FalseEasting*f, n.FalseNorthing*f

	build := func(d wgs84.Datum) (referenceSystem, error) {
		switch m.Type {
		case projection.None:
			return d.LonLat(), nil
		case projection.TransverseMercator:
			return d.TransverseMercator(n.LongitudeOrigin, n.LatitudeOrigin, n.ScaleFactor, feM, fnM), nil
		case projection.TransverseMercatorSouthOrientated:
			return d.TransverseMercator(n.LongitudeOrigin, n.LatitudeOrigin, n.ScaleFactor, 0, 0), nil
		case projection.LambertConicConformal1SP:
			if n.ScaleFactor == 0 {
				return nil, fmt.Errorf("%w: zero scale factor", ErrInvalidModel)
			}
			lat := n.LatitudeOrigin
			return d.LambertConformalConic2SP(n.LongitudeOrigin, lat, lat+tangentOffset, lat-tangentOffset, 0, 0), nil
		case projection.LambertConicConformal2SP:
			return d.LambertConformalConic2SP(n.LongitudeOrigin, n.LatitudeOrigin,
				n.AzimuthOrStdParallel1, n.SkewOrStdParallel2, feM, fnM), nil
		case projection.AlbersConicEqualArea:
			return d.AlbersEqualAreaConic(n.LongitudeOrigin, n.LatitudeOrigin,
				n.AzimuthOrStdParallel1, n.SkewOrStdParallel2, feM, fnM), nil
		case projection.LambertAzimuthalEqualArea:
			return d.LambertAzimuthalEqualArea(n.LongitudeOrigin, n.LatitudeOrigin, feM, fnM), nil
		}
		return nil, fmt.Errorf("%w: %s", projection.ErrUnsupportedProjection, m.Type)
	}

	var err error
	if h.shifted, err = build(shifted); err != nil {
		return nil, err
	}
	if h.plain, err = build(plain); err != nil {
		return nil, err
	}

	switch m.Type {
	case projection.None:
		h.geographic = true
	case projection.TransverseMercatorSouthOrientated:
		// Westing and southing measured from the false origin.
		h.toNative = func(x, y float64) (float64, float64) { return feM - x, fnM - y }
		h.fromNat = func(e, n float64) (float64, float64) { return feM - e, fnM - n }
	case projection.LambertConicConformal1SP:
		k := n.ScaleFactor
		h.toNative = func(x, y float64) (float64, float64) { return (x - feM) / k, (y - fnM) / k }
		h.fromNat = func(e, n float64) (float64, float64) { return e*k + feM, n*k + fnM }
	}
	return h, nil
}

func identity(a, b float64) (float64, float64) { return a, b }

type handle struct {
	model      projection.Model
	ellipsoid  geodesy.Ellipsoid
	shift      *bursawolf.Params
	factor     float64
	geographic bool

	shifted referenceSystem
	plain   referenceSystem

	// toNative maps raw metres to the wgs84 projection's easting/northing.
	toNative func(x, y float64) (float64, float64)
	fromNat  func(e, n float64) (float64, float64)
}

func (h *handle) native(p geodesy.Point3D) (a, b, c float64) {
	if h.geographic {
		return p.X, p.Y, p.Z
	}
	a, b = h.toNative(p.X*h.factor, p.Y*h.factor)
	return a, b, p.Z * h.factor
}

func (h *handle) ToWGS84(points []geodesy.Point3D) []geodesy.GeodeticPosition {
	out := make([]geodesy.GeodeticPosition, len(points))
	for i, p := range points {
		x, y, z := h.shifted.ToWGS84(h.native(p))
		out[i] = geodesy.FromECEF(geodesy.ECEF{X: x, Y: y, Z: z}, geodesy.WGS84)
	}
	return out
}

func (h *handle) ToGeographic(points []geodesy.Point3D) []geodesy.GeodeticPosition {
	out := make([]geodesy.GeodeticPosition, len(points))
	for i, p := range points {
		x, y, z := h.plain.ToWGS84(h.native(p))
		out[i] = geodesy.FromECEF(geodesy.ECEF{X: x, Y: y, Z: z}, h.ellipsoid)
	}
	return out
}

func (h *handle) FromWGS84(positions []geodesy.GeodeticPosition) []geodesy.Point3D {
	out := make([]geodesy.Point3D, len(positions))
	for i, p := range positions {
		v := geodesy.ToECEF(p, geodesy.WGS84)
		a, b, c := h.shifted.FromWGS84(v.X, v.Y, v.Z)
		if h.geographic {
			out[i] = geodesy.Point3D{X: geodesy.NormalizeLongitude(a), Y: b, Z: c}
			continue
		}
		x, y := h.fromNat(a, b)
		out[i] = geodesy.Point3D{X: x / h.factor, Y: y / h.factor, Z: c / h.factor}
	}
	return out
}

func (h *handle) ProjectionName() string { return h.model.Type.NativeName() }

// Parameters returns the WKT-named parameter values, linear ones in the
// model unit.
func (h *handle) Parameters() map[string]float64 {
	names := h.model.Type.ParameterNames()
	values := h.model.Params()
	out := make(map[string]float64, len(names))
	for i, name := range names {
		out[name] = values[i]
	}
	return out
}

func (h *handle) Ellipsoid() geodesy.Ellipsoid { return h.ellipsoid }

func (h *handle) Shift() *bursawolf.Params {
	if h.shift == nil {
		return nil
	}
	s := *h.shift
	return &s
}

func (h *handle) Unit() geodesy.Unit { return h.model.Unit }

// Model returns the sanitized model the handle was built from.
func (h *handle) Model() projection.Model { return h.model }
