package projection

import (
	"fmt"

	"github.com/litescript/crsfit/internal/bursawolf"
	"github.com/litescript/crsfit/internal/geodesy"
)

// Handle is a realized coordinate reference system. Implementations are
// immutable and safe for concurrent use.
type Handle interface {
	// ToWGS84 inverse-projects raw target coordinates and shifts them to
	// WGS84 geodetic positions.
	ToWGS84(points []geodesy.Point3D) []geodesy.GeodeticPosition
	// ToGeographic inverse-projects onto the CRS's own ellipsoid with no
	// datum shift.
	ToGeographic(points []geodesy.Point3D) []geodesy.GeodeticPosition
	// FromWGS84 is the forward transform from WGS84 to raw coordinates.
	FromWGS84(positions []geodesy.GeodeticPosition) []geodesy.Point3D

	ProjectionName() string
	Parameters() map[string]float64
	Ellipsoid() geodesy.Ellipsoid
	Shift() *bursawolf.Params
	Unit() geodesy.Unit
}

// Engine realizes projection models into handles.
type Engine interface {
	Realize(m Model, e geodesy.Ellipsoid, shift *bursawolf.Params) (Handle, error)
}

// Reference is a predefined coordinate reference system from an engine's
// catalogue.
type Reference struct {
	Code   int
	Name   string
	Handle Handle
}

// Catalog is implemented by engines that carry predefined coordinate
// reference systems keyed by EPSG code.
type Catalog interface {
	// CodesCover lists the codes whose area of use contains the WGS84
	// position, in ascending order.
	CodesCover(lon, lat float64) []int
	Lookup(code int) (Reference, error)
}

// Realize sanitizes the model and asks the engine for a handle.
func (m Model) Realize(eng Engine, e geodesy.Ellipsoid, shift *bursawolf.Params) (Handle, error) {
	if !m.Type.Determined() {
		return nil, fmt.Errorf("realize %s: %w", m.Type, ErrUndeterminedProjectionType)
	}
	h, err := eng.Realize(m.Sanitized(), e, shift)
	if err != nil {
		return nil, fmt.Errorf("realize %s: %w", m.Type, err)
	}
	return h, nil
}

// realizable lists the native names FromRealized can read back.
var realizable = map[string]Type{
	"Transverse_Mercator":                  TransverseMercator,
	"Transverse_Mercator_South_Orientated": TransverseMercatorSouthOrientated,
	"Oblique_Stereographic":                ObliqueStereographic,
	"Lambert_Conformal_Conic_1SP":          LambertConicConformal1SP,
	"Lambert_Conformal_Conic_2SP":          LambertConicConformal2SP,
	"Albers_Conic_Equal_Area":              AlbersConicEqualArea,
	"Lambert_Azimuthal_Equal_Area":         LambertAzimuthalEqualArea,
}

// FromRealized reconstructs a model from a handle's projection name and
// WKT-style parameters. A geographic handle (empty name) yields None.
func FromRealized(h Handle) (Model, error) {
	name := h.ProjectionName()
	if name == "" {
		m := New(None)
		m.Unit = h.Unit()
		return m, nil
	}
	t, ok := realizable[name]
	if !ok {
		return Model{Type: Unknown}, fmt.Errorf("%w: %s", ErrUnsupportedProjection, name)
	}

	params := h.Parameters()
	names := t.ParameterNames()
	values := make([]float64, len(names))
	for i, p := range t.info().params {
		v, ok := params[names[i]]
		switch {
		case ok:
			values[i] = v
		case p.fixed:
			values[i] = 1
		default:
			return Model{Type: Unknown}, fmt.Errorf("%w: %s lacks %s", ErrUnsupportedProjection, name, names[i])
		}
	}
	m, err := NewWithParams(t, values)
	if err != nil {
		return Model{Type: Unknown}, err
	}
	m.Unit = h.Unit()
	return m, nil
}
