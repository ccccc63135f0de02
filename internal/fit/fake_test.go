package fit

import (
	"fmt"
	"sync"

	"github.com/litescript/crsfit/internal/bursawolf"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
)

// metresPerDegree is the plate carrée scale of the planar engine.
const metresPerDegree = 111320.0

// planarEngine realizes every supported type as a scaled plate carrée
// around the origin. It is exact, cheap and ignores the ellipsoid and
// shift, which makes convergence properties easy to check.
type planarEngine struct {
	unsupported map[projection.Type]bool
}

func (p planarEngine) Realize(m projection.Model, e geodesy.Ellipsoid, shift *bursawolf.Params) (projection.Handle, error) {
	if p.unsupported[m.Type] {
		return nil, fmt.Errorf("%w: %s", projection.ErrUnsupportedProjection, m.Type)
	}
	n := m.Named()
	if m.Type.Arity() > 0 && n.ScaleFactor == 0 {
		return nil, fmt.Errorf("zero scale")
	}
	return planarHandle{model: m, named: n, ellipsoid: e, shift: shift}, nil
}

type planarHandle struct {
	model     projection.Model
	named     projection.Named
	ellipsoid geodesy.Ellipsoid
	shift     *bursawolf.Params
}

func (h planarHandle) k() float64 {
	return h.named.ScaleFactor * metresPerDegree / h.model.Unit.FactorOrOne()
}

func (h planarHandle) ToWGS84(points []geodesy.Point3D) []geodesy.GeodeticPosition {
	out := make([]geodesy.GeodeticPosition, len(points))
	for i, p := range points {
		if h.model.Type == projection.None {
			out[i] = geodesy.GeodeticPosition{Lat: p.Y, Lon: p.X, Height: p.Z}
			continue
		}
		out[i] = geodesy.GeodeticPosition{
			Lat:    h.named.LatitudeOrigin + (p.Y-h.named.FalseNorthing)/h.k(),
			Lon:    h.named.LongitudeOrigin + (p.X-h.named.FalseEasting)/h.k(),
			Height: p.Z,
		}
	}
	return out
}

func (h planarHandle) ToGeographic(points []geodesy.Point3D) []geodesy.GeodeticPosition {
	return h.ToWGS84(points)
}

func (h planarHandle) FromWGS84(positions []geodesy.GeodeticPosition) []geodesy.Point3D {
	out := make([]geodesy.Point3D, len(positions))
	for i, p := range positions {
		if h.model.Type == projection.None {
			out[i] = geodesy.Point3D{X: p.Lon, Y: p.Lat, Z: p.Height}
			continue
		}
		out[i] = geodesy.Point3D{
			X: h.named.FalseEasting + (p.Lon-h.named.LongitudeOrigin)*h.k(),
			Y: h.named.FalseNorthing + (p.Lat-h.named.LatitudeOrigin)*h.k(),
			Z: p.Height,
		}
	}
	return out
}

func (h planarHandle) ProjectionName() string { return h.model.Type.NativeName() }

func (h planarHandle) Parameters() map[string]float64 {
	out := map[string]float64{}
	values := h.model.Params()
	for i, name := range h.model.Type.ParameterNames() {
		out[name] = values[i]
	}
	return out
}

func (h planarHandle) Ellipsoid() geodesy.Ellipsoid { return h.ellipsoid }
func (h planarHandle) Shift() *bursawolf.Params     { return h.shift }
func (h planarHandle) Unit() geodesy.Unit           { return h.model.Unit }

// recorder collects attempts.
type recorder struct {
	mu  sync.Mutex
	got []Attempt
}

func (r *recorder) Record(a Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, a)
}
