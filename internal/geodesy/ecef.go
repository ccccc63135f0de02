package geodesy

import (
	"math"

	"github.com/wroge/wgs84"
)

// ECEF is an Earth-Centered, Earth-Fixed Cartesian coordinate in metres.
type ECEF struct {
	X, Y, Z float64
}

// Norm returns the magnitude of the vector.
func (v ECEF) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Scale returns the vector scaled by a factor.
func (v ECEF) Scale(s float64) ECEF {
	return ECEF{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Add returns the sum of two vectors.
func (v ECEF) Add(u ECEF) ECEF {
	return ECEF{X: v.X + u.X, Y: v.Y + u.Y, Z: v.Z + u.Z}
}

// Sub returns the difference of two vectors.
func (v ECEF) Sub(u ECEF) ECEF {
	return ECEF{X: v.X - u.X, Y: v.Y - u.Y, Z: v.Z - u.Z}
}

// Dot returns the scalar product.
func (v ECEF) Dot(u ECEF) float64 {
	return v.X*u.X + v.Y*u.Y + v.Z*u.Z
}

// ToECEF converts a geodetic position on the ellipsoid to ECEF.
func ToECEF(p GeodeticPosition, e Ellipsoid) ECEF {
	phi := p.Lat * math.Pi / 180
	lambda := p.Lon * math.Pi / 180
	sinPhi, cosPhi := math.Sincos(phi)
	sinLambda, cosLambda := math.Sincos(lambda)

	e2 := e.E2()
	n := e.SemiMajorAxis / math.Sqrt(1-e2*sinPhi*sinPhi)

	return ECEF{
		X: (n + p.Height) * cosPhi * cosLambda,
		Y: (n + p.Height) * cosPhi * sinLambda,
		Z: (n*(1-e2) + p.Height) * sinPhi,
	}
}

// ToECEFAll converts every position, preserving order.
func ToECEFAll(positions []GeodeticPosition, e Ellipsoid) []ECEF {
	out := make([]ECEF, len(positions))
	for i, p := range positions {
		out[i] = ToECEF(p, e)
	}
	return out
}

// FromECEF converts an ECEF coordinate back to a geodetic position on the
// ellipsoid.
func FromECEF(v ECEF, e Ellipsoid) GeodeticPosition {
	geographic := wgs84.Datum{Spheroid: e}.LonLat()
	lon, lat, h := geographic.FromWGS84(v.X, v.Y, v.Z)
	return GeodeticPosition{Lat: lat, Lon: NormalizeLongitude(lon), Height: h}
}

// FromECEFAll converts every coordinate, preserving order.
func FromECEFAll(vs []ECEF, e Ellipsoid) []GeodeticPosition {
	out := make([]GeodeticPosition, len(vs))
	for i, v := range vs {
		out[i] = FromECEF(v, e)
	}
	return out
}
