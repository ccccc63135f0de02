package geodesy

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// GeodeticPosition is a latitude/longitude/height triple in degrees and
// metres.
type GeodeticPosition struct {
	Lat    float64 `json:"lat" yaml:"lat"`
	Lon    float64 `json:"lon" yaml:"lon"`
	Height float64 `json:"height" yaml:"height"`
}

// Point3D is a raw coordinate in the target system: easting, northing and
// height for projected systems, or lon/lat/height for geographic ones.
type Point3D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// NormalizeLongitude maps a longitude in degrees into (-180, 180].
func NormalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon > 180 {
		lon -= 360
	} else if lon <= -180 {
		lon += 360
	}
	return lon
}

// Normalized returns the position with its longitude in (-180, 180].
func (p GeodeticPosition) Normalized() GeodeticPosition {
	p.Lon = NormalizeLongitude(p.Lon)
	return p
}

// MeanPosition returns the arithmetic mean latitude and longitude of the
// positions, with the longitude normalized.
func MeanPosition(positions []GeodeticPosition) (lat, lon float64) {
	if len(positions) == 0 {
		return 0, 0
	}
	lats := make([]float64, len(positions))
	lons := make([]float64, len(positions))
	for i, p := range positions {
		lats[i] = p.Lat
		lons[i] = p.Lon
	}
	return stat.Mean(lats, nil), NormalizeLongitude(stat.Mean(lons, nil))
}

// MeanPoint returns the mean easting and northing.
func MeanPoint(points []Point3D) (x, y float64) {
	if len(points) == 0 {
		return 0, 0
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return stat.Mean(xs, nil), stat.Mean(ys, nil)
}

// GeodeticExtent estimates the spread of a position cloud in metres: the
// mean planar degree distance to (lat0, lon0) converted along the equator
// of the given ellipsoid.
func GeodeticExtent(positions []GeodeticPosition, lat0, lon0 float64, e Ellipsoid) float64 {
	if len(positions) == 0 {
		return 0
	}
	d := make([]float64, len(positions))
	for i, p := range positions {
		d[i] = math.Hypot(p.Lon-lon0, p.Lat-lat0)
	}
	return 2 * math.Pi * e.SemiMajorAxis / 360 * stat.Mean(d, nil)
}

// PlanarExtent returns the mean planar distance of the points to (x0, y0),
// multiplied by factor to convert to metres.
func PlanarExtent(points []Point3D, x0, y0, factor float64) float64 {
	if len(points) == 0 {
		return 0
	}
	d := make([]float64, len(points))
	for i, p := range points {
		d[i] = math.Hypot(p.X-x0, p.Y-y0)
	}
	return factor * stat.Mean(d, nil)
}
