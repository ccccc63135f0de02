package fit

import (
	"math"
	"math/rand/v2"

	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
)

// Sampler generates synthetic point pairs around a CRS origin.
type Sampler struct {
	// Span is the half width of the grid in degrees.
	Span float64
	// Spacing between grid nodes in degrees.
	Spacing float64
	// Jitter is the full width of the uniform noise added to each node.
	Jitter float64
	// Tolerance in ECEF metres for the forward/back round trip a point
	// must survive to be kept.
	Tolerance float64
}

// DefaultSampler returns a ±2° grid at 0.2° with ±0.05° jitter.
func DefaultSampler() Sampler {
	return Sampler{Span: 2, Spacing: 0.2, Jitter: 0.1, Tolerance: 1e-6}
}

// Center returns the projection origin of a realized CRS.
func Center(h projection.Handle) geodesy.GeodeticPosition {
	p := h.Parameters()
	pick := func(keys ...string) float64 {
		for _, k := range keys {
			if v, ok := p[k]; ok {
				return v
			}
		}
		return 0
	}
	return geodesy.GeodeticPosition{
		Lat: pick("latitude_of_origin", "latitude_of_center"),
		Lon: pick("central_meridian", "longitude_of_center"),
	}
}

// SamplePoints samples with the default grid.
func SamplePoints(h projection.Handle, center geodesy.GeodeticPosition, rng *rand.Rand) ([]geodesy.GeodeticPosition, []geodesy.Point3D) {
	return DefaultSampler().Sample(h, center, rng)
}

// Sample returns WGS84 positions on a jittered grid around center and their
// coordinates in the CRS. A center latitude of exactly 0 widens the grid to
// all latitudes. The output depends only on the rng state.
func (s Sampler) Sample(h projection.Handle, center geodesy.GeodeticPosition, rng *rand.Rand) ([]geodesy.GeodeticPosition, []geodesy.Point3D) {
	latMin, latMax := center.Lat-s.Span, center.Lat+s.Span
	if center.Lat == 0 {
		latMin, latMax = -89, 89
	}
	latMin, latMax = max(latMin, -89), min(latMax, 89)
	lonMin, lonMax := max(center.Lon-s.Span, -359), min(center.Lon+s.Span, 359)

	var grid []geodesy.GeodeticPosition
	nLat := int(math.Floor((latMax-latMin)/s.Spacing+1e-9)) + 1
	nLon := int(math.Floor((lonMax-lonMin)/s.Spacing+1e-9)) + 1
	for i := range nLat {
		for j := range nLon {
			grid = append(grid, geodesy.GeodeticPosition{
				Lat: latMin + float64(i)*s.Spacing + (rng.Float64()-0.5)*s.Jitter,
				Lon: lonMin + float64(j)*s.Spacing + (rng.Float64()-0.5)*s.Jitter,
			})
		}
	}

	target := h.FromWGS84(grid)
	back := h.ToWGS84(target)
	var (
		keptOrg    []geodesy.GeodeticPosition
		keptTarget []geodesy.Point3D
	)
	for i, p := range grid {
		d := geodesy.ToECEF(p, geodesy.WGS84).Sub(geodesy.ToECEF(back[i], geodesy.WGS84)).Norm()
		if !(d < s.Tolerance) {
			continue
		}
		keptOrg = append(keptOrg, p.Normalized())
		keptTarget = append(keptTarget, target[i])
	}
	return keptOrg, keptTarget
}
