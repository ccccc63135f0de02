package geodesy

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Metric selects which angular component Deviation measures.
type Metric int

const (
	MetricCombined Metric = iota
	MetricLongitude
	MetricLatitude
)

// String returns the metric name.
func (m Metric) String() string {
	switch m {
	case MetricLongitude:
		return "longitude"
	case MetricLatitude:
		return "latitude"
	default:
		return "combined"
	}
}

// AngularDistance returns the absolute difference of two angles in degrees,
// taking the shorter way round the circle.
func AngularDistance(a, b float64) float64 {
	return math.Abs(math.Remainder(a-b, 360))
}

// Deviation returns the root-mean-square angular deviation in degrees
// between reference and recovered positions, index by index. Non-finite
// recovered positions make the result +Inf. Mismatched lengths compare the
// common prefix; an empty input yields 0.
func Deviation(reference, recovered []GeodeticPosition, metric Metric) float64 {
	n := min(len(reference), len(recovered))
	if n == 0 {
		return 0
	}

	dLon := make([]float64, n)
	dLat := make([]float64, n)
	for i := 0; i < n; i++ {
		r := recovered[i]
		if math.IsNaN(r.Lat) || math.IsNaN(r.Lon) || math.IsInf(r.Lat, 0) || math.IsInf(r.Lon, 0) {
			return math.Inf(1)
		}
		dLon[i] = AngularDistance(reference[i].Lon, r.Lon)
		dLat[i] = AngularDistance(reference[i].Lat, r.Lat)
	}

	var sum float64
	switch metric {
	case MetricLongitude:
		sum = floats.Dot(dLon, dLon)
	case MetricLatitude:
		sum = floats.Dot(dLat, dLat)
	default:
		sum = floats.Dot(dLon, dLon) + floats.Dot(dLat, dLat)
	}
	return math.Sqrt(sum / float64(n))
}

// Residual is the per-point deviation in degrees.
type Residual struct {
	DLon     float64 `json:"dlon_deg"`
	DLat     float64 `json:"dlat_deg"`
	Combined float64 `json:"combined_deg"`
}

// Residuals returns the signed per-point deviations (recovered - reference).
func Residuals(reference, recovered []GeodeticPosition) []Residual {
	n := min(len(reference), len(recovered))
	out := make([]Residual, n)
	for i := 0; i < n; i++ {
		dLon := math.Remainder(recovered[i].Lon-reference[i].Lon, 360)
		dLat := recovered[i].Lat - reference[i].Lat
		out[i] = Residual{DLon: dLon, DLat: dLat, Combined: math.Hypot(dLon, dLat)}
	}
	return out
}
