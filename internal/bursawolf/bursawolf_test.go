package bursawolf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wroge/wgs84"

	"github.com/litescript/crsfit/internal/geodesy"
)

var xian80 = FromTOWGS84([7]float64{
	-736.4243454, 698.0915923, 654.0024722,
	0.6414960749, 6.790489356, -8.247774503,
	-180.8079349,
})

func grid(lat0, lon0 float64) []geodesy.GeodeticPosition {
	var out []geodesy.GeodeticPosition
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			out = append(out, geodesy.GeodeticPosition{
				Lat:    lat0 + 0.4*float64(i),
				Lon:    lon0 + 0.45*float64(j),
				Height: float64(10 * (i + j)),
			})
		}
	}
	return out
}

func TestTOWGS84RoundTrip(t *testing.T) {
	v := xian80.TOWGS84()
	want := [7]float64{-736.4243454, 698.0915923, 654.0024722, 0.6414960749, 6.790489356, -8.247774503, -180.8079349}
	for i := range v {
		assert.InDelta(t, want[i], v[i], 1e-9, "slot %d", i)
	}
	assert.InDelta(t, -180.8079349e-6, xian80.Scale, 1e-15)
	assert.Equal(t, xian80, FromVector(xian80.Vector()))
}

func TestForwardInverse(t *testing.T) {
	for _, p := range grid(34, 110) {
		v := geodesy.ToECEF(p, geodesy.Xian1980)
		x, y, z := xian80.Forward(v.X, v.Y, v.Z)
		bx, by, bz := xian80.Inverse(x, y, z)
		assert.InDelta(t, v.X, bx, 1e-6)
		assert.InDelta(t, v.Y, by, 1e-6)
		assert.InDelta(t, v.Z, bz, 1e-6)
	}
}

func TestIdentity(t *testing.T) {
	var p Params
	assert.True(t, p.IsZero())
	v := geodesy.ECEF{X: 1, Y: 2, Z: 3}
	assert.Equal(t, v, p.Apply(v))
}

// The position-vector convention must agree with the wgs84 package's own
// Helmert transformation so that Params can stand in for it in a datum.
func TestMatchesHelmert(t *testing.T) {
	v := xian80.TOWGS84()
	e := geodesy.Xian1980
	d := wgs84.Helmert(e.A(), e.Fi(), v[0], v[1], v[2], v[3], v[4], v[5], v[6])
	x, y, z := -1.9e6, 5.0e6, 3.5e6
	hx, hy, hz := d.Forward(x, y, z)
	px, py, pz := xian80.Forward(x, y, z)
	assert.InDelta(t, hx, px, 1e-6)
	assert.InDelta(t, hy, py, 1e-6)
	assert.InDelta(t, hz, pz, 1e-6)
}

func TestEstimateRecovers(t *testing.T) {
	tests := []struct {
		name string
		want Params
	}{
		{"xian 1980", xian80},
		{"translation only", Params{DX: 100, DY: -50, DZ: 25}},
		{"identity", Params{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := geodesy.ToECEFAll(grid(34, 110), geodesy.Xian1980)
			source := tt.want.ApplyAll(target)

			got, err := Estimate(source, target)
			require.NoError(t, err)

			for i, v := range target {
				d := got.Apply(v).Sub(source[i]).Norm()
				assert.Less(t, d, 1e-3, "point %d", i)
			}
			back := geodesy.FromECEFAll(got.ApplyAll(target), geodesy.WGS84)
			want := geodesy.FromECEFAll(source, geodesy.WGS84)
			assert.Less(t, geodesy.Deviation(want, back, geodesy.MetricCombined), 1e-6)
			assert.InDelta(t, tt.want.Scale, got.Scale, 1e-9)
			assert.InDelta(t, tt.want.RZ, got.RZ, 1e-9)
		})
	}
}

func TestEstimateErrors(t *testing.T) {
	two := []geodesy.ECEF{{X: 1}, {X: 2}}
	_, err := Estimate(two, two)
	assert.True(t, errors.Is(err, ErrInsufficientCorrespondences))

	three := []geodesy.ECEF{{X: 1}, {X: 2}, {X: 3}}
	_, err = Estimate(three, two)
	assert.True(t, errors.Is(err, ErrInsufficientCorrespondences))

	var line []geodesy.ECEF
	for i := 0; i < 6; i++ {
		line = append(line, geodesy.ECEF{X: 6.37e6 + float64(i)*1000, Y: float64(i) * 500, Z: float64(i) * 250})
	}
	_, err = Estimate(line, line)
	assert.True(t, errors.Is(err, ErrDegenerateGeometry), "got %v", err)

	same := []geodesy.ECEF{{X: 1}, {X: 1}, {X: 1}}
	_, err = Estimate(same, same)
	assert.True(t, errors.Is(err, ErrDegenerateGeometry))
}

func TestString(t *testing.T) {
	p := Params{DX: 1, DY: 2, DZ: 3, Scale: 1e-6}
	assert.Equal(t, "TOWGS84[1.0000,2.0000,3.0000,0.000000,0.000000,0.000000,1.000000]", p.String())
}
