package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litescript/crsfit/internal/bursawolf"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
)

var positions = []geodesy.GeodeticPosition{
	{Lat: 40.02, Lon: 111.35, Height: 1000},
	{Lat: 40.03, Lon: 111.36, Height: 1010},
	{Lat: 40.01, Lon: 111.37, Height: 990},
	{Lat: 40.00, Lon: 111.34, Height: 1005},
	{Lat: 40.04, Lon: 111.33, Height: 998},
	{Lat: 40.025, Lon: 111.355, Height: 1002},
}

func model(t *testing.T, typ projection.Type, params ...float64) projection.Model {
	t.Helper()
	m, err := projection.NewWithParams(typ, params)
	require.NoError(t, err)
	return m
}

func TestRoundTrip(t *testing.T) {
	xian := bursawolf.FromTOWGS84([7]float64{-736.4243454, 698.0915923, 654.0024722, 0.6414960749, 6.790489356, -8.247774503, -180.8079349})

	tests := []struct {
		name  string
		model projection.Model
		e     geodesy.Ellipsoid
		shift *bursawolf.Params
	}{
		{"tm", model(t, projection.TransverseMercator, 0, 111, 1, 500000, 0), geodesy.WGS84, nil},
		{"tm xian shifted", model(t, projection.TransverseMercator, 0, 111, 1, 500000, 0), geodesy.Xian1980, &xian},
		{"tmso", model(t, projection.TransverseMercatorSouthOrientated, 0, 111, 1, 0, 0), geodesy.GRS80, nil},
		{"lcc1sp", model(t, projection.LambertConicConformal1SP, 40, 111, 0.9999, 1000000, 200000), geodesy.WGS84, nil},
		{"lcc2sp", model(t, projection.LambertConicConformal2SP, 39, 111, 1, 500000, 0, 41, 38), geodesy.WGS84, nil},
		{"albers", model(t, projection.AlbersConicEqualArea, 39, 111, 1, 0, 0, 41, 38), geodesy.Clarke1866, nil},
		{"laea", model(t, projection.LambertAzimuthalEqualArea, 40, 111, 1, 4321000, 3210000), geodesy.GRS80, nil},
		{"none", projection.New(projection.None), geodesy.WGS84, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := New().Realize(tt.model, tt.e, tt.shift)
			require.NoError(t, err)

			back := h.ToWGS84(h.FromWGS84(positions))
			assert.Less(t, geodesy.Deviation(positions, back, geodesy.MetricCombined), 5e-6)
			for i := range positions {
				assert.InDelta(t, positions[i].Height, back[i].Height, 1e-2)
			}
		})
	}
}

func TestNoneIsIdentity(t *testing.T) {
	h, err := New().Realize(projection.New(projection.None), geodesy.WGS84, nil)
	require.NoError(t, err)
	raw := []geodesy.Point3D{{X: 111.35, Y: 40.02, Z: 1000}}
	got := h.ToWGS84(raw)
	assert.InDelta(t, 40.02, got[0].Lat, 1e-10)
	assert.InDelta(t, 111.35, got[0].Lon, 1e-10)
	assert.Empty(t, h.ProjectionName())
}

func TestTransverseMercatorValues(t *testing.T) {
	h, err := New().Realize(model(t, projection.TransverseMercator, 0, 111, 1, 500000, 0), geodesy.WGS84, nil)
	require.NoError(t, err)

	on := h.FromWGS84([]geodesy.GeodeticPosition{{Lat: 0, Lon: 111}})
	assert.InDelta(t, 500000, on[0].X, 1e-6)
	assert.InDelta(t, 0, on[0].Y, 1e-6)

	north := h.FromWGS84([]geodesy.GeodeticPosition{{Lat: 40, Lon: 111}})
	assert.InDelta(t, 500000, north[0].X, 1e-6)
	assert.InDelta(t, 4429529.03, north[0].Y, 0.5)
}

func TestSouthOrientated(t *testing.T) {
	tm, err := New().Realize(model(t, projection.TransverseMercator, 0, 111, 1, 0, 0), geodesy.WGS84, nil)
	require.NoError(t, err)
	tmso, err := New().Realize(model(t, projection.TransverseMercatorSouthOrientated, 0, 111, 1, 0, 0), geodesy.WGS84, nil)
	require.NoError(t, err)

	a := tm.FromWGS84(positions)
	b := tmso.FromWGS84(positions)
	for i := range a {
		assert.InDelta(t, -a[i].X, b[i].X, 1e-6)
		assert.InDelta(t, -a[i].Y, b[i].Y, 1e-6)
	}
}

func TestUnits(t *testing.T) {
	m := model(t, projection.TransverseMercator, 0, 111, 1, 500000/0.3048, 0)
	m.Unit = geodesy.Foot
	ft, err := New().Realize(m, geodesy.WGS84, nil)
	require.NoError(t, err)
	metre, err := New().Realize(model(t, projection.TransverseMercator, 0, 111, 1, 500000, 0), geodesy.WGS84, nil)
	require.NoError(t, err)

	a := metre.FromWGS84(positions)
	b := ft.FromWGS84(positions)
	for i := range a {
		assert.InDelta(t, a[i].X/0.3048, b[i].X, 1e-5)
		assert.InDelta(t, a[i].Y/0.3048, b[i].Y, 1e-5)
	}
	assert.Equal(t, geodesy.Foot, ft.Unit())
}

func TestToGeographicIgnoresShift(t *testing.T) {
	shift := bursawolf.Params{DX: 100, DY: -50, DZ: 20}
	m := model(t, projection.TransverseMercator, 0, 111, 1, 500000, 0)
	shifted, err := New().Realize(m, geodesy.Xian1980, &shift)
	require.NoError(t, err)
	plain, err := New().Realize(m, geodesy.Xian1980, nil)
	require.NoError(t, err)

	raw := plain.FromWGS84(positions)
	a := shifted.ToGeographic(raw)
	b := plain.ToGeographic(raw)
	assert.Less(t, geodesy.Deviation(a, b, geodesy.MetricCombined), 1e-12)
	assert.Greater(t, geodesy.Deviation(positions, shifted.ToWGS84(raw), geodesy.MetricCombined), 1e-4)
	require.NotNil(t, shifted.Shift())
	assert.Equal(t, shift, *shifted.Shift())
	assert.Nil(t, plain.Shift())
}

func TestParameters(t *testing.T) {
	h, err := New().Realize(model(t, projection.TransverseMercator, 0, 111, 1, 500000, 0), geodesy.WGS84, nil)
	require.NoError(t, err)
	assert.Equal(t, "Transverse_Mercator", h.ProjectionName())
	assert.Equal(t, map[string]float64{
		"latitude_of_origin": 0,
		"central_meridian":   111,
		"scale_factor":       1,
		"false_easting":      500000,
		"false_northing":     0,
	}, h.Parameters())

	back, err := projection.FromRealized(h)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 111, 1, 500000, 0}, back.Params())
}

func TestRealizeErrors(t *testing.T) {
	_, err := New().Realize(projection.New(projection.HotineObliqueMercatorA), geodesy.WGS84, nil)
	assert.True(t, errors.Is(err, projection.ErrUnsupportedProjection))

	_, err = New().Realize(projection.New(projection.TransverseMercator), geodesy.Ellipsoid{}, nil)
	assert.True(t, errors.Is(err, ErrInvalidModel))

	lcc := model(t, projection.LambertConicConformal1SP, 40, 111, 0, 0, 0)
	_, err = New().Realize(lcc, geodesy.WGS84, nil)
	assert.True(t, errors.Is(err, ErrInvalidModel))

	assert.True(t, Supports(projection.None))
	assert.False(t, Supports(projection.Krovak))
}
