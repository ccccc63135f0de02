package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/wroge/wgs84"

	"github.com/litescript/crsfit/internal/bursawolf"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
)

// ErrUnknownCode is returned by Lookup for codes outside the catalogue.
var ErrUnknownCode = errors.New("engine: unknown EPSG code")

// repository supplies the areas of use.
var repository = wgs84.EPSG()

// Datum shifts of the catalogued datums (TOWGS84 convention).
var (
	osgb36   = bursawolf.FromTOWGS84([7]float64{446.448, -125.157, 542.06, 0.15, 0.247, 0.842, -20.489})
	mgi      = bursawolf.FromTOWGS84([7]float64{577.326, 90.129, 463.919, 5.137, 1.474, 5.297, 2.4232})
	dhdn2001 = bursawolf.FromTOWGS84([7]float64{598.1, 73.7, 418.2, 0.202, 0.045, -2.455, 6.7})
)

type entry struct {
	name      string
	model     projection.Model
	ellipsoid geodesy.Ellipsoid
	shift     *bursawolf.Params
}

// catalog holds the repository's systems the engine can realize. Web
// Mercator and geocentric systems are left out, as is EPSG:6414 whose
// repository definition does not follow the published parameters.
var catalog = buildCatalog()

func buildCatalog() map[int]entry {
	c := map[int]entry{}
	geo := func(code int, name string, e geodesy.Ellipsoid, shift *bursawolf.Params) {
		c[code] = entry{name: name, model: projection.New(projection.None), ellipsoid: e, shift: shift}
	}
	add := func(code int, name string, t projection.Type, e geodesy.Ellipsoid, shift *bursawolf.Params, params ...float64) {
		m, err := projection.NewWithParams(t, params)
		if err != nil {
			panic(fmt.Sprintf("catalog EPSG:%d: %v", code, err))
		}
		c[code] = entry{name: name, model: m, ellipsoid: e, shift: shift}
	}
	tm := projection.TransverseMercator
	lcc := projection.LambertConicConformal2SP

	geo(4326, "WGS 84", geodesy.WGS84, nil)
	geo(4258, "ETRS89", geodesy.GRS80, nil)
	geo(4171, "RGF93", geodesy.GRS80, nil)
	geo(4269, "NAD83", geodesy.GRS80, nil)
	geo(4314, "DHDN", geodesy.Bessel1841, &dhdn2001)
	geo(4277, "OSGB 1936", geodesy.Airy1830, &osgb36)

	for z := 1; z <= 60; z++ {
		lon := float64(6*z - 183)
		add(32600+z, fmt.Sprintf("WGS 84 / UTM zone %dN", z), tm, geodesy.WGS84, nil, 0, lon, 0.9996, 500000, 0)
		add(32700+z, fmt.Sprintf("WGS 84 / UTM zone %dS", z), tm, geodesy.WGS84, nil, 0, lon, 0.9996, 500000, 10000000)
	}
	for z := 28; z <= 38; z++ {
		add(25800+z, fmt.Sprintf("ETRS89 / UTM zone %dN", z), tm, geodesy.GRS80, nil, 0, float64(6*z-183), 0.9996, 500000, 0)
	}
	for z := 2; z <= 5; z++ {
		add(31464+z, fmt.Sprintf("DHDN / 3-degree Gauss-Kruger zone %d", z), tm, geodesy.Bessel1841, &dhdn2001,
			0, float64(3*z), 1, float64(z)*1000000+500000, 0)
	}
	for lat := 42; lat <= 50; lat++ {
		add(3900+lat, fmt.Sprintf("RGF93 / CC%d", lat), lcc, geodesy.GRS80, nil,
			float64(lat), 3, 1, 1700000, 2200000+float64(lat-43)*1000000, float64(lat)-0.75, float64(lat)+0.75)
	}

	const austria = 13.33333333333333
	add(3416, "ETRS89 / Austria Lambert", lcc, geodesy.GRS80, nil, 47.5, austria, 1, 400000, 400000, 49, 46)
	add(31287, "MGI / Austria Lambert", lcc, geodesy.Bessel1841, &mgi, 47.5, austria, 1, 400000, 400000, 49, 46)
	for i, lon := range []float64{10.33333333333333, austria, 16.33333333333333} {
		fe := 150000 + 300000*float64(i)
		add(31284+i, fmt.Sprintf("MGI / Austria M%d", 28+3*i), tm, geodesy.Bessel1841, &mgi, 0, lon, 1, fe, 0)
		add(31257+i, fmt.Sprintf("MGI / Austria GK M%d", 28+3*i), tm, geodesy.Bessel1841, &mgi, 0, lon, 1, fe, -5000000)
	}
	add(3035, "ETRS89 / LAEA Europe", projection.LambertAzimuthalEqualArea, geodesy.GRS80, nil, 52, 10, 1, 4321000, 3210000)
	add(27700, "OSGB 1936 / British National Grid", tm, geodesy.Airy1830, &osgb36, 49, -2, 0.9996012717, 400000, -100000)
	add(2154, "RGF93 / Lambert-93", lcc, geodesy.GRS80, nil, 46.5, 3, 1, 700000, 6600000, 49, 44)
	add(6355, "NAD83(2011) / Alabama East", tm, geodesy.GRS80, nil, 30.5, -85.83333333333333, 0.99996, 200000, 0)
	add(6356, "NAD83(2011) / Alabama West", tm, geodesy.GRS80, nil, 30, -87.5, 0.999933333, 600000, 0)
	return c
}

// CodesCover returns the catalogued codes whose area of use contains the
// WGS84 position, in ascending order.
func (Engine) CodesCover(lon, lat float64) []int {
	var out []int
	for _, code := range repository.CodesCover(lon, lat) {
		if _, ok := catalog[code]; ok {
			out = append(out, code)
		}
	}
	slices.Sort(out)
	return out
}

// Lookup realizes a catalogued system.
func (e Engine) Lookup(code int) (projection.Reference, error) {
	c, ok := catalog[code]
	if !ok {
		return projection.Reference{}, fmt.Errorf("%w: %d", ErrUnknownCode, code)
	}
	h, err := c.model.Realize(e, c.ellipsoid, c.shift)
	if err != nil {
		return projection.Reference{}, fmt.Errorf("EPSG:%d: %w", code, err)
	}
	return projection.Reference{Code: code, Name: c.name, Handle: h}, nil
}
