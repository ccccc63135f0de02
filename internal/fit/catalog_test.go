package fit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litescript/crsfit/internal/engine"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
)

type catalogEntry struct {
	model     projection.Model
	ellipsoid geodesy.Ellipsoid
}

// catalogEngine is a planarEngine with a small catalogue covering the
// whole globe.
type catalogEngine struct {
	planarEngine
	entries map[int]catalogEntry
}

func (c catalogEngine) CodesCover(lon, lat float64) []int {
	codes := make([]int, 0, len(c.entries))
	for code := range c.entries {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

func (c catalogEngine) Lookup(code int) (projection.Reference, error) {
	e, ok := c.entries[code]
	if !ok {
		return projection.Reference{}, fmt.Errorf("no code %d", code)
	}
	h, err := e.model.Realize(c, e.ellipsoid, nil)
	if err != nil {
		return projection.Reference{}, err
	}
	return projection.Reference{Code: code, Name: fmt.Sprintf("test %d", code), Handle: h}, nil
}

// albersCatalog returns an engine that cannot fit any searched method but
// lists the Albers system the test data comes from as code 200.
func albersCatalog(t *testing.T) (catalogEngine, projection.Model) {
	t.Helper()
	truth := mustModel(t, projection.AlbersConicEqualArea, 34, 111, 1, 500000, 0, 35, 33)
	off := mustModel(t, projection.AlbersConicEqualArea, 34, 112, 1, 500000, 0, 35, 33)

	unsupported := map[projection.Type]bool{projection.TransverseMercator: true}
	for _, typ := range secondary {
		unsupported[typ] = true
	}
	return catalogEngine{
		planarEngine: planarEngine{unsupported: unsupported},
		entries: map[int]catalogEntry{
			100: {off, geodesy.WGS84},
			200: {truth, geodesy.WGS84},
			300: {truth, geodesy.GRS80},
		},
	}, truth
}

func TestDetectFallsBackToCatalog(t *testing.T) {
	eng, truth := albersCatalog(t)
	f, _ := pairs(t, eng, truth, geodesy.WGS84, nil, Options{})

	wgs, metre := geodesy.WGS84, geodesy.Metre
	res, err := f.Detect(context.Background(), Request{Type: projection.Automatic, Ellipsoid: &wgs, Unit: &metre})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Code)
	assert.Equal(t, "test 200", res.Name)
	assert.Equal(t, projection.AlbersConicEqualArea, res.Model.Type)
	assert.Less(t, res.Error, 1e-9)

	codes := map[int]bool{}
	for _, a := range f.Attempts() {
		if a.Code != 0 {
			codes[a.Code] = true
		}
	}
	assert.Equal(t, map[int]bool{100: true, 200: true}, codes, "GRS80 entry is filtered by the requested ellipsoid")
}

func TestDetectSkipsCatalogWhenMethodGiven(t *testing.T) {
	eng, truth := albersCatalog(t)
	f, _ := pairs(t, eng, truth, geodesy.WGS84, nil, Options{})

	wgs, metre := geodesy.WGS84, geodesy.Metre
	res, err := f.Detect(context.Background(), Request{Type: projection.None, Ellipsoid: &wgs, Unit: &metre})
	require.NoError(t, err)
	assert.Zero(t, res.Code)
	assert.Greater(t, res.Error, 1.0)
}

func TestSearchCatalogFilters(t *testing.T) {
	eng, truth := albersCatalog(t)
	f, _ := pairs(t, eng, truth, geodesy.WGS84, nil, Options{})

	grs := geodesy.GRS80
	res, err := f.searchCatalog(context.Background(), Request{Type: projection.Automatic, Ellipsoid: &grs})
	require.NoError(t, err)
	assert.Equal(t, 300, res.Code)
	assert.True(t, res.Ellipsoid.Equal(geodesy.GRS80))

	foot := geodesy.Foot
	_, err = f.searchCatalog(context.Background(), Request{Type: projection.Automatic, Unit: &foot})
	assert.True(t, errors.Is(err, ErrNoCandidate))
}

func TestSearchCatalogRanks(t *testing.T) {
	eng, truth := albersCatalog(t)
	f, _ := pairs(t, eng, truth, geodesy.WGS84, nil, Options{})

	res, err := f.searchCatalog(context.Background(), Request{Type: projection.Automatic})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Code)

	var off Attempt
	for _, a := range f.Attempts() {
		if a.Code == 100 {
			off = a
		}
	}
	assert.Greater(t, off.Error, res.Error)
}

func TestSearchCatalogNeedsCatalog(t *testing.T) {
	f, _ := pairs(t, planarEngine{}, mustModel(t, projection.TransverseMercator, 0, 111, 1, 500000, 0), geodesy.WGS84, nil, Options{})
	_, err := f.searchCatalog(context.Background(), Request{Type: projection.Automatic})
	assert.True(t, errors.Is(err, ErrNoCatalog))
}

// Gauss-Kruger data on the DHDN datum is identified from the real
// engine's catalogue.
func TestSearchCatalogFindsGaussKruger(t *testing.T) {
	eng := engine.New()
	ref, err := eng.Lookup(31467)
	require.NoError(t, err)

	org := site(49.5, 8.5)
	f, err := New(eng, org, ref.Handle.FromWGS84(org), Options{})
	require.NoError(t, err)

	res, err := f.searchCatalog(context.Background(), Request{Type: projection.Automatic})
	require.NoError(t, err)
	assert.Equal(t, 31467, res.Code)
	assert.Less(t, res.Error, 5e-6)
	assert.True(t, res.Ellipsoid.Equal(geodesy.Bessel1841))
}
