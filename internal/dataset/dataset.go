// Package dataset loads and writes WGS84/target point-pair files.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/litescript/crsfit/internal/geodesy"
)

var (
	ErrTooFewPairs = errors.New("dataset: need at least two point pairs")
	ErrFormat      = errors.New("dataset: unsupported file format")
)

// csvHeader is the column order of CSV files.
var csvHeader = []string{"lat", "lon", "height", "x", "y", "z"}

// Pair is one reference position and its raw target coordinate.
type Pair struct {
	WGS84  geodesy.GeodeticPosition `json:"wgs84" yaml:"wgs84"`
	Target geodesy.Point3D          `json:"target" yaml:"target"`
}

// Dataset is an ordered list of point pairs.
type Dataset struct {
	Pairs []Pair `json:"pairs" yaml:"pairs"`
}

// New builds a dataset from matching slices.
func New(org []geodesy.GeodeticPosition, target []geodesy.Point3D) (*Dataset, error) {
	if len(org) != len(target) {
		return nil, fmt.Errorf("dataset: %d positions but %d targets", len(org), len(target))
	}
	d := &Dataset{Pairs: make([]Pair, len(org))}
	for i := range org {
		d.Pairs[i] = Pair{WGS84: org[i], Target: target[i]}
	}
	return d, nil
}

// Load reads a file, choosing the format by extension: .csv, .yaml/.yml or
// .json.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var d *Dataset
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		d, err = ReadCSV(f)
	case ".yaml", ".yml":
		d, err = ReadYAML(f)
	case ".json":
		d, err = ReadJSON(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// ReadCSV parses lat,lon,height,x,y,z rows. A first row that does not
// parse as numbers is taken as a header. Empty height or z means 0.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	d := &Dataset{}
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("row %d: want %d columns, got %d", row, len(csvHeader), len(rec))
		}
		var v [6]float64
		var perr error
		for i, s := range rec {
			s = strings.TrimSpace(s)
			if s == "" && (i == 2 || i == 5) {
				continue
			}
			if v[i], perr = strconv.ParseFloat(s, 64); perr != nil {
				break
			}
		}
		if perr != nil {
			if row == 1 && len(d.Pairs) == 0 {
				continue
			}
			return nil, fmt.Errorf("row %d: %w", row, perr)
		}
		d.Pairs = append(d.Pairs, Pair{
			WGS84:  geodesy.GeodeticPosition{Lat: v[0], Lon: v[1], Height: v[2]},
			Target: geodesy.Point3D{X: v[3], Y: v[4], Z: v[5]},
		})
	}
	return d, d.Validate()
}

// ReadYAML parses a document with a top-level pairs list.
func ReadYAML(r io.Reader) (*Dataset, error) {
	d := &Dataset{}
	if err := yaml.NewDecoder(r).Decode(d); err != nil && err != io.EOF {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return d, d.Validate()
}

// ReadJSON parses a document with a top-level pairs list.
func ReadJSON(r io.Reader) (*Dataset, error) {
	d := &Dataset{}
	if err := json.NewDecoder(r).Decode(d); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return d, d.Validate()
}

// Validate checks the pair count and that reference positions are on the
// globe.
func (d *Dataset) Validate() error {
	if len(d.Pairs) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewPairs, len(d.Pairs))
	}
	for i, p := range d.Pairs {
		if p.WGS84.Lat < -90 || p.WGS84.Lat > 90 {
			return fmt.Errorf("dataset: pair %d: latitude %v out of range", i+1, p.WGS84.Lat)
		}
	}
	return nil
}

// Len returns the number of pairs.
func (d *Dataset) Len() int { return len(d.Pairs) }

// WGS84 returns the reference positions in order.
func (d *Dataset) WGS84() []geodesy.GeodeticPosition {
	out := make([]geodesy.GeodeticPosition, len(d.Pairs))
	for i, p := range d.Pairs {
		out[i] = p.WGS84
	}
	return out
}

// Targets returns the raw target coordinates in order.
func (d *Dataset) Targets() []geodesy.Point3D {
	out := make([]geodesy.Point3D, len(d.Pairs))
	for i, p := range d.Pairs {
		out[i] = p.Target
	}
	return out
}

// Bound returns the lon/lat bounding box of the reference positions.
func (d *Dataset) Bound() orb.Bound {
	mp := make(orb.MultiPoint, len(d.Pairs))
	for i, p := range d.Pairs {
		mp[i] = orb.Point{p.WGS84.Lon, p.WGS84.Lat}
	}
	return mp.Bound()
}

// WriteCSV writes the pairs with a header row.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, p := range d.Pairs {
		rec := []string{
			f(p.WGS84.Lat), f(p.WGS84.Lon), f(p.WGS84.Height),
			f(p.Target.X), f(p.Target.Y), f(p.Target.Z),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
