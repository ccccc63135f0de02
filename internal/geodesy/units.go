package geodesy

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

//go:embed data/*.csv
var tables embed.FS

// Unit is a unit of measure with its conversion factor to the SI base unit
// of its kind (metre, radian or unity).
type Unit struct {
	Code   int     `json:"code"`
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	Factor float64 `json:"factor"`
}

// Linear units used by the fitter.
var (
	Metre        = Unit{Code: 9001, Name: "metre", Kind: "length", Factor: 1}
	Foot         = Unit{Code: 9002, Name: "foot", Kind: "length", Factor: 0.3048}
	USSurveyFoot = Unit{Code: 9003, Name: "US survey foot", Kind: "length", Factor: 12 / 39.37}
)

// String formats the unit as "EPSG:<code> - <Name>".
func (u Unit) String() string {
	return display(u.Code, u.Name)
}

// IsZero reports whether the unit is unset.
func (u Unit) IsZero() bool {
	return u.Code == 0 && u.Factor == 0
}

// FactorOrOne returns the conversion factor, treating an unset unit as metre.
func (u Unit) FactorOrOne() float64 {
	if u.Factor == 0 {
		return 1
	}
	return u.Factor
}

// PrimeMeridian is a prime meridian with its longitude east of Greenwich in
// degrees.
type PrimeMeridian struct {
	Code      int     `json:"code"`
	Name      string  `json:"name"`
	Longitude float64 `json:"greenwich_longitude"`
}

// String formats the meridian as "EPSG:<code> - <Name>".
func (p PrimeMeridian) String() string {
	return display(p.Code, p.Name)
}

// Greenwich is the default prime meridian.
var Greenwich = PrimeMeridian{Code: 8901, Name: "Greenwich"}

type catalog struct {
	units     []Unit
	meridians []PrimeMeridian
	err       error
}

var (
	catalogOnce sync.Once
	loaded      catalog
)

func load() catalog {
	catalogOnce.Do(func() {
		f, err := tables.Open("data/units.csv")
		if err != nil {
			loaded.err = fmt.Errorf("open units table: %w", err)
			return
		}
		defer f.Close()
		if loaded.units, err = ParseUnits(f); err != nil {
			loaded.err = err
			return
		}

		g, err := tables.Open("data/prime_meridians.csv")
		if err != nil {
			loaded.err = fmt.Errorf("open prime meridian table: %w", err)
			return
		}
		defer g.Close()
		loaded.meridians, loaded.err = ParsePrimeMeridians(g)
	})
	return loaded
}

// Units returns the embedded unit-of-measure table.
func Units() ([]Unit, error) {
	c := load()
	return c.units, c.err
}

// PrimeMeridians returns the embedded prime-meridian table.
func PrimeMeridians() ([]PrimeMeridian, error) {
	c := load()
	return c.meridians, c.err
}

// LookupUnit finds a unit by EPSG code, name or "EPSG:<code> - <Name>".
func LookupUnit(s string) (Unit, bool) {
	units, err := Units()
	if err != nil {
		return Unit{}, false
	}
	code, name := splitDisplay(s)
	for _, u := range units {
		if (code != 0 && u.Code == code) || sameName(u.Name, name) {
			return u, true
		}
	}
	return Unit{}, false
}

// LookupPrimeMeridian finds a prime meridian by EPSG code or name.
func LookupPrimeMeridian(s string) (PrimeMeridian, bool) {
	meridians, err := PrimeMeridians()
	if err != nil {
		return PrimeMeridian{}, false
	}
	code, name := splitDisplay(s)
	for _, p := range meridians {
		if (code != 0 && p.Code == code) || sameName(p.Name, name) {
			return p, true
		}
	}
	return PrimeMeridian{}, false
}

// ParseUnits reads an EPSG-style unit table:
// uom_code,unit_of_meas_name,unit_of_meas_type,target_uom_code,factor_b,factor_c.
// The header row is skipped; rows with an empty factor are ignored.
func ParseUnits(r io.Reader) ([]Unit, error) {
	rows, err := readTable(r, 6)
	if err != nil {
		return nil, fmt.Errorf("read units: %w", err)
	}
	var units []Unit
	for i, row := range rows {
		code, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("units row %d: code %q: %w", i+2, row[0], err)
		}
		if row[4] == "" || row[5] == "" {
			continue
		}
		b, errB := strconv.ParseFloat(row[4], 64)
		c, errC := strconv.ParseFloat(row[5], 64)
		if errB != nil || errC != nil || c == 0 {
			return nil, fmt.Errorf("units row %d: bad factor %q/%q", i+2, row[4], row[5])
		}
		units = append(units, Unit{Code: code, Name: row[1], Kind: row[2], Factor: b / c})
	}
	return units, nil
}

// ParsePrimeMeridians reads
// prime_meridian_code,prime_meridian_name,greenwich_longitude,uom_code rows.
// Longitudes are expected in degrees (uom 9102).
func ParsePrimeMeridians(r io.Reader) ([]PrimeMeridian, error) {
	rows, err := readTable(r, 4)
	if err != nil {
		return nil, fmt.Errorf("read prime meridians: %w", err)
	}
	out := make([]PrimeMeridian, 0, len(rows))
	for i, row := range rows {
		code, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("prime meridian row %d: code %q: %w", i+2, row[0], err)
		}
		lon, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("prime meridian row %d: longitude %q: %w", i+2, row[2], err)
		}
		if row[3] != "9102" {
			return nil, fmt.Errorf("prime meridian row %d: unsupported unit %s", i+2, row[3])
		}
		out = append(out, PrimeMeridian{Code: code, Name: row[1], Longitude: lon})
	}
	return out, nil
}

func readTable(r io.Reader, columns int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = columns
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		rows = rows[1:]
	}
	return rows, nil
}

// splitDisplay parses "EPSG:<code> - <Name>", "<code>" or "<Name>".
func splitDisplay(s string) (code int, name string) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "EPSG:"); ok {
		head, tail, _ := strings.Cut(rest, " - ")
		code, _ = strconv.Atoi(strings.TrimSpace(head))
		return code, strings.TrimSpace(tail)
	}
	if c, err := strconv.Atoi(s); err == nil {
		return c, ""
	}
	return 0, s
}

// sameName compares names ignoring case and spaces, so "WGS84" matches
// "WGS 84".
func sameName(a, b string) bool {
	if b == "" {
		return false
	}
	strip := func(s string) string { return strings.ReplaceAll(s, " ", "") }
	return strings.EqualFold(strip(a), strip(b))
}
