// Package projection describes map-projection methods and the parameter
// records that configure them.
package projection

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Type is a map-projection method.
type Type int

const (
	None Type = iota
	TransverseMercator
	TransverseMercatorSouthOrientated
	Mercator
	Mercator1SP
	Mercator2SP
	LambertConicConformal1SP
	LambertConicConformal2SP
	ObliqueStereographic
	PolarStereographic
	HotineObliqueMercatorA
	HotineObliqueMercatorB
	AlbersConicEqualArea
	Polyconic
	CassiniSoldner
	LambertAzimuthalEqualArea
	TunisiaMiningGrid
	Krovak
	Automatic
	Unknown
)

// Slot identifies one semantic projection parameter.
type Slot int

const (
	SlotLatitude Slot = iota
	SlotLongitude
	SlotScale
	SlotFalseEasting
	SlotFalseNorthing
	SlotAzimuth // azimuth, or first standard parallel for conics
	SlotSkew    // skew angle, or second standard parallel for conics
	slotCount
)

func (s Slot) String() string {
	switch s {
	case SlotLatitude:
		return "latitude_origin"
	case SlotLongitude:
		return "longitude_origin"
	case SlotScale:
		return "scale_factor"
	case SlotFalseEasting:
		return "false_easting"
	case SlotFalseNorthing:
		return "false_northing"
	case SlotAzimuth:
		return "azimuth_or_std_parallel_1"
	case SlotSkew:
		return "skew_or_std_parallel_2"
	}
	return "slot(" + strconv.Itoa(int(s)) + ")"
}

// IsLinear reports whether the slot holds a length in the model unit.
func (s Slot) IsLinear() bool {
	return s == SlotFalseEasting || s == SlotFalseNorthing
}

type param struct {
	slot  Slot
	code  int    // EPSG parameter code, 0 for a fixed slot
	wkt   string // WKT / OGC parameter name
	fixed bool   // always 1
}

type typeInfo struct {
	display   string
	native    string
	method    int
	params    []param
	conformal bool
}

var (
	lat      = param{slot: SlotLatitude, code: 8801, wkt: "latitude_of_origin"}
	lon      = param{slot: SlotLongitude, code: 8802, wkt: "central_meridian"}
	scale    = param{slot: SlotScale, code: 8805, wkt: "scale_factor"}
	unity    = param{slot: SlotScale, wkt: "scale_factor", fixed: true}
	fe       = param{slot: SlotFalseEasting, code: 8806, wkt: "false_easting"}
	fn       = param{slot: SlotFalseNorthing, code: 8807, wkt: "false_northing"}
	centLat  = param{slot: SlotLatitude, code: 8811, wkt: "latitude_of_center"}
	centLon  = param{slot: SlotLongitude, code: 8812, wkt: "longitude_of_center"}
	lineK    = param{slot: SlotScale, code: 8815, wkt: "scale_factor"}
	azimuth  = param{slot: SlotAzimuth, code: 8813, wkt: "azimuth"}
	skew     = param{slot: SlotSkew, code: 8814, wkt: "rectified_grid_angle"}
	centE    = param{slot: SlotFalseEasting, code: 8816, wkt: "false_easting"}
	centN    = param{slot: SlotFalseNorthing, code: 8817, wkt: "false_northing"}
	falseLat = param{slot: SlotLatitude, code: 8821, wkt: "latitude_of_origin"}
	falseLon = param{slot: SlotLongitude, code: 8822, wkt: "central_meridian"}
	sp1      = param{slot: SlotAzimuth, code: 8823, wkt: "standard_parallel_1"}
	sp2      = param{slot: SlotSkew, code: 8824, wkt: "standard_parallel_2"}
	falseE   = param{slot: SlotFalseEasting, code: 8826, wkt: "false_easting"}
	falseN   = param{slot: SlotFalseNorthing, code: 8827, wkt: "false_northing"}

	natural   = []param{lat, lon, scale, fe, fn}
	fixedUnit = []param{lat, lon, unity, fe, fn}
)

var catalog = [...]typeInfo{
	None:                              {display: "None"},
	TransverseMercator:                {display: "Transverse Mercator", native: "Transverse_Mercator", method: 9807, params: natural, conformal: true},
	TransverseMercatorSouthOrientated: {display: "Transverse Mercator (south orientated)", native: "Transverse_Mercator_South_Orientated", method: 9808, params: natural, conformal: true},
	Mercator:                          {display: "Mercator", native: "Mercator_1SP", method: 9804, params: []param{lat, lon, unity, fe, fn}},
	Mercator1SP:                       {display: "Mercator1SP", native: "Mercator_1SP", method: 9804, params: []param{lon, {slot: SlotScale, code: 8805, wkt: "scale_factor", fixed: true}, fe, fn}},
	Mercator2SP:                       {display: "Mercator2SP", native: "Mercator_2SP", method: 9805, params: []param{{slot: SlotLatitude, code: 8823, wkt: "standard_parallel_1"}, lon, fe, fn}},
	LambertConicConformal1SP:          {display: "Lambert Conic Conformal (1SP)", native: "Lambert_Conformal_Conic_1SP", method: 9801, params: natural, conformal: true},
	LambertConicConformal2SP:          {display: "Lambert Conic Conformal (2SP)", native: "Lambert_Conformal_Conic_2SP", method: 9802, params: []param{falseLat, falseLon, unity, falseE, falseN, sp1, sp2}},
	ObliqueStereographic:              {display: "Oblique Stereographic", native: "Oblique_Stereographic", method: 9809, params: natural, conformal: true},
	PolarStereographic:                {display: "Polar Stereographic", native: "Polar_Stereographic", method: 9810, params: natural},
	HotineObliqueMercatorA:            {display: "Hotine Oblique Mercator", native: "Hotine_Oblique_Mercator", method: 9812, params: []param{centLat, centLon, lineK, fe, fn, azimuth, skew}, conformal: true},
	HotineObliqueMercatorB:            {display: "Hotine Oblique Mercator Azimuth Center", native: "Hotine_Oblique_Mercator_Azimuth_Center", method: 9815, params: []param{centLat, centLon, lineK, centE, centN, azimuth, skew}},
	AlbersConicEqualArea: {display: "Albers Conic Equal Area", native: "Albers_Conic_Equal_Area", method: 9822, params: []param{
		{slot: SlotLatitude, code: 8821, wkt: "latitude_of_center"},
		{slot: SlotLongitude, code: 8822, wkt: "longitude_of_center"},
		unity, falseE, falseN, sp1, sp2,
	}},
	Polyconic:                 {display: "Polyconic", native: "Polyconic", method: 9818, params: fixedUnit},
	CassiniSoldner:            {display: "Cassini Soldner", native: "Cassini_Soldner", method: 9806, params: fixedUnit},
	LambertAzimuthalEqualArea: {display: "Lambert Azimuthal Equal Area", native: "Lambert_Azimuthal_Equal_Area", method: 9820, params: []param{{slot: SlotLatitude, code: 8801, wkt: "latitude_of_center"}, {slot: SlotLongitude, code: 8802, wkt: "longitude_of_center"}, unity, fe, fn}},
	TunisiaMiningGrid:         {display: "Tunisia Mining Grid", native: "Tunisia_Mining_Grid", method: 9816, params: fixedUnit},
	Krovak:                    {display: "Krovak", native: "Krovak", method: 9819, params: []param{centLat, centLon, lineK, fe, fn, azimuth, {slot: SlotSkew, code: 8818, wkt: "pseudo_standard_parallel_1"}}},
	Automatic:                 {display: "Automatic"},
	Unknown:                   {display: "Unknown"},
}

func (t Type) info() typeInfo {
	if t < 0 || int(t) >= len(catalog) {
		return catalog[Unknown]
	}
	return catalog[t]
}

// Types returns every projection type in declaration order.
func Types() []Type {
	out := make([]Type, len(catalog))
	for i := range catalog {
		out[i] = Type(i)
	}
	return out
}

// String returns the display name.
func (t Type) String() string { return t.info().display }

// NativeName returns the WKT projection name, or "" for None, Automatic
// and Unknown.
func (t Type) NativeName() string { return t.info().native }

// MethodCode returns the EPSG coordinate-operation method code, 0 if none.
func (t Type) MethodCode() int { return t.info().method }

// Display formats the type as "EPSG:<code> - <Name>", or just the name for
// types without a method code.
func (t Type) Display() string {
	info := t.info()
	if info.method <= 0 {
		return info.display
	}
	return fmt.Sprintf("EPSG:%d - %s", info.method, info.display)
}

// Arity returns the number of positional parameters.
func (t Type) Arity() int { return len(t.info().params) }

// Slots returns the semantic slot of each positional parameter.
func (t Type) Slots() []Slot {
	ps := t.info().params
	out := make([]Slot, len(ps))
	for i, p := range ps {
		out[i] = p.slot
	}
	return out
}

// Uses reports whether the type has a positional parameter for slot.
func (t Type) Uses(s Slot) bool {
	for _, p := range t.info().params {
		if p.slot == s {
			return true
		}
	}
	return false
}

// Free reports whether slot is a parameter the fitter may change: used by
// the type and not fixed to 1.
func (t Type) Free(s Slot) bool {
	for _, p := range t.info().params {
		if p.slot == s {
			return !p.fixed
		}
	}
	return false
}

// ParameterNames returns the WKT name of each positional parameter.
func (t Type) ParameterNames() []string {
	ps := t.info().params
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.wkt
	}
	return out
}

// ParameterCodes returns the EPSG code of each positional parameter; fixed
// slots report 1.
func (t Type) ParameterCodes() []int {
	ps := t.info().params
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.code
		if p.fixed && p.code == 0 {
			out[i] = 1
		}
	}
	return out
}

// Conformal reports whether the type belongs to the conformal families that
// get extra scale-factor seeds.
func (t Type) Conformal() bool { return t.info().conformal }

// IsHotine reports whether t is one of the oblique Mercator variants.
func (t Type) IsHotine() bool {
	return t == HotineObliqueMercatorA || t == HotineObliqueMercatorB
}

// IsMercator reports whether t is a normal-aspect Mercator variant.
func (t Type) IsMercator() bool {
	return t == Mercator || t == Mercator1SP || t == Mercator2SP
}

// Determined reports whether t names a concrete method (including None).
func (t Type) Determined() bool {
	return t != Automatic && t != Unknown && t >= 0 && int(t) < len(catalog)
}

// MarshalText encodes the display name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts anything ParseType does.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseType resolves a display name, a native WKT name, a Go-style name
// or the "EPSG:<code> - <Name>" form. Matching ignores case, spaces,
// underscores and punctuation.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	code := 0
	if rest, ok := strings.CutPrefix(s, "EPSG:"); ok {
		head, tail, _ := strings.Cut(rest, " - ")
		code, _ = strconv.Atoi(strings.TrimSpace(head))
		s = tail
	}
	key := fold(s)
	if key != "" {
		for i, info := range catalog {
			if fold(info.display) == key {
				return Type(i), nil
			}
		}
		for i, info := range catalog {
			if info.native != "" && fold(info.native) == key {
				return Type(i), nil
			}
		}
		if t, ok := goNames[key]; ok {
			return t, nil
		}
	}
	if code > 0 {
		for i, info := range catalog {
			if info.method == code {
				return Type(i), nil
			}
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

var goNames = map[string]Type{
	"tm":                       TransverseMercator,
	"tmso":                     TransverseMercatorSouthOrientated,
	"lcc1sp":                   LambertConicConformal1SP,
	"lcc2sp":                   LambertConicConformal2SP,
	"lambertconicconformal1sp": LambertConicConformal1SP,
	"lambertconicconformal2sp": LambertConicConformal2SP,
	"hotineobliquemercatora":   HotineObliqueMercatorA,
	"hotineobliquemercatorb":   HotineObliqueMercatorB,
	"laea":                     LambertAzimuthalEqualArea,
	"albers":                   AlbersConicEqualArea,
	"cassini":                  CassiniSoldner,
	"auto":                     Automatic,
}

func fold(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
