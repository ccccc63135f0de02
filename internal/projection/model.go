package projection

import (
	"errors"
	"fmt"
	"math"

	"github.com/litescript/crsfit/internal/geodesy"
)

var (
	ErrParameterCountMismatch     = errors.New("projection: parameter count mismatch")
	ErrUndeterminedProjectionType = errors.New("projection: projection type is undetermined")
	ErrUnsupportedProjection      = errors.New("projection: unsupported projection")
	ErrUnknownType                = errors.New("projection: unknown projection type")
)

// Named is the semantic parameter record shared by every projection type.
// Angles are in degrees, false easting/northing in the model unit. Slots a
// type does not use are zero.
type Named struct {
	LatitudeOrigin        float64 `json:"latitude_origin"`
	LongitudeOrigin       float64 `json:"longitude_origin"`
	ScaleFactor           float64 `json:"scale_factor"`
	FalseEasting          float64 `json:"false_easting"`
	FalseNorthing         float64 `json:"false_northing"`
	AzimuthOrStdParallel1 float64 `json:"azimuth_or_std_parallel_1,omitempty"`
	SkewOrStdParallel2    float64 `json:"skew_or_std_parallel_2,omitempty"`
}

// Get returns the value of one slot.
func (n Named) Get(s Slot) float64 {
	switch s {
	case SlotLatitude:
		return n.LatitudeOrigin
	case SlotLongitude:
		return n.LongitudeOrigin
	case SlotScale:
		return n.ScaleFactor
	case SlotFalseEasting:
		return n.FalseEasting
	case SlotFalseNorthing:
		return n.FalseNorthing
	case SlotAzimuth:
		return n.AzimuthOrStdParallel1
	case SlotSkew:
		return n.SkewOrStdParallel2
	}
	return math.NaN()
}

// With returns a copy with one slot replaced.
func (n Named) With(s Slot, v float64) Named {
	switch s {
	case SlotLatitude:
		n.LatitudeOrigin = v
	case SlotLongitude:
		n.LongitudeOrigin = v
	case SlotScale:
		n.ScaleFactor = v
	case SlotFalseEasting:
		n.FalseEasting = v
	case SlotFalseNorthing:
		n.FalseNorthing = v
	case SlotAzimuth:
		n.AzimuthOrStdParallel1 = v
	case SlotSkew:
		n.SkewOrStdParallel2 = v
	}
	return n
}

// Model is a projection type with its parameters and linear unit. The named
// record is the state; positional slices are derived from it. Model is a
// value type: copies are independent.
type Model struct {
	Type  Type
	Unit  geodesy.Unit
	named Named
}

// New returns a model with default parameters: scale 1, everything else 0.
func New(t Type) Model {
	m := Model{Type: t, Unit: geodesy.Metre}
	_ = m.SetNamed(Named{ScaleFactor: 1})
	return m
}

// NewWithParams returns a model with positional parameters.
func NewWithParams(t Type, values []float64) (Model, error) {
	m := Model{Type: t, Unit: geodesy.Metre}
	if err := m.SetParams(values); err != nil {
		return Model{}, err
	}
	return m, nil
}

// Params returns the positional parameter array in the type's slot order.
func (m Model) Params() []float64 {
	slots := m.Type.Slots()
	out := make([]float64, len(slots))
	for i, s := range slots {
		out[i] = m.named.Get(s)
	}
	return out
}

// SetParams replaces the parameters from a positional array. The length must
// equal the type's arity.
func (m *Model) SetParams(values []float64) error {
	slots := m.Type.Slots()
	if len(values) != len(slots) {
		return fmt.Errorf("%w: %s takes %d, got %d", ErrParameterCountMismatch, m.Type, len(slots), len(values))
	}
	var n Named
	for i, s := range slots {
		n = n.With(s, values[i])
	}
	m.named = n
	return nil
}

// Named returns the semantic parameter record.
func (m Model) Named() Named { return m.named }

// SetNamed maps semantic values into the type's slots. Unused slots are
// cleared and fixed slots are forced to 1.
func (m *Model) SetNamed(n Named) error {
	if !m.Type.Determined() {
		return fmt.Errorf("%w: %s", ErrUndeterminedProjectionType, m.Type)
	}
	var out Named
	for _, p := range m.Type.info().params {
		v := n.Get(p.slot)
		if p.fixed {
			v = 1
		}
		out = out.With(p.slot, v)
	}
	m.named = out
	return nil
}

// WithNamed returns a copy with the named record replaced. Undetermined
// types keep their (empty) record.
func (m Model) WithNamed(n Named) Model {
	_ = m.SetNamed(n)
	return m
}

// With returns a copy with one slot changed, if the type uses it.
func (m Model) With(s Slot, v float64) Model {
	if m.Type.Uses(s) {
		m.named = m.named.With(s, v)
	}
	return m
}

// Get returns one slot value.
func (m Model) Get(s Slot) float64 { return m.named.Get(s) }

// Clone returns an independent copy.
func (m Model) Clone() Model { return m }

// Equal reports whether two models have the same type, unit and parameters.
func (m Model) Equal(o Model) bool {
	return m.Type == o.Type && m.Unit.Code == o.Unit.Code && m.Unit.Factor == o.Unit.Factor && m.named == o.named
}

// Sanitized applies the guard rails the geodesy engine needs: a positive
// scale factor, Mercator latitude within ±89.9 with unit scale, and Hotine
// latitude and azimuth kept off their singular values.
func (m Model) Sanitized() Model {
	n := m.named
	if m.Type.Arity() >= 5 {
		n.ScaleFactor = math.Abs(n.ScaleFactor)
	}
	switch {
	case m.Type == Mercator:
		n.LatitudeOrigin = max(-89.9, min(89.9, n.LatitudeOrigin))
		n.ScaleFactor = 1
	case m.Type.IsHotine():
		switch n.LatitudeOrigin {
		case -90:
			n.LatitudeOrigin = -89.999
		case 90:
			n.LatitudeOrigin = 89.999
		}
		switch n.AzimuthOrStdParallel1 {
		case -180:
			n.AzimuthOrStdParallel1 = -179.999
		case 180:
			n.AzimuthOrStdParallel1 = 179.999
		}
		if math.Abs(n.AzimuthOrStdParallel1) < 1e-3 {
			n.AzimuthOrStdParallel1 = 1e-3
		}
	}
	m.named = n
	return m
}

// String formats the model as "<type> [p0, p1, ...] <unit>".
func (m Model) String() string {
	return fmt.Sprintf("%s %v %s", m.Type, m.Params(), m.Unit.Name)
}
