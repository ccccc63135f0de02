// Package report renders fitting results as JSON, text tables and GeoJSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/litescript/crsfit/internal/dataset"
	"github.com/litescript/crsfit/internal/fit"
	"github.com/litescript/crsfit/internal/geodesy"
)

// metresPerDegree converts an angular error to an approximate ground
// distance for display.
const metresPerDegree = 111_320.0

// Export is the JSON-serializable representation of a fit.
type Export struct {
	GeneratedAt time.Time          `json:"generated_at"`
	EPSG        int                `json:"epsg,omitempty"`
	Name        string             `json:"name,omitempty"`
	Projection  string             `json:"projection"`
	NativeName  string             `json:"native_name,omitempty"`
	MethodCode  int                `json:"method_code,omitempty"`
	Parameters  []ParameterExport  `json:"parameters"`
	Unit        geodesy.Unit       `json:"unit"`
	Ellipsoid   geodesy.Ellipsoid  `json:"ellipsoid"`
	TOWGS84     []float64          `json:"towgs84,omitempty"`
	ErrorDeg    float64            `json:"error_deg"`
	ErrorMetres float64            `json:"error_m_approx"`
	Partial     bool               `json:"partial"`
	Evaluations int64              `json:"evaluations,omitempty"`
	Points      int                `json:"points"`
	Bounds      [4]float64         `json:"bounds"`
	Residuals   []geodesy.Residual `json:"residuals,omitempty"`
}

// ParameterExport is one named projection parameter.
type ParameterExport struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Build converts a result into its exportable form. The dataset, when
// given, provides per-point residuals and the bounding box.
func Build(res fit.Result, ds *dataset.Dataset, evaluations int64) *Export {
	m := res.Model
	exp := &Export{
		GeneratedAt: time.Now().UTC(),
		EPSG:        res.Code,
		Name:        res.Name,
		Projection:  m.Type.String(),
		NativeName:  m.Type.NativeName(),
		MethodCode:  m.Type.MethodCode(),
		Unit:        m.Unit,
		Ellipsoid:   res.Ellipsoid,
		ErrorDeg:    res.Error,
		Partial:     res.Partial,
		Evaluations: evaluations,
	}
	if !math.IsInf(res.Error, 0) {
		exp.ErrorMetres = res.Error * metresPerDegree
	}
	names := m.Type.ParameterNames()
	for i, v := range m.Params() {
		exp.Parameters = append(exp.Parameters, ParameterExport{Name: names[i], Value: v})
	}
	if res.Shift != nil {
		v := res.Shift.TOWGS84()
		exp.TOWGS84 = v[:]
	}
	if ds != nil {
		exp.Points = ds.Len()
		b := ds.Bound()
		exp.Bounds = [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
		if res.Handle != nil {
			exp.Residuals = geodesy.Residuals(ds.WGS84(), res.Handle.ToWGS84(ds.Targets()))
		}
	}
	return exp
}

// WriteJSON writes the export as indented JSON.
func (e *Export) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// WriteSummaryTable writes a human-readable summary of the fit.
func WriteSummaryTable(w io.Writer, e *Export) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Best fit")
	if e.EPSG != 0 {
		t.AppendRow(table.Row{"EPSG", fmt.Sprintf("%d (%s)", e.EPSG, e.Name)})
	}
	t.AppendRow(table.Row{"Projection", e.Projection})
	t.AppendRow(table.Row{"Unit", e.Unit.Name})
	t.AppendRow(table.Row{"Ellipsoid", fmt.Sprintf("%s (a=%.3f, 1/f=%.9f)",
		e.Ellipsoid.Name, e.Ellipsoid.SemiMajorAxis, e.Ellipsoid.InverseFlattening)})
	for _, p := range e.Parameters {
		t.AppendRow(table.Row{p.Name, FormatValue(p.Value)})
	}
	if len(e.TOWGS84) > 0 {
		parts := make([]string, len(e.TOWGS84))
		for i, v := range e.TOWGS84 {
			parts[i] = FormatValue(v)
		}
		t.AppendRow(table.Row{"TOWGS84", strings.Join(parts, ", ")})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"RMS error", fmt.Sprintf("%.3g° (~%s)", e.ErrorDeg, FormatDistance(e.ErrorMetres))})
	if e.Points > 0 {
		t.AppendRow(table.Row{"Points", e.Points})
	}
	if e.Partial {
		t.AppendRow(table.Row{"Status", text.FgYellow.Sprint("partial (stopped early)")})
	}
	t.Render()
}

// WriteAttempts writes every recorded attempt, best first, failures last.
func WriteAttempts(w io.Writer, attempts []fit.Attempt) {
	rows := make([]fit.Attempt, len(attempts))
	copy(rows, attempts)
	sort.SliceStable(rows, func(i, j int) bool {
		fi, fj := rows[i].Failed(), rows[j].Failed()
		if fi != fj {
			return !fi
		}
		return rows[i].Error < rows[j].Error
	})

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"#", "Method", "Rounded", "Unit", "Ellipsoid", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 6, Align: text.AlignRight}})
	for i, a := range rows {
		errCol := fmt.Sprintf("%.3g°", a.Error)
		if a.Failed() {
			errCol = "failed"
			if a.Err != nil {
				errCol = truncateStr(a.Err.Error(), 40)
			}
		}
		method := a.Type.String()
		if a.Code != 0 {
			method = fmt.Sprintf("EPSG:%d", a.Code)
		}
		t.AppendRow(table.Row{i + 1, method, a.Rounding, a.Unit.Name, a.Ellipsoid.Name, errCol})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d attempts", len(rows))})
	t.Render()
}

// Residuals builds one point feature per reference position,
// carrying its signed residuals as properties.
func Residuals(ds *dataset.Dataset, residuals []geodesy.Residual) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, p := range ds.Pairs {
		f := geojson.NewFeature(orb.Point{p.WGS84.Lon, p.WGS84.Lat})
		f.Properties["index"] = i
		f.Properties["x"] = p.Target.X
		f.Properties["y"] = p.Target.Y
		if i < len(residuals) {
			r := residuals[i]
			f.Properties["dlon_deg"] = r.DLon
			f.Properties["dlat_deg"] = r.DLat
			f.Properties["combined_deg"] = r.Combined
		}
		fc.Append(f)
	}
	if ds.Len() > 0 {
		fc.BBox = geojson.NewBBox(ds.Bound())
	}
	return fc
}

// WriteGeoJSON writes the residual feature collection.
func WriteGeoJSON(w io.Writer, ds *dataset.Dataset, residuals []geodesy.Residual) error {
	data, err := json.MarshalIndent(Residuals(ds, residuals), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// FormatValue prints a parameter without trailing noise.
func FormatValue(v float64) string {
	return fmt.Sprintf("%.10g", v)
}

// FormatDistance formats a ground distance in m or km.
func FormatDistance(m float64) string {
	switch {
	case m == 0:
		return "0 m"
	case m < 0.01:
		return fmt.Sprintf("%.1f mm", m*1000)
	case m < 1000:
		return fmt.Sprintf("%.2f m", m)
	default:
		return fmt.Sprintf("%.1f km", m/1000)
	}
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "…"
}
