package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Kind is the inferred type of a column.
type Kind string

const (
	Numeric     Kind = "numeric"
	Datetime    Kind = "datetime"
	Categorical Kind = "categorical"
	Text        Kind = "text"
	Empty       Kind = "empty"
)

// categorical columns have at most this many distinct values
const maxCategories = 20

// IsMissing reports whether a cell holds one of the usual missing-value markers.
func IsMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "na", "n/a", "nan", "null", "none", "-", "?":
		return true
	}
	return false
}

// ParseNumber parses s as a number, accepting percent signs, non-breaking
// spaces and both decimal comma and decimal point. When both separators are
// present, the one appearing last is the decimal separator.
func ParseNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	if IsMissing(raw) {
		return 0, false
	}
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00a0", " ")
	raw = strings.TrimSpace(raw)
	dec := '.'
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	switch {
	case cpos >= 0 && dpos >= 0 && cpos > dpos:
		dec = ','
	case cpos >= 0 && dpos < 0:
		dec = ','
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"2006-01",
}

// ParseTime tries the common date layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Kind infers the type of column idx by the predominant parsed type.
func (d *Dataset) Kind(idx int) Kind {
	var num, dt, txt int
	distinct := map[string]struct{}{}
	for _, r := range d.Rows {
		v := r[idx]
		if IsMissing(v) {
			continue
		}
		if _, ok := ParseNumber(v); ok {
			num++
			continue
		}
		if _, ok := ParseTime(v); ok {
			dt++
			continue
		}
		txt++
		distinct[strings.ToLower(v)] = struct{}{}
	}
	switch {
	case num == 0 && dt == 0 && txt == 0:
		return Empty
	case num >= dt && num >= txt:
		return Numeric
	case dt >= txt:
		return Datetime
	case len(distinct) <= maxCategories:
		return Categorical
	default:
		return Text
	}
}

// Kinds returns the inferred kind of every column, in header order.
func (d *Dataset) Kinds() []Kind {
	out := make([]Kind, len(d.Headers))
	for i := range d.Headers {
		out[i] = d.Kind(i)
	}
	return out
}

// NumericColumns lists the headers whose kind is Numeric.
func (d *Dataset) NumericColumns() []string {
	var out []string
	for i, h := range d.Headers {
		if d.Kind(i) == Numeric {
			out = append(out, h)
		}
	}
	return out
}

// Floats returns the parsed values of col. Unparseable or missing cells
// become NaN so positions stay aligned with Rows.
func (d *Dataset) Floats(col string) ([]float64, error) {
	idx, err := d.Index(col)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		if f, ok := ParseNumber(r[idx]); ok {
			out[i] = f
		} else {
			out[i] = math.NaN()
		}
	}
	return out, nil
}

// Values returns the non-missing numeric values of col.
func (d *Dataset) Values(col string) ([]float64, error) {
	all, err := d.Floats(col)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, v := range all {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Matrix returns the rows where every named column parses as a number
// (listwise deletion), one matrix column per name, plus the number of
// dropped rows.
func (d *Dataset) Matrix(cols []string) (*mat.Dense, int, error) {
	if len(cols) == 0 {
		return nil, 0, fmt.Errorf("no columns selected")
	}
	series := make([][]float64, len(cols))
	for j, c := range cols {
		f, err := d.Floats(c)
		if err != nil {
			return nil, 0, err
		}
		series[j] = f
	}
	var data []float64
	dropped := 0
rows:
	for i := range d.Rows {
		for j := range cols {
			if math.IsNaN(series[j][i]) {
				dropped++
				continue rows
			}
		}
		for j := range cols {
			data = append(data, series[j][i])
		}
	}
	n := len(data) / len(cols)
	if n == 0 {
		return nil, dropped, fmt.Errorf("no complete rows for %s", strings.Join(cols, ", "))
	}
	return mat.NewDense(n, len(cols), data), dropped, nil
}
