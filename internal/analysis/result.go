package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Result is the outcome of one analysis run.
type Result struct {
	Method  string   `json:"method" msgpack:"method"`
	Title   string   `json:"title" msgpack:"title"`
	Dataset string   `json:"dataset,omitempty" msgpack:"dataset,omitempty"`
	Rows    int      `json:"rows" msgpack:"rows"`
	Metrics []Metric `json:"metrics,omitempty" msgpack:"metrics,omitempty"`
	Tables  []Table  `json:"tables,omitempty" msgpack:"tables,omitempty"`
	Notes   []string `json:"notes,omitempty" msgpack:"notes,omitempty"`
}

// Metric is a single named scalar.
type Metric struct {
	Name  string  `json:"name" msgpack:"name"`
	Value float64 `json:"value" msgpack:"value"`
}

// MarshalJSON writes non-finite values as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	var v *float64
	if !math.IsNaN(m.Value) && !math.IsInf(m.Value, 0) {
		v = &m.Value
	}
	return json.Marshal(struct {
		Name  string   `json:"name"`
		Value *float64 `json:"value"`
	}{m.Name, v})
}

// UnmarshalJSON reads null values back as NaN.
func (m *Metric) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name  string   `json:"name"`
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.Name, m.Value = raw.Name, math.NaN()
	if raw.Value != nil {
		m.Value = *raw.Value
	}
	return nil
}

// Table is a rendered grid of cells.
type Table struct {
	Name    string     `json:"name" msgpack:"name"`
	Columns []string   `json:"columns" msgpack:"columns"`
	Rows    [][]string `json:"rows" msgpack:"rows"`
}

func (r *Result) metric(name string, v float64) {
	r.Metrics = append(r.Metrics, Metric{Name: name, Value: v})
}

func (r *Result) note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Metric returns the value of the named metric.
func (r *Result) Metric(name string) (float64, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// Table returns the named table or nil.
func (r *Result) Table(name string) *Table {
	for i := range r.Tables {
		if r.Tables[i].Name == name {
			return &r.Tables[i]
		}
	}
	return nil
}

// Cell returns the cell at the row whose first cell equals key.
func (t *Table) Cell(key, column string) (string, bool) {
	col := -1
	for i, c := range t.Columns {
		if c == column {
			col = i
		}
	}
	if col < 0 {
		return "", false
	}
	for _, row := range t.Rows {
		if len(row) > col && row[0] == key {
			return row[col], true
		}
	}
	return "", false
}

// Markdown renders the result as a standalone markdown report.
func (r *Result) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", r.Title)
	if r.Dataset != "" {
		fmt.Fprintf(&b, "Dataset: %s (%d rows)\n\n", r.Dataset, r.Rows)
	} else if r.Rows > 0 {
		fmt.Fprintf(&b, "Rows: %d\n\n", r.Rows)
	}
	if len(r.Metrics) > 0 {
		for _, m := range r.Metrics {
			fmt.Fprintf(&b, "- %s: %s\n", m.Name, Num(m.Value))
		}
		b.WriteString("\n")
	}
	for _, t := range r.Tables {
		fmt.Fprintf(&b, "### %s\n\n", t.Name)
		b.WriteString(t.Markdown())
		b.WriteString("\n")
	}
	if len(r.Notes) > 0 {
		b.WriteString("### Notes\n\n")
		for _, n := range r.Notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	return b.String()
}

// Markdown renders t as a pipe table.
func (t *Table) Markdown() string {
	var b strings.Builder
	b.WriteString("|")
	for _, c := range t.Columns {
		b.WriteString(" " + safeVal(c) + " |")
	}
	b.WriteString("\n|")
	for range t.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		b.WriteString("|")
		for i := range t.Columns {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			b.WriteString(" " + safeVal(v) + " |")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Num formats a float for tables: four significant digits, NaN as "-".
func Num(v float64) string {
	switch {
	case math.IsNaN(v):
		return "-"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.4g", v)
}

// PValue formats a p value the way reports usually print them.
func PValue(p float64) string {
	if math.IsNaN(p) {
		return "-"
	}
	if p < 0.001 {
		return "<0.001"
	}
	return fmt.Sprintf("%.3f", p)
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
