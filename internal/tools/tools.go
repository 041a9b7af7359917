// Package tools describes the analysis templates offered by the UI and API.
package tools

import (
	"sort"
	"strings"
)

// FieldKind says how a field is entered.
type FieldKind string

const (
	Column  FieldKind = "column"
	Columns FieldKind = "columns"
	Text    FieldKind = "text"
	Number  FieldKind = "number"
	Select  FieldKind = "select"
	Bool    FieldKind = "bool"
)

// Field is one form parameter of a template.
type Field struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required,omitempty"`
	Options  []string  `json:"options,omitempty"`
	Default  string    `json:"default,omitempty"`
	Help     string    `json:"help,omitempty"`
}

// Template is a named analysis tool.
type Template struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Method      string  `json:"method"`
	Endpoint    string  `json:"endpoint"`
	Numeric     bool    `json:"numeric"`
	Fields      []Field `json:"fields"`
}

var filterField = Field{Name: "filter", Label: "Row filter", Kind: Text, Help: `e.g. region == "North" && sales > 100`}

var templates = map[string]Template{
	"descriptive-analysis": {
		ID: "descriptive-analysis", Title: "Descriptive statistics", Method: "descriptive", Endpoint: "/api/descriptive",
		Description: "Summaries, distributions, outliers and correlations per column.",
		Fields: []Field{
			{Name: "columns", Label: "Columns", Kind: Columns, Help: "Empty means all columns"},
			{Name: "correlations", Label: "Correlation matrix", Kind: Bool, Default: "true"},
			{Name: "group_by", Label: "Group by", Kind: Column},
			{Name: "outlier_threshold", Label: "Outlier threshold (robust z)", Kind: Number, Default: "3.5"},
			filterField,
		},
	},
	"regression-analysis": {
		ID: "regression-analysis", Title: "Linear regression", Method: "regression", Endpoint: "/api/regression", Numeric: true,
		Description: "Ordinary least squares with coefficient tests and collinearity checks.",
		Fields: []Field{
			{Name: "target", Label: "Dependent variable", Kind: Column, Required: true},
			{Name: "predictors", Label: "Predictors", Kind: Columns, Help: "Empty means all other numeric columns"},
			filterField,
		},
	},
	"sem-analysis": {
		ID: "sem-analysis", Title: "Structural equation model", Method: "sem", Endpoint: "/api/sem", Numeric: true,
		Description: "Composite-based SEM from a lavaan-style model description.",
		Fields: []Field{
			{Name: "model", Label: "Model", Kind: Text, Required: true, Help: "Quality =~ q1 + q2 + q3\nLoyalty ~ Quality"},
			filterField,
		},
	},
	"pls-analysis": {
		ID: "pls-analysis", Title: "PLS path model", Method: "pls", Endpoint: "/api/pls", Numeric: true,
		Description: "PLS-SEM with Mode A outer weights and optional bootstrap.",
		Fields: []Field{
			{Name: "model", Label: "Model", Kind: Text, Required: true, Help: "Quality =~ q1 + q2 + q3\nLoyalty ~ Quality"},
			{Name: "scheme", Label: "Inner scheme", Kind: Select, Options: []string{"path", "centroid", "factorial"}, Default: "path"},
			{Name: "bootstrap", Label: "Bootstrap samples", Kind: Number, Default: "0"},
			{Name: "seed", Label: "Seed", Kind: Number, Default: "42"},
			filterField,
		},
	},
	"predictive-analysis": {
		ID: "predictive-analysis", Title: "Forecast", Method: "predictive", Endpoint: "/api/predictive", Numeric: true,
		Description: "Trend and exponential smoothing forecasts with intervals.",
		Fields: []Field{
			{Name: "column", Label: "Series", Kind: Column, Required: true},
			{Name: "order", Label: "Order by", Kind: Column, Help: "Date or sequence column"},
			{Name: "horizon", Label: "Horizon", Kind: Number, Default: "5"},
			{Name: "method", Label: "Method", Kind: Select, Options: []string{"auto", "linear", "ses", "holt"}, Default: "auto"},
			filterField,
		},
	},
	"prescriptive-analysis": {
		ID: "prescriptive-analysis", Title: "Optimisation", Method: "prescriptive", Endpoint: "/api/prescriptive", Numeric: true,
		Description: "Linear programme choosing how much of each row to take.",
		Fields: []Field{
			{Name: "objective", Label: "Objective column", Kind: Column, Required: true},
			{Name: "sense", Label: "Sense", Kind: Select, Options: []string{"max", "min"}, Default: "max"},
			{Name: "constraints", Label: "Constraints", Kind: Text, Help: "cost <= 100; count <= 5"},
			{Name: "upper", Label: "Upper bound per row", Kind: Text, Default: "1", Help: "A number or a column"},
			{Name: "label", Label: "Label column", Kind: Column},
			filterField,
		},
	},
	"dematel-analysis": {
		ID: "dematel-analysis", Title: "DEMATEL", Method: "dematel", Endpoint: "/api/dematel", Numeric: true,
		Description: "Cause and effect structure from expert influence matrices.",
		Fields: []Field{
			{Name: "threshold", Label: "Link threshold", Kind: Number, Help: "Empty means the mean of T"},
		},
	},
	"data-visualization": {
		ID: "data-visualization", Title: "Charts", Method: "visualization", Endpoint: "/api/visualization",
		Description: "Histogram, scatter, line, bar and box plots.",
		Fields: []Field{
			{Name: "kind", Label: "Chart", Kind: Select, Options: []string{"histogram", "scatter", "line", "bar", "box"}, Default: "histogram"},
			{Name: "x", Label: "X", Kind: Column},
			{Name: "y", Label: "Y", Kind: Columns},
			{Name: "trend", Label: "Trend line", Kind: Bool},
			{Name: "format", Label: "Format", Kind: Select, Options: []string{"png", "svg"}, Default: "png"},
			filterField,
		},
	},
}

// Lookup returns the template with id.
func Lookup(id string) (Template, bool) {
	t, ok := templates[id]
	return t, ok
}

// ForMethod returns the template that runs method.
func ForMethod(method string) (Template, bool) {
	for _, t := range templates {
		if t.Method == method {
			return t, true
		}
	}
	return Template{}, false
}

// All returns every template sorted by id.
func All() []Template {
	out := make([]Template, 0, len(templates))
	for _, t := range templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Validate returns the labels of required fields missing from params.
func (t Template) Validate(params map[string]string) []string {
	var missing []string
	for _, f := range t.Fields {
		if f.Required && strings.TrimSpace(params[f.Name]) == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// Field returns the named field.
func (t Template) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
