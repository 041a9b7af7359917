package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func load(t *testing.T, text string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Load("test.csv", []byte(text), dataset.DefaultOptions())
	require.NoError(t, err)
	return ds
}

func run(t *testing.T, method string, ds *dataset.Dataset, p Params) (*Result, error) {
	t.Helper()
	m, err := Lookup(method)
	require.NoError(t, err)
	return m.Run(context.Background(), ds, p)
}

func cellFloat(t *testing.T, tab *Table, key, col string) float64 {
	t.Helper()
	require.NotNil(t, tab)
	s, ok := tab.Cell(key, col)
	require.True(t, ok, "cell %s/%s", key, col)
	f, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err, "cell %s/%s = %q", key, col, s)
	return f
}

// linearCSV builds y = 1 + 2*x1 - 0.5*x2 plus a small deterministic wobble.
func linearCSV(n int) string {
	var b strings.Builder
	b.WriteString("x1,x2,y\n")
	for i := 1; i <= n; i++ {
		x1 := float64(i)
		x2 := float64((i * 7) % 11)
		y := 1 + 2*x1 - 0.5*x2 + 0.01*math.Sin(float64(i))
		fmt.Fprintf(&b, "%g,%g,%g\n", x1, x2, y)
	}
	return b.String()
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"dematel", "descriptive", "pls", "predictive", "prescriptive", "regression", "sem"}, Names())
	_, err := Lookup("nope")
	assert.True(t, errors.Is(err, ErrParam))
}

func TestOLS(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y := []float64{3.1, 4.9, 7.2, 8.8, 11.1, 13.0}
	fit, err := OLS(X, y, []string{"x"}, true)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, fit.Coef[1], 0.1)
	assert.InDelta(t, 1.0, fit.Coef[0], 0.3)
	assert.Greater(t, fit.R2, 0.99)
	assert.Equal(t, 4, fit.DFResid)
	assert.Less(t, fit.P[1], 0.001)

	col := mat.NewDense(4, 2, []float64{1, 2, 2, 4, 3, 6, 4, 8})
	_, err = OLS(col, []float64{1, 2, 3, 5}, []string{"a", "b"}, true)
	assert.ErrorIs(t, err, ErrSingular)

	_, err = OLS(mat.NewDense(2, 1, []float64{1, 2}), []float64{1, 2}, []string{"x"}, true)
	assert.Error(t, err)
}

func TestRegression(t *testing.T) {
	ds := load(t, linearCSV(30))
	res, err := run(t, "regression", ds, Params{"target": "y"})
	require.NoError(t, err)
	assert.Equal(t, "regression", res.Method)
	coef := res.Table("Coefficients")
	assert.InDelta(t, 2.0, cellFloat(t, coef, "x1", "estimate"), 0.01)
	assert.InDelta(t, -0.5, cellFloat(t, coef, "x2", "estimate"), 0.01)
	r2, ok := res.Metric("r_squared")
	require.True(t, ok)
	assert.Greater(t, r2, 0.999)
	assert.NotNil(t, res.Table("Collinearity"))
	assert.Contains(t, res.Markdown(), "| term | estimate |")

	_, err = run(t, "regression", ds, Params{})
	assert.ErrorIs(t, err, ErrParam)
	_, err = run(t, "regression", ds, Params{"target": "y", "predictors": "x1, y"})
	assert.ErrorIs(t, err, ErrParam)
	_, err = run(t, "regression", ds, Params{"target": "zzz"})
	assert.ErrorIs(t, err, ErrParam)
}

func TestDescriptive(t *testing.T) {
	ds := load(t, "city,temp,rain\nA,10,1\nB,12,2\nA,14,\nC,16,4\nA,18,5\n")
	res, err := run(t, "descriptive", ds, Params{"correlations": "true", "group_by": "city"})
	require.NoError(t, err)
	num := res.Table("Numeric summary")
	assert.Equal(t, 14.0, cellFloat(t, num, "temp", "mean"))
	assert.Equal(t, 1.0, cellFloat(t, num, "rain", "missing"))
	cat := res.Table("Categorical summary")
	require.NotNil(t, cat)
	top, _ := cat.Cell("city", "top values")
	assert.True(t, strings.HasPrefix(top, "A (3)"), top)
	corr := res.Table("Correlations")
	assert.Greater(t, cellFloat(t, corr, "temp", "rain"), 0.9)
	groups := res.Table("Group means by city")
	assert.Equal(t, 14.0, cellFloat(t, groups, "A", "temp"))
}

// surveyCSV generates two constructs measured by three indicators each, with
// Loyalty driven by Quality.
func surveyCSV(n int) string {
	var b strings.Builder
	b.WriteString("q1,q2,q3,l1,l2,l3\n")
	for i := 0; i < n; i++ {
		f := math.Sin(float64(i)*0.7) + 0.5*math.Cos(float64(i)*1.3)
		g := 0.8*f + 0.4*math.Sin(float64(i)*2.1+1)
		e := func(k float64) float64 { return 0.15 * math.Cos(float64(i)*k) }
		fmt.Fprintf(&b, "%.5f,%.5f,%.5f,%.5f,%.5f,%.5f\n", f+e(3.1), f+e(4.7), f+e(5.3), g+e(6.1), g+e(7.9), g+e(8.3))
	}
	return b.String()
}

const surveyModel = "Quality =~ q1 + q2 + q3\nLoyalty =~ l1 + l2 + l3\nLoyalty ~ Quality"

func TestParseModel(t *testing.T) {
	m, err := parseModel("A =~ a1 + 1*a2; B =~ b1 + b2\nB ~ A + age # covariate\nA ~~ B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "age"}, m.constructs)
	assert.Equal(t, []string{"a1", "a2"}, m.blocks["A"])
	assert.Equal(t, []string{"age"}, m.blocks["age"])
	assert.Len(t, m.ignored, 1)

	for _, bad := range []string{"", "A =~", "A ~", "just words", "A =~ x\nA =~ y"} {
		_, err := parseModel(bad)
		assert.ErrorIs(t, err, ErrParam, bad)
	}
}

func TestSEM(t *testing.T) {
	ds := load(t, surveyCSV(120))
	res, err := run(t, "sem", ds, Params{"model": surveyModel})
	require.NoError(t, err)
	meas := res.Table("Measurement model")
	require.NotNil(t, meas)
	for _, row := range meas.Rows {
		l, _ := strconv.ParseFloat(row[2], 64)
		assert.Greater(t, l, 0.8, "loading of %s", row[1])
	}
	rel := res.Table("Reliability")
	assert.Greater(t, cellFloat(t, rel, "Quality", "cronbach_alpha"), 0.8)
	paths := res.Table("Structural paths")
	assert.Greater(t, cellFloat(t, paths, "Quality -> Loyalty", "estimate"), 0.7)
	assert.NotNil(t, res.Table("Explained variance"))

	_, err = run(t, "sem", ds, Params{"model": "X =~ nope1 + nope2"})
	assert.ErrorIs(t, err, ErrParam)
}

func TestPLS(t *testing.T) {
	ds := load(t, surveyCSV(120))
	p := Params{"model": surveyModel, "bootstrap": "40", "seed": "7"}
	res, err := run(t, "pls", ds, p)
	require.NoError(t, err)
	paths := res.Table("Structural paths")
	require.NotNil(t, paths)
	est := cellFloat(t, paths, "Quality -> Loyalty", "estimate")
	assert.Greater(t, est, 0.7)
	assert.Greater(t, cellFloat(t, paths, "Quality -> Loyalty", "std_error"), 0.0)
	n, _ := res.Metric("bootstrap_samples")
	assert.Equal(t, 40.0, n)

	again, err := run(t, "pls", ds, p)
	require.NoError(t, err)
	assert.Equal(t, paths.Rows, again.Table("Structural paths").Rows, "bootstrap must be reproducible for a fixed seed")

	centroid, err := run(t, "pls", ds, Params{"model": surveyModel, "scheme": "centroid"})
	require.NoError(t, err)
	assert.InDelta(t, est, cellFloat(t, centroid.Table("Structural paths"), "Quality -> Loyalty", "estimate"), 0.05)

	_, err = run(t, "pls", ds, Params{"model": surveyModel, "bootstrap": "5000"})
	assert.ErrorIs(t, err, ErrParam)
}

func TestPredictive(t *testing.T) {
	var b strings.Builder
	b.WriteString("month,sales\n")
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&b, "2024-%02d-01,%d\n", 13-i, 2*(13-i)+1)
	}
	ds := load(t, b.String())

	res, err := run(t, "predictive", ds, Params{"column": "sales", "order": "month", "horizon": "3", "method": "linear"})
	require.NoError(t, err)
	fc := res.Table("Forecast")
	require.Len(t, fc.Rows, 3)
	assert.InDelta(t, 27.0, cellFloat(t, fc, "13", "forecast"), 1e-6)
	assert.InDelta(t, 31.0, cellFloat(t, fc, "15", "forecast"), 1e-6)

	res, err = run(t, "predictive", ds, Params{"column": "sales", "order": "month"})
	require.NoError(t, err)
	assert.NotNil(t, res.Table("Model comparison"))
	assert.InDelta(t, 27.0, cellFloat(t, res.Table("Forecast"), "13", "forecast"), 1e-3)

	assert.Contains(t, strings.Join(res.Notes, "\n"), "one-step-ahead")

	flat := load(t, "t,v\n1,5\n2,5\n3,5\n4,5\n")
	res, err = run(t, "predictive", flat, Params{"column": "v", "method": "ses"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, cellFloat(t, res.Table("Forecast"), "5", "forecast"))

	_, err = run(t, "predictive", ds, Params{"column": "sales", "alpha": "1.5"})
	assert.ErrorIs(t, err, ErrParam)
	_, err = run(t, "predictive", load(t, "a,b\n1,2\n"), Params{"column": "b"})
	assert.Error(t, err)
}

func TestLinearForecastScoredOutOfSample(t *testing.T) {
	y := []float64{1, 3, 5, 7, 20}
	f := linearForecast(y, 1)
	assert.True(t, math.IsNaN(f.fitted[0]) && math.IsNaN(f.fitted[1]))
	assert.InDelta(t, 5.0, f.fitted[2], 1e-9)
	assert.InDelta(t, 9.0, f.fitted[4], 1e-9, "prediction must not see the value it predicts")
	assert.InDelta(t, math.Sqrt(121.0/3), f.rmse, 1e-9)

	y[4] = 9
	assert.InDelta(t, 9.0, linearForecast(y, 1).fitted[4], 1e-9)
}

func TestPrescriptive(t *testing.T) {
	ds := load(t, "item,value,weight\nA,10,5\nB,6,4\nC,4,3\n")
	res, err := run(t, "prescriptive", ds, Params{"objective": "value", "constraints": "weight <= 8", "label": "item"})
	require.NoError(t, err)
	obj, _ := res.Metric("objective")
	assert.InDelta(t, 14.5, obj, 1e-6)
	alloc := res.Table("Allocation")
	assert.InDelta(t, 1.0, cellFloat(t, alloc, "A", "level"), 1e-6)
	assert.InDelta(t, 0.75, cellFloat(t, alloc, "B", "level"), 1e-6)
	binding, _ := res.Table("Constraints").Cell("weight <= 8", "binding")
	assert.Equal(t, "yes", binding)

	res, err = run(t, "prescriptive", ds, Params{"objective": "weight", "sense": "min", "constraints": "value >= 10; count <= 2"})
	require.NoError(t, err)
	obj, _ = res.Metric("objective")
	assert.InDelta(t, 5.0, obj, 1e-6)

	_, err = run(t, "prescriptive", ds, Params{"objective": "value", "constraints": "weight >= 100"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "infeasible")

	_, err = run(t, "prescriptive", ds, Params{"objective": "value", "constraints": "weight < 3"})
	assert.ErrorIs(t, err, ErrParam)
}

const dematelCSV = "factor,A,B,C\nA,0,3,2\nB,1,0,1\nC,2,1,0\n"

func TestDEMATEL(t *testing.T) {
	res, err := run(t, "dematel", load(t, dematelCSV), Params{})
	require.NoError(t, err)
	s, _ := res.Metric("normalisation")
	assert.Equal(t, 5.0, s)
	infl := res.Table("Influence")
	group, _ := infl.Cell("A", "group")
	assert.Equal(t, "cause", group)
	group, _ = infl.Cell("B", "group")
	assert.Equal(t, "effect", group)
	assert.NotEmpty(t, res.Table("Significant links").Rows)

	// two identical experts average to the same matrix
	stacked := dematelCSV + "A,0,3,2\nB,1,0,1\nC,2,1,0\n"
	res2, err := run(t, "dematel", load(t, stacked), Params{})
	require.NoError(t, err)
	experts, _ := res2.Metric("experts")
	assert.Equal(t, 2.0, experts)
	assert.Equal(t, infl.Rows, res2.Table("Influence").Rows)

	_, err = run(t, "dematel", load(t, "factor,A,B\nA,0,1\n"), Params{})
	assert.ErrorIs(t, err, ErrParam)
}

func TestParams(t *testing.T) {
	p := Params{"n": "3", "f": "0,5", "l": "a, b\nc,,", "b": "Yes", "bad": "x"}
	n, err := p.Int("n", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	f, err := p.Float("f", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)
	assert.Equal(t, []string{"a", "b", "c"}, p.List("l"))
	assert.True(t, p.Bool("b"))
	_, err = p.Int("bad", 0)
	assert.ErrorIs(t, err, ErrParam)
	v, err := p.OneOf("missing", "def", "x", "y")
	require.NoError(t, err)
	assert.Equal(t, "def", v)
}
