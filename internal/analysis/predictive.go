package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

const z95 = 1.959964

type forecast struct {
	method string
	alpha  float64
	beta   float64
	fitted []float64 // one-step-ahead predictions; NaN where none exists
	point  []float64
	lower  []float64
	upper  []float64
	mae    float64
	rmse   float64
	mape   float64
}

// Predictive forecasts a numeric column.
//
// Parameters: column (required), order (optional ordering column, dates or
// numbers), horizon (default 5), method (linear, ses, holt or auto), alpha and
// beta (smoothing, grid searched when absent).
func Predictive(ctx context.Context, ds *dataset.Dataset, p Params) (*Result, error) {
	col, err := p.Require("column")
	if err != nil {
		return nil, err
	}
	horizon, err := p.Int("horizon", 5)
	if err != nil {
		return nil, err
	}
	if horizon < 1 || horizon > 500 {
		return nil, fmt.Errorf("%w: horizon must be between 1 and 500", ErrParam)
	}
	method, err := p.OneOf("method", "auto", "linear", "ses", "holt", "auto")
	if err != nil {
		return nil, err
	}
	alpha, err := p.Float("alpha", math.NaN())
	if err != nil {
		return nil, err
	}
	beta, err := p.Float("beta", math.NaN())
	if err != nil {
		return nil, err
	}
	for name, v := range map[string]float64{"alpha": alpha, "beta": beta} {
		if !math.IsNaN(v) && (v <= 0 || v >= 1) {
			return nil, fmt.Errorf("%w: %s must be strictly between 0 and 1", ErrParam, name)
		}
	}
	y, err := orderedSeries(ds, col, p.String("order"))
	if err != nil {
		return nil, err
	}
	if len(y) < 3 {
		return nil, fmt.Errorf("need at least 3 observations to forecast, got %d", len(y))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var candidates []*forecast
	switch method {
	case "linear":
		candidates = append(candidates, linearForecast(y, horizon))
	case "ses":
		candidates = append(candidates, sesForecast(y, horizon, alpha))
	case "holt":
		if len(y) < 4 {
			return nil, fmt.Errorf("holt needs at least 4 observations, got %d", len(y))
		}
		candidates = append(candidates, holtForecast(y, horizon, alpha, beta))
	default:
		candidates = append(candidates, linearForecast(y, horizon), sesForecast(y, horizon, alpha))
		if len(y) >= 4 {
			candidates = append(candidates, holtForecast(y, horizon, alpha, beta))
		}
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.rmse < best.rmse {
			best = c
		}
	}

	res := &Result{Title: fmt.Sprintf("Forecast of %s (%s)", col, best.method), Rows: len(ds.Rows)}
	res.metric("n", float64(len(y)))
	res.metric("horizon", float64(horizon))
	res.metric("mae", best.mae)
	res.metric("rmse", best.rmse)
	res.metric("mape", best.mape)
	if !math.IsNaN(best.alpha) {
		res.metric("alpha", best.alpha)
	}
	if !math.IsNaN(best.beta) {
		res.metric("beta", best.beta)
	}
	fc := Table{Name: "Forecast", Columns: []string{"step", "forecast", "lower_95", "upper_95"}}
	for h := range best.point {
		fc.Rows = append(fc.Rows, []string{strconv.Itoa(len(y) + h + 1), Num(best.point[h]), Num(best.lower[h]), Num(best.upper[h])})
	}
	res.Tables = append(res.Tables, fc)
	if len(candidates) > 1 {
		cmp := Table{Name: "Model comparison", Columns: []string{"method", "mae", "rmse", "mape"}}
		for _, c := range candidates {
			cmp.Rows = append(cmp.Rows, []string{c.method, Num(c.mae), Num(c.rmse), Num(c.mape)})
		}
		res.Tables = append(res.Tables, cmp)
		res.note("%s selected by lowest one-step-ahead RMSE", best.method)
	}
	return res, nil
}

// orderedSeries returns the non-missing values of col, sorted by the order
// column when one is given.
func orderedSeries(ds *dataset.Dataset, col, order string) ([]float64, error) {
	vals, err := ds.Floats(col)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParam, err)
	}
	type obs struct {
		key float64
		v   float64
	}
	var series []obs
	var oi = -1
	if order != "" {
		if oi, err = ds.Index(order); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParam, err)
		}
	}
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		key := float64(i)
		if oi >= 0 {
			cell := ds.Rows[i][oi]
			if t, ok := dataset.ParseTime(cell); ok {
				key = float64(t.Unix())
			} else if f, ok := dataset.ParseNumber(cell); ok {
				key = f
			} else {
				continue
			}
		}
		series = append(series, obs{key, v})
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].key < series[j].key })
	out := make([]float64, len(series))
	for i, o := range series {
		out[i] = o.v
	}
	return out, nil
}

func linearForecast(y []float64, horizon int) *forecast {
	n := len(y)
	t := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		t.Set(i, 0, float64(i+1))
	}
	f := &forecast{method: "linear", alpha: math.NaN(), beta: math.NaN()}
	fit, err := OLS(t, y, []string{"t"}, true)
	if err != nil {
		// constant series: flat forecast with zero spread
		f.fitted = oneStepLinear(y)
		for h := 0; h < horizon; h++ {
			f.point = append(f.point, y[n-1])
			f.lower = append(f.lower, y[n-1])
			f.upper = append(f.upper, y[n-1])
		}
		f.score(y)
		return f
	}
	f.fitted = oneStepLinear(y)
	sigma := math.Sqrt(sumSquares(fit.Resid) / float64(fit.DFResid))
	tbar := float64(n+1) / 2
	var sxx float64
	for i := 1; i <= n; i++ {
		sxx += (float64(i) - tbar) * (float64(i) - tbar)
	}
	for h := 1; h <= horizon; h++ {
		x := float64(n + h)
		pt := fit.Coef[0] + fit.Coef[1]*x
		half := z95 * sigma * math.Sqrt(1+1/float64(n)+(x-tbar)*(x-tbar)/sxx)
		f.point = append(f.point, pt)
		f.lower = append(f.lower, pt-half)
		f.upper = append(f.upper, pt+half)
	}
	f.score(y)
	return f
}

// oneStepLinear predicts y[i] from a trend line fitted to y[:i] only, so its
// errors are comparable with the smoothing methods' one-step errors.
func oneStepLinear(y []float64) []float64 {
	out := make([]float64, len(y))
	var st, sy, stt, sty float64
	for i := range y {
		out[i] = math.NaN()
		if n := float64(i); i >= 2 {
			t := float64(i + 1)
			den := n*stt - st*st
			slope := 0.0
			if den != 0 {
				slope = (n*sty - st*sy) / den
			}
			out[i] = (sy-slope*st)/n + slope*t
		}
		t := float64(i + 1)
		st += t
		sy += y[i]
		stt += t * t
		sty += t * y[i]
	}
	return out
}

// smoothingGrid holds the candidate smoothing parameters.
var smoothingGrid = func() []float64 {
	var g []float64
	for a := 0.05; a < 0.96; a += 0.05 {
		g = append(g, math.Round(a*100)/100)
	}
	return g
}()

func sesForecast(y []float64, horizon int, alpha float64) *forecast {
	run := func(a float64) ([]float64, float64, float64) {
		fitted := make([]float64, len(y))
		fitted[0] = math.NaN()
		level := y[0]
		var sse float64
		for i := 1; i < len(y); i++ {
			fitted[i] = level
			e := y[i] - level
			sse += e * e
			level += a * e
		}
		return fitted, level, sse
	}
	if math.IsNaN(alpha) {
		best := math.Inf(1)
		for _, a := range smoothingGrid {
			if _, _, sse := run(a); sse < best {
				best, alpha = sse, a
			}
		}
	}
	fitted, level, sse := run(alpha)
	f := &forecast{method: "ses", alpha: alpha, beta: math.NaN(), fitted: fitted}
	sigma := math.Sqrt(sse / float64(len(y)-1))
	for h := 1; h <= horizon; h++ {
		half := z95 * sigma * math.Sqrt(1+float64(h-1)*alpha*alpha)
		f.point = append(f.point, level)
		f.lower = append(f.lower, level-half)
		f.upper = append(f.upper, level+half)
	}
	f.score(y)
	return f
}

func holtForecast(y []float64, horizon int, alpha, beta float64) *forecast {
	run := func(a, b float64) ([]float64, float64, float64, float64) {
		fitted := make([]float64, len(y))
		fitted[0], fitted[1] = math.NaN(), math.NaN()
		level, trend := y[1], y[1]-y[0]
		var sse float64
		for i := 2; i < len(y); i++ {
			pred := level + trend
			fitted[i] = pred
			e := y[i] - pred
			sse += e * e
			prev := level
			level = a*y[i] + (1-a)*(level+trend)
			trend = b*(level-prev) + (1-b)*trend
		}
		return fitted, level, trend, sse
	}
	alphas, betas := smoothingGrid, smoothingGrid
	if !math.IsNaN(alpha) {
		alphas = []float64{alpha}
	}
	if !math.IsNaN(beta) {
		betas = []float64{beta}
	}
	best := math.Inf(1)
	for _, a := range alphas {
		for _, b := range betas {
			if _, _, _, sse := run(a, b); sse < best {
				best, alpha, beta = sse, a, b
			}
		}
	}
	fitted, level, trend, sse := run(alpha, beta)
	f := &forecast{method: "holt", alpha: alpha, beta: beta, fitted: fitted}
	sigma := math.Sqrt(sse / float64(len(y)-2))
	for h := 1; h <= horizon; h++ {
		pt := level + float64(h)*trend
		half := z95 * sigma * math.Sqrt(float64(h))
		f.point = append(f.point, pt)
		f.lower = append(f.lower, pt-half)
		f.upper = append(f.upper, pt+half)
	}
	f.score(y)
	return f
}

// score fills the error metrics from the one-step-ahead predictions.
func (f *forecast) score(y []float64) {
	var abs, sq, pct []float64
	for i, v := range f.fitted {
		if math.IsNaN(v) {
			continue
		}
		e := y[i] - v
		abs = append(abs, math.Abs(e))
		sq = append(sq, e*e)
		if y[i] != 0 {
			pct = append(pct, math.Abs(e/y[i])*100)
		}
	}
	f.mae, f.rmse, f.mape = math.NaN(), math.NaN(), math.NaN()
	if len(abs) > 0 {
		f.mae, _ = stats.Mean(abs)
		mse, _ := stats.Mean(sq)
		f.rmse = math.Sqrt(mse)
	}
	if len(pct) > 0 {
		f.mape, _ = stats.Mean(pct)
	}
}

func sumSquares(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}
	return s
}
