package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/statloom/internal/dataset"
	"gonum.org/v1/gonum/mat"
)

// Regression fits target on predictors by ordinary least squares with an intercept.
func Regression(ctx context.Context, ds *dataset.Dataset, p Params) (*Result, error) {
	target, err := p.Require("target")
	if err != nil {
		return nil, err
	}
	ti, err := ds.Index(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParam, err)
	}
	target = ds.Headers[ti]
	preds, err := columnsOrNumeric(ds, p.List("predictors"), target)
	if err != nil {
		return nil, err
	}
	for _, c := range preds {
		if strings.EqualFold(c, target) {
			return nil, fmt.Errorf("%w: target %q cannot also be a predictor", ErrParam, target)
		}
	}
	if len(preds) == 0 {
		return nil, fmt.Errorf("%w: no numeric predictors available", ErrParam)
	}
	m, dropped, err := ds.Matrix(append(append([]string{}, preds...), target))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, k := m.Dims()
	X := m.Slice(0, n, 0, k-1)
	y := mat.Col(nil, k-1, m)
	fit, err := OLS(X, y, preds, true)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Title: fmt.Sprintf("Linear regression: %s ~ %s", target, strings.Join(preds, " + ")),
		Rows:  len(ds.Rows),
	}
	res.metric("n", float64(fit.N))
	res.metric("r_squared", fit.R2)
	res.metric("adj_r_squared", fit.AdjR2)
	res.metric("f_statistic", fit.F)
	res.metric("f_p_value", fit.FP)
	res.metric("rmse", fit.RMSE)
	if dropped > 0 {
		res.note("%d rows with missing or non-numeric values were excluded", dropped)
	}
	coef := Table{Name: "Coefficients", Columns: []string{"term", "estimate", "std_error", "t", "p_value"}}
	for j, term := range fit.Terms {
		coef.Rows = append(coef.Rows, []string{term, Num(fit.Coef[j]), Num(fit.SE[j]), Num(fit.T[j]), PValue(fit.P[j])})
	}
	res.Tables = append(res.Tables, coef)
	if len(preds) > 1 {
		res.Tables = append(res.Tables, vifTable(X, preds))
	}
	return res, nil
}

// vifTable reports variance inflation factors from auxiliary regressions.
func vifTable(X mat.Matrix, names []string) Table {
	n, k := X.Dims()
	t := Table{Name: "Collinearity", Columns: []string{"predictor", "vif"}}
	for j := 0; j < k; j++ {
		others := mat.NewDense(n, k-1, nil)
		var on []string
		c := 0
		for jj := 0; jj < k; jj++ {
			if jj == j {
				continue
			}
			for i := 0; i < n; i++ {
				others.Set(i, c, X.At(i, jj))
			}
			on = append(on, names[jj])
			c++
		}
		v := "-"
		if aux, err := OLS(others, mat.Col(nil, j, X), on, true); err == nil && aux.R2 < 1 {
			v = Num(1 / (1 - aux.R2))
		}
		t.Rows = append(t.Rows, []string{names[j], v})
	}
	return t
}

