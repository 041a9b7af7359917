package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrSingular reports a design matrix without full column rank.
var ErrSingular = errors.New("predictors are collinear (singular design matrix)")

// Fit holds an ordinary least squares solution.
type Fit struct {
	Terms   []string
	Coef    []float64
	SE      []float64
	T       []float64
	P       []float64
	N       int
	DFResid int
	R2      float64
	AdjR2   float64
	F       float64
	FP      float64
	RMSE    float64
	Fitted  []float64
	Resid   []float64
}

// OLS regresses y on the columns of X. With intercept set, a constant column
// named "(Intercept)" is prepended to the design.
func OLS(X mat.Matrix, y []float64, names []string, intercept bool) (*Fit, error) {
	n, k := X.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("ols: %d responses for %d rows", len(y), n)
	}
	p := k
	terms := names
	if intercept {
		p++
		terms = append([]string{"(Intercept)"}, names...)
	}
	if n <= p {
		return nil, fmt.Errorf("need more complete rows (%d) than coefficients (%d)", n, p)
	}
	D := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		off := 0
		if intercept {
			D.Set(i, 0, 1)
			off = 1
		}
		for j := 0; j < k; j++ {
			D.Set(i, j+off, X.At(i, j))
		}
	}
	var xtx mat.Dense
	xtx.Mul(D.T(), D)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, ErrSingular
	}
	Y := mat.NewVecDense(n, y)
	var xty, beta mat.VecDense
	xty.MulVec(D.T(), Y)
	beta.MulVec(&inv, &xty)

	fit := &Fit{Terms: terms, N: n, DFResid: n - p}
	fit.Coef = make([]float64, p)
	for j := range fit.Coef {
		fit.Coef[j] = beta.AtVec(j)
	}
	var yhat mat.VecDense
	yhat.MulVec(D, &beta)
	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(n)
	var sse, sst float64
	fit.Fitted = make([]float64, n)
	fit.Resid = make([]float64, n)
	for i := 0; i < n; i++ {
		fit.Fitted[i] = yhat.AtVec(i)
		fit.Resid[i] = y[i] - fit.Fitted[i]
		sse += fit.Resid[i] * fit.Resid[i]
		if intercept {
			sst += (y[i] - mean) * (y[i] - mean)
		} else {
			sst += y[i] * y[i]
		}
	}
	if sst == 0 {
		return nil, errors.New("response has zero variance")
	}
	df := float64(fit.DFResid)
	sigma2 := sse / df
	fit.RMSE = math.Sqrt(sse / float64(n))
	fit.SE = make([]float64, p)
	fit.T = make([]float64, p)
	fit.P = make([]float64, p)
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	for j := 0; j < p; j++ {
		fit.SE[j] = math.Sqrt(sigma2 * inv.At(j, j))
		fit.T[j] = fit.Coef[j] / fit.SE[j]
		fit.P[j] = twoSided(tdist, fit.T[j])
	}
	fit.R2 = 1 - sse/sst
	fit.AdjR2 = 1 - (1-fit.R2)*float64(n-1)/df
	dfModel := p
	if intercept {
		dfModel--
	}
	if dfModel > 0 {
		fit.F = (fit.R2 / float64(dfModel)) / ((1 - fit.R2) / df)
		fit.FP = 1 - distuv.F{D1: float64(dfModel), D2: df}.CDF(fit.F)
	} else {
		fit.F, fit.FP = math.NaN(), math.NaN()
	}
	return fit, nil
}

func twoSided(d distuv.StudentsT, t float64) float64 {
	if math.IsNaN(t) {
		return math.NaN()
	}
	if math.IsInf(t, 0) {
		return 0
	}
	return 2 * d.Survival(math.Abs(t))
}

// standardize returns (x-mean)/sd using the sample sd; a constant column
// yields zeros.
func standardize(x []float64) []float64 {
	n := float64(len(x))
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= n
	var ss float64
	for _, v := range x {
		ss += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(ss / (n - 1))
	out := make([]float64, len(x))
	if sd == 0 || math.IsNaN(sd) {
		return out
	}
	for i, v := range x {
		out[i] = (v - mean) / sd
	}
	return out
}

// columnsMatrix builds a dense matrix whose columns are cols.
func columnsMatrix(cols [][]float64) *mat.Dense {
	m := mat.NewDense(len(cols[0]), len(cols), nil)
	for j, c := range cols {
		m.SetCol(j, c)
	}
	return m
}
