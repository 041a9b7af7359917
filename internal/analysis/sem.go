package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/statloom/internal/dataset"
)

// SEM estimates a structural equation model with unit-weighted composites.
//
// Each latent is the standardized mean of its standardized indicators. The
// measurement model reports loadings (indicator-composite correlations),
// Cronbach's alpha, composite reliability and AVE; structural paths are OLS
// regressions between composite scores.
func SEM(ctx context.Context, ds *dataset.Dataset, p Params) (*Result, error) {
	src, err := p.Require("model")
	if err != nil {
		return nil, err
	}
	m, err := parseModel(src)
	if err != nil {
		return nil, err
	}
	md, err := loadModelData(ds, m)
	if err != nil {
		return nil, err
	}
	if md.n < 3 {
		return nil, fmt.Errorf("need at least 3 complete rows, got %d", md.n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := map[string][]float64{}
	res := &Result{Title: "Structural equation model (composite based)", Rows: len(ds.Rows)}
	meas := Table{Name: "Measurement model", Columns: []string{"latent", "indicator", "loading"}}
	rel := Table{Name: "Reliability", Columns: []string{"latent", "indicators", "cronbach_alpha", "composite_reliability", "ave"}}
	for _, c := range m.constructs {
		items := m.blocks[c]
		cols := make([][]float64, len(items))
		for i, it := range items {
			cols[i] = md.column(it)
		}
		comp := make([]float64, md.n)
		for _, col := range cols {
			for i, v := range col {
				comp[i] += v / float64(len(cols))
			}
		}
		scores[c] = standardize(comp)
		if len(items) == 1 && strings.EqualFold(items[0], c) {
			continue
		}
		loadings := make([]float64, len(items))
		for i, col := range cols {
			loadings[i] = corr(col, scores[c])
			meas.Rows = append(meas.Rows, []string{c, items[i], Num(loadings[i])})
		}
		cr, ave := compositeReliability(loadings)
		rel.Rows = append(rel.Rows, []string{c, formatCount(len(items)), Num(cronbachAlpha(cols)), Num(cr), Num(ave)})
		if ave < 0.5 {
			res.note("AVE of %s is below 0.5", c)
		}
	}
	if len(meas.Rows) > 0 {
		res.Tables = append(res.Tables, meas, rel)
	}

	fits, err := structural(m, scores)
	if err != nil {
		return nil, err
	}
	if len(fits) > 0 {
		res.Tables = append(res.Tables, pathTable(m, fits), r2Table(m, fits))
	}
	res.Tables = append(res.Tables, scoreCorrelations(m.constructs, scores))
	res.metric("n", float64(md.n))
	res.metric("constructs", float64(len(m.constructs)))
	res.metric("paths", float64(countPaths(m)))
	if md.dropped > 0 {
		res.note("%d rows with missing or non-numeric indicator values were excluded", md.dropped)
	}
	for _, ig := range m.ignored {
		res.note("covariance statement ignored: %s", ig)
	}
	return res, nil
}

// cronbachAlpha is computed on standardized items.
func cronbachAlpha(cols [][]float64) float64 {
	k := len(cols)
	if k < 2 {
		return math.NaN()
	}
	n := len(cols[0])
	total := make([]float64, n)
	var sumVar float64
	for _, c := range cols {
		sumVar += variance(c)
		for i, v := range c {
			total[i] += v
		}
	}
	vt := variance(total)
	if vt == 0 {
		return math.NaN()
	}
	return float64(k) / float64(k-1) * (1 - sumVar/vt)
}

func compositeReliability(loadings []float64) (cr, ave float64) {
	var sl, sl2, se float64
	for _, l := range loadings {
		sl += l
		sl2 += l * l
		se += 1 - l*l
	}
	cr = sl * sl / (sl*sl + se)
	ave = sl2 / float64(len(loadings))
	return cr, ave
}

func variance(x []float64) float64 {
	n := float64(len(x))
	if n < 2 {
		return 0
	}
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= n
	var ss float64
	for _, v := range x {
		ss += (v - mean) * (v - mean)
	}
	return ss / (n - 1)
}

func pathTable(m *pathModel, fits map[string]*Fit) Table {
	t := Table{Name: "Structural paths", Columns: []string{"path", "estimate", "std_error", "t", "p_value"}}
	for _, dep := range m.constructs {
		fit, ok := fits[dep]
		if !ok {
			continue
		}
		for j := 1; j < len(fit.Terms); j++ {
			t.Rows = append(t.Rows, []string{fit.Terms[j] + " -> " + dep, Num(fit.Coef[j]), Num(fit.SE[j]), Num(fit.T[j]), PValue(fit.P[j])})
		}
	}
	return t
}

func r2Table(m *pathModel, fits map[string]*Fit) Table {
	t := Table{Name: "Explained variance", Columns: []string{"construct", "r_squared", "adj_r_squared"}}
	for _, dep := range m.constructs {
		if fit, ok := fits[dep]; ok {
			t.Rows = append(t.Rows, []string{dep, Num(fit.R2), Num(fit.AdjR2)})
		}
	}
	return t
}

func scoreCorrelations(names []string, scores map[string][]float64) Table {
	t := Table{Name: "Construct correlations", Columns: append([]string{"construct"}, names...)}
	for _, a := range names {
		row := []string{a}
		for _, b := range names {
			row = append(row, fmt.Sprintf("%.3f", corr(scores[a], scores[b])))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func countPaths(m *pathModel) int {
	n := 0
	for _, preds := range m.predecessors() {
		n += len(preds)
	}
	return n
}

func formatCount(n int) string { return fmt.Sprintf("%d", n) }
