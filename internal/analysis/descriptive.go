package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

const topValues = 5

// Descriptive summarises every selected column according to its inferred kind.
//
// Parameters: columns (default all), correlations, group_by, outlier_threshold
// (robust z threshold, default 3.5).
func Descriptive(ctx context.Context, ds *dataset.Dataset, p Params) (*Result, error) {
	cols := p.List("columns")
	if len(cols) == 0 {
		cols = ds.Headers
	}
	thr, err := p.Float("outlier_threshold", 3.5)
	if err != nil {
		return nil, err
	}
	res := &Result{Title: "Descriptive statistics", Rows: len(ds.Rows)}
	num := Table{Name: "Numeric summary", Columns: []string{"variable", "n", "missing", "mean", "sd", "min", "q1", "median", "q3", "max", "skewness", "kurtosis", "outliers"}}
	cat := Table{Name: "Categorical summary", Columns: []string{"variable", "n", "missing", "unique", "top values"}}
	var numeric []string
	for _, c := range cols {
		idx, err := ds.Index(c)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParam, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := ds.Headers[idx]
		switch ds.Kind(idx) {
		case dataset.Numeric:
			row, err := numericSummary(ds, name, thr)
			if err != nil {
				return nil, err
			}
			num.Rows = append(num.Rows, row)
			numeric = append(numeric, name)
		case dataset.Empty:
			res.note("column %q has no values", name)
		default:
			cat.Rows = append(cat.Rows, categoricalSummary(ds, idx))
		}
	}
	if len(num.Rows) > 0 {
		res.Tables = append(res.Tables, num)
	}
	if len(cat.Rows) > 0 {
		res.Tables = append(res.Tables, cat)
	}
	res.metric("columns", float64(len(cols)))
	res.metric("numeric_columns", float64(len(numeric)))

	if p.Bool("correlations") {
		if len(numeric) < 2 {
			res.note("correlations need at least two numeric columns")
		} else {
			corr, err := correlationTable(ds, numeric)
			if err != nil {
				return nil, err
			}
			res.Tables = append(res.Tables, corr)
		}
	}
	if g := p.String("group_by"); g != "" {
		t, err := groupMeans(ds, g, numeric)
		if err != nil {
			return nil, err
		}
		res.Tables = append(res.Tables, t)
	}
	return res, nil
}

func numericSummary(ds *dataset.Dataset, col string, thr float64) ([]string, error) {
	vals, err := ds.Values(col)
	if err != nil {
		return nil, err
	}
	missing := len(ds.Rows) - len(vals)
	data := stats.Float64Data(vals)
	mean, _ := stats.Mean(data)
	sd, _ := stats.StandardDeviationSample(data)
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	median, _ := stats.Median(data)
	q1, _ := stats.Percentile(data, 25)
	q3, _ := stats.Percentile(data, 75)
	skew, kurt := math.NaN(), math.NaN()
	if len(vals) > 2 && sd > 0 {
		skew = stat.Skew(vals, nil)
		kurt = stat.ExKurtosis(vals, nil)
	}
	if len(vals) < 2 {
		sd = math.NaN()
	}
	return []string{
		col, strconv.Itoa(len(vals)), strconv.Itoa(missing),
		Num(mean), Num(sd), Num(lo), Num(q1), Num(median), Num(q3), Num(hi),
		Num(skew), Num(kurt), strconv.Itoa(robustOutliers(vals, thr)),
	}, nil
}

// robustOutliers counts values whose MAD-based z score exceeds thr.
func robustOutliers(vals []float64, thr float64) int {
	if len(vals) < 8 {
		return 0
	}
	median, _ := stats.Median(vals)
	mad, _ := stats.MedianAbsoluteDeviation(vals)
	if mad == 0 {
		return 0
	}
	cnt := 0
	for _, v := range vals {
		if math.Abs(0.6745*(v-median)/mad) > thr {
			cnt++
		}
	}
	return cnt
}

func categoricalSummary(ds *dataset.Dataset, idx int) []string {
	counts := map[string]int{}
	n, missing := 0, 0
	for _, r := range ds.Rows {
		v := r[idx]
		if dataset.IsMissing(v) {
			missing++
			continue
		}
		n++
		counts[v]++
	}
	type kv struct {
		v string
		c int
	}
	tops := make([]kv, 0, len(counts))
	for k, c := range counts {
		tops = append(tops, kv{k, c})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].c == tops[j].c {
			return tops[i].v < tops[j].v
		}
		return tops[i].c > tops[j].c
	})
	if len(tops) > topValues {
		tops = tops[:topValues]
	}
	parts := make([]string, len(tops))
	for i, t := range tops {
		parts[i] = fmt.Sprintf("%s (%d)", t.v, t.c)
	}
	return []string{ds.Headers[idx], strconv.Itoa(n), strconv.Itoa(missing), strconv.Itoa(len(counts)), strings.Join(parts, ", ")}
}

// correlationTable computes pairwise-complete Pearson correlations.
func correlationTable(ds *dataset.Dataset, cols []string) (Table, error) {
	series := make([][]float64, len(cols))
	for i, c := range cols {
		f, err := ds.Floats(c)
		if err != nil {
			return Table{}, err
		}
		series[i] = f
	}
	t := Table{Name: "Correlations", Columns: append([]string{"variable"}, cols...)}
	for i := range cols {
		row := []string{cols[i]}
		for j := range cols {
			if i == j {
				row = append(row, "1")
				continue
			}
			x, y := pairwise(series[i], series[j])
			r := math.NaN()
			if len(x) > 2 {
				r = stat.Correlation(x, y, nil)
			}
			row = append(row, fmt.Sprintf("%.3f", r))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func pairwise(a, b []float64) ([]float64, []float64) {
	var x, y []float64
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		x = append(x, a[i])
		y = append(y, b[i])
	}
	return x, y
}

func groupMeans(ds *dataset.Dataset, group string, numeric []string) (Table, error) {
	gi, err := ds.Index(group)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrParam, err)
	}
	var cols []string
	for _, c := range numeric {
		if !strings.EqualFold(c, ds.Headers[gi]) {
			cols = append(cols, c)
		}
	}
	series := make([][]float64, len(cols))
	for i, c := range cols {
		series[i], _ = ds.Floats(c)
	}
	type acc struct {
		n    int
		sums []float64
		cnts []int
	}
	groups := map[string]*acc{}
	for r, row := range ds.Rows {
		key := row[gi]
		if dataset.IsMissing(key) {
			key = "(missing)"
		}
		a := groups[key]
		if a == nil {
			a = &acc{sums: make([]float64, len(cols)), cnts: make([]int, len(cols))}
			groups[key] = a
		}
		a.n++
		for j := range cols {
			if v := series[j][r]; !math.IsNaN(v) {
				a.sums[j] += v
				a.cnts[j]++
			}
		}
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t := Table{Name: "Group means by " + ds.Headers[gi], Columns: append([]string{ds.Headers[gi], "n"}, cols...)}
	for _, k := range keys {
		a := groups[k]
		row := []string{k, strconv.Itoa(a.n)}
		for j := range cols {
			m := math.NaN()
			if a.cnts[j] > 0 {
				m = a.sums[j] / float64(a.cnts[j])
			}
			row = append(row, Num(m))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
