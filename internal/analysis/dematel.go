package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/statloom/internal/dataset"
	"gonum.org/v1/gonum/mat"
)

// DEMATEL analyses a direct-relation matrix. The first column labels the
// factors and the remaining columns hold the scores; several experts'
// matrices may be stacked vertically and are averaged.
//
// Parameters: threshold (default: mean of the total relation matrix).
func DEMATEL(ctx context.Context, ds *dataset.Dataset, p Params) (*Result, error) {
	factors := ds.Headers[1:]
	m := len(factors)
	if m < 2 {
		return nil, fmt.Errorf("%w: need at least two factor columns", ErrParam)
	}
	if len(ds.Rows) == 0 || len(ds.Rows)%m != 0 {
		return nil, fmt.Errorf("%w: expected a multiple of %d rows (one %dx%d matrix per expert), got %d", ErrParam, m, m, m, len(ds.Rows))
	}
	experts := len(ds.Rows) / m
	res := &Result{Title: "DEMATEL analysis", Rows: len(ds.Rows)}

	A := mat.NewDense(m, m, nil)
	for e := 0; e < experts; e++ {
		for i := 0; i < m; i++ {
			row := ds.Rows[e*m+i]
			if e == 0 && !strings.EqualFold(strings.TrimSpace(row[0]), factors[i]) && row[0] != "" {
				res.note("row label %q does not match column %q; columns define factor order", row[0], factors[i])
			}
			for j := 0; j < m; j++ {
				v, ok := dataset.ParseNumber(row[j+1])
				if !ok {
					if dataset.IsMissing(row[j+1]) {
						v = 0
					} else {
						return nil, fmt.Errorf("%w: non-numeric score %q at expert %d, row %d, column %s", ErrParam, row[j+1], e+1, i+1, factors[j])
					}
				}
				if v < 0 {
					return nil, fmt.Errorf("%w: negative score %v at expert %d, row %d, column %s", ErrParam, v, e+1, i+1, factors[j])
				}
				A.Set(i, j, A.At(i, j)+v/float64(experts))
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var s float64
	for i := 0; i < m; i++ {
		var rs, cs float64
		for j := 0; j < m; j++ {
			rs += A.At(i, j)
			cs += A.At(j, i)
		}
		s = math.Max(s, math.Max(rs, cs))
	}
	if s == 0 {
		return nil, fmt.Errorf("direct-relation matrix is all zeros")
	}
	var N mat.Dense
	N.Scale(1/s, A)
	var imn mat.Dense
	imn.Sub(eye(m), &N)
	var inv mat.Dense
	if err := inv.Inverse(&imn); err != nil {
		return nil, fmt.Errorf("I-N is singular; scores saturate the normalisation: %w", err)
	}
	var T mat.Dense
	T.Mul(&N, &inv)

	D := make([]float64, m)
	R := make([]float64, m)
	var sum float64
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			v := T.At(i, j)
			D[i] += v
			R[j] += v
			sum += v
		}
	}
	threshold, err := p.Float("threshold", sum/float64(m*m))
	if err != nil {
		return nil, err
	}

	res.metric("factors", float64(m))
	res.metric("experts", float64(experts))
	res.metric("normalisation", s)
	res.metric("threshold", threshold)
	res.Tables = append(res.Tables,
		matrixTable("Direct relation matrix", factors, A),
		matrixTable("Total relation matrix", factors, &T),
	)
	infl := Table{Name: "Influence", Columns: []string{"factor", "D", "R", "D+R", "D-R", "group"}}
	for i, f := range factors {
		group := "effect"
		if D[i]-R[i] > 0 {
			group = "cause"
		}
		infl.Rows = append(infl.Rows, []string{f, Num(D[i]), Num(R[i]), Num(D[i] + R[i]), Num(D[i] - R[i]), group})
	}
	res.Tables = append(res.Tables, infl)

	type link struct {
		from, to string
		v        float64
	}
	var links []link
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			if i != j && T.At(i, j) > threshold {
				links = append(links, link{factors[i], factors[j], T.At(i, j)})
			}
		}
	}
	sort.SliceStable(links, func(a, b int) bool { return links[a].v > links[b].v })
	lt := Table{Name: "Significant links", Columns: []string{"from", "to", "strength"}}
	for _, l := range links {
		lt.Rows = append(lt.Rows, []string{l.from, l.to, Num(l.v)})
	}
	res.Tables = append(res.Tables, lt)
	res.metric("significant_links", float64(len(links)))
	return res, nil
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func matrixTable(name string, labels []string, M mat.Matrix) Table {
	t := Table{Name: name, Columns: append([]string{""}, labels...)}
	for i, l := range labels {
		row := []string{l}
		for j := range labels {
			row = append(row, Num(M.At(i, j)))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
