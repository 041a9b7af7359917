package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/statloom/internal/dataset"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const maxLPItems = 500

type constraint struct {
	text   string
	column string
	op     string
	limit  float64
	coef   []float64
}

// Prescriptive chooses row activity levels x in [0, upper] that optimise the
// objective column subject to linear constraints over the other columns.
//
// Parameters: objective (required), sense (max or min), constraints
// ("cost <= 100; weight >= 3", the pseudo column count counts every row),
// upper (number or column name, default 1) and label.
func Prescriptive(ctx context.Context, ds *dataset.Dataset, p Params) (*Result, error) {
	objCol, err := p.Require("objective")
	if err != nil {
		return nil, err
	}
	sense, err := p.OneOf("sense", "max", "max", "min")
	if err != nil {
		return nil, err
	}
	cons, err := parseConstraints(p.String("constraints"))
	if err != nil {
		return nil, err
	}
	obj, err := ds.Floats(objCol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParam, err)
	}
	upper, err := upperBounds(ds, p.String("upper"))
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(ds.Rows))
	li := -1
	if l := p.String("label"); l != "" {
		if li, err = ds.Index(l); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParam, err)
		}
	}
	for i, r := range ds.Rows {
		labels[i] = "row " + strconv.Itoa(i+1)
		if li >= 0 && r[li] != "" {
			labels[i] = r[li]
		}
	}
	for k := range cons {
		if strings.EqualFold(cons[k].column, "count") {
			if _, err := ds.Index("count"); err != nil {
				cons[k].coef = make([]float64, len(ds.Rows))
				for i := range cons[k].coef {
					cons[k].coef[i] = 1
				}
				continue
			}
		}
		if cons[k].coef, err = ds.Floats(cons[k].column); err != nil {
			return nil, fmt.Errorf("%w: constraint %q: %v", ErrParam, cons[k].text, err)
		}
	}

	// rows with any missing coefficient cannot take part
	var items []int
	for i := range ds.Rows {
		ok := !math.IsNaN(obj[i]) && !math.IsNaN(upper[i]) && upper[i] >= 0
		for _, c := range cons {
			ok = ok && !math.IsNaN(c.coef[i])
		}
		if ok {
			items = append(items, i)
		}
	}
	if len(items) == 0 {
		return nil, errors.New("no rows have complete numeric objective and constraint values")
	}
	if len(items) > maxLPItems {
		return nil, fmt.Errorf("%w: %d candidate rows exceed the limit of %d", ErrParam, len(items), maxLPItems)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, k := len(items), len(cons)
	vars := 2*n + k
	A := mat.NewDense(n+k, vars, nil)
	b := make([]float64, n+k)
	c := make([]float64, vars)
	for j, i := range items {
		c[j] = obj[i]
		if sense == "max" {
			c[j] = -obj[i]
		}
		// x_j + s_j = upper_j
		A.Set(j, j, 1)
		A.Set(j, n+j, 1)
		b[j] = upper[i]
	}
	for r, con := range cons {
		row := n + r
		for j, i := range items {
			A.Set(row, j, con.coef[i])
		}
		switch con.op {
		case "<=":
			A.Set(row, 2*n+r, 1)
		case ">=":
			A.Set(row, 2*n+r, -1)
		}
		b[row] = con.limit
		if b[row] < 0 {
			for j := 0; j < vars; j++ {
				A.Set(row, j, -A.At(row, j))
			}
			b[row] = -b[row]
		}
	}
	// equality rows leave an all-zero slack column behind
	A, c = dropZeroColumns(A, c)
	opt, x, err := lp.Simplex(c, A, b, 1e-10, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return nil, errors.New("the constraints cannot all be satisfied (infeasible problem)")
	case errors.Is(err, lp.ErrUnbounded):
		return nil, errors.New("the objective is unbounded under these constraints")
	case err != nil:
		return nil, fmt.Errorf("solve linear programme: %w", err)
	}
	if sense == "max" {
		opt = -opt
	}

	res := &Result{Title: fmt.Sprintf("Optimisation: %s %s", sense, objCol), Rows: len(ds.Rows)}
	res.metric("objective", opt)
	res.metric("candidates", float64(n))
	alloc := Table{Name: "Allocation", Columns: []string{"item", "level", "upper", objCol}}
	selected := 0
	for j, i := range items {
		if x[j] <= 1e-9 {
			continue
		}
		selected++
		alloc.Rows = append(alloc.Rows, []string{labels[i], Num(x[j]), Num(upper[i]), Num(obj[i] * x[j])})
	}
	res.metric("selected", float64(selected))
	res.Tables = append(res.Tables, alloc)
	if k > 0 {
		usage := Table{Name: "Constraints", Columns: []string{"constraint", "used", "limit", "slack", "binding"}}
		for _, con := range cons {
			var used float64
			for j, i := range items {
				used += con.coef[i] * x[j]
			}
			slack := math.Abs(con.limit - used)
			binding := "no"
			if slack <= 1e-6*math.Max(1, math.Abs(con.limit)) {
				binding = "yes"
			}
			usage.Rows = append(usage.Rows, []string{con.text, Num(used), Num(con.limit), Num(slack), binding})
		}
		res.Tables = append(res.Tables, usage)
	}
	if skipped := len(ds.Rows) - n; skipped > 0 {
		res.note("%d rows with missing values were left out of the optimisation", skipped)
	}
	res.note("levels are continuous; fractional values indicate partial selection")
	return res, nil
}

func parseConstraints(src string) ([]constraint, error) {
	var out []constraint
	for _, part := range strings.FieldsFunc(src, func(r rune) bool { return r == ';' || r == '\n' }) {
		text := strings.TrimSpace(part)
		if text == "" {
			continue
		}
		var op string
		for _, cand := range []string{"<=", ">=", "="} {
			if strings.Contains(text, cand) {
				op = cand
				break
			}
		}
		if op == "" {
			return nil, fmt.Errorf("%w: constraint %q needs <=, >= or =", ErrParam, text)
		}
		lhs, rhs, _ := strings.Cut(text, op)
		col := strings.TrimSpace(lhs)
		limit, ok := dataset.ParseNumber(rhs)
		if col == "" || !ok {
			return nil, fmt.Errorf("%w: malformed constraint %q", ErrParam, text)
		}
		out = append(out, constraint{text: text, column: col, op: op, limit: limit})
	}
	return out, nil
}

func upperBounds(ds *dataset.Dataset, spec string) ([]float64, error) {
	out := make([]float64, len(ds.Rows))
	if spec == "" {
		spec = "1"
	}
	if v, ok := dataset.ParseNumber(spec); ok {
		if v < 0 {
			return nil, fmt.Errorf("%w: upper must not be negative", ErrParam)
		}
		for i := range out {
			out[i] = v
		}
		return out, nil
	}
	vals, err := ds.Floats(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: upper: %v", ErrParam, err)
	}
	return vals, nil
}

func dropZeroColumns(A *mat.Dense, c []float64) (*mat.Dense, []float64) {
	r, n := A.Dims()
	var keep []int
	for j := 0; j < n; j++ {
		for i := 0; i < r; i++ {
			if A.At(i, j) != 0 {
				keep = append(keep, j)
				break
			}
		}
	}
	if len(keep) == n {
		return A, c
	}
	out := mat.NewDense(r, len(keep), nil)
	oc := make([]float64, len(keep))
	for jj, j := range keep {
		for i := 0; i < r; i++ {
			out.Set(i, jj, A.At(i, j))
		}
		oc[jj] = c[j]
	}
	return out, oc
}
