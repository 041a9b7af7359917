package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/statloom/internal/dataset"
	"gonum.org/v1/gonum/mat"
)

// pathModel is a parsed lavaan-style model:
//
//	Quality =~ q1 + q2 + q3
//	Loyalty =~ l1 + l2
//	Loyalty ~ Quality + price
//
// Statements are separated by newlines or semicolons. Names on the right of
// "~" that are not latent become single-indicator constructs.
type pathModel struct {
	constructs []string
	blocks     map[string][]string
	paths      []structPath
	ignored    []string
}

type structPath struct {
	dep   string
	preds []string
}

func parseModel(src string) (*pathModel, error) {
	m := &pathModel{blocks: map[string][]string{}}
	seen := map[string]bool{}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			m.constructs = append(m.constructs, name)
		}
	}
	stmts := strings.FieldsFunc(src, func(r rune) bool { return r == '\n' || r == ';' })
	for _, raw := range stmts {
		line := strings.TrimSpace(raw)
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		switch {
		case strings.Contains(line, "=~"):
			lhs, rhs, _ := strings.Cut(line, "=~")
			name := strings.TrimSpace(lhs)
			items := splitTerms(rhs)
			if name == "" || len(items) == 0 {
				return nil, fmt.Errorf("%w: malformed measurement statement %q", ErrParam, line)
			}
			if _, dup := m.blocks[name]; dup {
				return nil, fmt.Errorf("%w: latent %q is defined twice", ErrParam, name)
			}
			m.blocks[name] = items
			add(name)
		case strings.Contains(line, "~~"):
			m.ignored = append(m.ignored, line)
		case strings.Contains(line, "~"):
			lhs, rhs, _ := strings.Cut(line, "~")
			dep := strings.TrimSpace(lhs)
			preds := splitTerms(rhs)
			if dep == "" || len(preds) == 0 {
				return nil, fmt.Errorf("%w: malformed regression statement %q", ErrParam, line)
			}
			m.paths = append(m.paths, structPath{dep: dep, preds: preds})
		default:
			return nil, fmt.Errorf("%w: cannot parse model statement %q", ErrParam, line)
		}
	}
	for _, pth := range m.paths {
		for _, n := range append([]string{pth.dep}, pth.preds...) {
			if _, ok := m.blocks[n]; !ok {
				m.blocks[n] = []string{n}
			}
			add(n)
		}
	}
	if len(m.constructs) == 0 {
		return nil, fmt.Errorf("%w: model is empty", ErrParam)
	}
	return m, nil
}

func splitTerms(s string) []string {
	var out []string
	for _, t := range strings.Split(s, "+") {
		t = strings.TrimSpace(t)
		// drop lavaan style fixed loadings such as 1*x1
		if _, v, ok := strings.Cut(t, "*"); ok {
			t = strings.TrimSpace(v)
		}
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// indicators lists every observed column of the model once, in block order.
func (m *pathModel) indicators() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range m.constructs {
		for _, ind := range m.blocks[c] {
			if !seen[ind] {
				seen[ind] = true
				out = append(out, ind)
			}
		}
	}
	return out
}

// modelData is the standardized indicator matrix of a model, one column per
// indicator, with positions of every block.
type modelData struct {
	names   []string
	z       [][]float64 // z[j] is indicator j, standardized
	pos     map[string]int
	n       int
	raw     *mat.Dense
	dropped int
}

func loadModelData(ds *dataset.Dataset, m *pathModel) (*modelData, error) {
	names := m.indicators()
	for i, n := range names {
		idx, err := ds.Index(n)
		if err != nil {
			return nil, fmt.Errorf("%w: indicator %v", ErrParam, err)
		}
		names[i] = ds.Headers[idx]
	}
	raw, dropped, err := ds.Matrix(names)
	if err != nil {
		return nil, err
	}
	md := &modelData{names: names, pos: map[string]int{}, raw: raw, dropped: dropped}
	md.n, _ = raw.Dims()
	for j, n := range names {
		md.pos[strings.ToLower(n)] = j
		md.z = append(md.z, standardize(mat.Col(nil, j, raw)))
	}
	return md, nil
}

func (md *modelData) column(name string) []float64 {
	return md.z[md.pos[strings.ToLower(name)]]
}

// resample returns a copy of md with rows drawn by idx, re-standardized.
func (md *modelData) resample(idx []int) *modelData {
	out := &modelData{names: md.names, pos: md.pos, n: len(idx)}
	for j := range md.names {
		col := make([]float64, len(idx))
		for i, r := range idx {
			col[i] = md.raw.At(r, j)
		}
		out.z = append(out.z, standardize(col))
	}
	return out
}

// predecessors maps each dependent construct to its predictors.
func (m *pathModel) predecessors() map[string][]string {
	out := map[string][]string{}
	for _, p := range m.paths {
		for _, pr := range p.preds {
			out[p.dep] = appendUnique(out[p.dep], pr)
		}
	}
	return out
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

func corr(a, b []float64) float64 {
	var sa, sb, sab, saa, sbb float64
	n := float64(len(a))
	for i := range a {
		sa += a[i]
		sb += b[i]
	}
	ma, mb := sa/n, sb/n
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		sab += da * db
		saa += da * da
		sbb += db * db
	}
	if saa == 0 || sbb == 0 {
		return 0
	}
	return sab / (math.Sqrt(saa) * math.Sqrt(sbb))
}

// structural regresses every dependent construct on its predecessors using
// construct scores.
func structural(m *pathModel, scores map[string][]float64) (map[string]*Fit, error) {
	out := map[string]*Fit{}
	for dep, preds := range m.predecessors() {
		n := len(scores[dep])
		X := mat.NewDense(n, len(preds), nil)
		for j, p := range preds {
			X.SetCol(j, scores[p])
		}
		fit, err := OLS(X, scores[dep], preds, true)
		if err != nil {
			return nil, fmt.Errorf("structural model for %s: %w", dep, err)
		}
		out[dep] = fit
	}
	return out, nil
}
