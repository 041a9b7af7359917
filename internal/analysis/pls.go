package analysis

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	plsMaxIter      = 300
	plsTolerance    = 1e-7
	plsMaxBootstrap = 2000
)

type plsEstimate struct {
	weights    map[string][]float64
	loadings   map[string][]float64
	scores     map[string][]float64
	fits       map[string]*Fit
	iterations int
	converged  bool
}

// PLS runs PLS path modelling with Mode A outer estimation.
//
// Parameters: model (required, same syntax as sem), scheme (path, centroid or
// factorial), max_iter, tol, bootstrap (resamples, 0 disables) and seed.
func PLS(ctx context.Context, ds *dataset.Dataset, p Params) (*Result, error) {
	src, err := p.Require("model")
	if err != nil {
		return nil, err
	}
	scheme, err := p.OneOf("scheme", "path", "path", "centroid", "factorial")
	if err != nil {
		return nil, err
	}
	maxIter, err := p.Int("max_iter", plsMaxIter)
	if err != nil {
		return nil, err
	}
	tol, err := p.Float("tol", plsTolerance)
	if err != nil {
		return nil, err
	}
	boot, err := p.Int("bootstrap", 0)
	if err != nil {
		return nil, err
	}
	if boot < 0 || boot > plsMaxBootstrap {
		return nil, fmt.Errorf("%w: bootstrap must be between 0 and %d", ErrParam, plsMaxBootstrap)
	}
	seed, err := p.Int("seed", 42)
	if err != nil {
		return nil, err
	}
	m, err := parseModel(src)
	if err != nil {
		return nil, err
	}
	if len(m.paths) == 0 && len(m.constructs) > 1 {
		return nil, fmt.Errorf("%w: model has no structural paths", ErrParam)
	}
	md, err := loadModelData(ds, m)
	if err != nil {
		return nil, err
	}
	if md.n < 5 {
		return nil, fmt.Errorf("need at least 5 complete rows, got %d", md.n)
	}
	est, err := estimatePLS(m, md, scheme, maxIter, tol)
	if err != nil {
		return nil, err
	}

	res := &Result{Title: "PLS path model (" + scheme + " scheme)", Rows: len(ds.Rows)}
	res.metric("n", float64(md.n))
	res.metric("iterations", float64(est.iterations))
	if !est.converged {
		res.note("outer weights did not converge within %d iterations", maxIter)
	}
	if md.dropped > 0 {
		res.note("%d rows with missing or non-numeric indicator values were excluded", md.dropped)
	}

	outer := Table{Name: "Outer model", Columns: []string{"construct", "indicator", "weight", "loading"}}
	rel := Table{Name: "Reliability", Columns: []string{"construct", "indicators", "cronbach_alpha", "composite_reliability", "ave"}}
	for _, c := range m.constructs {
		items := m.blocks[c]
		cols := make([][]float64, len(items))
		for i, it := range items {
			cols[i] = md.column(it)
			outer.Rows = append(outer.Rows, []string{c, it, Num(est.weights[c][i]), Num(est.loadings[c][i])})
		}
		if len(items) > 1 {
			cr, ave := compositeReliability(est.loadings[c])
			rel.Rows = append(rel.Rows, []string{c, formatCount(len(items)), Num(cronbachAlpha(cols)), Num(cr), Num(ave)})
		}
	}
	res.Tables = append(res.Tables, outer)
	if len(rel.Rows) > 0 {
		res.Tables = append(res.Tables, rel)
	}

	paths := pathTable(m, est.fits)
	paths.Columns = []string{"path", "estimate"}
	for i := range paths.Rows {
		paths.Rows[i] = paths.Rows[i][:2]
	}
	if boot > 0 {
		samples, err := bootstrapPLS(ctx, m, md, scheme, maxIter, tol, boot, uint64(seed))
		if err != nil {
			return nil, err
		}
		paths = bootstrapTable(m, est, samples)
		res.metric("bootstrap_samples", float64(len(samples)))
		if len(samples) < boot {
			res.note("%d of %d bootstrap resamples failed and were skipped", boot-len(samples), boot)
		}
	}
	res.Tables = append(res.Tables, paths, r2Table(m, est.fits))
	return res, nil
}

func estimatePLS(m *pathModel, md *modelData, scheme string, maxIter int, tol float64) (*plsEstimate, error) {
	preds := m.predecessors()
	succ := map[string][]string{}
	for dep, ps := range preds {
		for _, p := range ps {
			succ[p] = appendUnique(succ[p], dep)
		}
	}
	blocks := map[string][][]float64{}
	est := &plsEstimate{weights: map[string][]float64{}, scores: map[string][]float64{}}
	for _, c := range m.constructs {
		for _, it := range m.blocks[c] {
			blocks[c] = append(blocks[c], md.column(it))
		}
		w := make([]float64, len(blocks[c]))
		for i := range w {
			w[i] = 1
		}
		y, err := outerScore(blocks[c], w)
		if err != nil {
			return nil, fmt.Errorf("construct %s: %w", c, err)
		}
		est.weights[c], est.scores[c] = w, y
	}

	for est.iterations = 1; est.iterations <= maxIter; est.iterations++ {
		inner := map[string][]float64{}
		for _, c := range m.constructs {
			z, err := innerEstimate(c, preds[c], succ[c], est.scores, scheme, md.n)
			if err != nil {
				return nil, err
			}
			inner[c] = z
		}
		delta := 0.0
		for _, c := range m.constructs {
			w := make([]float64, len(blocks[c]))
			for i, x := range blocks[c] {
				w[i] = covariance(x, inner[c])
			}
			y, err := outerScore(blocks[c], w)
			if err != nil {
				return nil, fmt.Errorf("construct %s: %w", c, err)
			}
			for i := range w {
				delta = math.Max(delta, math.Abs(w[i]-est.weights[c][i]))
			}
			est.weights[c], est.scores[c] = w, y
		}
		if delta < tol {
			est.converged = true
			break
		}
	}
	if est.iterations > maxIter {
		est.iterations = maxIter
	}

	est.loadings = map[string][]float64{}
	for _, c := range m.constructs {
		// scores are only identified up to sign; orient them with the indicators
		var sum float64
		for _, x := range blocks[c] {
			sum += corr(x, est.scores[c])
		}
		if sum < 0 {
			for i := range est.weights[c] {
				est.weights[c][i] = -est.weights[c][i]
			}
			for i := range est.scores[c] {
				est.scores[c][i] = -est.scores[c][i]
			}
		}
		l := make([]float64, len(blocks[c]))
		for i, x := range blocks[c] {
			l[i] = corr(x, est.scores[c])
		}
		est.loadings[c] = l
	}
	fits, err := structural(m, est.scores)
	if err != nil {
		return nil, err
	}
	est.fits = fits
	return est, nil
}

// outerScore forms X·w and rescales w in place to give the score unit variance.
func outerScore(block [][]float64, w []float64) ([]float64, error) {
	n := len(block[0])
	y := make([]float64, n)
	for j, x := range block {
		for i, v := range x {
			y[i] += w[j] * v
		}
	}
	sd := math.Sqrt(variance(y))
	if sd == 0 || math.IsNaN(sd) {
		return nil, fmt.Errorf("score has zero variance (constant indicators?)")
	}
	for i := range y {
		y[i] /= sd
	}
	for j := range w {
		w[j] /= sd
	}
	return y, nil
}

func innerEstimate(c string, preds, succ []string, scores map[string][]float64, scheme string, n int) ([]float64, error) {
	if len(preds) == 0 && len(succ) == 0 {
		return scores[c], nil
	}
	z := make([]float64, n)
	add := func(other string, e float64) {
		for i, v := range scores[other] {
			z[i] += e * v
		}
	}
	switch scheme {
	case "centroid":
		for _, o := range append(append([]string{}, preds...), succ...) {
			add(o, sign(corr(scores[c], scores[o])))
		}
	case "factorial":
		for _, o := range append(append([]string{}, preds...), succ...) {
			add(o, corr(scores[c], scores[o]))
		}
	default:
		if len(preds) > 0 {
			X := make([][]float64, len(preds))
			for j, p := range preds {
				X[j] = scores[p]
			}
			fit, err := OLS(columnsMatrix(X), scores[c], preds, false)
			if err != nil {
				return nil, fmt.Errorf("inner model for %s: %w", c, err)
			}
			for j, p := range preds {
				add(p, fit.Coef[j])
			}
		}
		for _, s := range succ {
			add(s, corr(scores[c], scores[s]))
		}
	}
	return z, nil
}

func bootstrapPLS(ctx context.Context, m *pathModel, md *modelData, scheme string, maxIter int, tol float64, b int, seed uint64) ([]map[string]float64, error) {
	samples := make([]map[string]float64, b)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k := 0; k < b; k++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seed, uint64(k)))
			idx := make([]int, md.n)
			for i := range idx {
				idx[i] = rng.IntN(md.n)
			}
			est, err := estimatePLS(m, md.resample(idx), scheme, maxIter, tol)
			if err != nil {
				// degenerate resample, e.g. a constant indicator
				return nil
			}
			samples[k] = pathValues(m, est.fits)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := samples[:0]
	for _, s := range samples {
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func pathValues(m *pathModel, fits map[string]*Fit) map[string]float64 {
	out := map[string]float64{}
	for _, dep := range m.constructs {
		fit, ok := fits[dep]
		if !ok {
			continue
		}
		for j := 1; j < len(fit.Terms); j++ {
			out[fit.Terms[j]+" -> "+dep] = fit.Coef[j]
		}
	}
	return out
}

func bootstrapTable(m *pathModel, est *plsEstimate, samples []map[string]float64) Table {
	t := Table{Name: "Structural paths", Columns: []string{"path", "estimate", "boot_mean", "std_error", "t", "p_value", "ci_2.5", "ci_97.5"}}
	orig := pathValues(m, est.fits)
	for _, dep := range m.constructs {
		fit, ok := est.fits[dep]
		if !ok {
			continue
		}
		for j := 1; j < len(fit.Terms); j++ {
			key := fit.Terms[j] + " -> " + dep
			vals := make([]float64, 0, len(samples))
			for _, s := range samples {
				vals = append(vals, s[key])
			}
			mean, _ := stats.Mean(vals)
			se, _ := stats.StandardDeviationSample(vals)
			lo, _ := stats.Percentile(vals, 2.5)
			hi, _ := stats.Percentile(vals, 97.5)
			tv, pv := math.NaN(), math.NaN()
			if se > 0 && len(vals) > 1 {
				tv = orig[key] / se
				pv = twoSided(distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(len(vals) - 1)}, tv)
			}
			t.Rows = append(t.Rows, []string{key, Num(orig[key]), Num(mean), Num(se), Num(tv), PValue(pv), Num(lo), Num(hi)})
		}
	}
	return t
}

func covariance(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s / float64(len(a)-1)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
