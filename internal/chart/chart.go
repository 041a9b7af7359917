// Package chart renders dataset columns to PNG or SVG images with gonum/plot.
package chart

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/statloom/internal/analysis"
	"github.com/KaramelBytes/statloom/internal/dataset"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Kinds lists the supported chart types.
var Kinds = []string{"histogram", "scatter", "line", "bar", "box"}

// Spec describes one chart.
type Spec struct {
	Kind  string
	X     string
	Y     []string
	Bins  int
	Trend bool
	Title string
	// Format is png or svg.
	Format string
	Width  vg.Length
	Height vg.Length
}

var (
	barColor   = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	pointColor = color.RGBA{R: 139, G: 0, B: 0, A: 255}
)

// SpecFromParams reads a chart spec from request parameters: kind, x, y
// (comma separated for box plots), bins, trend, title, format, width and
// height in inches.
func SpecFromParams(p analysis.Params) (Spec, error) {
	kind, err := p.OneOf("kind", "histogram", Kinds...)
	if err != nil {
		return Spec{}, err
	}
	format, err := p.OneOf("format", "png", "png", "svg")
	if err != nil {
		return Spec{}, err
	}
	bins, err := p.Int("bins", 0)
	if err != nil {
		return Spec{}, err
	}
	w, err := p.Float("width", 8)
	if err != nil {
		return Spec{}, err
	}
	h, err := p.Float("height", 5)
	if err != nil {
		return Spec{}, err
	}
	if w <= 0 || h <= 0 || w > 40 || h > 40 {
		return Spec{}, fmt.Errorf("%w: width and height must be between 0 and 40 inches", analysis.ErrParam)
	}
	return Spec{
		Kind: kind, X: p.String("x"), Y: p.List("y"), Bins: bins, Trend: p.Bool("trend"),
		Title: p.String("title"), Format: format, Width: vg.Length(w) * vg.Inch, Height: vg.Length(h) * vg.Inch,
	}, nil
}

// Render draws s from ds and returns the encoded image.
func Render(ds *dataset.Dataset, s Spec) ([]byte, error) {
	if s.Width == 0 {
		s.Width = 8 * vg.Inch
	}
	if s.Height == 0 {
		s.Height = 5 * vg.Inch
	}
	if s.Format == "" {
		s.Format = "png"
	}
	p := plot.New()
	p.Title.Text = s.Title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	var err error
	switch s.Kind {
	case "histogram":
		err = histogram(p, ds, s)
	case "scatter":
		err = scatter(p, ds, s)
	case "line":
		err = line(p, ds, s)
	case "bar":
		err = bar(p, ds, s)
	case "box":
		err = box(p, ds, s)
	default:
		err = fmt.Errorf("%w: unknown chart kind %q", analysis.ErrParam, s.Kind)
	}
	if err != nil {
		return nil, err
	}
	wt, err := p.WriterTo(s.Width, s.Height, s.Format)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.Format, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.Format, err)
	}
	return buf.Bytes(), nil
}

// ContentType maps a chart format to its MIME type.
func ContentType(format string) string {
	if format == "svg" {
		return "image/svg+xml"
	}
	return "image/png"
}

// ImgTag embeds an encoded image as a data URI <img> element.
func ImgTag(img []byte, format, alt string) string {
	return fmt.Sprintf(`<img src="data:%s;base64,%s" alt="%s">`, ContentType(format), base64.StdEncoding.EncodeToString(img), html.EscapeString(alt))
}

func required(v, name, kind string) error {
	if v == "" {
		return fmt.Errorf("%w: %s chart needs %s", analysis.ErrParam, kind, name)
	}
	return nil
}

func values(ds *dataset.Dataset, col string) (plotter.Values, error) {
	v, err := ds.Values(col)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrParam, err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: column %q has no numeric values", analysis.ErrParam, col)
	}
	return plotter.Values(v), nil
}

func histogram(p *plot.Plot, ds *dataset.Dataset, s Spec) error {
	if err := required(s.X, "x", "histogram"); err != nil {
		return err
	}
	v, err := values(ds, s.X)
	if err != nil {
		return err
	}
	bins := s.Bins
	if bins <= 0 {
		// Sturges
		bins = int(math.Ceil(math.Log2(float64(len(v))))) + 1
	}
	h, err := plotter.NewHist(v, bins)
	if err != nil {
		return err
	}
	h.FillColor = barColor
	p.Add(h)
	p.X.Label.Text = s.X
	p.Y.Label.Text = "count"
	return nil
}

func xy(ds *dataset.Dataset, x, y string) (plotter.XYs, error) {
	xs, err := ds.Floats(x)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrParam, err)
	}
	ys, err := ds.Floats(y)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrParam, err)
	}
	var pts plotter.XYs
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("%w: no rows with numeric %s and %s", analysis.ErrParam, x, y)
	}
	return pts, nil
}

func firstY(s Spec, kind string) (string, error) {
	if len(s.Y) == 0 {
		return "", fmt.Errorf("%w: %s chart needs y", analysis.ErrParam, kind)
	}
	return s.Y[0], nil
}

func scatter(p *plot.Plot, ds *dataset.Dataset, s Spec) error {
	if err := required(s.X, "x", "scatter"); err != nil {
		return err
	}
	y, err := firstY(s, "scatter")
	if err != nil {
		return err
	}
	pts, err := xy(ds, s.X, y)
	if err != nil {
		return err
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = pointColor
	sc.GlyphStyle.Radius = vg.Points(3)
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(sc, plotter.NewGrid())
	if s.Trend && len(pts) > 2 {
		X := mat.NewDense(len(pts), 1, nil)
		ys := make([]float64, len(pts))
		for i, pt := range pts {
			X.Set(i, 0, pt.X)
			ys[i] = pt.Y
		}
		if fit, err := analysis.OLS(X, ys, []string{s.X}, true); err == nil {
			f := plotter.NewFunction(func(x float64) float64 { return fit.Coef[0] + fit.Coef[1]*x })
			f.Color = color.Black
			f.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
			p.Add(f)
			p.Legend.Add(fmt.Sprintf("OLS fit (R² = %.3f)", fit.R2), f)
		}
	}
	p.X.Label.Text = s.X
	p.Y.Label.Text = y
	return nil
}

func line(p *plot.Plot, ds *dataset.Dataset, s Spec) error {
	if len(s.Y) == 0 {
		return fmt.Errorf("%w: line chart needs y", analysis.ErrParam)
	}
	for k, y := range s.Y {
		var pts plotter.XYs
		if s.X != "" {
			var err error
			if pts, err = xy(ds, s.X, y); err != nil {
				return err
			}
			sort.SliceStable(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
		} else {
			v, err := ds.Floats(y)
			if err != nil {
				return fmt.Errorf("%w: %v", analysis.ErrParam, err)
			}
			for i, f := range v {
				if !math.IsNaN(f) {
					pts = append(pts, plotter.XY{X: float64(i + 1), Y: f})
				}
			}
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		l.Color = seriesColor(k)
		l.Width = vg.Points(1.5)
		p.Add(l)
		if len(s.Y) > 1 {
			p.Legend.Add(y, l)
		}
	}
	p.Add(plotter.NewGrid())
	p.X.Label.Text = s.X
	if s.X == "" {
		p.X.Label.Text = "row"
	}
	p.Y.Label.Text = strings.Join(s.Y, ", ")
	return nil
}

// bar plots the mean of y per category of x, or category counts without y.
func bar(p *plot.Plot, ds *dataset.Dataset, s Spec) error {
	if err := required(s.X, "x", "bar"); err != nil {
		return err
	}
	xi, err := ds.Index(s.X)
	if err != nil {
		return fmt.Errorf("%w: %v", analysis.ErrParam, err)
	}
	var ys []float64
	if len(s.Y) > 0 {
		if ys, err = ds.Floats(s.Y[0]); err != nil {
			return fmt.Errorf("%w: %v", analysis.ErrParam, err)
		}
	}
	sums := map[string]float64{}
	counts := map[string]int{}
	for i, r := range ds.Rows {
		k := r[xi]
		if dataset.IsMissing(k) {
			continue
		}
		if ys != nil {
			if math.IsNaN(ys[i]) {
				continue
			}
			sums[k] += ys[i]
		}
		counts[k]++
	}
	if len(counts) == 0 {
		return fmt.Errorf("%w: no categories in %s", analysis.ErrParam, s.X)
	}
	labels := make([]string, 0, len(counts))
	for k := range counts {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	vals := make(plotter.Values, len(labels))
	for i, k := range labels {
		if ys != nil {
			vals[i] = sums[k] / float64(counts[k])
		} else {
			vals[i] = float64(counts[k])
		}
	}
	bars, err := plotter.NewBarChart(vals, vg.Points(20))
	if err != nil {
		return err
	}
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)
	if len(labels) > 8 {
		p.X.Tick.Label.Rotation = math.Pi / 3
		p.X.Tick.Label.YAlign = draw.YCenter
		p.X.Tick.Label.XAlign = draw.XRight
	}
	p.X.Label.Text = s.X
	p.Y.Label.Text = "count"
	if ys != nil {
		p.Y.Label.Text = "mean " + s.Y[0]
	}
	return nil
}

func box(p *plot.Plot, ds *dataset.Dataset, s Spec) error {
	cols := s.Y
	if len(cols) == 0 && s.X != "" {
		cols = []string{s.X}
	}
	if len(cols) == 0 {
		return fmt.Errorf("%w: box chart needs y", analysis.ErrParam)
	}
	for i, c := range cols {
		v, err := values(ds, c)
		if err != nil {
			return err
		}
		b, err := plotter.NewBoxPlot(vg.Points(30), float64(i), v)
		if err != nil {
			return err
		}
		b.FillColor = barColor
		p.Add(b)
	}
	p.NominalX(cols...)
	return nil
}

var palette = []color.Color{
	color.RGBA{R: 0, G: 100, B: 0, A: 255},
	color.RGBA{R: 139, G: 0, B: 0, A: 255},
	color.RGBA{R: 70, G: 130, B: 180, A: 255},
	color.RGBA{R: 255, G: 140, B: 0, A: 255},
	color.RGBA{R: 106, G: 90, B: 205, A: 255},
}

func seriesColor(i int) color.Color { return palette[i%len(palette)] }
