package chart

import (
	"bytes"
	"strings"
	"testing"

	"github.com/KaramelBytes/statloom/internal/analysis"
	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const data = "group,x,y\na,1,2\nb,2,4.1\na,3,5.9\nc,4,8.2\nb,5,9.8\na,6,12.1\n"

func TestRender(t *testing.T) {
	ds, err := dataset.Load("d.csv", []byte(data), dataset.DefaultOptions())
	require.NoError(t, err)
	specs := []Spec{
		{Kind: "histogram", X: "x"},
		{Kind: "scatter", X: "x", Y: []string{"y"}, Trend: true, Title: "y vs x"},
		{Kind: "line", Y: []string{"x", "y"}},
		{Kind: "bar", X: "group", Y: []string{"y"}},
		{Kind: "bar", X: "group"},
		{Kind: "box", Y: []string{"x", "y"}},
	}
	for _, s := range specs {
		t.Run(s.Kind, func(t *testing.T) {
			img, err := Render(ds, s)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")), "expected png output")
		})
	}
	svg, err := Render(ds, Spec{Kind: "scatter", X: "x", Y: []string{"y"}, Format: "svg"})
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
}

func TestRenderErrors(t *testing.T) {
	ds, err := dataset.Load("d.csv", []byte(data), dataset.DefaultOptions())
	require.NoError(t, err)
	for _, s := range []Spec{
		{Kind: "pie"},
		{Kind: "histogram"},
		{Kind: "scatter", X: "x"},
		{Kind: "histogram", X: "group"},
		{Kind: "line", Y: []string{"missing"}},
	} {
		_, err := Render(ds, s)
		assert.ErrorIs(t, err, analysis.ErrParam, "%+v", s)
	}
}

func TestSpecFromParams(t *testing.T) {
	s, err := SpecFromParams(analysis.Params{"kind": "Box", "y": "a, b", "format": "svg", "width": "4"})
	require.NoError(t, err)
	assert.Equal(t, "box", s.Kind)
	assert.Equal(t, []string{"a", "b"}, s.Y)
	assert.Equal(t, "svg", s.Format)

	_, err = SpecFromParams(analysis.Params{"format": "gif"})
	assert.ErrorIs(t, err, analysis.ErrParam)
	_, err = SpecFromParams(analysis.Params{"height": "0"})
	assert.ErrorIs(t, err, analysis.ErrParam)

	tag := ImgTag([]byte("x"), "svg", `a "chart"`)
	assert.True(t, strings.HasPrefix(tag, `<img src="data:image/svg+xml;base64,`))
	assert.Contains(t, tag, "&#34;chart&#34;")
}
