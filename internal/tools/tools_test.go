package tools

import (
	"testing"

	"github.com/KaramelBytes/statloom/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplatesCoverMethods(t *testing.T) {
	all := All()
	require.Len(t, all, 8)
	assert.Equal(t, "data-visualization", all[0].ID)
	for _, name := range analysis.Names() {
		tpl, ok := ForMethod(name)
		require.True(t, ok, "no template for %s", name)
		assert.Equal(t, "/api/"+name, tpl.Endpoint)
	}
	_, ok := Lookup("data-visualization")
	assert.True(t, ok)
	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	tpl, _ := Lookup("regression-analysis")
	assert.Equal(t, []string{"target"}, tpl.Validate(map[string]string{"target": "  "}))
	assert.Empty(t, tpl.Validate(map[string]string{"target": "y"}))

	f, ok := tpl.Field("filter")
	require.True(t, ok)
	assert.Equal(t, Text, f.Kind)
}
