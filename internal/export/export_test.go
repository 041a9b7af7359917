package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/statloom/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sample() *analysis.Result {
	return &analysis.Result{
		Method:  "regression",
		Title:   "Linear regression: y ~ x",
		Dataset: "d.csv",
		Rows:    10,
		Metrics: []analysis.Metric{{Name: "r_squared", Value: 0.9}, {Name: "f_p_value", Value: math.NaN()}},
		Tables: []analysis.Table{
			{Name: "Coefficients", Columns: []string{"term", "estimate"}, Rows: [][]string{{"(Intercept)", "1.2"}, {"x", "<script>"}}},
			{Name: "Coefficients", Columns: []string{"a"}, Rows: [][]string{{"1"}}},
		},
		Notes: []string{"2 rows dropped"},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"XLSX": XLSX, ".md": Markdown, "htm": HTML, "csv": CSV, "": JSON} {
		f, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, f)
	}
	_, err := ParseFormat("pdf")
	assert.ErrorIs(t, err, analysis.ErrParam)
	assert.Equal(t, "md", Markdown.Extension())
	assert.Contains(t, XLSX.ContentType(), "spreadsheetml")
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), "Strong fit.", XLSX))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "Coefficients", "Coefficients (2)"}, f.GetSheetList())
	v, err := f.GetCellValue("Coefficients", "B2")
	require.NoError(t, err)
	assert.Equal(t, "1.2", v)
	rows, err := f.GetRows("Summary")
	require.NoError(t, err)
	var flat []string
	for _, r := range rows {
		flat = append(flat, strings.Join(r, "|"))
	}
	joined := strings.Join(flat, "\n")
	assert.Contains(t, joined, "r_squared|0.9")
	assert.Contains(t, joined, "f_p_value|-")
	assert.Contains(t, joined, "Strong fit.")
}

func TestWriteTextFormats(t *testing.T) {
	var md bytes.Buffer
	require.NoError(t, Write(&md, sample(), "Looks *good*.", Markdown))
	assert.Contains(t, md.String(), "### Interpretation")
	assert.Contains(t, md.String(), "| term | estimate |")

	var page bytes.Buffer
	require.NoError(t, Write(&page, sample(), "", HTML))
	assert.Contains(t, page.String(), "<title>Linear regression")
	assert.Contains(t, page.String(), "<table>")
	assert.NotContains(t, page.String(), "<script>")

	var c bytes.Buffer
	require.NoError(t, Write(&c, sample(), "", CSV))
	r := csv.NewReader(&c)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Linear regression: y ~ x"}, records[0])
	assert.Equal(t, []string{"f_p_value", "-"}, records[3])
	assert.Equal(t, []string{"Coefficients"}, records[4])
	assert.Equal(t, []string{"term", "estimate"}, records[5])

	var js bytes.Buffer
	require.NoError(t, Write(&js, sample(), "n", JSON))
	var decoded struct {
		Result    analysis.Result `json:"result"`
		Narrative string          `json:"narrative"`
	}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "n", decoded.Narrative)
	assert.True(t, math.IsNaN(decoded.Result.Metrics[1].Value))
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "a_b_c", SheetName("a/b:c", used))
	long := strings.Repeat("x", 40)
	first := SheetName(long, used)
	assert.Len(t, first, 31)
	second := SheetName(long, used)
	assert.Len(t, second, 31)
	assert.True(t, strings.HasSuffix(second, " (2)"))
	assert.Equal(t, "Table", SheetName("  ", used))
}
