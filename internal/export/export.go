// Package export writes analysis results as downloadable files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/statloom/internal/analysis"
	"github.com/KaramelBytes/statloom/internal/utils"
	"github.com/xuri/excelize/v2"
)

// Format is an export file format.
type Format string

const (
	XLSX     Format = "xlsx"
	Markdown Format = "markdown"
	HTML     Format = "html"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "xlsx", "excel":
		return XLSX, nil
	case "md", "markdown":
		return Markdown, nil
	case "html", "htm":
		return HTML, nil
	case "csv":
		return CSV, nil
	case "json", "":
		return JSON, nil
	}
	return "", fmt.Errorf("%w: unsupported export format %q (xlsx, markdown, html, csv, json)", analysis.ErrParam, s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case Markdown:
		return "text/markdown; charset=utf-8"
	case HTML:
		return "text/html; charset=utf-8"
	case CSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/json"
	}
}

// Extension returns the file extension of f, without the dot.
func (f Format) Extension() string {
	if f == Markdown {
		return "md"
	}
	return string(f)
}

// Write encodes res, with an optional narrative in markdown, to w.
func Write(w io.Writer, res *analysis.Result, narrative string, f Format) error {
	switch f {
	case XLSX:
		return writeXLSX(w, res, narrative)
	case Markdown:
		_, err := io.WriteString(w, document(res, narrative))
		return err
	case HTML:
		_, err := io.WriteString(w, utils.MarkdownPage(res.Title, document(res, narrative)))
		return err
	case CSV:
		return writeCSV(w, res)
	case JSON:
		b, err := utils.PrettyJSON(struct {
			Result    *analysis.Result `json:"result"`
			Narrative string           `json:"narrative,omitempty"`
		}{res, narrative})
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	}
	return fmt.Errorf("%w: unsupported export format %q", analysis.ErrParam, f)
}

func document(res *analysis.Result, narrative string) string {
	md := res.Markdown()
	if strings.TrimSpace(narrative) != "" {
		md += "\n### Interpretation\n\n" + narrative + "\n"
	}
	return md
}

// writeCSV emits the metrics and then every table, separated by blank rows.
func writeCSV(w io.Writer, res *analysis.Result) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{res.Title})
	if len(res.Metrics) > 0 {
		_ = cw.Write([]string{"metric", "value"})
		for _, m := range res.Metrics {
			_ = cw.Write([]string{m.Name, analysis.Num(m.Value)})
		}
	}
	for _, t := range res.Tables {
		_ = cw.Write(nil)
		_ = cw.Write([]string{t.Name})
		_ = cw.Write(t.Columns)
		for _, r := range t.Rows {
			_ = cw.Write(r)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, res *analysis.Result, narrative string) error {
	f := excelize.NewFile()
	defer f.Close()
	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	rows := [][]any{{res.Title}}
	if res.Dataset != "" {
		rows = append(rows, []any{"Dataset", res.Dataset})
	}
	rows = append(rows, []any{"Rows", res.Rows}, []any{})
	for _, m := range res.Metrics {
		rows = append(rows, []any{m.Name, metricCell(m.Value)})
	}
	if len(res.Notes) > 0 {
		rows = append(rows, []any{}, []any{"Notes"})
		for _, n := range res.Notes {
			rows = append(rows, []any{n})
		}
	}
	if strings.TrimSpace(narrative) != "" {
		rows = append(rows, []any{}, []any{"Interpretation"})
		for _, line := range strings.Split(narrative, "\n") {
			rows = append(rows, []any{line})
		}
	}
	if err := setRows(f, summary, rows); err != nil {
		return err
	}

	used := map[string]bool{strings.ToLower(summary): true}
	for _, t := range res.Tables {
		name := SheetName(t.Name, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
		grid := make([][]any, 0, len(t.Rows)+1)
		grid = append(grid, toAny(t.Columns))
		for _, r := range t.Rows {
			grid = append(grid, cells(r))
		}
		if err := setRows(f, name, grid); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("xlsx %s: %w", sheet, err)
		}
	}
	return nil
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// cells keeps numbers numeric so spreadsheets can compute with them.
func cells(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		if f, ok := parseCell(v); ok {
			out[i] = f
		} else {
			out[i] = v
		}
	}
	return out
}

func metricCell(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return analysis.Num(v)
	}
	return v
}

func parseCell(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// SheetName sanitises name for Excel (no []:*?/\, at most 31 characters) and
// makes it unique among used, which it updates.
func SheetName(name string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	clean = strings.Trim(clean, "'")
	if clean == "" {
		clean = "Table"
	}
	base := truncateRunes(clean, 31)
	out := base
	for i := 2; used[strings.ToLower(out)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		out = truncateRunes(base, 31-len(suffix)) + suffix
	}
	used[strings.ToLower(out)] = true
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
