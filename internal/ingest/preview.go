package ingest

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// Options controls preview size and dataset-size warnings.
type Options struct {
	// PreviewRows is the number of data rows shown under the header.
	PreviewRows int
	// SmallDatasetRows triggers a warning when the text has fewer data rows.
	SmallDatasetRows int
}

// DefaultOptions returns the preview defaults: header plus five rows.
func DefaultOptions() Options {
	return Options{PreviewRows: 5, SmallDatasetRows: 10}
}

// Preview is the header and first rows of an uploaded text.
type Preview struct {
	Headers   []string   `json:"headers" msgpack:"headers"`
	Delimiter Delimiter  `json:"-" msgpack:"-"`
	Rows      [][]string `json:"rows" msgpack:"rows"`
	// DataRows counts every non-blank line after the header, not only the previewed ones.
	DataRows int      `json:"data_rows" msgpack:"data_rows"`
	Warnings []string `json:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// DelimiterName is the human-readable delimiter, used in API responses.
func (p *Preview) DelimiterName() string { return p.Delimiter.String() }

// BuildPreview extracts headers from text and splits the first data lines with
// the header's delimiter.
func BuildPreview(text string, opt Options) (*Preview, error) {
	headers, delim, err := ExtractHeaders(text)
	if err != nil {
		return nil, err
	}
	if opt.PreviewRows <= 0 {
		opt.PreviewRows = DefaultOptions().PreviewRows
	}
	lines := splitLines(text)
	p := &Preview{Headers: headers, Delimiter: delim, DataRows: len(lines) - 1}
	limit := len(lines)
	if limit > opt.PreviewRows+1 {
		limit = opt.PreviewRows + 1
	}
	for _, line := range lines[1:limit] {
		p.Rows = append(p.Rows, normalize(SplitRow(line, delim), len(headers)))
	}
	if opt.SmallDatasetRows > 0 && p.DataRows < opt.SmallDatasetRows {
		p.Warnings = append(p.Warnings, fmt.Sprintf("Warning: Small dataset (%d rows)", p.DataRows))
	}
	return p, nil
}

func normalize(cells []string, width int) []string {
	out := make([]string, width)
	copy(out, cells)
	return out
}

// NumericWarnings reports the given columns whose previewed cells are not numbers.
// Unknown column names are reported as missing.
func NumericWarnings(p *Preview, columns []string) []string {
	var out []string
	for _, col := range columns {
		idx := -1
		for i, h := range p.Headers {
			if strings.EqualFold(h, strings.TrimSpace(col)) {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, fmt.Sprintf("Warning: column %q not found", col))
			continue
		}
		for _, row := range p.Rows {
			v := strings.TrimSpace(row[idx])
			if v == "" {
				continue
			}
			if _, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err != nil {
				out = append(out, fmt.Sprintf("Warning: column %q looks non-numeric (e.g. %q)", p.Headers[idx], v))
				break
			}
		}
	}
	return out
}

// HTML renders the preview as an escaped table fragment.
func (p *Preview) HTML() string {
	var b strings.Builder
	b.WriteString(`<table class="preview"><thead><tr>`)
	for _, h := range p.Headers {
		b.WriteString("<th>")
		b.WriteString(html.EscapeString(h))
		b.WriteString("</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range p.Rows {
		b.WriteString("<tr>")
		for i := range p.Headers {
			b.WriteString("<td>")
			if i < len(row) {
				b.WriteString(html.EscapeString(row[i]))
			}
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}
