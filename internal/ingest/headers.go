package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter is a field separator recognised in uploaded text.
type Delimiter rune

const (
	Comma     Delimiter = ','
	Semicolon Delimiter = ';'
	Tab       Delimiter = '\t'
)

// candidates are tried in order; the first one that splits the header line
// into more than one token wins.
var candidates = []Delimiter{Comma, Semicolon, Tab}

func (d Delimiter) String() string {
	switch d {
	case Comma:
		return "comma"
	case Semicolon:
		return "semicolon"
	case Tab:
		return "tab"
	default:
		return fmt.Sprintf("%q", rune(d))
	}
}

// Rune returns the delimiter as a rune for encoding/csv.
func (d Delimiter) Rune() rune { return rune(d) }

var (
	// ErrEmptyInput is returned for empty or whitespace-only text.
	ErrEmptyInput = errors.New("input is empty")
	// ErrSingleColumn is returned when no candidate delimiter splits the header line.
	ErrSingleColumn = errors.New("header line has a single column")
)

const bom = "\ufeff"

// ExtractHeaders returns the cleaned header names of text and the delimiter
// inferred from the header line.
func ExtractHeaders(text string) ([]string, Delimiter, error) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, 0, ErrEmptyInput
	}
	header := lines[0]
	for _, d := range candidates {
		tokens := strings.Split(header, string(d))
		if len(tokens) <= 1 {
			continue
		}
		out := make([]string, len(tokens))
		for i, t := range tokens {
			out[i] = cleanCell(t)
		}
		return out, d, nil
	}
	return nil, 0, fmt.Errorf("%w: %q (tried comma, semicolon and tab)", ErrSingleColumn, truncate(header, 60))
}

// SplitRow splits one data line with d and cleans each cell.
func SplitRow(line string, d Delimiter) []string {
	parts := strings.Split(line, string(d))
	for i, p := range parts {
		parts[i] = cleanCell(p)
	}
	return parts
}

// splitLines returns the non-blank lines of text with CR and a leading BOM removed.
func splitLines(text string) []string {
	text = strings.TrimPrefix(text, bom)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// CleanCell trims whitespace and surrounding quotes from one cell.
func CleanCell(s string) string { return cleanCell(s) }

func cleanCell(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'`))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
