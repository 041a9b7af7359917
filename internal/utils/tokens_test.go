package utils_test

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/statloom/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		min  int
	}{
		{"empty", "", 0},
		{"simple", "hello world", 2},
		{"long", strings.Repeat("a", 4000), 900},
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got < c.min {
			t.Errorf("%s: got %d < min %d", c.name, got, c.min)
		}
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	text := strings.Repeat("| a | b |\n", 500)
	trunc := utils.TruncateToTokenLimit(text, 300)
	if n := utils.CountTokens(trunc); n > 300 {
		t.Fatalf("tokens=%d exceeds limit", n)
	}
	if !strings.HasSuffix(trunc, utils.TruncatedMarker) {
		t.Fatalf("expected truncation marker")
	}
	if !strings.HasSuffix(strings.TrimSuffix(trunc, utils.TruncatedMarker), "| a | b |") {
		t.Fatalf("expected cut at a line boundary, got %q", trunc[len(trunc)-40:])
	}
	if got := utils.TruncateToTokenLimit("short", 10); got != "short" {
		t.Fatalf("short text changed: %q", got)
	}
	if got := utils.TruncateToTokenLimit("anything", 0); got != "" {
		t.Fatalf("zero limit should yield empty, got %q", got)
	}
}

func TestMarkdownToHTML(t *testing.T) {
	out := utils.MarkdownToHTML("## Title\n\n| a | b |\n| --- | --- |\n| 1 | <b>x</b> |\n")
	if !strings.Contains(out, "<h2") || !strings.Contains(out, "<table>") {
		t.Fatalf("unexpected html: %s", out)
	}
	if strings.Contains(out, "<b>") {
		t.Fatalf("raw html must be dropped: %s", out)
	}
	page := utils.MarkdownPage("Report", "text")
	if !strings.Contains(page, "<html") || !strings.Contains(page, "<title>Report</title>") {
		t.Fatalf("expected complete page: %s", page)
	}
}

func TestSafeWriteFile(t *testing.T) {
	path := t.TempDir() + "/nested/out.json"
	b, err := utils.PrettyJSON(map[string]int{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
}
