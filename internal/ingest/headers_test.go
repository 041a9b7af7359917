package ingest

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestExtractHeaders(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		want  []string
		delim Delimiter
	}{
		{"comma", "A,B\n1,2\n3,4", []string{"A", "B"}, Comma},
		{"semicolon", "Region;Sales;Cost\nEU;1,5;2", []string{"Region", "Sales", "Cost"}, Semicolon},
		{"tab", "x\ty\n1\t2", []string{"x", "y"}, Tab},
		{"quoted and padded", ` "Name" , 'Age' ,City` + "\nann,3,x", []string{"Name", "Age", "City"}, Comma},
		{"crlf and bom", "\ufeffa,b\r\n1,2\r\n", []string{"a", "b"}, Comma},
		{"leading blank lines", "\n\n  \nq;r\n1;2", []string{"q", "r"}, Semicolon},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, d, err := ExtractHeaders(c.in)
			if err != nil {
				t.Fatalf("ExtractHeaders: %v", err)
			}
			if !reflect.DeepEqual(got, c.want) {
				t.Fatalf("headers = %#v, want %#v", got, c.want)
			}
			if d != c.delim {
				t.Fatalf("delimiter = %v, want %v", d, c.delim)
			}
		})
	}
}

func TestExtractHeadersFailures(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t\r\n"} {
		if h, _, err := ExtractHeaders(in); !errors.Is(err, ErrEmptyInput) || h != nil {
			t.Fatalf("ExtractHeaders(%q) = %v, %v; want ErrEmptyInput", in, h, err)
		}
	}
	_, _, err := ExtractHeaders("onlyone\n1\n2")
	if !errors.Is(err, ErrSingleColumn) {
		t.Fatalf("expected ErrSingleColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), "onlyone") {
		t.Fatalf("error should name the header line: %v", err)
	}
}

func TestBuildPreview(t *testing.T) {
	p, err := BuildPreview("A,B\n1,2\n3,4", DefaultOptions())
	if err != nil {
		t.Fatalf("BuildPreview: %v", err)
	}
	if len(p.Rows) != 2 || p.DataRows != 2 {
		t.Fatalf("rows = %d (data %d), want 2", len(p.Rows), p.DataRows)
	}
	if len(p.Warnings) != 1 || !strings.HasPrefix(p.Warnings[0], "Warning: Small dataset") {
		t.Fatalf("warnings = %#v", p.Warnings)
	}
}

func TestBuildPreviewLimitsAndRagged(t *testing.T) {
	var b strings.Builder
	b.WriteString("a;b;c\n")
	b.WriteString("1\n")       // short row
	b.WriteString("1;2;3;4\n") // long row
	for i := 0; i < 20; i++ {
		b.WriteString("5;6;7\n")
	}
	p, err := BuildPreview(b.String(), Options{PreviewRows: 5, SmallDatasetRows: 10})
	if err != nil {
		t.Fatalf("BuildPreview: %v", err)
	}
	if len(p.Rows) != 5 {
		t.Fatalf("preview rows = %d, want 5", len(p.Rows))
	}
	if p.DataRows != 22 {
		t.Fatalf("data rows = %d, want 22", p.DataRows)
	}
	if !reflect.DeepEqual(p.Rows[0], []string{"1", "", ""}) {
		t.Fatalf("short row = %#v", p.Rows[0])
	}
	if !reflect.DeepEqual(p.Rows[1], []string{"1", "2", "3"}) {
		t.Fatalf("long row = %#v", p.Rows[1])
	}
	if len(p.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", p.Warnings)
	}
	html := p.HTML()
	if strings.Count(html, "<tr>") != 6 {
		t.Fatalf("expected 6 table rows, got html %s", html)
	}
}

func TestPreviewHTMLEscapes(t *testing.T) {
	p, err := BuildPreview("<b>,x\n<script>,1", DefaultOptions())
	if err != nil {
		t.Fatalf("BuildPreview: %v", err)
	}
	h := p.HTML()
	if strings.Contains(h, "<script>") || !strings.Contains(h, "&lt;b&gt;") {
		t.Fatalf("html not escaped: %s", h)
	}
}

func TestNumericWarnings(t *testing.T) {
	p, err := BuildPreview("name,score\nann,1.5\nbob,n/a\ncid,", DefaultOptions())
	if err != nil {
		t.Fatalf("BuildPreview: %v", err)
	}
	w := NumericWarnings(p, []string{"score", "Name", "missing"})
	if len(w) != 3 {
		t.Fatalf("warnings = %#v", w)
	}
	if !strings.Contains(w[0], `"score"`) || !strings.Contains(w[2], "not found") {
		t.Fatalf("warnings = %#v", w)
	}
}

func TestStateClearsErrorOnReload(t *testing.T) {
	var st State
	if err := st.Load("single", DefaultOptions()); err == nil {
		t.Fatalf("expected error")
	}
	if !strings.HasPrefix(st.Error, "Could not parse headers") {
		t.Fatalf("error message = %q", st.Error)
	}
	if err := st.Load("a,b\n1,2", DefaultOptions()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if st.Error != "" || st.Preview == nil {
		t.Fatalf("state not refreshed: %+v", st)
	}
}

func TestBoard(t *testing.T) {
	b := NewBoard(DefaultOptions(), 0, 0)
	if _, err := b.Load("s1", "regression-analysis", ""); err == nil {
		t.Fatalf("expected error for empty upload")
	}
	st, ok := b.Get("s1", "regression-analysis")
	if !ok || st.Error == "" {
		t.Fatalf("expected stored error, got %+v", st)
	}
	st, err := b.Load("s1", "regression-analysis", "x,y\n1,2")
	if err != nil || st.Error != "" {
		t.Fatalf("reload: %v %+v", err, st)
	}
	if _, ok := b.Get("s2", "regression-analysis"); ok {
		t.Fatalf("sessions must not share state")
	}
	b.Reset("s1", "regression-analysis")
	if _, ok := b.Get("s1", "regression-analysis"); ok {
		t.Fatalf("reset did not remove state")
	}
}

func TestBoardBounds(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBoard(DefaultOptions(), time.Minute, 2)
	b.now = func() time.Time { return now }

	for _, tpl := range []string{"a", "b", "c"} {
		if _, err := b.Load("s", tpl, "x,y\n1,2"); err != nil {
			t.Fatalf("load %s: %v", tpl, err)
		}
		now = now.Add(time.Second)
	}
	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2", b.Len())
	}
	if _, ok := b.Get("s", "a"); ok {
		t.Fatalf("oldest state should be evicted")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := b.Get("s", "c"); ok {
		t.Fatalf("idle state should expire")
	}
	if _, err := b.Load("s", "d", "x,y\n1,2"); err != nil {
		t.Fatalf("load d: %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("expired states not swept: Len = %d", b.Len())
	}
}
