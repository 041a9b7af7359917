package dataset

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/statloom/internal/ingest"
	"github.com/xuri/excelize/v2"
)

const sales = "Region;Units;Price;When\n" +
	"EU;10;1,5;2024-01-01\n" +
	"US;20;2,5;2024-02-01\n" +
	"\n" +
	"EU;;3,0;2024-03-01\n" +
	"APAC;40;n/a;2024-04-01\n"

func TestLoadCSV(t *testing.T) {
	ds, err := Load("sales.csv", []byte(sales), DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Delimiter != ingest.Semicolon {
		t.Fatalf("delimiter = %v", ds.Delimiter)
	}
	if len(ds.Rows) != 4 {
		t.Fatalf("rows = %d, want 4 (blank line skipped)", len(ds.Rows))
	}
	price, err := ds.Floats("price")
	if err != nil {
		t.Fatalf("Floats: %v", err)
	}
	if price[0] != 1.5 || price[2] != 3.0 || !math.IsNaN(price[3]) {
		t.Fatalf("price = %v", price)
	}
	kinds := ds.Kinds()
	want := []Kind{Categorical, Numeric, Numeric, Datetime}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}
	m, dropped, err := ds.Matrix([]string{"Units", "Price"})
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if r, c := m.Dims(); r != 2 || c != 2 || dropped != 2 {
		t.Fatalf("matrix %dx%d dropped = %d", r, c, dropped)
	}
	if m.At(1, 0) != 20 || m.At(1, 1) != 2.5 {
		t.Fatalf("matrix row 1 = %v %v", m.At(1, 0), m.At(1, 1))
	}
}

func TestLoadMaxRowsAndErrors(t *testing.T) {
	ds, err := Load("x.csv", []byte("a,b\n1,2\n3,4\n5,6"), Options{MaxRows: 2})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Rows) != 2 || len(ds.Notes) != 1 {
		t.Fatalf("rows = %d notes = %v", len(ds.Rows), ds.Notes)
	}
	if _, err := Load("x.csv", []byte("   \n"), DefaultOptions()); !errors.Is(err, ingest.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := ds.Floats("nope"); !errors.Is(err, ErrNoColumn) {
		t.Fatalf("expected ErrNoColumn, got %v", err)
	}
}

func TestLoadCSVHeaderAlignment(t *testing.T) {
	ds, err := Load("x.csv", []byte("  \nA,B\n1,2\n3,4\n"), DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if strings.Join(ds.Headers, "|") != "A|B" || len(ds.Rows) != 2 {
		t.Fatalf("leading blank line: headers = %v rows = %v", ds.Headers, ds.Rows)
	}

	ds, err = Load("x.csv", []byte("\"City, State\",Sales\n\"Austin, TX\",10\n"), DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Headers) != 2 || ds.Headers[0] != "City, State" {
		t.Fatalf("quoted header split: %q", ds.Headers)
	}
	sales, err := ds.Column("Sales")
	if err != nil || sales[0] != "10" {
		t.Fatalf("Sales = %v (%v)", sales, err)
	}
	if len(ds.Notes) != 0 {
		t.Fatalf("unexpected notes: %v", ds.Notes)
	}

	if _, err := Load("x.csv", []byte("\"a,b\"\n1\n"), DefaultOptions()); !errors.Is(err, ingest.ErrSingleColumn) {
		t.Fatalf("expected ErrSingleColumn, got %v", err)
	}
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	idx, err := f.NewSheet("Data")
	if err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	f.SetActiveSheet(idx)
	rows := [][]any{{"x", "y"}, {1, 2.5}, {2, 3.5}, {3, nil}}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Data", cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	ds, err := Load("book.xlsx", buf.Bytes(), Options{Sheet: "data"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if strings.Join(ds.Headers, ",") != "x,y" || len(ds.Rows) != 3 {
		t.Fatalf("dataset = %+v", ds)
	}
	if ds.Rows[2][1] != "" {
		t.Fatalf("short row not padded: %#v", ds.Rows[2])
	}
	if _, err := Load("book.xlsx", buf.Bytes(), Options{Sheet: "Missing"}); err == nil || !strings.Contains(err.Error(), "available sheets") {
		t.Fatalf("expected sheet error, got %v", err)
	}
}

func TestParseNumber(t *testing.T) {
	cases := map[string]float64{
		"1.5":        1.5,
		"1,5":        1.5,
		"1.234,56":   1234.56,
		"1,234.56":   1234.56,
		"12%":        12,
		"1e3":        1000,
		" -4 ":       -4,
		"1\u00a0000": 1000,
	}
	for in, want := range cases {
		got, ok := ParseNumber(in)
		if !ok || math.Abs(got-want) > 1e-9 {
			t.Errorf("ParseNumber(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	for _, in := range []string{"", "abc", "NA", "-", "2024-01-01"} {
		if _, ok := ParseNumber(in); ok {
			t.Errorf("ParseNumber(%q) should fail", in)
		}
	}
}

func TestFilter(t *testing.T) {
	ds, err := Load("sales.csv", []byte(sales), DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out, err := ds.Filter(`Region == "EU" && Price > 2`)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(out.Rows) != 1 || out.Rows[0][2] != "3,0" {
		t.Fatalf("filtered = %v", out.Rows)
	}
	out, err = ds.Filter(`$env["Units"] != nil`)
	if err != nil {
		t.Fatalf("Filter env: %v", err)
	}
	if len(out.Rows) != 3 {
		t.Fatalf("filtered = %v", out.Rows)
	}
	if _, err := ds.Filter("Units +"); err == nil {
		t.Fatalf("expected compile error")
	}
	if _, err := ds.Filter("Units"); err == nil {
		t.Fatalf("expected non-bool error")
	}
}
