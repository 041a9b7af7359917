package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/statloom/internal/ingest"
	"github.com/xuri/excelize/v2"
)

// Decoder turns raw upload bytes into a Dataset.
type Decoder interface {
	CanDecode(filename string) bool
	Decode(data []byte, opt Options) (*Dataset, error)
}

var registry []Decoder

// Register adds a decoder; later registrations are consulted first.
func Register(d Decoder) {
	registry = append([]Decoder{d}, registry...)
}

func decoderFor(name string) Decoder {
	for _, d := range registry {
		if d.CanDecode(name) {
			return d
		}
	}
	return textDecoder{}
}

func init() {
	Register(textDecoder{})
	Register(xlsxDecoder{})
}

type textDecoder struct{}

func (textDecoder) CanDecode(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

func (textDecoder) Decode(data []byte, _ Options) (*Dataset, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	// ExtractHeaders picks the delimiter and owns the empty/single-column
	// errors; the header cells themselves come from the csv reader so quoted
	// names containing the delimiter stay whole.
	_, delim, err := ingest.ExtractHeaders(text)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim.Rune()
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	ds := &Dataset{Delimiter: delim}
	ragged := 0
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(ds.Rows)+1, err)
		}
		if blank(rec) {
			continue
		}
		if ds.Headers == nil {
			ds.Headers = make([]string, len(rec))
			for i, h := range rec {
				ds.Headers[i] = ingest.CleanCell(h)
			}
			continue
		}
		row, odd := normalizeRow(rec, len(ds.Headers))
		if odd {
			ragged++
		}
		ds.Rows = append(ds.Rows, row)
	}
	if len(ds.Headers) < 2 {
		return nil, fmt.Errorf("%w: %q", ingest.ErrSingleColumn, strings.Join(ds.Headers, string(delim)))
	}
	if ragged > 0 {
		ds.Notes = append(ds.Notes, fmt.Sprintf("%d rows did not match the header width and were padded or trimmed", ragged))
	}
	return ds, nil
}

type xlsxDecoder struct{}

func (xlsxDecoder) CanDecode(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

func (xlsxDecoder) Decode(data []byte, opt Options) (*Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := sheets[0]
	if opt.Sheet != "" {
		sheet = ""
		for _, s := range sheets {
			if strings.EqualFold(s, opt.Sheet) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return nil, fmt.Errorf("sheet '%s' not found; available sheets: %s", opt.Sheet, strings.Join(sheets, ", "))
		}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	for len(rows) > 0 && blank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, ingest.ErrEmptyInput
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	if len(headers) < 2 {
		return nil, fmt.Errorf("%w: sheet %s", ingest.ErrSingleColumn, sheet)
	}
	ds := &Dataset{Headers: headers}
	for _, rec := range rows[1:] {
		if blank(rec) {
			continue
		}
		// excelize drops trailing empty cells, so short rows are expected here
		row, _ := normalizeRow(rec, len(headers))
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
