package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/statloom/internal/ingest"
)

// Options controls how an uploaded file becomes a Dataset.
type Options struct {
	// MaxRows limits rows kept; 0 means unlimited.
	MaxRows int
	// Sheet selects the XLSX sheet by name; empty means the first sheet.
	Sheet string
}

// DefaultOptions returns the loader defaults.
func DefaultOptions() Options {
	return Options{MaxRows: 100000}
}

// Dataset is a rectangular table of string cells with a header row.
type Dataset struct {
	Name      string
	Headers   []string
	Rows      [][]string
	Delimiter ingest.Delimiter
	// Notes collects non-fatal loader messages (row caps, padded rows).
	Notes []string
}

// ErrNoColumn is wrapped by lookups of unknown column names.
var ErrNoColumn = errors.New("column not found")

// Load decodes data using the decoder registered for name's extension.
func Load(name string, data []byte, opt Options) (*Dataset, error) {
	dec := decoderFor(name)
	ds, err := dec.Decode(data, opt)
	if err != nil {
		return nil, err
	}
	ds.Name = name
	if opt.MaxRows > 0 && len(ds.Rows) > opt.MaxRows {
		ds.Notes = append(ds.Notes, fmt.Sprintf("processed only %d/%d rows due to MaxRows", opt.MaxRows, len(ds.Rows)))
		ds.Rows = ds.Rows[:opt.MaxRows]
	}
	return ds, nil
}

// Index returns the position of col, matched case-insensitively.
func (d *Dataset) Index(col string) (int, error) {
	want := strings.TrimSpace(col)
	for i, h := range d.Headers {
		if strings.EqualFold(h, want) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrNoColumn, col)
}

// Column returns a copy of the cells of col.
func (d *Dataset) Column(col string) ([]string, error) {
	idx, err := d.Index(col)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[idx]
	}
	return out, nil
}

// Subset returns a dataset sharing headers with d and holding the given rows.
func (d *Dataset) Subset(rows [][]string) *Dataset {
	return &Dataset{Name: d.Name, Headers: d.Headers, Rows: rows, Delimiter: d.Delimiter, Notes: d.Notes}
}

func normalizeRow(rec []string, width int) ([]string, bool) {
	out := make([]string, width)
	n := copy(out, rec)
	for i := 0; i < n; i++ {
		out[i] = strings.TrimSpace(out[i])
	}
	return out, len(rec) != width
}
