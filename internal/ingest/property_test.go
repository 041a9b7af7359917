package ingest

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestHeaderProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("a single delimiter-free token never yields headers", prop.ForAll(
		func(token string) bool {
			_, _, err := ExtractHeaders(token + "\n1\n2")
			return errors.Is(err, ErrSingleColumn)
		},
		gen.Identifier(),
	))

	properties.Property("whitespace-only input always fails as empty", prop.ForAll(
		func(parts []string) bool {
			h, _, err := ExtractHeaders(strings.Join(parts, ""))
			return h == nil && errors.Is(err, ErrEmptyInput)
		},
		gen.SliceOf(gen.OneConstOf(" ", "\t", "\n", "\r", "\r\n"), reflect.TypeOf("")),
	))

	for _, d := range []Delimiter{Comma, Semicolon, Tab} {
		d := d
		properties.Property("headers joined by "+d.String()+" round-trip", prop.ForAll(
			func(names []string) bool {
				if len(names) < 2 {
					return true
				}
				got, delim, err := ExtractHeaders(strings.Join(names, string(d)) + "\n")
				return err == nil && delim == d && reflect.DeepEqual(got, names)
			},
			gen.SliceOf(gen.Identifier()),
		))
	}

	properties.Property("preview rows always match the header width", prop.ForAll(
		func(widths []int) bool {
			var b strings.Builder
			b.WriteString("a,b,c\n")
			for _, w := range widths {
				b.WriteString(strings.Repeat("1,", w))
				b.WriteString("1\n")
			}
			p, err := BuildPreview(b.String(), DefaultOptions())
			if err != nil {
				return false
			}
			for _, r := range p.Rows {
				if len(r) != len(p.Headers) {
					return false
				}
			}
			return len(p.Rows) <= 5 && p.DataRows == len(widths)
		},
		gen.SliceOf(gen.IntRange(0, 6)),
	))

	properties.TestingRun(t)
}
