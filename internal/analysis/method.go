package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/statloom/internal/dataset"
)

// Method is one statistical procedure runnable against a dataset.
type Method interface {
	Name() string
	Run(ctx context.Context, ds *dataset.Dataset, p Params) (*Result, error)
}

// MethodFunc adapts a function to Method.
type MethodFunc struct {
	ID string
	Fn func(ctx context.Context, ds *dataset.Dataset, p Params) (*Result, error)
}

func (m MethodFunc) Name() string { return m.ID }

func (m MethodFunc) Run(ctx context.Context, ds *dataset.Dataset, p Params) (*Result, error) {
	res, err := m.Fn(ctx, ds, p)
	if err != nil {
		return nil, err
	}
	res.Method = m.ID
	res.Dataset = ds.Name
	res.Notes = append(append([]string{}, ds.Notes...), res.Notes...)
	return res, nil
}

var methods = map[string]Method{}

// Register adds m to the method registry, replacing any method of the same name.
func Register(m Method) { methods[strings.ToLower(m.Name())] = m }

// Lookup returns the registered method called name.
func Lookup(name string) (Method, error) {
	m, ok := methods[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown method %q (available: %s)", ErrParam, name, strings.Join(Names(), ", "))
	}
	return m, nil
}

// Names lists the registered methods in alphabetical order.
func Names() []string {
	out := make([]string, 0, len(methods))
	for k := range methods {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register(MethodFunc{"descriptive", Descriptive})
	Register(MethodFunc{"regression", Regression})
	Register(MethodFunc{"sem", SEM})
	Register(MethodFunc{"pls", PLS})
	Register(MethodFunc{"predictive", Predictive})
	Register(MethodFunc{"prescriptive", Prescriptive})
	Register(MethodFunc{"dematel", DEMATEL})
}

// columnsOrNumeric returns the listed columns, or every numeric column except
// the excluded ones when the list is empty.
func columnsOrNumeric(ds *dataset.Dataset, listed []string, exclude ...string) ([]string, error) {
	if len(listed) > 0 {
		for _, c := range listed {
			if _, err := ds.Index(c); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParam, err)
			}
		}
		return listed, nil
	}
	var out []string
	for _, c := range ds.NumericColumns() {
		skip := false
		for _, e := range exclude {
			if strings.EqualFold(c, e) {
				skip = true
			}
		}
		if !skip {
			out = append(out, c)
		}
	}
	return out, nil
}
