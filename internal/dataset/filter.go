package dataset

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter keeps the rows for which the boolean expression holds.
//
// Each column is exposed under its header name; numeric cells are float64,
// missing cells are nil and everything else is a string. Headers that are not
// identifiers are reachable as $env["Unit Price"].
func (d *Dataset) Filter(expression string) (*Dataset, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return d, nil
	}
	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expression, err)
	}
	var kept [][]string
	for i, r := range d.Rows {
		ok, err := d.match(program, r)
		if err != nil {
			return nil, fmt.Errorf("filter %q at row %d: %w", expression, i+1, err)
		}
		if ok {
			kept = append(kept, r)
		}
	}
	return d.Subset(kept), nil
}

func (d *Dataset) match(program *vm.Program, row []string) (bool, error) {
	env := make(map[string]any, len(d.Headers))
	for j, h := range d.Headers {
		v := row[j]
		switch {
		case IsMissing(v):
			env[h] = nil
		default:
			if f, ok := ParseNumber(v); ok {
				env[h] = f
			} else {
				env[h] = v
			}
		}
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	if out == nil {
		return false, nil
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("evaluated to %T, expected bool", out)
	}
	return b, nil
}
