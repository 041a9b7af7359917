package analysis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParam is wrapped by every invalid or missing parameter error.
var ErrParam = errors.New("invalid parameter")

// Params are the method options submitted with a request, keyed by form name.
type Params map[string]string

// String returns the trimmed value of key.
func (p Params) String(key string) string {
	return strings.TrimSpace(p[key])
}

// Require returns the value of key or an ErrParam when it is blank.
func (p Params) Require(key string) (string, error) {
	v := p.String(key)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrParam, key)
	}
	return v, nil
}

// List splits a comma or newline separated value into trimmed items.
func (p Params) List(key string) []string {
	raw := strings.NewReplacer("\r", "", "\n", ",").Replace(p[key])
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Int returns key as an int, or def when absent.
func (p Params) Int(key string, def int) (int, error) {
	v := p.String(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrParam, key, v)
	}
	return n, nil
}

// Float returns key as a float64, or def when absent. Decimal commas are accepted.
func (p Params) Float(key string, def float64) (float64, error) {
	v := p.String(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", ErrParam, key, v)
	}
	return f, nil
}

// Bool reports whether key holds a truthy value (true, 1, yes, on).
func (p Params) Bool(key string) bool {
	switch strings.ToLower(p.String(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// OneOf returns key, lower-cased, when it is one of allowed; def when absent.
func (p Params) OneOf(key, def string, allowed ...string) (string, error) {
	v := strings.ToLower(p.String(key))
	if v == "" {
		return def, nil
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s must be one of %s, got %q", ErrParam, key, strings.Join(allowed, "|"), v)
}
