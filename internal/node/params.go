package node

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Params holds resolved parameter values keyed by parameter name.
// Lookups fall back to a case-insensitive match because YAML loaders
// may lower-case keys.
type Params map[string]any

// Value returns the raw value of name and whether it is set.
func (p Params) Value(name string) (any, bool) {
	if v, ok := p[name]; ok {
		return v, true
	}
	for k, v := range p {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether name is set to a non-nil value.
func (p Params) Has(name string) bool {
	v, ok := p.Value(name)
	return ok && v != nil
}

// String returns name as a string, or def when unset.
func (p Params) String(name, def string) string {
	v, ok := p.Value(name)
	if !ok || v == nil {
		return def
	}
	str, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return str
}

// Bool returns name as a bool, or def when unset or not a boolean.
func (p Params) Bool(name string, def bool) bool {
	v, ok := p.Value(name)
	if !ok || v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// Int returns name as an int, or def when unset. Non-integral values are
// rejected rather than truncated.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p.Value(name)
	if !ok || v == nil {
		return def, nil
	}
	if s, isString := v.(string); isString {
		v = strings.TrimSpace(s)
	}
	if f, err := cast.ToFloat64E(v); err == nil && f != math.Trunc(f) {
		return 0, fmt.Errorf("parameter %q: %v is not an integer", name, v)
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", name, err)
	}
	return n, nil
}

// Collection returns the nested parameter group name. A JSON object
// string is decoded; any other non-map value yields an empty collection.
func (p Params) Collection(name string) Params {
	v, ok := p.Value(name)
	if !ok || v == nil {
		return Params{}
	}
	if nested, isParams := v.(Params); isParams {
		return nested
	}
	m, err := cast.ToStringMapE(v)
	if err != nil || m == nil {
		return Params{}
	}
	return Params(m)
}
