package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Params is a strategy parameter mapping. Values are float64 or string.
type Params map[string]interface{}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Float returns the numeric value of key, or def when missing or not numeric.
func (p Params) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch value := v.(type) {
	case float64:
		return value
	case float32:
		return float64(value)
	case int:
		return float64(value)
	case int64:
		return float64(value)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return def
}

// String returns the string value of key, or def.
func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize converts integer values decoded from YAML/JSON into float64 so that
// equality and serialization do not depend on the source format.
func (p Params) Normalize() Params {
	out := make(Params, len(p))
	for k, v := range p {
		switch value := v.(type) {
		case int:
			out[k] = float64(value)
		case int64:
			out[k] = float64(value)
		case float32:
			out[k] = float64(value)
		default:
			out[k] = v
		}
	}
	return out
}
