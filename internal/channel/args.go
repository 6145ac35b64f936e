package channel

import (
	"encoding/json"
	"math"
)

// ArgumentMap returns the argument map, or nil when the payload is a primitive
func (c *MethodCall) ArgumentMap() map[string]any {
	m, _ := c.Arguments.(map[string]any)
	return m
}

// Argument returns the raw value for key and whether the key is present
func (c *MethodCall) Argument(key string) (any, bool) {
	m, ok := c.Arguments.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// Has reports whether key is present, even with a null value
func (c *MethodCall) Has(key string) bool {
	_, ok := c.Argument(key)
	return ok
}

// IsNull reports whether key is present with a null value
func (c *MethodCall) IsNull(key string) bool {
	v, ok := c.Argument(key)
	return ok && v == nil
}

// Int returns key as an int. JSON numbers are accepted when integral.
func (c *MethodCall) Int(key string) (int, bool) {
	v, _ := c.Argument(key)
	return AsInt(v)
}

// Bool returns key as a bool
func (c *MethodCall) Bool(key string) (bool, bool) {
	v, _ := c.Argument(key)
	b, ok := v.(bool)
	return b, ok
}

// String returns key as a string
func (c *MethodCall) String(key string) (string, bool) {
	v, _ := c.Argument(key)
	s, ok := v.(string)
	return s, ok
}

// Float returns key as a float64
func (c *MethodCall) Float(key string) (float64, bool) {
	v, _ := c.Argument(key)
	return AsFloat(v)
}

// Map returns key as a nested map
func (c *MethodCall) Map(key string) (map[string]any, bool) {
	v, _ := c.Argument(key)
	m, ok := v.(map[string]any)
	return m, ok
}

// List returns key as a list
func (c *MethodCall) List(key string) ([]any, bool) {
	v, _ := c.Argument(key)
	l, ok := v.([]any)
	return l, ok
}

// StringListMap returns key as a map of string lists.
// Non-string list entries make the whole value invalid.
func (c *MethodCall) StringListMap(key string) (map[string][]string, bool) {
	m, ok := c.Map(key)
	if !ok {
		return nil, false
	}
	out := make(map[string][]string, len(m))
	for k, raw := range m {
		list, ok := raw.([]any)
		if !ok {
			return nil, false
		}
		values := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			values = append(values, s)
		}
		out[k] = values
	}
	return out, true
}

// BoolValue returns the whole payload as a bool
func (c *MethodCall) BoolValue() (bool, bool) {
	b, ok := c.Arguments.(bool)
	return b, ok
}

// IntValue returns the whole payload as an int
func (c *MethodCall) IntValue() (int, bool) {
	return AsInt(c.Arguments)
}

// AsInt converts a decoded number to int
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// AsFloat converts a decoded number to float64
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
