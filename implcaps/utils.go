package implcaps

import "math"

// Get returns the setting k from m if present and of type T, otherwise def.
func Get[T any](m map[string]any, k string, def T) T {
	if v, ok := m[k]; ok {
		if cV, ok := v.(T); ok {
			return cV
		}
	}

	return def
}

// GetInt returns the setting k from m as an int. Rules may produce any numeric type depending on whether the value
// came from yaml or an expression, integral floats are accepted.
func GetInt(m map[string]any, k string, def int) int {
	switch v := m[k].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	}

	return def
}
