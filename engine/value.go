package engine

import (
	"encoding/json"
	"math"
	"sort"
)

// Attribute values are JSON-compatible: nil, bool, int, float64, string,
// []any and map[string]any. Normalize maps everything else onto that set so
// a value survives a JSON round trip unchanged. Integral numbers are stored
// as int, everything else numeric as float64.

// Normalize returns the canonical form of an attribute value.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, string:
		return val
	case int:
		return val
	case int8:
		return int(val)
	case int16:
		return int(val)
	case int32:
		return int(val)
	case int64:
		return normalizeInt64(val)
	case uint:
		return normalizeUint64(uint64(val))
	case uint8:
		return int(val)
	case uint16:
		return int(val)
	case uint32:
		return normalizeUint64(uint64(val))
	case uint64:
		return normalizeUint64(val)
	case float32:
		return normalizeFloat(float64(val))
	case float64:
		return normalizeFloat(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return normalizeInt64(i)
		}
		f, _ := val.Float64()
		return normalizeFloat(f)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case []int:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	case map[string]int:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out
	case map[string]bool:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out
	default:
		return val
	}
}

// normalizeInt64 keeps integers exact; only values int cannot hold fall
// back to float64.
func normalizeInt64(i int64) any {
	if n := int(i); int64(n) == i {
		return n
	}
	return float64(i)
}

func normalizeUint64(u uint64) any {
	if u <= math.MaxInt {
		return int(u)
	}
	return float64(u)
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int(f)
	}
	return f
}

// NormalizeMap normalizes every value of m into a fresh map.
func NormalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

// CloneValue deep-copies lists and maps so instances never share
// mutable containers with their type definition.
func CloneValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case map[string]any:
		return CloneMap(val)
	default:
		return val
	}
}

// CloneMap deep-copies an attribute map. A nil map clones to an empty one.
func CloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// AsInt converts a numeric attribute to int. Non-numbers yield 0, false.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// AsFloat converts a numeric attribute to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// AsString returns v if it is a string.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Truthy applies the loose truth test content scripts expect: nil, false,
// zero and empty strings/containers are false.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	}
	if f, ok := AsFloat(v); ok {
		return f != 0
	}
	return true
}

// AsCounts reads an item-count map (item name → count). Entries that are
// not numbers are skipped.
func AsCounts(v any) map[string]int {
	out := map[string]int{}
	switch m := v.(type) {
	case map[string]any:
		for k, item := range m {
			if n, ok := AsInt(item); ok {
				out[k] = n
			}
		}
	case map[string]int:
		for k, n := range m {
			out[k] = n
		}
	}
	return out
}

// AsIDs reads a list of entity ids. Non-string elements are skipped.
func AsIDs(v any) []string {
	var out []string
	switch list := v.(type) {
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range list {
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
