package domain

import (
	"reflect"
	"sort"
)

// Well-known property keys.
const (
	PropName = "name"
	PropType = "type"
)

// Value is the JSON-like property set of an entity at one stage. The "name"
// property is always present and properties are never stored as nil.
type Value map[string]any

// Diff holds top-level property overrides for one stage. A nil entry means
// the property is removed at that stage.
type Diff map[string]any

// Name returns the prototype name stored in the value.
func (v Value) Name() string {
	name, _ := v[PropName].(string)
	return name
}

// UndergroundType returns the "type" property for underground belts and loaders.
func (v Value) UndergroundType() UndergroundType {
	t, _ := v[PropType].(string)
	return UndergroundType(t)
}

// Keys returns the property keys in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Keys returns the diff keys in sorted order.
func (d Diff) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloneValue deep-copies a value.
func CloneValue(v Value) Value {
	if v == nil {
		return nil
	}
	out := make(Value, len(v))
	for k, p := range v {
		out[k] = cloneAny(p)
	}
	return out
}

// CloneDiff deep-copies a diff, keeping nil removals.
func CloneDiff(d Diff) Diff {
	if d == nil {
		return nil
	}
	out := make(Diff, len(d))
	for k, p := range d {
		out[k] = cloneAny(p)
	}
	return out
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, p := range t {
			out[k] = cloneAny(p)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, p := range t {
			out[i] = cloneAny(p)
		}
		return out
	case Value:
		return CloneValue(t)
	default:
		return v
	}
}

// ComputeDiff returns the overrides that turn below into above. Keys missing
// from above are recorded as nil removals.
func ComputeDiff(below, above Value) Diff {
	var diff Diff
	for k, av := range above {
		if bv, ok := below[k]; ok && PropertiesEqual(bv, av) {
			continue
		}
		if diff == nil {
			diff = Diff{}
		}
		diff[k] = cloneAny(av)
	}
	for k := range below {
		if _, ok := above[k]; ok {
			continue
		}
		if diff == nil {
			diff = Diff{}
		}
		diff[k] = nil
	}
	return diff
}

// ApplyDiff applies diff onto value in place.
func ApplyDiff(value Value, diff Diff) {
	for k, p := range diff {
		if p == nil {
			delete(value, k)
			continue
		}
		value[k] = cloneAny(p)
	}
}

// ValuesEqual reports deep equality, comparing numbers by numeric value.
func ValuesEqual(a, b Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !PropertiesEqual(av, bv) {
			return false
		}
	}
	return true
}

// DiffsEqual reports deep equality of two diffs, including nil removals.
func DiffsEqual(a, b Diff) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !PropertiesEqual(av, bv) {
			return false
		}
	}
	return true
}

// PropertiesEqual compares two property values. Numbers of different Go
// kinds compare equal when they hold the same value, so values decoded from
// JSON match values built in code.
func PropertiesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	switch at := a.(type) {
	case map[string]any:
		bt, ok := asMap(b)
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, av := range at {
			bv, ok := bt[k]
			if !ok || !PropertiesEqual(av, bv) {
				return false
			}
		}
		return true
	case Value:
		return PropertiesEqual(map[string]any(at), b)
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !PropertiesEqual(at[i], bt[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Value:
		return map[string]any(t), true
	}
	return nil, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
