package prompt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the scope value union.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindMap
)

// Value is a tagged union over the shapes scenario scope configuration can
// take: a scalar, a list, or a nested map. It replaces the untyped blob the
// admin UI stores with something the template resolver can walk predictably.
type Value struct {
	Kind   Kind
	Scalar string
	List   []Value
	Map    map[string]Value
}

// Scope is the scenario's template variable namespace.
type Scope map[string]Value

// ScalarValue wraps a plain string.
func ScalarValue(s string) Value {
	return Value{Kind: KindScalar, Scalar: s}
}

// ListValue wraps a list of values.
func ListValue(items ...Value) Value {
	return Value{Kind: KindList, List: items}
}

// MapValue wraps a nested map.
func MapValue(m map[string]Value) Value {
	return Value{Kind: KindMap, Map: m}
}

// ScopeFromJSON decodes an arbitrary JSON object into a Scope. Numbers and
// booleans become their canonical string forms; nulls become empty scalars.
func ScopeFromJSON(raw []byte) (Scope, error) {
	if len(raw) == 0 {
		return Scope{}, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode scope: %w", err)
	}
	scope := make(Scope, len(decoded))
	for key, value := range decoded {
		scope[key] = fromAny(value)
	}
	return scope, nil
}

func fromAny(v any) Value {
	switch typed := v.(type) {
	case nil:
		return ScalarValue("")
	case string:
		return ScalarValue(typed)
	case bool:
		return ScalarValue(strconv.FormatBool(typed))
	case float64:
		// JSON numbers: render integers without the trailing .0
		if typed == float64(int64(typed)) {
			return ScalarValue(strconv.FormatInt(int64(typed), 10))
		}
		return ScalarValue(strconv.FormatFloat(typed, 'f', -1, 64))
	case []any:
		items := make([]Value, 0, len(typed))
		for _, item := range typed {
			items = append(items, fromAny(item))
		}
		return Value{Kind: KindList, List: items}
	case map[string]any:
		m := make(map[string]Value, len(typed))
		for key, value := range typed {
			m[key] = fromAny(value)
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return ScalarValue(fmt.Sprintf("%v", typed))
	}
}

// Lookup resolves a dotted path ("brand.tone", "hashtags.0") against the
// scope. List segments accept numeric indices.
func (s Scope) Lookup(path string) (Value, bool) {
	segments := strings.Split(path, ".")
	current, ok := s[segments[0]]
	if !ok {
		return Value{}, false
	}
	for _, segment := range segments[1:] {
		switch current.Kind {
		case KindMap:
			next, exists := current.Map[segment]
			if !exists {
				return Value{}, false
			}
			current = next
		case KindList:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(current.List) {
				return Value{}, false
			}
			current = current.List[index]
		default:
			return Value{}, false
		}
	}
	return current, true
}

// Render produces the substitution text for a value: scalars verbatim,
// lists comma-joined, maps as compact JSON.
func (v Value) Render() string {
	switch v.Kind {
	case KindScalar:
		return v.Scalar
	case KindList:
		parts := make([]string, 0, len(v.List))
		for _, item := range v.List {
			parts = append(parts, item.Render())
		}
		return strings.Join(parts, ", ")
	case KindMap:
		encoded, err := json.Marshal(v.toAny())
		if err != nil {
			return ""
		}
		return string(encoded)
	}
	return ""
}

func (v Value) toAny() any {
	switch v.Kind {
	case KindScalar:
		return v.Scalar
	case KindList:
		out := make([]any, 0, len(v.List))
		for _, item := range v.List {
			out = append(out, item.toAny())
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for key, value := range v.Map {
			out[key] = value.toAny()
		}
		return out
	}
	return nil
}

// Merge returns a scope with defaults filled in for keys the scenario does
// not set itself. Scenario values always win.
func (s Scope) Merge(defaults Scope) Scope {
	merged := make(Scope, len(s)+len(defaults))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range s {
		merged[key] = value
	}
	return merged
}
