package interpreter

import (
	"strconv"
)

// Value is a tree-walk runtime value: nil, bool, float64, string, a
// Callable or an *Instance.
type Value interface{}

// IsTruthy reports whether v counts as true in a condition. Only nil and
// false are falsey; 0 and "" are truthy.
func IsTruthy(v Value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	}
	return true
}

// IsEqual compares by variant. Numbers, strings and bools compare by
// value, nil equals only nil, and callables and instances compare by
// identity.
func IsEqual(a, b Value) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case bool:
		b, ok := b.(bool)
		return ok && a == b
	case float64:
		b, ok := b.(float64)
		return ok && a == b
	case string:
		b, ok := b.(string)
		return ok && a == b
	}
	return a == b
}

// Stringify formats v the way print shows it.
func Stringify(v Value) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case Callable:
		return v.String()
	case *Instance:
		return v.String()
	}
	return "<unknown>"
}
