package bytecode

import (
	"fmt"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	ValNil ValueKind = iota
	ValBool
	ValNumber
	ValObject
)

func (k ValueKind) String() string {
	switch k {
	case ValNil:
		return "nil"
	case ValBool:
		return "bool"
	case ValNumber:
		return "number"
	case ValObject:
		return "string"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value is a VM value: nil, a boolean, a float64 number, or an interned
// string object. The zero Value is nil.
type Value struct {
	Kind ValueKind
	b    bool
	n    float64
	obj  *StringObject
}

// Nil returns the nil value.
func Nil() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{Kind: ValBool, b: b} }

// Number wraps a float64.
func Number(n float64) Value { return Value{Kind: ValNumber, n: n} }

// Object wraps an interned string.
func Object(s *StringObject) Value { return Value{Kind: ValObject, obj: s} }

func (v Value) IsNil() bool    { return v.Kind == ValNil }
func (v Value) IsBool() bool   { return v.Kind == ValBool }
func (v Value) IsNumber() bool { return v.Kind == ValNumber }
func (v Value) IsString() bool { return v.Kind == ValObject }

// AsBool returns the boolean payload. Only meaningful when IsBool.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the number payload. Only meaningful when IsNumber.
func (v Value) AsNumber() float64 { return v.n }

// AsString returns the string object. Only meaningful when IsString.
func (v Value) AsString() *StringObject { return v.obj }

// IsFalsey reports whether v counts as false in a condition. In the VM
// nil, false and the number 0 are falsey.
func (v Value) IsFalsey() bool {
	switch v.Kind {
	case ValNil:
		return true
	case ValBool:
		return !v.b
	case ValNumber:
		return v.n == 0
	}
	return false
}

// Equal compares two values. Values of different kinds are never equal.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ValNil:
		return true
	case ValBool:
		return a.b == b.b
	case ValNumber:
		return a.n == b.n
	case ValObject:
		return a.obj == b.obj || a.obj.Chars == b.obj.Chars
	}
	return false
}

// String formats the value the way `print` shows it.
func (v Value) String() string {
	switch v.Kind {
	case ValNil:
		return "nil"
	case ValBool:
		return strconv.FormatBool(v.b)
	case ValNumber:
		return FormatNumber(v.n)
	case ValObject:
		return v.obj.Chars
	}
	return "?"
}

// GoString quotes strings so stack dumps distinguish "1" from 1.
func (v Value) GoString() string {
	if v.Kind == ValObject {
		return strconv.Quote(v.obj.Chars)
	}
	return v.String()
}

// FormatNumber prints integral numbers without a fractional part.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
