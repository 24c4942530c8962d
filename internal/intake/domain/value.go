package domain

import (
	"math"
	"strconv"
	"strings"
)

// Value is the closed set of shapes a form value can take.
// Renderers switch over the concrete types below.
type Value interface {
	isValue()
}

// Text is a non-empty string.
type Text struct {
	Value string
}

// Number is any JSON number.
type Number struct {
	Value float64
}

// Boolean is a JSON true/false.
type Boolean struct {
	Value bool
}

// List is an array of primitives, already flattened to display strings.
type List struct {
	Items []string
}

// ObjectList is an array whose every element is an object.
type ObjectList struct {
	Items [][]Field
}

// FileRef is an object of the form {"file": {"name": ..., "size": ...}}.
type FileRef struct {
	Name string
	Size string
}

// OpaqueObject is any other object, kept as its raw JSON text.
type OpaqueObject struct {
	Raw string
}

// Absent is null, a missing value, an empty string or an empty array.
type Absent struct{}

func (Text) isValue()         {}
func (Number) isValue()       {}
func (Boolean) isValue()      {}
func (List) isValue()         {}
func (ObjectList) isValue()   {}
func (FileRef) isValue()      {}
func (OpaqueObject) isValue() {}
func (Absent) isValue()       {}

// String は JavaScript の数値文字列化と同じ見た目で数値を返す。
func (n Number) String() string {
	return FormatNumber(n.Value)
}

// FormatNumber formats like JS String(n): plain decimals in [1e-6, 1e21), exponent form
// outside that range with no zero padding in the exponent.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if v == 0 {
		return "0"
	}
	if abs := math.Abs(v); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	text := strconv.FormatFloat(v, 'e', -1, 64)
	mantissa, exponent, _ := strings.Cut(text, "e")
	sign, digits := exponent[:1], strings.TrimLeft(exponent[1:], "0")
	return mantissa + "e" + sign + digits
}

// IsAbsent reports whether v renders as "not provided".
func IsAbsent(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Absent)
	return ok
}
