// Package value defines the runtime representation of ember values: the
// {nil, bool, number, object} tagged union, the heap object variants
// (strings, functions, closures, upvalues, natives, classes, instances,
// bound methods), the interned-string table, and the allocator that tracks
// every heap object for the garbage collector in package vm.
package value

import (
	"fmt"
	"math"
)

// Value is implemented by every one of the four cases of the tagged union:
// NilType, Bool, Number, and any Obj (a reference into the heap). There is
// no fifth case; a type switch on these four covers every Value.
type Value interface {
	// String returns the text `print` would emit for this value.
	String() string
	// Type names the value's kind, as used in runtime error messages.
	Type() string
	// Truth reports the value's truthiness: only Nil and Bool(false) are
	// falsey, everything else (including Number(0) and "") is truthy.
	Truth() bool
}

// NilType is the type of the singleton Nil value.
type NilType struct{}

// Nil is the only value of type NilType.
var Nil = NilType{}

func (NilType) String() string { return "nil" }
func (NilType) Type() string   { return "nil" }
func (NilType) Truth() bool    { return false }

// Bool is the boolean value kind.
type Bool bool

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Bool) Type() string { return "boolean" }
func (b Bool) Truth() bool  { return bool(b) }

// Number is the (only) numeric value kind: an IEEE-754 double.
type Number float64

func (n Number) String() string {
	if math.IsInf(float64(n), 1) {
		return "inf"
	}
	if math.IsInf(float64(n), -1) {
		return "-inf"
	}
	// Integral doubles print without a trailing ".0", matching the
	// original source's printf("%g", ...) rendering.
	return fmt.Sprintf("%g", float64(n))
}
func (Number) Type() string { return "number" }
func (Number) Truth() bool  { return true }

// Equal implements value equality: Nil==Nil; Bool by payload; Number by
// IEEE-754 == (so NaN != NaN, including NaN != itself); object references by
// identity, which coincides with value equality for strings because all
// strings are interned.
func Equal(x, y Value) bool {
	switch xv := x.(type) {
	case NilType:
		_, ok := y.(NilType)
		return ok
	case Bool:
		yv, ok := y.(Bool)
		return ok && xv == yv
	case Number:
		yv, ok := y.(Number)
		return ok && xv == yv
	default:
		// Any Obj: Go interface comparison is pointer identity once the
		// dynamic types match, which is exactly reference identity.
		return x == y
	}
}
