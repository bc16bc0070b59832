package value

import "fmt"

// ObjFunction is an immutable compiled function: its arity, the number of
// upvalues its closures must allocate, its bytecode Chunk, and an optional
// name (nil for the top-level script function).
type ObjFunction struct {
	ObjHeader
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *ObjString
}

func (f *ObjFunction) Header() *ObjHeader { return &f.ObjHeader }
func (f *ObjFunction) Type() string       { return "function" }
func (f *ObjFunction) Truth() bool        { return true }
func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// UpvalueDesc describes one of a closure's upvalues, as recorded by the
// compiler alongside an OpClosure instruction: whether it captures a local
// slot of the immediately enclosing function (IsLocal) or forwards one of
// that function's own upvalues, and the index into the relevant array.
type UpvalueDesc struct {
	IsLocal bool
	Index   byte
}

// ObjClosure pairs a Function with the live Upvalues its body captured at
// the point the OpClosure instruction ran.
type ObjClosure struct {
	ObjHeader
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) Header() *ObjHeader { return &c.ObjHeader }
func (c *ObjClosure) Type() string       { return "function" }
func (c *ObjClosure) Truth() bool        { return true }
func (c *ObjClosure) String() string     { return c.Function.String() }

// ObjUpvalue is a closure's indirection onto a variable of an enclosing
// function. It starts open, pointing at a live VM stack slot via Location;
// closeUpvalues (package vm) transitions it to closed exactly once, at which
// point it owns its value directly in Closed and Location points at Closed.
type ObjUpvalue struct {
	ObjHeader
	Location *Value
	Closed   Value
	Next     *ObjUpvalue // intrusive, sorted-by-location-descending open list
}

func (u *ObjUpvalue) Header() *ObjHeader { return &u.ObjHeader }
func (u *ObjUpvalue) Type() string       { return "upvalue" }
func (u *ObjUpvalue) Truth() bool        { return true }
func (u *ObjUpvalue) String() string     { return "upvalue" }

// NativeFn is the signature of a builtin function: given the call
// arguments, it returns a result or an error.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a Go function so it can be called like any other ember
// function.
type ObjNative struct {
	ObjHeader
	Name string
	Fn   NativeFn
}

func (n *ObjNative) Header() *ObjHeader { return &n.ObjHeader }
func (n *ObjNative) Type() string       { return "function" }
func (n *ObjNative) Truth() bool        { return true }
func (n *ObjNative) String() string     { return fmt.Sprintf("<native fn %s>", n.Name) }
