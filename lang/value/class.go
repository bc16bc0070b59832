package value

import "fmt"

// ObjClass is a class: a name and a table of methods (name -> *ObjClosure).
// ember has no inheritance opcode (see DESIGN.md Open Question 5), so this
// is the entirety of a class's state.
type ObjClass struct {
	ObjHeader
	Name    *ObjString
	Methods Table
}

func (c *ObjClass) Header() *ObjHeader { return &c.ObjHeader }
func (c *ObjClass) Type() string       { return "class" }
func (c *ObjClass) Truth() bool        { return true }
func (c *ObjClass) String() string     { return c.Name.Chars }

// ObjInstance is an instance of a class: a class reference and a table of
// fields (name -> Value).
type ObjInstance struct {
	ObjHeader
	Class  *ObjClass
	Fields Table
}

func (i *ObjInstance) Header() *ObjHeader { return &i.ObjHeader }
func (i *ObjInstance) Type() string       { return "instance" }
func (i *ObjInstance) Truth() bool        { return true }
func (i *ObjInstance) String() string     { return fmt.Sprintf("%s instance", i.Class.Name.Chars) }

// ObjBoundMethod pairs a receiver Value with a method Closure, produced by
// OpGetProperty when the named field is not an instance field but a method
// of the instance's class.
type ObjBoundMethod struct {
	ObjHeader
	Receiver Value
	Method   *ObjClosure
}

func (b *ObjBoundMethod) Header() *ObjHeader { return &b.ObjHeader }
func (b *ObjBoundMethod) Type() string       { return "function" }
func (b *ObjBoundMethod) Truth() bool        { return true }
func (b *ObjBoundMethod) String() string     { return b.Method.String() }
