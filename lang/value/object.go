package value

// ObjKind tags the variant of a heap object, used by the GC's blacken step
// and by diagnostics; it plays the role of the tagged variant's discriminant
// described in the design notes ("a common header: type tag, mark bit, next
// pointer").
type ObjKind uint8

const (
	ObjStringKind ObjKind = iota
	ObjFunctionKind
	ObjClosureKind
	ObjUpvalueKind
	ObjNativeKind
	ObjClassKind
	ObjInstanceKind
	ObjBoundMethodKind
)

func (k ObjKind) String() string {
	switch k {
	case ObjStringKind:
		return "string"
	case ObjFunctionKind:
		return "function"
	case ObjClosureKind:
		return "closure"
	case ObjUpvalueKind:
		return "upvalue"
	case ObjNativeKind:
		return "native"
	case ObjClassKind:
		return "class"
	case ObjInstanceKind:
		return "instance"
	case ObjBoundMethodKind:
		return "bound method"
	default:
		return "unknown"
	}
}

// ObjHeader is the common header embedded in every heap object: its kind,
// the GC mark bit, and the link to the next object in the allocator's
// intrusive sweep list. No heap object is ever reachable except through this
// list or through a root, which is the invariant the GC's sweep phase
// depends on.
type ObjHeader struct {
	Kind   ObjKind
	Marked bool
	Next   Obj
}

// Obj is implemented by every heap object variant. It extends Value with
// access to the common header, which is all the GC needs to mark, trace, and
// sweep any object regardless of its concrete kind.
type Obj interface {
	Value
	Header() *ObjHeader
}
