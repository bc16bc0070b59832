package value

// ObjString is an immutable byte string. All strings are interned by the
// Heap (see heap.go): two ObjStrings with equal content are always the same
// pointer, so Go's own pointer-identity comparison on the Obj interface
// implements value equality for free (see Equal in value.go).
type ObjString struct {
	ObjHeader
	Chars string
	Hash  uint32
}

func (s *ObjString) Header() *ObjHeader { return &s.ObjHeader }
func (s *ObjString) String() string     { return s.Chars }
func (*ObjString) Type() string         { return "string" }
func (*ObjString) Truth() bool          { return true }

// fnvOffsetBasis and fnvPrime are the 32-bit FNV-1a constants. The hash
// function is load-bearing: the intern table's FindString compares entries
// by (hash, length, byte-equality), in that order, so any change here would
// silently fragment the intern table.
const (
	fnvOffsetBasis uint32 = 0x811c9dc5
	fnvPrime       uint32 = 0x01000193
)

// HashString computes the 32-bit FNV-1a hash of s.
func HashString(s string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
