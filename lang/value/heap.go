package value

import (
	"unsafe"

	"golang.org/x/exp/slices"
)

// Collector is implemented by the VM (package vm) and invoked by the Heap
// whenever an allocation crosses the collection threshold, or whenever
// stress-GC is enabled. The Heap only knows *when* to collect; the VM knows
// *how*, because collection must walk VM- and compiler-resident roots the
// Heap has no visibility into.
type Collector interface {
	Collect()
}

// Heap is the object allocator: it owns the intrusive list of every live
// heap object (used by Sweep), the interned-string set, and the byte
// counters that decide when a collection runs. All heap objects are created
// through one of its New*/CopyString/TakeString methods, never constructed
// directly, so that every object is always reachable from the sweep list.
type Heap struct {
	objects Obj // head of the intrusive allocation list

	strings Table // interned strings, used as a set (values are always Nil)

	bytesAllocated int
	nextGC         int

	gray []Obj // gray worklist for the mark phase (see vm.Collect)

	// compilerRoots holds the in-progress Functions of every compiler
	// currently on the compile-time nesting stack (outermost first). An
	// allocation made while compiling a nested function can trigger a
	// collection before that function is reachable from anywhere the VM
	// knows about, so the compiler pushes/pops here as it enters/leaves each
	// nested function (see compiler.newCompiler/endCompiler) and the VM's
	// root-marking walks this slice alongside its own roots.
	compilerRoots []Obj

	StressGC bool // collect on every allocation (debug toggle)
	LogGC    bool // copy of the VM's log-GC toggle; nothing in Heap reads it
	Log      func(format string, args ...any)

	collector Collector
}

// NewHeap creates an empty Heap. SetCollector must be called before any
// allocation that could trigger a collection (i.e. before interpretation
// begins) — see vm.New.
func NewHeap() *Heap {
	return &Heap{nextGC: 1 << 20}
}

// SetCollector wires the Heap to the VM that owns the roots to trace.
func (h *Heap) SetCollector(c Collector) { h.collector = c }

// Strings exposes the intern table so the GC can mark it as a weak root and
// purge unmarked entries after the trace phase.
func (h *Heap) Strings() *Table { return &h.strings }

// Objects returns the head of the intrusive allocation list, for Sweep and
// for tests asserting every allocation is enumerable.
func (h *Heap) Objects() Obj { return h.objects }

// BytesAllocated reports the allocator's running byte estimate.
func (h *Heap) BytesAllocated() int { return h.bytesAllocated }

// NextGC reports the threshold that triggers the next collection.
func (h *Heap) NextGC() int { return h.nextGC }

// SetNextGC sets the next collection threshold; called by the VM's
// Collect after a sweep, per the "nextGC = bytesAllocated * 2" rule.
func (h *Heap) SetNextGC(n int) { h.nextGC = n }

// CopyString returns the canonical interned ObjString for s, allocating a
// new one only if no equal string is already interned.
func (h *Heap) CopyString(s string) *ObjString {
	hash := HashString(s)
	if interned := h.strings.FindString(s, hash); interned != nil {
		return interned
	}
	return h.internNewString(s, hash)
}

// TakeString is CopyString's counterpart for callers that have just built a
// string (e.g. string concatenation) and would otherwise discard it; in a
// garbage-collected host there is no buffer to release, so TakeString and
// CopyString behave identically, but the method is kept distinct to mark,
// at call sites, which strings are "new" versus "looked up".
func (h *Heap) TakeString(s string) *ObjString {
	return h.CopyString(s)
}

func (h *Heap) internNewString(s string, hash uint32) *ObjString {
	str := &ObjString{Chars: s, Hash: hash}
	str.Kind = ObjStringKind
	h.track(str, int(unsafe.Sizeof(*str))+len(s))

	// Insert into the intern table. The partially-constructed string is
	// already reachable via the fresh local `str`; if this Set call triggers
	// a rehash that's fine, since rehashing never allocates new ObjStrings,
	// only a new entries slice.
	h.strings.Set(str, Nil)
	return str
}

// NewFunction allocates a fresh, empty function; the compiler fills in its
// Chunk, Arity, and UpvalueCount as it compiles the function body.
func (h *Heap) NewFunction() *ObjFunction {
	fn := &ObjFunction{}
	fn.Kind = ObjFunctionKind
	h.track(fn, int(unsafe.Sizeof(*fn)))
	return fn
}

// NewClosure allocates a closure over fn with fn.UpvalueCount empty upvalue
// slots, to be filled in by the OpClosure handler.
func (h *Heap) NewClosure(fn *ObjFunction) *ObjClosure {
	cl := &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
	cl.Kind = ObjClosureKind
	h.track(cl, int(unsafe.Sizeof(*cl))+fn.UpvalueCount*int(unsafe.Sizeof((*ObjUpvalue)(nil))))
	return cl
}

// NewUpvalue allocates a fresh open upvalue pointing at loc.
func (h *Heap) NewUpvalue(loc *Value) *ObjUpvalue {
	uv := &ObjUpvalue{Location: loc}
	uv.Kind = ObjUpvalueKind
	h.track(uv, int(unsafe.Sizeof(*uv)))
	return uv
}

// NewNative allocates a native (builtin) function wrapping fn.
func (h *Heap) NewNative(name string, fn NativeFn) *ObjNative {
	n := &ObjNative{Name: name, Fn: fn}
	n.Kind = ObjNativeKind
	h.track(n, int(unsafe.Sizeof(*n)))
	return n
}

// NewClass allocates an empty class named name.
func (h *Heap) NewClass(name *ObjString) *ObjClass {
	c := &ObjClass{Name: name}
	c.Kind = ObjClassKind
	h.track(c, int(unsafe.Sizeof(*c)))
	return c
}

// NewInstance allocates a fresh instance of class with no fields set.
func (h *Heap) NewInstance(class *ObjClass) *ObjInstance {
	i := &ObjInstance{Class: class}
	i.Kind = ObjInstanceKind
	h.track(i, int(unsafe.Sizeof(*i)))
	return i
}

// NewBoundMethod allocates a bound method pairing receiver with method.
func (h *Heap) NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	b := &ObjBoundMethod{Receiver: receiver, Method: method}
	b.Kind = ObjBoundMethodKind
	h.track(b, int(unsafe.Sizeof(*b)))
	return b
}

// track charges size bytes against the allocation counter, triggers a
// collection if warranted, and then links o into the intrusive allocation
// list. The collection runs before o is linked, so it cannot sweep the new,
// not-yet-rooted object off the list. Every New*/internNewString method
// above must route its fresh object through track exactly once.
func (h *Heap) track(o Obj, size int) {
	h.bytesAllocated += size
	if h.collector != nil && (h.StressGC || h.bytesAllocated > h.nextGC) {
		h.collector.Collect()
	}

	o.Header().Next = h.objects
	h.objects = o
}

// PushCompilerRoot registers o (a Function under construction) as a root
// for the duration of its compiler's lifetime.
func (h *Heap) PushCompilerRoot(o Obj) { h.compilerRoots = append(h.compilerRoots, o) }

// PopCompilerRoot unregisters the most recently pushed compiler root, once
// that compiler has finished (successfully or not).
func (h *Heap) PopCompilerRoot() {
	h.compilerRoots = h.compilerRoots[:len(h.compilerRoots)-1]
}

// CompilerRoots returns the Functions currently under construction by any
// nested compiler, for the GC's root-marking phase.
func (h *Heap) CompilerRoots() []Obj { return h.compilerRoots }

// MarkObject marks o live and, if this is the first time o was marked,
// pushes it onto the gray worklist for later tracing. It reports whether o
// was newly marked (so callers with their own bookkeeping, like a "objects
// marked" debug counter, can act on it).
func (h *Heap) MarkObject(o Obj) bool {
	if o == nil {
		return false
	}
	hdr := o.Header()
	if hdr.Marked {
		return false
	}
	hdr.Marked = true
	h.gray = append(h.gray, o)
	return true
}

// MarkValue marks v if it is a heap object; Nil, Bool, and Number have no
// outgoing references and are ignored.
func (h *Heap) MarkValue(v Value) {
	if o, ok := v.(Obj); ok {
		h.MarkObject(o)
	}
}

// PopGray removes and returns one object from the gray worklist.
func (h *Heap) PopGray() (Obj, bool) {
	n := len(h.gray)
	if n == 0 {
		// The worklist backing array tends to grow to the size of the
		// largest single collection and then sit mostly empty between
		// cycles; clip it back down now that it's drained.
		h.gray = slices.Clip(h.gray)
		return nil, false
	}
	o := h.gray[n-1]
	h.gray = h.gray[:n-1]
	return o, true
}

// Blacken traces o's outgoing references, marking each reachable child.
// This is the single place that knows, per ObjKind, what a heap object
// points to; the VM's trace loop just calls this until the worklist drains.
func (h *Heap) Blacken(o Obj) {
	switch v := o.(type) {
	case *ObjString, *ObjNative:
		// no outgoing references
	case *ObjUpvalue:
		h.MarkValue(v.Closed)
	case *ObjFunction:
		if v.Name != nil {
			h.MarkObject(v.Name)
		}
		for _, c := range v.Chunk.Constants {
			h.MarkValue(c)
		}
	case *ObjClosure:
		h.MarkObject(v.Function)
		for _, uv := range v.Upvalues {
			// a slot is still nil while OpClosure is filling the array in
			if uv != nil {
				h.MarkObject(uv)
			}
		}
	case *ObjClass:
		h.MarkObject(v.Name)
		v.Methods.Each(func(k *ObjString, val Value) { h.MarkObject(k); h.MarkValue(val) })
	case *ObjInstance:
		h.MarkObject(v.Class)
		v.Fields.Each(func(k *ObjString, val Value) { h.MarkObject(k); h.MarkValue(val) })
	case *ObjBoundMethod:
		h.MarkValue(v.Receiver)
		h.MarkObject(v.Method)
	}
}

// RemoveUnmarkedStrings purges the intern table of any string that did not
// survive marking, so the table never hands out a dangling reference after
// Sweep frees it. It must run after tracing and before Sweep.
func (h *Heap) RemoveUnmarkedStrings() {
	h.strings.RemoveUnmarked()
}

// Sweep walks the intrusive allocation list, dropping every unmarked
// object (so nothing in the Go program still references it, letting the
// Go runtime's own collector reclaim the memory) and clearing the mark bit
// on survivors for the next cycle. It returns the number of bytes freed.
func (h *Heap) Sweep() int {
	var (
		prev     Obj
		freed    int
		survivor = h.objects
	)
	for survivor != nil {
		hdr := survivor.Header()
		next := hdr.Next
		if hdr.Marked {
			hdr.Marked = false
			prev = survivor
			survivor = next
			continue
		}

		freed += objSize(survivor)
		if prev == nil {
			h.objects = next
		} else {
			prev.Header().Next = next
		}
		survivor = next
	}
	h.bytesAllocated -= freed
	return freed
}

// objSize estimates an object's contribution to bytesAllocated, mirroring
// the size passed to track at allocation time.
func objSize(o Obj) int {
	switch v := o.(type) {
	case *ObjString:
		return int(unsafe.Sizeof(*v)) + len(v.Chars)
	case *ObjFunction:
		return int(unsafe.Sizeof(*v))
	case *ObjClosure:
		return int(unsafe.Sizeof(*v)) + len(v.Upvalues)*int(unsafe.Sizeof((*ObjUpvalue)(nil)))
	case *ObjUpvalue:
		return int(unsafe.Sizeof(*v))
	case *ObjNative:
		return int(unsafe.Sizeof(*v))
	case *ObjClass:
		return int(unsafe.Sizeof(*v))
	case *ObjInstance:
		return int(unsafe.Sizeof(*v))
	case *ObjBoundMethod:
		return int(unsafe.Sizeof(*v))
	default:
		return 0
	}
}
