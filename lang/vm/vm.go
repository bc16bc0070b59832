// Package vm executes compiled ember bytecode: a stack-based dispatch
// loop, closure/upvalue management, and the mark-sweep collector that
// reclaims the object heap the compiler and VM allocate from. See gc.go for
// the collector and native.go for the builtin globals.
package vm

import (
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/mna/ember/lang/compiler"
	"github.com/mna/ember/lang/value"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// Result is the outcome of an Interpret call.
type Result uint8

const (
	ResultOK Result = iota
	ResultCompileError
	ResultRuntimeError
)

// callFrame records one active call: the Closure being executed, the
// instruction pointer into its Chunk, and the base stack slot this call
// owns (slot 0 of which is the callee itself, or the receiver for a method
// call).
type callFrame struct {
	closure *value.ObjClosure
	ip      int
	slots   int
}

func (f *callFrame) readByte() byte {
	b := f.closure.Function.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (f *callFrame) readShort() int {
	hi := f.readByte()
	lo := f.readByte()
	return int(hi)<<8 | int(lo)
}

func (f *callFrame) readConstant() value.Value {
	return f.closure.Function.Chunk.Constants[f.readByte()]
}

func (f *callFrame) readString() *value.ObjString {
	return f.readConstant().(*value.ObjString)
}

// VM is a single interpreter instance: its value stack, call-frame stack,
// globals, heap, and open-upvalue list. A VM is not safe for concurrent
// use; running two programs at once requires two VMs.
type VM struct {
	stack    []value.Value
	stackTop int

	frames     [framesMax]callFrame
	frameCount int

	globals      value.Table
	heap         *value.Heap
	openUpvalues *value.ObjUpvalue
	initString   *value.ObjString

	steps uint64

	Config Config
	Stdout io.Writer
	Stderr io.Writer
}

// New creates a VM backed by heap, ready to Interpret programs. heap must
// not already be in use by another VM: New calls heap.SetCollector(vm),
// and a heap only remembers one collector at a time.
//
// The collector is wired in last, after vm.initString and the default
// natives are allocated and installed: markRoots reads both, so collection
// must not be able to run until they are in their final place. Wiring the
// collector first would let an allocation made during this very setup
// (guaranteed under Config.StressGC) observe vm.initString still at its
// zero value.
func New(heap *value.Heap, cfg Config) *VM {
	vm := &VM{
		stack:  make([]value.Value, stackMax),
		heap:   heap,
		Config: cfg,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	vm.initString = heap.CopyString("init")
	defaultNatives(heap).installInto(heap, &vm.globals)

	heap.StressGC = cfg.StressGC
	heap.LogGC = cfg.LogGC
	heap.SetCollector(vm)
	return vm
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

// Interpret compiles and runs source to completion, writing program output
// to vm.Stdout and diagnostics to vm.Stderr.
func (vm *VM) Interpret(source []byte) Result {
	fn, err := compiler.Compile(source, vm.heap)
	if err != nil {
		fmt.Fprintln(vm.Stderr, err)
		return ResultCompileError
	}

	vm.steps = 0
	vm.push(fn)
	closure := vm.heap.NewClosure(fn)
	vm.pop()
	vm.push(closure)
	vm.call(closure, 0)

	return vm.run()
}

func (vm *VM) runtimeError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	diag := NewDiagWriter(vm.Stderr, "")

	frame := &vm.frames[vm.frameCount-1]
	line := frame.closure.Function.Chunk.Lines[frame.ip-1]
	diag.Printf("error: [line %d] - %s", line, msg)

	for i := vm.frameCount - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		fn := fr.closure.Function
		frameLine := fn.Chunk.Lines[fr.ip-1]
		if fn.Name == nil {
			diag.Printf("[line %d] in script", frameLine)
		} else {
			diag.Printf("[line %d] in %s()", frameLine, fn.Name.Chars)
		}
	}
	vm.resetStack()
}

// call pushes a new callFrame invoking closure with the argc values
// already sitting on top of the stack (slot 0 of the new frame is the
// closure/receiver itself).
func (vm *VM) call(closure *value.ObjClosure, argc int) bool {
	if argc != closure.Function.Arity {
		vm.runtimeError("Expected %d arguments but got %d", closure.Function.Arity, argc)
		return false
	}
	if vm.frameCount == framesMax {
		vm.runtimeError("Stack overflow")
		return false
	}

	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.slots = vm.stackTop - argc - 1
	return true
}

// callValue dispatches a CALL opcode's callee: a Closure calls directly, a
// Native is invoked in place, a Class constructs (and binds+calls its
// `init`, if any) an Instance, and a BoundMethod rebinds its receiver into
// slot 0 before calling the underlying closure.
func (vm *VM) callValue(callee value.Value, argc int) bool {
	switch c := callee.(type) {
	case *value.ObjClosure:
		return vm.call(c, argc)
	case *value.ObjNative:
		args := vm.stack[vm.stackTop-argc : vm.stackTop]
		result, err := c.Fn(args)
		if err != nil {
			vm.runtimeError("%s", err.Error())
			return false
		}
		vm.stackTop -= argc + 1
		vm.push(result)
		return true
	case *value.ObjClass:
		vm.stack[vm.stackTop-argc-1] = vm.heap.NewInstance(c)
		if init, ok := c.Methods.Get(vm.initString); ok {
			return vm.call(init.(*value.ObjClosure), argc)
		}
		if argc != 0 {
			vm.runtimeError("Expected 0 arguments but got %d", argc)
			return false
		}
		return true
	case *value.ObjBoundMethod:
		vm.stack[vm.stackTop-argc-1] = c.Receiver
		return vm.call(c.Method, argc)
	default:
		vm.runtimeError("Can only call functions and classes")
		return false
	}
}

func (vm *VM) invokeFromClass(class *value.ObjClass, name *value.ObjString, argc int) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		vm.runtimeError("Undefined property '%s'", name.Chars)
		return false
	}
	return vm.call(method.(*value.ObjClosure), argc)
}

// invoke is OP_INVOKE's fast path for `receiver.method(args)`: it resolves
// and calls in one step rather than emitting GET_PROPERTY followed by
// CALL. Like GET_PROPERTY it checks the instance's fields first (a field
// holding a callable is called as-is, shadowing a method of the same name)
// and only then looks the name up among the class's methods.
func (vm *VM) invoke(name *value.ObjString, argc int) bool {
	receiver := vm.peek(argc)
	inst, ok := receiver.(*value.ObjInstance)
	if !ok {
		vm.runtimeError("Only instances have methods")
		return false
	}
	if field, ok := inst.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argc-1] = field
		return vm.callValue(field, argc)
	}
	return vm.invokeFromClass(inst.Class, name, argc)
}

func (vm *VM) bindMethod(class *value.ObjClass, name *value.ObjString) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		vm.runtimeError("Undefined property '%s'", name.Chars)
		return false
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), method.(*value.ObjClosure))
	vm.pop()
	vm.push(bound)
	return true
}

func (vm *VM) defineMethod(name *value.ObjString) {
	method := vm.peek(0).(*value.ObjClosure)
	class := vm.peek(1).(*value.ObjClass)
	class.Methods.Set(name, method)
	vm.pop()
}

// slotOf recovers loc's index into vm.stack. Upvalue.Location points
// directly into the stack array while open (see value.ObjUpvalue), so the
// open-upvalue list's sort-by-location-descending invariant and its
// "close everything at or above a threshold" operation are both most
// naturally expressed in terms of stack slot numbers; this is the pointer
// arithmetic a C VM does directly, recovered here since Go pointers are not
// otherwise orderable.
func (vm *VM) slotOf(loc *value.Value) int {
	base := unsafe.Pointer(&vm.stack[0])
	return int((uintptr(unsafe.Pointer(loc)) - uintptr(base)) / unsafe.Sizeof(vm.stack[0]))
}

// captureUpvalue returns the open upvalue for stack slot, creating one and
// splicing it into the sorted open-upvalue list if none exists yet.
func (vm *VM) captureUpvalue(slot int) *value.ObjUpvalue {
	var prev *value.ObjUpvalue
	curr := vm.openUpvalues
	for curr != nil && vm.slotOf(curr.Location) > slot {
		prev = curr
		curr = curr.Next
	}
	if curr != nil && vm.slotOf(curr.Location) == slot {
		return curr
	}

	created := vm.heap.NewUpvalue(&vm.stack[slot])
	created.Next = curr
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above stack slot last,
// relocating each one's value off the stack and into its own Closed field.
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.slotOf(vm.openUpvalues.Location) >= last {
		uv := vm.openUpvalues
		uv.Closed = *uv.Location
		uv.Location = &uv.Closed
		vm.openUpvalues = uv.Next
		uv.Next = nil
	}
}

func isNumber(v value.Value) (value.Number, bool) {
	n, ok := v.(value.Number)
	return n, ok
}

func isString(v value.Value) (*value.ObjString, bool) {
	s, ok := v.(*value.ObjString)
	return s, ok
}
