package vm

import (
	"github.com/mna/ember/lang/value"
)

// Collect runs one full mark-sweep cycle: it marks every root the VM (and
// any in-progress compiler) holds, traces from there until the gray
// worklist is empty, drops any string the trace didn't reach from the
// intern table, and sweeps the heap's allocation list. It implements
// value.Collector, so the Heap calls it directly whenever an allocation
// crosses the collection threshold.
func (vm *VM) Collect() {
	if vm.Config.LogGC {
		vm.logGC("-- gc begin")
	}
	before := vm.heap.BytesAllocated()

	vm.markRoots()
	vm.traceReferences()
	vm.heap.RemoveUnmarkedStrings()
	freed := vm.heap.Sweep()
	vm.heap.SetNextGC(vm.heap.BytesAllocated() * 2)

	if vm.Config.LogGC {
		vm.logGC("-- gc end, collected %d bytes (%d -> %d), next at %d",
			freed, before, vm.heap.BytesAllocated(), vm.heap.NextGC())
	}
}

// markRoots marks every value directly reachable without tracing through
// another heap object: live stack slots, each active frame's closure, open
// upvalues, the globals table, the `init` string the VM holds onto, and any
// Function a compiler currently has under construction (relevant only when
// a collection is triggered by an allocation made during compilation).
func (vm *VM) markRoots() {
	for i := 0; i < vm.stackTop; i++ {
		vm.heap.MarkValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.heap.MarkObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.Next {
		vm.heap.MarkObject(uv)
	}
	vm.globals.Each(func(k *value.ObjString, v value.Value) {
		vm.heap.MarkObject(k)
		vm.heap.MarkValue(v)
	})
	vm.heap.MarkObject(vm.initString)
	for _, root := range vm.heap.CompilerRoots() {
		vm.heap.MarkObject(root)
	}
}

// traceReferences drains the gray worklist, blackening one object at a
// time; Blacken may push more gray objects as it discovers outgoing
// references, so the loop continues until nothing is left to trace.
func (vm *VM) traceReferences() {
	for {
		o, ok := vm.heap.PopGray()
		if !ok {
			return
		}
		vm.heap.Blacken(o)
	}
}

// logGC emits one GC diagnostic line. If the heap has a Log callback
// installed (a hook for capturing the output), it is used directly;
// otherwise the line goes through a DiagWriter tagged "gc", matching the
// runtime-error sink's tag-and-format convention.
func (vm *VM) logGC(format string, args ...any) {
	if vm.heap.Log != nil {
		vm.heap.Log(format, args...)
		return
	}
	NewDiagWriter(vm.Stderr, "gc").Printf(format, args...)
}
