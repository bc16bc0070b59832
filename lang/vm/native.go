package vm

import (
	"fmt"
	"time"

	"github.com/dolthub/swiss"

	"github.com/mna/ember/lang/value"
)

// nativeRegistry is the set of builtins installed into globals at VM
// startup. A swiss-table map is more machinery than the handful of
// builtins ember defines today strictly need, but it keeps the
// registration path — and the lookup structure backing it — open to
// growing the standard library without revisiting either.
type nativeRegistry struct {
	byName *swiss.Map[string, value.NativeFn]
	names  []string // insertion order, so installation is deterministic
}

func newNativeRegistry() *nativeRegistry {
	return &nativeRegistry{byName: swiss.NewMap[string, value.NativeFn](8)}
}

func (r *nativeRegistry) register(name string, fn value.NativeFn) {
	r.byName.Put(name, fn)
	r.names = append(r.names, name)
}

// installInto defines every registered native as a global, wrapped in an
// ObjNative allocated from heap.
func (r *nativeRegistry) installInto(heap *value.Heap, globals *value.Table) {
	for _, name := range r.names {
		fn, _ := r.byName.Get(name)
		globals.Set(heap.CopyString(name), heap.NewNative(name, fn))
	}
}

// defaultNatives returns the registry of builtins installed into every
// fresh VM: `clock`, plus a `type` builtin that names a value's runtime
// type from within a program, reusing the same type-name strings the VM's
// own error messages use.
func defaultNatives(heap *value.Heap) *nativeRegistry {
	reg := newNativeRegistry()
	reg.register("clock", nativeClock)
	reg.register("type", nativeType(heap))
	return reg
}

func nativeClock(args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("clock() takes no arguments")
	}
	return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

func nativeType(heap *value.Heap) value.NativeFn {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("type() takes exactly one argument")
		}
		return heap.CopyString(args[0].Type()), nil
	}
}
