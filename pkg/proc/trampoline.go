package proc

import (
	"unsafe"

	"github.com/cellc/cellc/pkg/hostfuncs"
)

// funcval mirrors the Go runtime's internal representation of a
// function value: a single pointer to the function's code entry. Every
// entry in hostfuncs.Table is a plain top-level function (none close
// over state), so this layout assumption holds for all of them.
type funcval struct {
	codePointer uintptr
}

// entryPoint returns the machine code address f's closure wraps — the
// Go analogue of the original Rust crate's `std::mem::transmute(self.p)`
// raw pointer cast in machine.rs: both bridge an otherwise-opaque
// callable into a bare address a generated CALL/BLR instruction can
// index into.
func entryPoint(f HostFunc) uintptr {
	return (*(**funcval)(unsafe.Pointer(&f))).codePointer
}

// NativeVirtualTable builds the raw function-pointer table a compiled
// native routine's vtable argument points into, in t's interned order
// — the native-backend counterpart of the bytecode interpreter's
// in-process HostFunc table, which keeps ordinary Go closures instead
// since it never leaves the Go call stack.
func NativeVirtualTable(t *Table) []uintptr {
	names := t.Names()
	out := make([]uintptr, len(names))
	for i, name := range names {
		out[i] = entryPoint(hostfuncs.Lookup(name))
	}
	return out
}
