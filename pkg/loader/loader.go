// Package loader turns a compiled native routine's raw bytes into a
// directly-callable function: write to a temp file, mmap it
// read+execute, reinterpret the mapping's address as a Go function
// value. Grounded on original_source/src/machine.rs's MachineCode,
// translated from memmap2+rand to golang.org/x/sys/unix+crypto/rand.
package loader

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// routine is the signature every emitted AMD64/AArch64 function
// implements: a frame pointer and a raw native-vtable pointer, no
// return value (results land back in the frame).
type routine func(framePtr, vtablePtr unsafe.Pointer)

// MachineCode owns one mmapped executable page range plus the frame
// memory and vtable it runs against. It must be closed (explicitly or
// via finalizer) once no longer needed, to unmap the page and remove
// the backing temp file.
type MachineCode struct {
	path    string
	file    *os.File
	mapping []byte
	fn      routine
	mem     []float64
	vtable  []uintptr
	closed  bool
}

// New validates archTag against the running process's architecture,
// writes code to a private temp file, mmaps it executable, and wires
// it to vtable/initialMemory. The returned value retains initialMemory
// by reference — every Run call operates on that same slice, matching
// spec.md §4.9's "the runnable wrapper owns one persistent frame
// buffer" contract.
func New(archTag string, code []byte, vtable []uintptr, initialMemory []float64) (*MachineCode, error) {
	if archTag != runtime.GOARCH {
		return nil, fmt.Errorf("loader: cannot run %s code on a %s host", archTag, runtime.GOARCH)
	}

	name, err := randomName()
	if err != nil {
		return nil, fmt.Errorf("loader: generating temp name: %w", err)
	}

	wf, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o700)
	if err != nil {
		return nil, fmt.Errorf("loader: creating code file: %w", err)
	}
	if _, err := wf.Write(code); err != nil {
		wf.Close()
		os.Remove(name)
		return nil, fmt.Errorf("loader: writing code: %w", err)
	}
	if err := wf.Close(); err != nil {
		os.Remove(name)
		return nil, fmt.Errorf("loader: closing code file: %w", err)
	}

	rf, err := os.Open(name)
	if err != nil {
		os.Remove(name)
		return nil, fmt.Errorf("loader: reopening code file: %w", err)
	}

	mapping, err := unix.Mmap(int(rf.Fd()), 0, len(code), unix.PROT_READ|unix.PROT_EXEC, unix.MAP_PRIVATE)
	if err != nil {
		rf.Close()
		os.Remove(name)
		return nil, fmt.Errorf("loader: mmap: %w", err)
	}

	mc := &MachineCode{
		path:    name,
		file:    rf,
		mapping: mapping,
		fn:      addressToRoutine(&mapping[0]),
		mem:     initialMemory,
		vtable:  vtable,
	}
	runtime.SetFinalizer(mc, (*MachineCode).Close)
	return mc, nil
}

// Run invokes the mapped routine against the loader's retained frame
// memory and vtable.
func (mc *MachineCode) Run() {
	mc.fn(unsafe.Pointer(&mc.mem[0]), unsafe.Pointer(&mc.vtable[0]))
}

// Mem exposes the live frame buffer Run mutates in place.
func (mc *MachineCode) Mem() []float64 { return mc.mem }

// Close unmaps the executable page, closes and removes the backing
// temp file. Safe to call more than once.
func (mc *MachineCode) Close() error {
	if mc.closed {
		return nil
	}
	mc.closed = true
	runtime.SetFinalizer(mc, nil)

	var firstErr error
	if err := unix.Munmap(mc.mapping); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := mc.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := os.Remove(mc.path); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func randomName() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "cellc-" + hex.EncodeToString(buf) + ".bin", nil
}

// funcval mirrors the Go runtime's internal function-value layout —
// the same assumption pkg/proc.entryPoint makes in the other
// direction (function value to address instead of address to function
// value).
type funcval struct {
	codePointer uintptr
}

// addressToRoutine reinterprets p's address as a callable Go function
// value matching routine's signature — the mirror image of
// proc.NativeVirtualTable's function-value-to-address cast, and the Go
// counterpart of the original Rust crate's
// `std::mem::transmute(self.p)` in machine.rs.
func addressToRoutine(p *byte) routine {
	fv := &funcval{codePointer: uintptr(unsafe.Pointer(p))}
	var fn routine
	*(*unsafe.Pointer)(unsafe.Pointer(&fn)) = unsafe.Pointer(fv)
	return fn
}
