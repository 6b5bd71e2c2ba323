// Package cellc is the host-facing entry point spec.md §6 describes:
// compile a decoded model with a chosen backend, then step it
// repeatedly through a small, uniform Call/CallObs surface without
// exposing any of lowering, analysis or codegen to the caller.
package cellc

import (
	"fmt"
	"io"
	"runtime"

	"github.com/cellc/cellc/pkg/amd64"
	"github.com/cellc/cellc/pkg/arm64"
	"github.com/cellc/cellc/pkg/bytecode"
	"github.com/cellc/cellc/pkg/loader"
	"github.com/cellc/cellc/pkg/lower"
	"github.com/cellc/cellc/pkg/model"
	"github.com/cellc/cellc/pkg/proc"
	"github.com/cellc/cellc/pkg/runnable"
	"github.com/cellc/cellc/pkg/wasm"
)

// Backend names one of the five ways a model can be compiled.
type Backend string

const (
	BackendBytecode Backend = "bytecode"
	BackendAMD64    Backend = "amd64"
	BackendARM64    Backend = "arm64"
	BackendNative   Backend = "native"
	BackendWasm     Backend = "wasm"
)

// Handle is one compiled model. Zero value is not usable; obtain one
// from Compile and release it with Free once done.
type Handle struct {
	backend Backend
	run     *runnable.Runnable // nil only for BackendWasm
	closer  io.Closer          // non-nil only for a native (mmapped) handle
	wat     string             // populated only for BackendWasm

	states, params, obs int
	initStates, initParams []float64
}

// Compile lowers m and generates code for backend, resolving
// BackendNative to BackendAMD64/BackendARM64 by runtime.GOARCH.
//
// A malformed model can make lowering panic (spec.md §7 treats a
// structural error — an undeclared differential, an undefined
// variable, a non-empty Algebraic list — as a bug,
// not a runtime condition). Compile is the one place that panic is
// converted to a normal error: a library entry point should not be
// able to crash its caller's process over a malformed model handed to
// it at runtime, even though every *internal* invariant inside
// lowering and analysis stays a hard panic.
func Compile(m *model.Model, backend Backend) (h *Handle, err error) {
	return CompileWithOptions(m, backend, false)
}

// CompileWithOptions is Compile with the native backends' optimize
// toggle exposed: when true, the AMD64/AArch64 backends consult the
// analyzer's bufferable set and hold saveable-but-not-bufferable
// values directly in frame memory; when false (the default, matching
// the original crate's AmdCompiler/ArmCompiler default), bufferable is
// never consulted and every saveable value opportunistically rides
// through the hold-register cache instead. Ignored by the bytecode
// and wasm backends, which have no hold-register cache to gate.
func CompileWithOptions(m *model.Model, backend Backend, optimize bool) (h *Handle, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			h, err = nil, fmt.Errorf("cellc: compiling model: %v", rec)
		}
	}()

	resolved := backend
	if backend == BackendNative {
		switch runtime.GOARCH {
		case "amd64":
			resolved = BackendAMD64
		case "arm64":
			resolved = BackendARM64
		default:
			return nil, fmt.Errorf("cellc: no native backend for GOARCH %q", runtime.GOARCH)
		}
	}

	prog := lower.Build(m)

	mem := prog.Frame.Mem()
	h = &Handle{
		backend: resolved,
		states:  prog.Frame.CountStates(),
		params:  prog.Frame.CountParams(),
		obs:     prog.Frame.CountObs(),
	}
	if idx, ok := prog.Frame.FirstState(); ok {
		h.initStates = append([]float64(nil), mem[idx:idx+h.states]...)
	}
	if idx, ok := prog.Frame.FirstParam(); ok {
		h.initParams = append([]float64(nil), mem[idx:idx+h.params]...)
	}

	switch resolved {
	case BackendBytecode:
		bc := bytecode.Compile(prog, bytecode.VirtualTable(prog.Table))
		h.run = runnable.NewBytecode(prog, bc)

	case BackendAMD64, BackendARM64:
		var code []byte
		archTag := string(resolved)
		switch resolved {
		case BackendAMD64:
			code = amd64.Compile(prog, optimize)
		case BackendARM64:
			code = arm64.Compile(prog, optimize)
		}
		vt := proc.NativeVirtualTable(prog.Table)
		mc, lerr := loader.New(archTag, code, vt, prog.Frame.Mem())
		if lerr != nil {
			return nil, fmt.Errorf("cellc: loading %s code: %w", archTag, lerr)
		}
		h.run = runnable.NewNative(prog.Frame, mc)
		h.closer = mc

	case BackendWasm:
		h.wat = wasm.Compile(prog)

	default:
		return nil, fmt.Errorf("cellc: unknown backend %q", backend)
	}

	return h, nil
}

// CountStates, CountParams, CountObs report the model's shape.
func (h *Handle) CountStates() int { return h.states }
func (h *Handle) CountParams() int { return h.params }
func (h *Handle) CountObs() int    { return h.obs }

// InitialStates and Params return the model's declared initial values.
func (h *Handle) InitialStates() []float64 { return append([]float64(nil), h.initStates...) }
func (h *Handle) Params() []float64        { return append([]float64(nil), h.initParams...) }

// Backend reports the resolved backend this handle actually runs on
// (BackendNative is never returned; it is resolved at Compile time).
func (h *Handle) Backend() Backend { return h.backend }

// WATSource returns the emitted WebAssembly text, for BackendWasm
// handles only. cellc has no wasm runtime dependency in its stack, so
// a wasm Handle cannot itself execute Call/CallObs; the text is meant
// for an external host (a browser, wasmtime, node) to load.
func (h *Handle) WATSource() (string, bool) {
	if h.backend != BackendWasm {
		return "", false
	}
	return h.wat, true
}

// Call evaluates du ← f(u, p, t). It returns false if h is a wasm
// handle (see WATSource) or the slice lengths don't match the model's
// shape.
func (h *Handle) Call(du, u, p []float64, t float64) bool {
	if h.run == nil {
		return false
	}
	return h.run.Call(du, u, p, t)
}

// CallObs evaluates the observable equations at (u, p, t).
func (h *Handle) CallObs(dobs, u, p []float64, t float64) bool {
	if h.run == nil {
		return false
	}
	return h.run.CallObs(dobs, u, p, t)
}

// Free releases any native resources (the mmapped page and its backing
// temp file) a native Handle holds. A no-op for bytecode/wasm handles.
func Free(h *Handle) error {
	if h == nil || h.closer == nil {
		return nil
	}
	return h.closer.Close()
}
