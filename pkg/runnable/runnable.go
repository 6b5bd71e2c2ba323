// Package runnable wraps a compiled program (bytecode interpreter or
// mmapped native routine) behind the one calling shape spec.md §4.9/§6
// needs: Call to step the ODEs, CallObs to evaluate the observables,
// with every name-to-frame-offset lookup done once at construction
// time instead of on every call.
package runnable

import (
	"github.com/cellc/cellc/pkg/bytecode"
	"github.com/cellc/cellc/pkg/frame"
	"github.com/cellc/cellc/pkg/ir"
	"github.com/cellc/cellc/pkg/loader"
)

// engine is the minimal surface both the bytecode interpreter and a
// loaded native routine present: mutate a shared memory buffer in
// place given no arguments (the buffer already holds this call's
// state/param/var values, written there beforehand).
type engine interface {
	Run(mem []float64)
}

type bytecodeEngine struct{ prog *bytecode.Program }

func (e bytecodeEngine) Run(mem []float64) { e.prog.Run(mem) }

type nativeEngine struct{ mc *loader.MachineCode }

func (e nativeEngine) Run(mem []float64) {
	copy(e.mc.Mem(), mem)
	e.mc.Run()
	copy(mem, e.mc.Mem())
}

// Runnable is one compiled model, ready to be called repeatedly at
// different (state, param, t) points without re-running lowering or
// codegen.
type Runnable struct {
	engine engine
	mem    []float64

	varIdx    int
	stateIdx  []int
	diffIdx   []int
	paramIdx  []int
	obsIdx    []int
	initState []float64
	initParam []float64
}

// NewBytecode builds a Runnable backed by the bytecode interpreter —
// spec.md's correctness oracle, also usable as a real (if slow)
// execution path.
func NewBytecode(prog *ir.Program, bc *bytecode.Program) *Runnable {
	return build(prog.Frame, bytecodeEngine{bc})
}

// NewNative builds a Runnable backed an mmapped AMD64/AArch64 routine.
func NewNative(f *frame.Frame, mc *loader.MachineCode) *Runnable {
	return build(f, nativeEngine{mc})
}

func build(f *frame.Frame, e engine) *Runnable {
	r := &Runnable{engine: e, mem: f.Mem()}

	if idx, ok := f.FirstState(); ok {
		for i := idx; i < idx+f.CountStates(); i++ {
			r.stateIdx = append(r.stateIdx, i)
		}
	}
	if idx, ok := f.FirstDiff(); ok {
		for i := idx; i < idx+f.CountDiffs(); i++ {
			r.diffIdx = append(r.diffIdx, i)
		}
	}
	if idx, ok := f.FirstParam(); ok {
		for i := idx; i < idx+f.CountParams(); i++ {
			r.paramIdx = append(r.paramIdx, i)
		}
	}
	if idx, ok := f.FirstObs(); ok {
		for i := idx; i < idx+f.CountObs(); i++ {
			r.obsIdx = append(r.obsIdx, i)
		}
	}

	for i := 0; i < f.Len(); i++ {
		if f.TagAt(i) == frame.Var {
			r.varIdx = i
		}
	}

	r.initState = make([]float64, len(r.stateIdx))
	for i, idx := range r.stateIdx {
		r.initState[i] = r.mem[idx]
	}
	r.initParam = make([]float64, len(r.paramIdx))
	for i, idx := range r.paramIdx {
		r.initParam[i] = r.mem[idx]
	}

	return r
}

func (r *Runnable) CountStates() int { return len(r.stateIdx) }
func (r *Runnable) CountParams() int { return len(r.paramIdx) }
func (r *Runnable) CountObs() int    { return len(r.obsIdx) }

// InitialStates and Params return the values the model declared, not
// the Runnable's live working buffer.
func (r *Runnable) InitialStates() []float64 { return append([]float64(nil), r.initState...) }
func (r *Runnable) Params() []float64        { return append([]float64(nil), r.initParam...) }

// Call evaluates du ← f(u, p, t), writing into du (which must have
// CountStates() entries).
func (r *Runnable) Call(du, u, p []float64, t float64) bool {
	if len(du) != len(r.diffIdx) || len(u) != len(r.stateIdx) || len(p) != len(r.paramIdx) {
		return false
	}
	r.mem[r.varIdx] = t
	for i, idx := range r.stateIdx {
		r.mem[idx] = u[i]
	}
	for i, idx := range r.paramIdx {
		r.mem[idx] = p[i]
	}
	r.engine.Run(r.mem)
	for i, idx := range r.diffIdx {
		du[i] = r.mem[idx]
	}
	return true
}

// CallObs evaluates the observable equations at a given (state, param,
// t) point, writing into dobs (which must have CountObs() entries).
func (r *Runnable) CallObs(dobs, u, p []float64, t float64) bool {
	if len(dobs) != len(r.obsIdx) || len(u) != len(r.stateIdx) || len(p) != len(r.paramIdx) {
		return false
	}
	r.mem[r.varIdx] = t
	for i, idx := range r.stateIdx {
		r.mem[idx] = u[i]
	}
	for i, idx := range r.paramIdx {
		r.mem[idx] = p[i]
	}
	r.engine.Run(r.mem)
	for i, idx := range r.obsIdx {
		dobs[i] = r.mem[idx]
	}
	return true
}
