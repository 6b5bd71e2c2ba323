// Package bytecode compiles a lowered ir.Program into a dense array of
// indexed records and runs it by straight-line dispatch. It is the
// reference backend spec.md §4.5 calls for: the correctness oracle
// every native/wasm backend's output is checked against, since it
// needs no encoder and runs the same float64 arithmetic Go itself
// uses.
package bytecode

import (
	"fmt"

	"github.com/cellc/cellc/pkg/hostfuncs"
	"github.com/cellc/cellc/pkg/ir"
	"github.com/cellc/cellc/pkg/proc"
)

type kind uint8

const (
	kindUnary kind = iota
	kindBinary
	kindIfElse
)

// record is the compiled form of one computational instruction: raw
// indices into the memory image and the host function it calls,
// resolved once at compile time so run never touches a map.
type record struct {
	kind   kind
	x, y   int
	x1, x2 int
	cond   int
	dst    int
	fn     proc.HostFunc
}

// Program is a compiled, runnable bytecode program. It owns no memory
// of its own beyond the record vector: it operates directly against
// the []float64 the caller hands to Run, which is ordinarily the
// frame's own backing slice.
type Program struct {
	records []record
}

// Compile lowers prog's IR into a dense record vector. vt supplies the
// host function implementation for every proc index prog.Table
// interned, in index order.
func Compile(prog *ir.Program, vt []proc.HostFunc) *Program {
	p := &Program{}
	for _, c := range prog.Code {
		switch c.Op {
		case ir.OpUnary:
			p.records = append(p.records, record{
				kind: kindUnary,
				x:    c.X.Index,
				dst:  c.Dst.Index,
				fn:   vt[c.Proc],
			})
		case ir.OpBinary:
			p.records = append(p.records, record{
				kind: kindBinary,
				x:    c.X.Index,
				y:    c.Y.Index,
				dst:  c.Dst.Index,
				fn:   vt[c.Proc],
			})
		case ir.OpIfElse:
			p.records = append(p.records, record{
				kind: kindIfElse,
				x1:   c.X1.Index,
				x2:   c.X2.Index,
				cond: c.Cond.Index,
				dst:  c.Dst.Index,
			})
		default:
			// Num/Var/Eq/Nop are debug markers with no runtime effect.
		}
	}
	return p
}

// VirtualTable resolves every interned operator name in t to its
// hostfuncs implementation, in Proc-index order — the vector Compile's
// vt parameter expects.
func VirtualTable(t *proc.Table) []proc.HostFunc {
	names := t.Names()
	vt := make([]proc.HostFunc, len(names))
	for i, name := range names {
		vt[i] = hostfuncs.Lookup(name)
	}
	return vt
}

// Run executes the compiled program against mem in place: dst ← op(x
// [, y]) for Unary/Binary, dst ← (mem[cond]>0) ? mem[x1] : mem[x2] for
// IfElse.
func (p *Program) Run(mem []float64) {
	for _, r := range p.records {
		switch r.kind {
		case kindUnary:
			mem[r.dst] = r.fn(mem[r.x], 0.0)
		case kindBinary:
			mem[r.dst] = r.fn(mem[r.x], mem[r.y])
		case kindIfElse:
			if mem[r.cond] > 0.0 {
				mem[r.dst] = mem[r.x1]
			} else {
				mem[r.dst] = mem[r.x2]
			}
		default:
			panic(fmt.Sprintf("bytecode: unknown record kind %d", r.kind))
		}
	}
}

// Len returns the number of compiled records.
func (p *Program) Len() int {
	return len(p.records)
}
