// Package lower walks a model's expression trees and emits the IR
// instruction stream for it: the frame allocation rules and the two
// peephole laws of spec.md §4.2.
package lower

import (
	"fmt"

	"github.com/cellc/cellc/pkg/expr"
	"github.com/cellc/cellc/pkg/frame"
	"github.com/cellc/cellc/pkg/ir"
	"github.com/cellc/cellc/pkg/model"
	"github.com/cellc/cellc/pkg/proc"
)

// Builder accumulates IR while lowering one model.
type Builder struct {
	frame *frame.Frame
	table *proc.Table
	code  []ir.Instr
}

// New creates an empty builder.
func New() *Builder {
	return &Builder{
		frame: frame.New(),
		table: proc.New(),
	}
}

func (b *Builder) emit(i ir.Instr) {
	b.code = append(b.code, i)
}

func (b *Builder) last() (ir.Instr, bool) {
	if n := len(b.code); n > 0 {
		return b.code[n-1], true
	}
	return ir.Instr{}, false
}

func (b *Builder) popLast() {
	b.code = b.code[:len(b.code)-1]
}

// popNumMarker removes the nearest (scanning backward) Num marker
// targeting w, if one exists. Used by the times-by-MINUS_ONE peephole,
// whose literal operand's debug marker need not be the very last
// instruction emitted (unlike the unary-neg-fusion peephole, which
// spec.md requires to be strictly adjacent).
func (b *Builder) popNumMarker(w frame.Word) {
	for i := len(b.code) - 1; i >= 0; i-- {
		if b.code[i].Op == ir.OpNum && b.code[i].Dst == w {
			b.code = append(b.code[:i], b.code[i+1:]...)
			return
		}
	}
}

// Build lowers m into a complete ir.Program. Structural malformations
// (an unknown differential variable, an unsupported n-ary operator, a
// non-empty Algebraic list) panic: the model is fully known ahead of
// time, so any such failure is a static programming error, not a
// runtime condition (spec.md §7).
func Build(m *model.Model) *ir.Program {
	b := New()

	if len(m.Algebraic) > 0 {
		panic("lower: algebraic equations are not supported by this compiler")
	}

	b.frame.AllocNamed(frame.Var, m.VarName, 0)
	for _, s := range m.States {
		b.frame.AllocNamed(frame.State, s.Name, s.Init)
	}
	for _, p := range m.Params {
		b.frame.AllocNamed(frame.Param, p.Name, p.Value)
	}
	// Diff words are pre-allocated for every state before any equation
	// is lowered, so an ODE's left-hand side always resolves.
	for _, s := range m.States {
		b.frame.AllocDiff(s.Name)
	}

	for _, eq := range m.Observables {
		b.lowerEquation(eq)
	}
	for _, eq := range m.Odes {
		b.lowerEquation(eq)
	}

	b.emit(ir.Instr{Op: ir.OpNop})

	return &ir.Program{Code: b.code, Frame: b.frame, Table: b.table}
}

func (b *Builder) lowerEquation(eq expr.Equation) {
	var dst frame.Word
	switch lhs := eq.LHS.(type) {
	case expr.Differential:
		w, ok := b.frame.FindDiff(lhs.Of.Name)
		if !ok {
			panic(fmt.Sprintf("lower: differential of undeclared state %q", lhs.Of.Name))
		}
		dst = w
	case expr.Var:
		dst = b.frame.AllocNamed(frame.Obs, lhs.Name, 0)
	default:
		panic("lower: equation left-hand side must be a Differential or a Var")
	}

	b.emit(ir.Instr{Op: ir.OpEq, Dst: dst})
	src := b.lowerExpr(eq.RHS)
	b.emit(ir.Instr{Op: ir.OpUnary, OpName: "mov", Proc: b.table.Intern("mov"), X: src, Dst: dst})
}

func (b *Builder) lowerExpr(n expr.Node) frame.Word {
	switch e := n.(type) {
	case expr.Const:
		return b.lowerConst(e.Val)
	case expr.Var:
		w, ok := b.frame.Find(e.Name)
		if !ok {
			panic(fmt.Sprintf("lower: undefined variable %q", e.Name))
		}
		b.emit(ir.Instr{Op: ir.OpVar, Name: e.Name, Dst: w})
		return w
	case expr.Tree:
		return b.lowerTree(e)
	default:
		panic(fmt.Sprintf("lower: unsupported expression node %T", n))
	}
}

func (b *Builder) lowerConst(v float64) frame.Word {
	var w frame.Word
	switch v {
	case 0:
		w = frame.ZERO
	case 1:
		w = frame.ONE
	case -1:
		w = frame.MINUS_ONE
	default:
		w = b.frame.AllocConst(v)
	}
	b.emit(ir.Instr{Op: ir.OpNum, Val: v, Dst: w})
	return w
}

func (b *Builder) lowerTree(t expr.Tree) frame.Word {
	switch len(t.Args) {
	case 1:
		x := b.lowerExpr(t.Args[0])
		dst := b.frame.AllocTemp()
		b.emit(ir.Instr{Op: ir.OpUnary, OpName: t.Op, Proc: b.table.Intern(t.Op), X: x, Dst: dst})
		b.frame.Free(x)
		return dst
	case 3:
		if t.Op == "ifelse" {
			return b.lowerIfElse(t.Args)
		}
		return b.lowerFold(t.Op, t.Args)
	default:
		if len(t.Args) >= 4 {
			if t.Op != "plus" && t.Op != "times" {
				panic(fmt.Sprintf("lower: n-ary fold requires plus or times, got %q", t.Op))
			}
			return b.lowerFold(t.Op, t.Args)
		}
		if len(t.Args) == 2 {
			return b.lowerFold(t.Op, t.Args)
		}
		panic(fmt.Sprintf("lower: unsupported arity %d for operator %q", len(t.Args), t.Op))
	}
}

// lowerIfElse evaluates args in the order args[1], args[2], args[0]:
// cond is evaluated last.
func (b *Builder) lowerIfElse(args []expr.Node) frame.Word {
	x1 := b.lowerExpr(args[1])
	x2 := b.lowerExpr(args[2])
	cond := b.lowerExpr(args[0])
	dst := b.frame.AllocTemp()
	b.emit(ir.Instr{Op: ir.OpIfElse, X1: x1, X2: x2, Cond: cond, Dst: dst})
	b.frame.Free(x1)
	b.frame.Free(x2)
	b.frame.Free(cond)
	return dst
}

// lowerFold left-folds op over args, applying the peephole laws at
// every step. For arity 2 this is a single binary emission.
func (b *Builder) lowerFold(op string, args []expr.Node) frame.Word {
	acc := b.lowerExpr(args[0])
	for _, a := range args[1:] {
		rhs := b.lowerExpr(a)
		dst := b.emitBinaryPeephole(op, acc, rhs)
		b.frame.Free(acc)
		b.frame.Free(rhs)
		acc = dst
	}
	return acc
}

// emitBinaryPeephole emits `dst ← x op y`, applying:
//   - unary-neg fusion: plus(x, neg(u)) → minus(x, u), when the neg was
//     the instruction immediately preceding this emission.
//   - times-by-MINUS_ONE fusion: times(x, -1) or times(-1, y) → neg of
//     the other operand.
func (b *Builder) emitBinaryPeephole(op string, x, y frame.Word) frame.Word {
	if op == "plus" {
		if prev, ok := b.last(); ok && prev.Op == ir.OpUnary && prev.OpName == "neg" && prev.Dst == y {
			b.popLast()
			dst := b.frame.AllocTemp()
			b.emit(ir.Instr{Op: ir.OpBinary, OpName: "minus", Proc: b.table.Intern("minus"), X: x, Y: prev.X, Dst: dst})
			return dst
		}
	}

	if op == "times" {
		if x == frame.MINUS_ONE {
			b.popNumMarker(x)
			dst := b.frame.AllocTemp()
			b.emit(ir.Instr{Op: ir.OpUnary, OpName: "neg", Proc: b.table.Intern("neg"), X: y, Dst: dst})
			return dst
		}
		if y == frame.MINUS_ONE {
			b.popNumMarker(y)
			dst := b.frame.AllocTemp()
			b.emit(ir.Instr{Op: ir.OpUnary, OpName: "neg", Proc: b.table.Intern("neg"), X: x, Dst: dst})
			return dst
		}
	}

	dst := b.frame.AllocTemp()
	b.emit(ir.Instr{Op: ir.OpBinary, OpName: op, Proc: b.table.Intern(op), X: x, Y: y, Dst: dst})
	return dst
}
