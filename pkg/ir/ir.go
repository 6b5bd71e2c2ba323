// Package ir is the three-address-code-like instruction stream
// produced by lowering: a flat slice of Instr values over frame.Word
// operands, plus the frame and function table the program runs
// against.
package ir

import (
	"fmt"

	"github.com/cellc/cellc/pkg/frame"
	"github.com/cellc/cellc/pkg/proc"
)

// Op discriminates which fields of Instr are meaningful.
type Op uint8

const (
	// OpUnary is dst ← op(x).
	OpUnary Op = iota
	// OpBinary is dst ← x op y.
	OpBinary
	// OpIfElse is dst ← (cond>0) ? x1 : x2.
	OpIfElse
	// OpNum is a literal-load debug marker; backends that bind
	// constants at slot level emit no work for it.
	OpNum
	// OpVar is a name-reference debug marker.
	OpVar
	// OpEq delimits the start of an equation assigning into Dst.
	OpEq
	// OpNop is the trailing sentinel.
	OpNop
)

// Instr is a single IR instruction. Which fields are populated depends
// on Op, mirroring spec.md §3's tagged-record description.
type Instr struct {
	Op Op

	// OpName is the symbolic operator for OpUnary/OpBinary ("plus",
	// "sin", "neg", "mov", ...); Proc is its index into the program's
	// function table.
	OpName string
	Proc   int

	X, Y   frame.Word // OpUnary: X is the operand. OpBinary: X, Y.
	X1, X2 frame.Word // OpIfElse operands, selected by Cond.
	Cond   frame.Word
	Dst    frame.Word
	Val    float64 // OpNum
	Name   string  // OpVar
}

func (i Instr) String() string {
	switch i.Op {
	case OpUnary:
		return fmt.Sprintf("%s ← %s(%s)", i.Dst, i.OpName, i.X)
	case OpBinary:
		return fmt.Sprintf("%s ← %s %s %s", i.Dst, i.X, i.OpName, i.Y)
	case OpIfElse:
		return fmt.Sprintf("%s ← (%s>0) ? %s : %s", i.Dst, i.Cond, i.X1, i.X2)
	case OpNum:
		return fmt.Sprintf("num %s = %g", i.Dst, i.Val)
	case OpVar:
		return fmt.Sprintf("var %s :: %s", i.Dst, i.Name)
	case OpEq:
		return fmt.Sprintf("eq %s", i.Dst)
	case OpNop:
		return "nop"
	default:
		return "unknown"
	}
}

// Program holds the lowered code vector, the frame it runs over, and
// the function table referenced by Instr.Proc.
type Program struct {
	Code  []Instr
	Frame *frame.Frame
	Table *proc.Table
}
