package lower

import (
	"testing"

	"github.com/cellc/cellc/pkg/expr"
	"github.com/cellc/cellc/pkg/frame"
	"github.com/cellc/cellc/pkg/ir"
	"github.com/cellc/cellc/pkg/model"
)

func countBinary(prog *ir.Program) int {
	n := 0
	for _, c := range prog.Code {
		if c.Op == ir.OpBinary {
			n++
		}
	}
	return n
}

// x' = -x, x(0) = 1
func TestLowerNegatedState(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "x", Init: 1.0}},
		Odes: []expr.Equation{
			{LHS: expr.Differential{Of: expr.Var{Name: "x"}}, RHS: expr.Tree{Op: "neg", Args: []expr.Node{expr.Var{Name: "x"}}}},
		},
	}
	prog := Build(m)
	if prog.Code[len(prog.Code)-1].Op != ir.OpNop {
		t.Fatalf("program must end with a trailing Nop")
	}
}

// Peephole law: plus(a, neg(b)) lowers to a single minus instruction.
func TestPeepholePlusNeg(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "a", Init: 1}, {Name: "b", Init: 2}},
		Observables: []expr.Equation{
			{LHS: expr.Var{Name: "y"}, RHS: expr.Tree{Op: "plus", Args: []expr.Node{
				expr.Var{Name: "a"},
				expr.Tree{Op: "neg", Args: []expr.Node{expr.Var{Name: "b"}}},
			}}},
		},
	}
	prog := Build(m)
	if got := countBinary(prog); got != 1 {
		t.Fatalf("expected exactly one binary instruction, got %d", got)
	}
	for _, c := range prog.Code {
		if c.Op == ir.OpBinary && c.OpName != "minus" {
			t.Fatalf("expected the fused binary op to be minus, got %q", c.OpName)
		}
		if c.Op == ir.OpUnary && c.OpName == "neg" {
			t.Fatalf("unary neg should have been fused away")
		}
	}
}

// Peephole law: times(a, Const(-1)) lowers to a single neg instruction.
func TestPeepholeTimesMinusOne(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		Params:  []model.ParamDecl{{Name: "a", Value: 3}},
		Observables: []expr.Equation{
			{LHS: expr.Var{Name: "y"}, RHS: expr.Tree{Op: "times", Args: []expr.Node{
				expr.Var{Name: "a"}, expr.Const{Val: -1},
			}}},
		},
	}
	prog := Build(m)
	if got := countBinary(prog); got != 0 {
		t.Fatalf("expected zero binary instructions after fusion, got %d", got)
	}
	found := false
	for _, c := range prog.Code {
		if c.Op == ir.OpUnary && c.OpName == "neg" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a fused neg instruction")
	}
}

// Symmetric form: times(Const(-1), a).
func TestPeepholeMinusOneTimes(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		Params:  []model.ParamDecl{{Name: "a", Value: 3}},
		Observables: []expr.Equation{
			{LHS: expr.Var{Name: "y"}, RHS: expr.Tree{Op: "times", Args: []expr.Node{
				expr.Const{Val: -1}, expr.Var{Name: "a"},
			}}},
		},
	}
	prog := Build(m)
	if got := countBinary(prog); got != 0 {
		t.Fatalf("expected zero binary instructions after fusion, got %d", got)
	}
}

func TestConstantBinding(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		Observables: []expr.Equation{
			{LHS: expr.Var{Name: "y0"}, RHS: expr.Const{Val: 0}},
			{LHS: expr.Var{Name: "y1"}, RHS: expr.Const{Val: 1}},
			{LHS: expr.Var{Name: "ym1"}, RHS: expr.Const{Val: -1}},
		},
	}
	prog := Build(m)
	for _, c := range prog.Code {
		if c.Op != ir.OpNum {
			continue
		}
		switch c.Val {
		case 0:
			if c.Dst != frame.ZERO {
				t.Fatalf("Const(0) must bind to ZERO")
			}
		case 1:
			if c.Dst != frame.ONE {
				t.Fatalf("Const(1) must bind to ONE")
			}
		case -1:
			if c.Dst != frame.MINUS_ONE {
				t.Fatalf("Const(-1) must bind to MINUS_ONE")
			}
		}
	}
}

func TestAlgebraicEquationsRejected(t *testing.T) {
	m := &model.Model{
		VarName:   "t",
		Algebraic: []expr.Equation{{LHS: expr.Var{Name: "z"}, RHS: expr.Const{Val: 1}}},
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on non-empty Algebraic list")
		}
	}()
	Build(m)
}

func TestDifferentialOfUndeclaredStatePanics(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		Odes: []expr.Equation{
			{LHS: expr.Differential{Of: expr.Var{Name: "nope"}}, RHS: expr.Const{Val: 1}},
		},
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on differential of undeclared state")
		}
	}()
	Build(m)
}

func TestObservablesLowerBeforeOdes(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "x", Init: 1}},
		Odes: []expr.Equation{
			{LHS: expr.Differential{Of: expr.Var{Name: "x"}}, RHS: expr.Var{Name: "x"}},
		},
		Observables: []expr.Equation{
			{LHS: expr.Var{Name: "y"}, RHS: expr.Var{Name: "x"}},
		},
	}
	prog := Build(m)

	var firstEqDst frame.Word
	for _, c := range prog.Code {
		if c.Op == ir.OpEq {
			firstEqDst = c.Dst
			break
		}
	}
	if prog.Frame.TagAt(firstEqDst.Index) != frame.Obs {
		t.Fatalf("the first Eq marker should target the observable, not the ODE")
	}
}
