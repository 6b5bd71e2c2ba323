package bytecode

import (
	"testing"

	"github.com/cellc/cellc/pkg/expr"
	"github.com/cellc/cellc/pkg/lower"
	"github.com/cellc/cellc/pkg/model"
)

// x' = -x, x(0) = 1.
func TestRunNegatedState(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "x", Init: 1}},
		Odes: []expr.Equation{
			{LHS: expr.Differential{Of: expr.Var{Name: "x"}}, RHS: expr.Tree{Op: "neg", Args: []expr.Node{expr.Var{Name: "x"}}}},
		},
	}
	prog := lower.Build(m)
	vt := VirtualTable(prog.Table)
	bc := Compile(prog, vt)

	mem := prog.Frame.Mem()
	bc.Run(mem)

	diff, _ := prog.Frame.FindDiff("x")
	if got := mem[diff.Index]; got != -1.0 {
		t.Fatalf("expected du/dt == -1.0, got %v", got)
	}
}

// y = ifelse(x > 0, 1, -1).
func TestRunIfElse(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "x", Init: -0.5}},
		Observables: []expr.Equation{
			{LHS: expr.Var{Name: "y"}, RHS: expr.Tree{Op: "ifelse", Args: []expr.Node{
				expr.Var{Name: "x"}, expr.Const{Val: 1}, expr.Const{Val: -1},
			}}},
		},
	}
	prog := lower.Build(m)
	vt := VirtualTable(prog.Table)
	bc := Compile(prog, vt)

	mem := prog.Frame.Mem()
	bc.Run(mem)

	y, ok := prog.Frame.Find("y")
	if !ok {
		t.Fatalf("observable y was not allocated")
	}
	if got := mem[y.Index]; got != -1.0 {
		t.Fatalf("expected y == -1.0 for x=-0.5, got %v", got)
	}

	mem = prog.Frame.Mem()
	x, _ := prog.Frame.Find("x")
	mem[x.Index] = 0.5
	bc.Run(mem)
	if got := mem[y.Index]; got != 1.0 {
		t.Fatalf("expected y == 1.0 for x=0.5, got %v", got)
	}
}

// x' = a*x with a = -1 held in a parameter slot (not the MINUS_ONE
// constant, so the times-by-MINUS_ONE peephole does not apply),
// observing that a parameter evaluates correctly end to end.
func TestRunParamTimesState(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "x", Init: 2}},
		Params:  []model.ParamDecl{{Name: "a", Value: -1}},
		Odes: []expr.Equation{
			{LHS: expr.Differential{Of: expr.Var{Name: "x"}}, RHS: expr.Tree{Op: "times", Args: []expr.Node{
				expr.Var{Name: "a"}, expr.Var{Name: "x"},
			}}},
		},
	}
	prog := lower.Build(m)
	vt := VirtualTable(prog.Table)
	bc := Compile(prog, vt)

	mem := prog.Frame.Mem()
	bc.Run(mem)

	diff, _ := prog.Frame.FindDiff("x")
	if got := mem[diff.Index]; got != -2.0 {
		t.Fatalf("expected du/dt == -2.0 (a=-1, x=2), got %v", got)
	}
}

func TestVirtualTableResolvesEveryInternedName(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "x", Init: 1}},
		Observables: []expr.Equation{
			{LHS: expr.Var{Name: "y"}, RHS: expr.Tree{Op: "sin", Args: []expr.Node{expr.Var{Name: "x"}}}},
		},
	}
	prog := lower.Build(m)
	vt := VirtualTable(prog.Table)
	if len(vt) != prog.Table.Len() {
		t.Fatalf("virtual table length %d does not match interned operator count %d", len(vt), prog.Table.Len())
	}
	for i, f := range vt {
		if f == nil {
			t.Fatalf("virtual table entry %d (%q) is nil", i, prog.Table.Name(i))
		}
	}
}
