package runnable

import (
	"math"
	"testing"

	"github.com/cellc/cellc/pkg/bytecode"
	"github.com/cellc/cellc/pkg/expr"
	"github.com/cellc/cellc/pkg/lower"
	"github.com/cellc/cellc/pkg/model"
)

func buildExponentialDecay() *Runnable {
	m := &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "x", Init: 2}},
		Params:  []model.ParamDecl{{Name: "k", Value: -1}},
		Observables: []expr.Equation{
			{LHS: expr.Var{Name: "twice_x"}, RHS: expr.Tree{Op: "times", Args: []expr.Node{expr.Const{Val: 2}, expr.Var{Name: "x"}}}},
		},
		Odes: []expr.Equation{
			{LHS: expr.Differential{Of: expr.Var{Name: "x"}}, RHS: expr.Tree{Op: "times", Args: []expr.Node{expr.Var{Name: "k"}, expr.Var{Name: "x"}}}},
		},
	}
	prog := lower.Build(m)
	bc := bytecode.Compile(prog, bytecode.VirtualTable(prog.Table))
	return NewBytecode(prog, bc)
}

func TestCallComputesDerivative(t *testing.T) {
	r := buildExponentialDecay()
	if r.CountStates() != 1 || r.CountParams() != 1 || r.CountObs() != 1 {
		t.Fatalf("unexpected counts: states=%d params=%d obs=%d", r.CountStates(), r.CountParams(), r.CountObs())
	}

	du := make([]float64, 1)
	u := []float64{3.0}
	p := []float64{-1.0}
	if !r.Call(du, u, p, 0.0) {
		t.Fatalf("Call rejected well-formed arguments")
	}
	if math.Abs(du[0]-(-3.0)) > 1e-12 {
		t.Fatalf("x'=k*x with k=-1,x=3: got %v, want -3", du[0])
	}
}

func TestCallObsComputesObservable(t *testing.T) {
	r := buildExponentialDecay()
	dobs := make([]float64, 1)
	if !r.CallObs(dobs, []float64{4.0}, []float64{-1.0}, 0.0) {
		t.Fatalf("CallObs rejected well-formed arguments")
	}
	if math.Abs(dobs[0]-8.0) > 1e-12 {
		t.Fatalf("twice_x with x=4: got %v, want 8", dobs[0])
	}
}

func TestInitialStatesAndParamsReflectDeclaration(t *testing.T) {
	r := buildExponentialDecay()
	if got := r.InitialStates(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("InitialStates: got %v, want [2]", got)
	}
	if got := r.Params(); len(got) != 1 || got[0] != -1 {
		t.Fatalf("Params: got %v, want [-1]", got)
	}
}

func TestCallRejectsMismatchedSliceLengths(t *testing.T) {
	r := buildExponentialDecay()
	du := make([]float64, 2)
	if r.Call(du, []float64{1}, []float64{1}, 0.0) {
		t.Fatalf("expected Call to reject a wrongly-sized du slice")
	}
}
