package cellc

import (
	"math"
	"testing"

	"github.com/cellc/cellc/pkg/expr"
	"github.com/cellc/cellc/pkg/model"
)

func decayModel() *model.Model {
	return &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "x", Init: 5}},
		Params:  []model.ParamDecl{{Name: "k", Value: -2}},
		Odes: []expr.Equation{
			{LHS: expr.Differential{Of: expr.Var{Name: "x"}}, RHS: expr.Tree{Op: "times", Args: []expr.Node{expr.Var{Name: "k"}, expr.Var{Name: "x"}}}},
		},
	}
}

func TestCompileBytecodeAndCall(t *testing.T) {
	h, err := Compile(decayModel(), BackendBytecode)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if h.CountStates() != 1 || h.CountParams() != 1 {
		t.Fatalf("unexpected shape: states=%d params=%d", h.CountStates(), h.CountParams())
	}
	if got := h.InitialStates(); len(got) != 1 || got[0] != 5 {
		t.Fatalf("InitialStates: got %v", got)
	}

	du := make([]float64, 1)
	if !h.Call(du, []float64{3}, []float64{-2}, 0) {
		t.Fatalf("Call rejected")
	}
	if math.Abs(du[0]-(-6)) > 1e-12 {
		t.Fatalf("x'=k*x with k=-2,x=3: got %v, want -6", du[0])
	}
	if err := Free(h); err != nil {
		t.Fatalf("Free: %v", err)
	}
}

func TestCompileWasmReturnsSourceNotRunnable(t *testing.T) {
	h, err := Compile(decayModel(), BackendWasm)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	src, ok := h.WATSource()
	if !ok || src == "" {
		t.Fatalf("expected non-empty WAT source")
	}
	du := make([]float64, 1)
	if h.Call(du, []float64{3}, []float64{-2}, 0) {
		t.Fatalf("expected Call to report false on a wasm handle")
	}
}

func TestCompileRecoversLoweringPanicAsError(t *testing.T) {
	bad := &model.Model{
		VarName: "t",
		Algebraic: []expr.Equation{
			{LHS: expr.Var{Name: "a"}, RHS: expr.Const{Val: 0}},
		},
	}
	_, err := Compile(bad, BackendBytecode)
	if err == nil {
		t.Fatalf("expected an error for a model with algebraic equations")
	}
}

func TestCompileUnknownBackend(t *testing.T) {
	_, err := Compile(decayModel(), Backend("vax"))
	if err == nil {
		t.Fatalf("expected an error for an unknown backend")
	}
}
