package amd64

import (
	"bytes"
	"testing"

	"github.com/cellc/cellc/pkg/expr"
	"github.com/cellc/cellc/pkg/lower"
	"github.com/cellc/cellc/pkg/model"
)

// Compile does not itself execute the bytes (that requires the loader
// and a live page), but every emitted routine must at minimum start
// with the prologue and end with the epilogue spec.md §4.6 specifies.
func TestCompileEmitsPrologueAndEpilogue(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "x", Init: 1}},
		Odes: []expr.Equation{
			{LHS: expr.Differential{Of: expr.Var{Name: "x"}}, RHS: expr.Tree{Op: "neg", Args: []expr.Node{expr.Var{Name: "x"}}}},
		},
	}
	prog := lower.Build(m)
	code := Compile(prog, false)

	wantPrefix := []byte{0x55, 0x53, 0x48, 0x89, 0xfd, 0x48, 0x89, 0xf3}
	if len(code) < len(wantPrefix) {
		t.Fatalf("emitted routine too short: %d bytes", len(code))
	}
	for i, b := range wantPrefix {
		if code[i] != b {
			t.Fatalf("prologue mismatch at byte %d: got %#x, want %#x", i, code[i], b)
		}
	}

	wantSuffix := []byte{0xc3}
	if code[len(code)-1] != wantSuffix[0] {
		t.Fatalf("routine does not end in ret, got %#x", code[len(code)-1])
	}
	if code[len(code)-2] != 0x58+byte(RBP) || code[len(code)-3] != 0x58+byte(RBX) {
		t.Fatalf("routine does not restore rbx/rbp before ret")
	}
}

func TestCompileHandlesIfElseAndTranscendentals(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "x", Init: 0.5}},
		Observables: []expr.Equation{
			{LHS: expr.Var{Name: "y"}, RHS: expr.Tree{Op: "ifelse", Args: []expr.Node{
				expr.Var{Name: "x"}, expr.Const{Val: 1}, expr.Const{Val: -1},
			}}},
			{LHS: expr.Var{Name: "s"}, RHS: expr.Tree{Op: "sin", Args: []expr.Node{expr.Var{Name: "x"}}}},
		},
	}
	prog := lower.Build(m)
	code := Compile(prog, false)
	if len(code) == 0 {
		t.Fatalf("expected non-empty emitted routine")
	}
}

// z = (x-y) + sin(w) gives the analyzer a temporary (x-y) that is
// saveable (another value is produced before it is consumed) but not
// bufferable (its live range crosses the sin call). That is exactly
// where optimize changes the save-priority chain: storing the
// temporary directly (optimize=true) versus opportunistically parking
// it in the XMM4/XMM5 hold cache (optimize=false) emit different
// bytes, proving the flag actually reaches codegen.
func TestCompileOptimizeChangesSaveableNotBufferableCodegen(t *testing.T) {
	m := &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "x", Init: 1}, {Name: "y", Init: 1}, {Name: "w", Init: 1}},
		Observables: []expr.Equation{
			{LHS: expr.Var{Name: "z"}, RHS: expr.Tree{Op: "plus", Args: []expr.Node{
				expr.Tree{Op: "minus", Args: []expr.Node{expr.Var{Name: "x"}, expr.Var{Name: "y"}}},
				expr.Tree{Op: "sin", Args: []expr.Node{expr.Var{Name: "w"}}},
			}}},
		},
		Odes: []expr.Equation{
			{LHS: expr.Differential{Of: expr.Var{Name: "x"}}, RHS: expr.Const{Val: 0}},
			{LHS: expr.Differential{Of: expr.Var{Name: "y"}}, RHS: expr.Const{Val: 0}},
			{LHS: expr.Differential{Of: expr.Var{Name: "w"}}, RHS: expr.Const{Val: 0}},
		},
	}
	prog := lower.Build(m)
	optimized := Compile(prog, true)
	unoptimized := Compile(prog, false)
	if bytes.Equal(optimized, unoptimized) {
		t.Fatalf("expected optimize to change codegen for a saveable-but-not-bufferable temporary")
	}
}
