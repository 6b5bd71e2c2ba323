package cellc

import (
	"github.com/cellc/cellc/pkg/expr"
	"github.com/cellc/cellc/pkg/model"
)

// vanDerPol builds x'=y, y'=mu*(1-x^2)*y - x — the two-state nonlinear
// oscillator spec.md §8 names as its cross-backend determinism
// scenario: bytecode, amd64 and arm64 must all compute the same
// derivative at the same (state, param, t) point. Shared by the
// amd64/arm64-gated integration tests, which otherwise have nothing in
// common to compile against on a mismatched GOARCH.
func vanDerPol() *model.Model {
	x := expr.Var{Name: "x"}
	y := expr.Var{Name: "y"}
	mu := expr.Var{Name: "mu"}
	oneMinusXSquared := expr.Tree{Op: "minus", Args: []expr.Node{
		expr.Const{Val: 1},
		expr.Tree{Op: "times", Args: []expr.Node{x, x}},
	}}
	dy := expr.Tree{Op: "minus", Args: []expr.Node{
		expr.Tree{Op: "times", Args: []expr.Node{mu, expr.Tree{Op: "times", Args: []expr.Node{oneMinusXSquared, y}}}},
		x,
	}}
	return &model.Model{
		VarName: "t",
		States:  []model.StateDecl{{Name: "x", Init: 2}, {Name: "y", Init: 0}},
		Params:  []model.ParamDecl{{Name: "mu", Value: 1}},
		Odes: []expr.Equation{
			{LHS: expr.Differential{Of: x}, RHS: y},
			{LHS: expr.Differential{Of: y}, RHS: dy},
		},
	}
}
