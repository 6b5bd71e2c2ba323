// Package model is the already-parsed description the compiler
// consumes: an independent-variable declaration, states, parameters,
// and ordered lists of algebraic equations, ODEs and observables.
package model

import "github.com/cellc/cellc/pkg/expr"

// StateDecl is one integrator state component.
type StateDecl struct {
	Name string
	Init float64
}

// ParamDecl is one model parameter.
type ParamDecl struct {
	Name  string
	Value float64
}

// Model is a complete, already-decoded ODE system.
type Model struct {
	// VarName names the independent variable (e.g. "t").
	VarName string

	States []StateDecl
	Params []ParamDecl

	// Algebraic equations are reserved: spec.md §9 notes every backend
	// in the sources ignores this slot. cellc treats a non-empty list
	// as a lowering-time error rather than silently dropping it.
	Algebraic []expr.Equation

	// Odes is the ordered list of Differential(name) ~ expr equations.
	Odes []expr.Equation

	// Observables is the ordered list of name ~ expr equations.
	Observables []expr.Equation
}
