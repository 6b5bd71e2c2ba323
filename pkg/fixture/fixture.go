// Package fixture decodes the small JSON rendering of model.Model and
// expr.Node that cmd/cellc and cmd/cellr read from disk. spec.md §1
// treats model decoding as an external collaborator — this is cellc's
// own minimal format for command-line smoke testing, not a general
// modelling language, which is why it lives beside the CLI entry
// points rather than under pkg/model itself.
package fixture

import (
	"encoding/json"
	"fmt"

	"github.com/cellc/cellc/pkg/expr"
	"github.com/cellc/cellc/pkg/model"
)

// Model is the on-disk JSON shape.
type Model struct {
	Var         string     `json:"var"`
	States      []State    `json:"states"`
	Params      []Param    `json:"params"`
	Odes        []Equation `json:"odes"`
	Observables []Equation `json:"observables"`
}

type State struct {
	Name string  `json:"name"`
	Init float64 `json:"init"`
}

type Param struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type Equation struct {
	Name string `json:"name"`
	Expr Node   `json:"expr"`
}

// Node decodes one of: {"op":"var","name":"x"}, {"op":"const","val":1},
// or {"op":"<operator>","args":[...]}.
type Node struct {
	Op   string  `json:"op"`
	Name string  `json:"name"`
	Val  float64 `json:"val"`
	Args []Node  `json:"args"`
}

func (n Node) toExpr() (expr.Node, error) {
	switch n.Op {
	case "var":
		if n.Name == "" {
			return nil, fmt.Errorf("var node missing name")
		}
		return expr.Var{Name: n.Name}, nil
	case "const":
		return expr.Const{Val: n.Val}, nil
	case "":
		return nil, fmt.Errorf("node missing \"op\"")
	default:
		args := make([]expr.Node, len(n.Args))
		for i, a := range n.Args {
			converted, err := a.toExpr()
			if err != nil {
				return nil, fmt.Errorf("arg %d of %q: %w", i, n.Op, err)
			}
			args[i] = converted
		}
		return expr.Tree{Op: n.Op, Args: args}, nil
	}
}

// Decode parses raw JSON bytes into a *model.Model.
func Decode(data []byte) (*model.Model, error) {
	var f Model
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding model fixture: %w", err)
	}

	m := &model.Model{VarName: f.Var}
	for _, s := range f.States {
		m.States = append(m.States, model.StateDecl{Name: s.Name, Init: s.Init})
	}
	for _, p := range f.Params {
		m.Params = append(m.Params, model.ParamDecl{Name: p.Name, Value: p.Value})
	}
	for _, eq := range f.Odes {
		rhs, err := eq.Expr.toExpr()
		if err != nil {
			return nil, fmt.Errorf("ode %q: %w", eq.Name, err)
		}
		m.Odes = append(m.Odes, expr.Equation{
			LHS: expr.Differential{Of: expr.Var{Name: eq.Name}},
			RHS: rhs,
		})
	}
	for _, eq := range f.Observables {
		rhs, err := eq.Expr.toExpr()
		if err != nil {
			return nil, fmt.Errorf("observable %q: %w", eq.Name, err)
		}
		m.Observables = append(m.Observables, expr.Equation{
			LHS: expr.Var{Name: eq.Name},
			RHS: rhs,
		})
	}
	return m, nil
}
