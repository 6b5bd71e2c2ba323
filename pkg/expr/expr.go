// Package expr defines the expression-tree shape the host hands to the
// lowering pass: an already-decoded forest of operator trees, constant
// literals and variable references. No parser lives here — spec.md
// treats model parsing as an external collaborator.
package expr

// Node is any expression-tree node.
type Node interface {
	isNode()
}

// Tree is an n-ary operator application. Op is one of the operator
// names enumerated in spec.md §4.2/§4.6 ("plus", "sin", "ifelse", ...).
type Tree struct {
	Op   string
	Args []Node
}

// Const is a literal double. 0, 1 and -1 bind to the frame's reserved
// constants regardless of where they occur in the tree.
type Const struct {
	Val float64
}

// Var is a reference to a named quantity resolved through the frame
// (the independent variable, a state, a parameter or an observable).
type Var struct {
	Name string
}

// Differential wraps a Var as the left-hand side of an ODE equation.
type Differential struct {
	Of Var
}

func (Tree) isNode()         {}
func (Const) isNode()        {}
func (Var) isNode()          {}
func (Differential) isNode() {}

// Equation binds a left-hand side (a Differential or a bare Var) to a
// right-hand side expression.
type Equation struct {
	LHS Node
	RHS Node
}
