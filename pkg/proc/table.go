// Package proc is the per-program function table: a string→index
// dedup table that lowering consults to turn an operator name into a
// stable Proc index, and that the interpreter and native/wasm
// backends use identically to locate the operator's host function.
package proc

// HostFunc is the fixed signature every table entry implements. Unary
// operators are called with 0.0 as the second argument.
type HostFunc func(x, y float64) float64

// Table deduplicates operator names into stable indices.
type Table struct {
	names []string
	index map[string]int
}

// New creates an empty function table.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// Intern returns the stable index for name, allocating one on first
// use.
func (t *Table) Intern(name string) int {
	if idx, ok := t.index[name]; ok {
		return idx
	}
	idx := len(t.names)
	t.names = append(t.names, name)
	t.index[name] = idx
	return idx
}

// Name returns the operator name stored at idx.
func (t *Table) Name(idx int) string {
	return t.names[idx]
}

// Len returns the number of distinct operators interned so far.
func (t *Table) Len() int {
	return len(t.names)
}

// Names returns the table's operator names in index order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}
