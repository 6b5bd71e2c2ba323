// Package hostfuncs is the fixed table of scalar math helpers every
// backend can call by name. spec.md §1 treats these as a host-provided
// function table; this package is the one concrete implementation
// used by the bytecode interpreter and, indirectly, as the reference
// semantics the native/wasm backends' inline or call-through-vtable
// sequences must match.
package hostfuncs

import "math"

// Transcendental lists the operators emitted as indirect/import calls
// rather than inline instructions by the native and wasm backends
// (spec.md §4.4/§4.6/§4.7). The analyzer's bufferable-set computation
// clears its candidate stack on every one of these.
var Transcendental = map[string]bool{
	"rem": true, "power": true, "sin": true, "cos": true, "tan": true,
	"csc": true, "sec": true, "cot": true, "arcsin": true, "arccos": true,
	"arctan": true, "exp": true, "ln": true, "log": true, "root": true,
}

func mov(x, _ float64) float64    { return x }
func plus(x, y float64) float64   { return x + y }
func minus(x, y float64) float64  { return x - y }
func neg(x, _ float64) float64    { return -x }
func times(x, y float64) float64  { return x * y }
func divide(x, y float64) float64 { return x / y }
func rem(x, y float64) float64    { return math.Mod(x, y) }
func power(x, y float64) float64  { return math.Pow(x, y) }

func boolF(b bool) float64 {
	if b {
		return 1.0
	}
	return -1.0
}

func gt(x, y float64) float64  { return boolF(x > y) }
func geq(x, y float64) float64 { return boolF(x >= y) }
func lt(x, y float64) float64  { return boolF(x < y) }
func leq(x, y float64) float64 { return boolF(x <= y) }
func eq(x, y float64) float64  { return boolF(x == y) }
func neq(x, y float64) float64 { return boolF(x != y) }
func and(x, y float64) float64 { return boolF(x > 0.0 && y > 0.0) }
func or(x, y float64) float64  { return boolF(x > 0.0 || y > 0.0) }
func xor(x, y float64) float64 { return boolF(x*y < 0.0) }

func sin(x, _ float64) float64    { return math.Sin(x) }
func cos(x, _ float64) float64    { return math.Cos(x) }
func tan(x, _ float64) float64    { return math.Tan(x) }
func csc(x, _ float64) float64    { return 1.0 / math.Sin(x) }
func sec(x, _ float64) float64    { return 1.0 / math.Cos(x) }
func cot(x, _ float64) float64    { return 1.0 / math.Tan(x) }
func arcsin(x, _ float64) float64 { return math.Asin(x) }
func arccos(x, _ float64) float64 { return math.Acos(x) }
func arctan(x, _ float64) float64 { return math.Atan(x) }
func expf(x, _ float64) float64   { return math.Exp(x) }
func ln(x, _ float64) float64     { return math.Log(x) }
func log10(x, _ float64) float64  { return math.Log10(x) }
func root(x, _ float64) float64   { return math.Sqrt(x) }

// Table is the name→implementation map every operator name lowering
// can emit resolves against.
var Table = map[string]func(float64, float64) float64{
	"mov": mov, "plus": plus, "minus": minus, "neg": neg,
	"times": times, "divide": divide, "rem": rem, "power": power,
	"gt": gt, "geq": geq, "lt": lt, "leq": leq, "eq": eq, "neq": neq,
	"and": and, "or": or, "xor": xor,
	"sin": sin, "cos": cos, "tan": tan, "csc": csc, "sec": sec, "cot": cot,
	"arcsin": arcsin, "arccos": arccos, "arctan": arctan,
	"exp": expf, "ln": ln, "log": log10, "root": root,
}

// Lookup returns the implementation for name, panicking if it is not
// one of the fixed operator names — an unknown operator is a static
// authoring error caught at lowering time, not a runtime condition.
func Lookup(name string) func(float64, float64) float64 {
	f, ok := Table[name]
	if !ok {
		panic("hostfuncs: unknown operator " + name)
	}
	return f
}
