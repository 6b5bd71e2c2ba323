// Package wasm emits textual WebAssembly (.wat) modules: typed
// imports for the transcendental set, a linear memory pre-populated
// from the frame's initial values, and one exported `run` function
// translated from the IR in post-order, folded-s-expression form —
// wasm's own operand stack does the work pkg/amd64/pkg/arm64 need an
// explicit accumulator for, so no locals are declared.
package wasm

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/cellc/cellc/pkg/frame"
	"github.com/cellc/cellc/pkg/hostfuncs"
	"github.com/cellc/cellc/pkg/ir"
)

const pageSize = 65536

// Compile renders prog as a complete .wat module text.
func Compile(prog *ir.Program) string {
	var buf bytes.Buffer

	buf.WriteString(";; cellc-generated WebAssembly module\n")
	buf.WriteString("(module\n")

	for _, name := range usedTranscendentals(prog) {
		fmt.Fprintf(&buf, "  (import \"env\" %q (func $%s (param f64 f64) (result f64)))\n", name, name)
	}

	mem := prog.Frame.Mem()
	pages := (len(mem)*8 + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	fmt.Fprintf(&buf, "  (memory (export \"memory\") %d)\n", pages)
	fmt.Fprintf(&buf, "  (global $framelen i32 (i32.const %d))\n", len(mem))
	buf.WriteString("  (data (i32.const 0) \"")
	for _, v := range mem {
		buf.Write(escapeFloat64LE(v))
	}
	buf.WriteString("\")\n")

	buf.WriteString("  (func $run (export \"run\")\n")
	for _, c := range prog.Code {
		stmt := instrStmt(c)
		if stmt != "" {
			buf.WriteString("    ")
			buf.WriteString(stmt)
			buf.WriteString("\n")
		}
	}
	buf.WriteString("  )\n")
	buf.WriteString(")\n")

	return buf.String()
}

// usedTranscendentals returns, in a stable order, the distinct
// transcendental operator names prog actually calls — only those get
// an import, so a model that never calls `sin` never pulls it in.
func usedTranscendentals(prog *ir.Program) []string {
	seen := make(map[string]bool)
	for _, c := range prog.Code {
		if (c.Op == ir.OpUnary || c.Op == ir.OpBinary) && hostfuncs.Transcendental[c.OpName] {
			seen[c.OpName] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func load(w frame.Word) string {
	return fmt.Sprintf("(f64.load offset=%d (i32.const 0))", w.Index*8)
}

func store(w frame.Word, value string) string {
	return fmt.Sprintf("(f64.store offset=%d (i32.const 0) %s)", w.Index*8, value)
}

// boolSelect turns an i32 comparison result into the frame's ±1.0
// boolean convention via wasm's typed `select`.
func boolSelect(cmp string) string {
	return fmt.Sprintf("(select (f64.const 1) (f64.const -1) %s)", cmp)
}

var arith = map[string]string{
	"plus": "add", "minus": "sub", "times": "mul", "divide": "div",
}

var compare = map[string]string{
	"gt": "gt", "geq": "ge", "lt": "lt", "leq": "le", "eq": "eq", "neq": "ne",
}

func instrStmt(c ir.Instr) string {
	switch c.Op {
	case ir.OpUnary:
		return store(c.Dst, unaryExpr(c))
	case ir.OpBinary:
		return store(c.Dst, binaryExpr(c))
	case ir.OpIfElse:
		cond := fmt.Sprintf("(f64.gt %s (f64.const 0))", load(c.Cond))
		return store(c.Dst, fmt.Sprintf("(select %s %s %s)", load(c.X1), load(c.X2), cond))
	default:
		return ""
	}
}

func unaryExpr(c ir.Instr) string {
	switch {
	case c.OpName == "mov":
		return load(c.X)
	case c.OpName == "neg":
		return fmt.Sprintf("(f64.neg %s)", load(c.X))
	case hostfuncs.Transcendental[c.OpName]:
		return fmt.Sprintf("(call $%s %s (f64.const 0))", c.OpName, load(c.X))
	default:
		panic(fmt.Sprintf("wasm: unsupported unary operator %q", c.OpName))
	}
}

func binaryExpr(c ir.Instr) string {
	x, y := load(c.X), load(c.Y)
	switch {
	case hostfuncs.Transcendental[c.OpName]:
		return fmt.Sprintf("(call $%s %s %s)", c.OpName, x, y)
	case arith[c.OpName] != "":
		return fmt.Sprintf("(f64.%s %s %s)", arith[c.OpName], x, y)
	case compare[c.OpName] != "":
		return boolSelect(fmt.Sprintf("(f64.%s %s %s)", compare[c.OpName], x, y))
	case c.OpName == "and":
		return boolSelect(fmt.Sprintf("(i32.and (f64.gt %s (f64.const 0)) (f64.gt %s (f64.const 0)))", x, y))
	case c.OpName == "or":
		return boolSelect(fmt.Sprintf("(i32.or (f64.gt %s (f64.const 0)) (f64.gt %s (f64.const 0)))", x, y))
	case c.OpName == "xor":
		return boolSelect(fmt.Sprintf("(f64.lt (f64.mul %s %s) (f64.const 0))", x, y))
	default:
		panic(fmt.Sprintf("wasm: unsupported binary operator %q", c.OpName))
	}
}

// escapeFloat64LE renders a float64 as its little-endian byte pattern,
// encoded the way a .wat data-segment string literal expects: every
// byte as a `\xx` escape, since none of the eight bytes is guaranteed
// printable.
func escapeFloat64LE(v float64) []byte {
	bits := math.Float64bits(v)
	out := make([]byte, 0, 32)
	for i := 0; i < 8; i++ {
		b := byte(bits >> (8 * uint(i)))
		out = append(out, []byte(fmt.Sprintf("\\%02x", b))...)
	}
	return out
}
