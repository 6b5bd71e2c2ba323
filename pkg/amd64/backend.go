package amd64

import (
	"fmt"

	"github.com/cellc/cellc/pkg/analyze"
	"github.com/cellc/cellc/pkg/frame"
	"github.com/cellc/cellc/pkg/hostfuncs"
	"github.com/cellc/cellc/pkg/ir"
)

// baseReg and vtableReg are the two ABI registers every emitted
// routine copies its arguments into on entry (spec.md §4.6's "ABI of
// emitted code"): frame slots hang off RBP, the host function table
// off RBX.
const (
	baseReg   = RBP
	vtableReg = RBX
)

const wordSize = 8

func disp(w frame.Word) int32 {
	return int32(w.Index * wordSize)
}

// holdRegs is the two-slot hold-register cache spec.md §4.6 calls out
// as XMM4..XMM7; cellc implements the pair the wired original crate's
// AmdCompiler actually uses (x4/x5 in amd/mod.rs), leaving XMM6/XMM7
// free for future expansion to the full four-register file.
var holdRegs = [2]XMM{XMM4, XMM5}

// Compile assembles prog into a standalone AMD64 routine with the
// signature `func(frame_base, vtable_base *float64)`. Grounded on the
// wired original crate's amd/mod.rs (reached through `mod amd;` in
// lib.rs, not the unwired standalone amd.rs snapshot elsewhere in the
// tree): direct frame addressing for every Word including
// temporaries, the accumulator-reuse shortcut, and the XMM4/XMM5
// hold-register cache fed by the analyzer's bufferable set. optimize
// mirrors the original's AmdCompiler::optimize: when false, bufferable
// is never consulted and the host-call path defensively flushes the
// hold cache before every vtable call; when true, the bufferable set
// lets the cache ride across non-call instructions without a flush.
func Compile(prog *ir.Program, optimize bool) []byte {
	events := analyze.BuildEvents(prog)
	saveable := analyze.FindSaveable(events)
	bufferable := map[frame.Word]bool{}
	if optimize {
		bufferable = analyze.FindBufferable(events)
	}

	var buf []byte
	emit := func(b []byte) { buf = append(buf, b...) }

	emit(PushReg(RBP))
	emit(PushReg(RBX))
	emit(MovRR(RBP, RDI))
	emit(MovRR(RBX, RSI))

	var r frame.Word
	rValid := false

	var hold [2]frame.Word
	var holdValid [2]bool

	// loadInto loads w into reg, preferring a hold-register hit (w may
	// have no up-to-date copy in frame memory at all if it was last
	// saved via saveBuffered) before falling back to the
	// accumulator-reuse shortcut and then a direct memory/constant
	// load.
	loadInto := func(reg XMM, w frame.Word) {
		for i, v := range holdValid {
			if v && hold[i] == w {
				emit(Movapd(reg, holdRegs[i]))
				holdValid[i] = false
				return
			}
		}
		if w == frame.ZERO {
			emit(Xorpd(reg, reg))
			return
		}
		if rValid && r == w {
			emit(Movapd(reg, XMM0))
			return
		}
		emit(MovsdLoad(reg, baseReg, disp(w)))
	}

	loadAcc := func(w frame.Word) {
		if rValid && r == w {
			return
		}
		loadInto(XMM0, w)
		r, rValid = w, true
	}

	storeReg := func(reg XMM, w frame.Word) {
		emit(MovsdStore(baseReg, disp(w), reg))
	}

	// saveBuffered parks reg in a free hold-register slot, recording
	// its owning word, or falls back to a direct store if both slots
	// are occupied (save_buffered in amd/mod.rs).
	saveBuffered := func(reg XMM, w frame.Word) {
		for i := range holdValid {
			if !holdValid[i] {
				emit(Movapd(holdRegs[i], reg))
				hold[i], holdValid[i] = w, true
				return
			}
		}
		storeReg(reg, w)
	}

	// dumpBuffer flushes every occupied hold slot to its word's frame
	// slot (dump_buffer in amd/mod.rs) — required before a host call
	// whenever the non-optimised path is taken, since the call clobbers
	// caller-saved vector registers.
	dumpBuffer := func() {
		for i, v := range holdValid {
			if v {
				storeReg(holdRegs[i], hold[i])
				holdValid[i] = false
			}
		}
	}

	// finish implements spec.md §4.6's post-emission save-priority
	// chain: a Diff/Obs destination is always visible to the host or a
	// later equation by name, so it is always persisted directly and
	// never buffered; a bufferable destination rides in the hold cache;
	// a merely-saveable destination is stored directly when optimising
	// (the bufferable set already covers every safely-cacheable value)
	// or opportunistically buffered otherwise (matching the original's
	// non-optimised save_buffered fallback); anything else simply rides
	// along in the accumulator to the next instruction.
	finish := func(dst frame.Word) {
		switch {
		case dst.Tag == frame.Diff || dst.Tag == frame.Obs:
			storeReg(XMM0, dst)
		case bufferable[dst]:
			saveBuffered(XMM0, dst)
		case saveable[dst]:
			if optimize {
				storeReg(XMM0, dst)
			} else {
				saveBuffered(XMM0, dst)
			}
		default:
			r, rValid = dst, true
			return
		}
		r, rValid = frame.ZERO, true
	}

	hostCall := func(proc int) {
		if !optimize {
			dumpBuffer()
		}
		emit(LoadGPMem64(RAX, vtableReg, int32(proc*wordSize)))
		emit(CallReg(RAX))
	}

	predicateFor := map[string]Predicate{
		"gt": PredLT, "geq": PredNLT, "lt": PredLT, "leq": PredNLT,
		"eq": PredEQ, "neq": PredNEQ,
	}
	// swapped reports whether op's predicate is evaluated with operands
	// reversed (x>y is encoded as y<x, since SSE2 lacks GT/GE forms).
	swapped := map[string]bool{"gt": true, "leq": true}
	isComparison := map[string]bool{
		"gt": true, "geq": true, "lt": true, "leq": true, "eq": true, "neq": true,
	}

	selectBoolean := func(maskReg XMM) {
		// xmm0 ← ONE, xmm1 ← MINUS_ONE, then the literal AND/ANDN/OR
		// sequence of spec.md §4.6.
		emit(MovsdLoad(XMM0, baseReg, disp(frame.ONE)))
		emit(MovsdLoad(XMM1, baseReg, disp(frame.MINUS_ONE)))
		emit(Movapd(XMM3, maskReg))
		emit(Andpd(XMM0, maskReg))
		emit(Andnpd(XMM3, XMM1))
		emit(Orpd(XMM0, XMM3))
	}

	emitComparison := func(op string, x, y frame.Word) {
		a, b := x, y
		if swapped[op] {
			a, b = y, x
		}
		loadInto(XMM2, a)
		loadInto(XMM1, b)
		emit(Cmpsd(XMM2, XMM1, predicateFor[op]))
		selectBoolean(XMM2)
	}

	// emitLogical implements and(x,y) = (x>0)&&(y>0), or(x,y) =
	// (x>0)||(y>0), xor(x,y) = (x*y)<0 — each reduces to a single mask
	// feeding the same boolean-select sequence a plain comparison uses.
	emitLogical := func(op string, x, y frame.Word) {
		switch op {
		case "and", "or":
			loadInto(XMM2, x)
			loadInto(XMM1, frame.ZERO)
			emit(Cmpsd(XMM2, XMM1, PredNLE))
			loadInto(XMM3, y)
			loadInto(XMM1, frame.ZERO)
			emit(Cmpsd(XMM3, XMM1, PredNLE))
			if op == "and" {
				emit(Andpd(XMM2, XMM3))
			} else {
				emit(Orpd(XMM2, XMM3))
			}
			selectBoolean(XMM2)
		case "xor":
			loadInto(XMM2, x)
			loadInto(XMM1, y)
			emit(Mulsd(XMM2, XMM1))
			loadInto(XMM1, frame.ZERO)
			emit(Cmpsd(XMM2, XMM1, PredLT))
			selectBoolean(XMM2)
		}
	}

	for _, c := range prog.Code {
		switch c.Op {
		case ir.OpUnary:
			switch {
			case c.OpName == "mov":
				loadAcc(c.X)
			case c.OpName == "neg":
				loadAcc(c.X)
				emit(MovsdLoad(XMM1, baseReg, disp(frame.MINUS_ZERO)))
				emit(Xorpd(XMM0, XMM1))
			case hostfuncs.Transcendental[c.OpName]:
				loadAcc(c.X)
				hostCall(c.Proc)
				rValid = false
			default:
				panic(fmt.Sprintf("amd64: unsupported unary operator %q", c.OpName))
			}
			finish(c.Dst)

		case ir.OpBinary:
			switch {
			case hostfuncs.Transcendental[c.OpName]:
				loadInto(XMM1, c.Y)
				loadInto(XMM0, c.X)
				hostCall(c.Proc)
				rValid = false
			case c.OpName == "plus" || c.OpName == "minus" || c.OpName == "times" || c.OpName == "divide":
				loadInto(XMM1, c.Y)
				loadAcc(c.X)
				switch c.OpName {
				case "plus":
					emit(Addsd(XMM0, XMM1))
				case "minus":
					emit(Subsd(XMM0, XMM1))
				case "times":
					emit(Mulsd(XMM0, XMM1))
				case "divide":
					emit(Divsd(XMM0, XMM1))
				}
			case isComparison[c.OpName]:
				emitComparison(c.OpName, c.X, c.Y)
			case c.OpName == "and" || c.OpName == "or" || c.OpName == "xor":
				emitLogical(c.OpName, c.X, c.Y)
			default:
				panic(fmt.Sprintf("amd64: unsupported binary operator %q", c.OpName))
			}
			rValid = true
			finish(c.Dst)

		case ir.OpIfElse:
			// cond > 0 ? x1 : x2, per spec.md §4.6.
			loadInto(XMM2, c.Cond)
			emit(MovsdLoad(XMM1, baseReg, disp(frame.ZERO)))
			emit(Cmpsd(XMM2, XMM1, PredNLE))
			loadInto(XMM1, c.X2)
			loadInto(XMM0, c.X1)
			emit(Movapd(XMM3, XMM2))
			emit(Andpd(XMM0, XMM2))
			emit(Andnpd(XMM3, XMM1))
			emit(Orpd(XMM0, XMM3))
			rValid = true
			finish(c.Dst)
		}
	}

	emit(PopReg(RBX))
	emit(PopReg(RBP))
	emit(Ret())

	return buf
}
