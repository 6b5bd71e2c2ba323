package arm64

import (
	"fmt"

	"github.com/cellc/cellc/pkg/analyze"
	"github.com/cellc/cellc/pkg/frame"
	"github.com/cellc/cellc/pkg/hostfuncs"
	"github.com/cellc/cellc/pkg/ir"
)

// baseReg and vtableReg are the two callee-saved registers every
// emitted routine copies its AAPCS64 x0/x1 arguments into on entry —
// the AArch64 counterpart of pkg/amd64's rbp/rbx convention.
const (
	baseReg   = X19
	vtableReg = X20
)

const wordSize = 8

func disp(w frame.Word) uint16 {
	return uint16(w.Index * wordSize)
}

// holdRegs is the hold-register cache spec.md §4.6 calls out as
// D4..D7; cellc implements the pair the wired original crate's
// ArmCompiler actually uses (x4/x5 in arm/mod.rs, which alias D4/D5),
// leaving D7 free (D6 is this backend's scratch register for
// comparisons/logical ops/ifelse, moved off D4 to make room for the
// cache).
var holdRegs = [2]D{D4, D5}

// Compile assembles prog into a standalone AArch64 routine with the
// signature `func(frame_base, vtable_base *float64)`. Structured the
// same way as pkg/amd64.Compile — same accumulator-reuse shortcut,
// same direct-to-frame addressing for every Word including
// temporaries, same D4/D5 hold-register cache fed by the analyzer's
// bufferable set, grounded on the wired original crate's arm/mod.rs —
// but it collapses the AND/ANDN/OR ternary-select sequence to a
// single `bsl` instruction, per spec.md §4.6's closing note that
// AArch64's bit-select form makes the mask-then-combine dance
// unnecessary, and it inlines `root` via `fsqrt` rather than
// dispatching it through the vtable, matching arm/mod.rs's op_code
// (unlike the AMD64 side of the original, which never inlines sqrt).
// Comparisons use NEON's fcmgt/fcmge/fcmeq, which produce an
// all-ones/all-zeros mask directly; gt/geq/eq use them as-is, lt/leq
// are encoded as gt/geq with the operands reversed, and neq inverts
// the eq mask with a `not`.
func Compile(prog *ir.Program, optimize bool) []byte {
	events := analyze.BuildEvents(prog)
	saveable := analyze.FindSaveable(events)
	bufferable := map[frame.Word]bool{}
	if optimize {
		bufferable = analyze.FindBufferable(events)
	}

	var buf []byte
	emit := func(b []byte) { buf = append(buf, b...) }

	emit(SubSPImm(16))
	emit(StpX29X30(0))
	emit(MovXX(baseReg, X0))
	emit(MovXX(vtableReg, X1))

	var r frame.Word
	rValid := false

	var hold [2]frame.Word
	var holdValid [2]bool

	// loadInto loads w into reg, preferring a hold-register hit (w may
	// have no up-to-date copy in frame memory if it was last saved via
	// saveBuffered) before falling back to the accumulator-reuse
	// shortcut and then a direct memory/constant load.
	loadInto := func(reg D, w frame.Word) {
		for i, v := range holdValid {
			if v && hold[i] == w {
				emit(fmovRegReg(reg, holdRegs[i]))
				holdValid[i] = false
				return
			}
		}
		switch {
		case w == frame.ZERO:
			emit(FmovFromZR(reg))
		case w == frame.ONE:
			emit(FmovImm(reg, FmovOnePositive))
		case w == frame.MINUS_ONE:
			emit(FmovImm(reg, FmovOneNegative))
		case rValid && r == w:
			emit(fmovRegReg(reg, D0))
		default:
			emit(LdrD(reg, baseReg, disp(w)))
		}
	}

	loadAcc := func(w frame.Word) {
		if rValid && r == w {
			return
		}
		loadInto(D0, w)
		r, rValid = w, true
	}

	storeReg := func(reg D, w frame.Word) {
		emit(StrD(reg, baseReg, disp(w)))
	}

	// saveBuffered parks reg in a free hold-register slot, recording
	// its owning word, or falls back to a direct store if both slots
	// are occupied (save_buffered in arm/mod.rs).
	saveBuffered := func(reg D, w frame.Word) {
		for i := range holdValid {
			if !holdValid[i] {
				emit(fmovRegReg(holdRegs[i], reg))
				hold[i], holdValid[i] = w, true
				return
			}
		}
		storeReg(reg, w)
	}

	// dumpBuffer flushes every occupied hold slot to its word's frame
	// slot (dump_buffer in arm/mod.rs) — required before a host call
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

	// finish mirrors pkg/amd64's post-emission save-priority chain: a
	// Diff/Obs destination is always persisted directly and never
	// buffered; a bufferable destination rides in the hold cache; a
	// merely-saveable destination is stored directly when optimising or
	// opportunistically buffered otherwise; anything else rides along
	// in the accumulator to the next instruction.
	finish := func(dst frame.Word) {
		switch {
		case dst.Tag == frame.Diff || dst.Tag == frame.Obs:
			storeReg(D0, dst)
		case bufferable[dst]:
			saveBuffered(D0, dst)
		case saveable[dst]:
			if optimize {
				storeReg(D0, dst)
			} else {
				saveBuffered(D0, dst)
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
		emit(LdrX(X9, vtableReg, uint16(proc*wordSize)))
		emit(Blr(X9))
	}

	predicateFor := map[string]func(dst, n, m D) []byte{
		"gt": FcmGT, "geq": FcmGE, "lt": FcmGT, "leq": FcmGE, "eq": FcmEQ, "neq": FcmEQ,
	}
	// swapped mirrors pkg/amd64's table: "lt"/"leq" read as the
	// mirror-image of "gt"/"geq" with operands reversed.
	swapped := map[string]bool{"lt": true, "leq": true}
	negate := map[string]bool{"neq": true}
	isComparison := map[string]bool{
		"gt": true, "geq": true, "lt": true, "leq": true, "eq": true, "neq": true,
	}

	selectBoolean := func(maskReg D) {
		emit(FmovImm(D1, FmovOnePositive))
		emit(FmovImm(D2, FmovOneNegative))
		emit(Bsl8B(maskReg, D1, D2))
		emit(fmovRegReg(D0, maskReg))
	}

	emitComparison := func(op string, x, y frame.Word) {
		a, b := x, y
		if swapped[op] {
			a, b = y, x
		}
		loadInto(D3, a)
		loadInto(D6, b)
		emit(predicateFor[op](D3, D3, D6))
		if negate[op] {
			emit(Not8B(D3, D3))
		}
		selectBoolean(D3)
	}

	emitLogical := func(op string, x, y frame.Word) {
		switch op {
		case "and", "or":
			emit(FmovFromZR(D1))
			loadInto(D3, x)
			emit(FcmGT(D3, D3, D1))
			loadInto(D6, y)
			emit(FcmGT(D6, D6, D1))
			if op == "and" {
				emit(And8B(D3, D3, D6))
			} else {
				emit(Orr8B(D3, D3, D6))
			}
			selectBoolean(D3)
		case "xor":
			loadInto(D3, x)
			loadInto(D6, y)
			emit(Fmul(D3, D3, D6))
			emit(FmovFromZR(D1))
			emit(FcmGT(D3, D1, D3))
			selectBoolean(D3)
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
				emit(Fneg(D0, D0))
			case c.OpName == "root":
				// Inlined as fsqrt, matching arm/mod.rs's op_code — the
				// one transcendental the original's AArch64 backend
				// does not dispatch through the vtable. hostfuncs still
				// lists "root" as transcendental for analyzer purposes,
				// so the bufferable set stays conservative here exactly
				// as the original is, even though no call boundary is
				// actually crossed.
				loadAcc(c.X)
				emit(Fsqrt(D0, D0))
			case hostfuncs.Transcendental[c.OpName]:
				loadAcc(c.X)
				hostCall(c.Proc)
				rValid = false
			default:
				panic(fmt.Sprintf("arm64: unsupported unary operator %q", c.OpName))
			}
			finish(c.Dst)

		case ir.OpBinary:
			switch {
			case hostfuncs.Transcendental[c.OpName]:
				loadInto(D1, c.Y)
				loadInto(D0, c.X)
				hostCall(c.Proc)
				rValid = false
			case c.OpName == "plus" || c.OpName == "minus" || c.OpName == "times" || c.OpName == "divide":
				loadInto(D1, c.Y)
				loadAcc(c.X)
				switch c.OpName {
				case "plus":
					emit(Fadd(D0, D0, D1))
				case "minus":
					emit(Fsub(D0, D0, D1))
				case "times":
					emit(Fmul(D0, D0, D1))
				case "divide":
					emit(Fdiv(D0, D0, D1))
				}
			case isComparison[c.OpName]:
				emitComparison(c.OpName, c.X, c.Y)
			case c.OpName == "and" || c.OpName == "or" || c.OpName == "xor":
				emitLogical(c.OpName, c.X, c.Y)
			default:
				panic(fmt.Sprintf("arm64: unsupported binary operator %q", c.OpName))
			}
			rValid = true
			finish(c.Dst)

		case ir.OpIfElse:
			loadInto(D3, c.Cond)
			emit(FmovFromZR(D6))
			emit(FcmGT(D3, D3, D6))
			loadInto(D1, c.X1)
			loadInto(D2, c.X2)
			emit(Bsl8B(D3, D1, D2))
			emit(fmovRegReg(D0, D3))
			rValid = true
			finish(c.Dst)
		}
	}

	emit(LdpX29X30(0))
	emit(AddSPImm(16))
	emit(Ret())

	return buf
}

// fmovRegReg encodes `fmov dst, src` between two D registers — the
// FP-to-FP move this backend uses after a bsl or compare has left its
// result in a register other than d0, and the copy the hold-register
// cache uses to move a value in or out of D4/D5.
func fmovRegReg(dst, src D) []byte {
	w := uint32(0x1E604000) | (uint32(src) << 5) | uint32(dst)
	return le32(w)
}
