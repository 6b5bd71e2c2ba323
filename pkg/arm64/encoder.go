// Package arm64 is the AArch64 native backend: a byte-exact A64
// instruction encoder plus spec.md §4.6's single-accumulator codegen
// algorithm specialised to this ISA. Grounded the same way as
// pkg/amd64 (the sibling native backend): the accumulator-reuse
// shortcut and direct-to-frame addressing of the original Rust crate,
// with the AND/ORR/BSL-based ternary select spec.md §4.6/§8 adds on
// top.
package arm64

import "fmt"

// Reg is a 64-bit general-purpose register, X0..X30, or 31 for SP/ZR
// depending on instruction context.
type Reg byte

const (
	X0  Reg = 0
	X1  Reg = 1
	X6  Reg = 6
	X9  Reg = 9
	X19 Reg = 19
	X20 Reg = 20
	X29 Reg = 29
	X30 Reg = 30
	SP  Reg = 31
	XZR Reg = 31
)

// D is a scalar double-precision (or, for the bitwise ops, 8-byte
// vector) register, D0..D15.
type D byte

const (
	D0  D = 0
	D1  D = 1
	D2  D = 2
	D3  D = 3
	D4  D = 4
	D5  D = 5
	D6  D = 6
	D15 D = 15
)

func le32(w uint32) []byte {
	return []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
}

// SubSPImm encodes `sub sp, sp, #imm` (imm a non-negative multiple of
// 16 expected by the ABI's stack-alignment rule, but the encoding
// itself accepts any 0..4095).
func SubSPImm(imm uint16) []byte {
	w := uint32(0xD1000000) | (uint32(imm&0xFFF) << 10) | (uint32(SP) << 5) | uint32(SP)
	return le32(w)
}

// AddSPImm encodes `add sp, sp, #imm`.
func AddSPImm(imm uint16) []byte {
	w := uint32(0x91000000) | (uint32(imm&0xFFF) << 10) | (uint32(SP) << 5) | uint32(SP)
	return le32(w)
}

// StpX29X30 encodes `stp x29, x30, [sp, #disp]` (disp a non-negative
// multiple of 8).
func StpX29X30(disp uint16) []byte {
	imm7 := (disp / 8) & 0x7F
	w := uint32(0xA9000000) | (uint32(imm7) << 15) | (uint32(X30) << 10) | (uint32(SP) << 5) | uint32(X29)
	return le32(w)
}

// LdpX29X30 encodes `ldp x29, x30, [sp, #disp]`.
func LdpX29X30(disp uint16) []byte {
	imm7 := (disp / 8) & 0x7F
	w := uint32(0xA9400000) | (uint32(imm7) << 15) | (uint32(X30) << 10) | (uint32(SP) << 5) | uint32(X29)
	return le32(w)
}

// MovXX encodes `mov dst, src` for two 64-bit GP registers (the
// `orr dst, xzr, src` idiom AArch64 assemblers expand MOV into).
func MovXX(dst, src Reg) []byte {
	w := uint32(0xAA0003E0) | (uint32(src) << 16) | uint32(dst)
	return le32(w)
}

// Blr encodes `blr rn` (indirect call-with-link through a register).
func Blr(rn Reg) []byte {
	w := uint32(0xD63F0000) | (uint32(rn) << 5)
	return le32(w)
}

// Ret encodes `ret` (implicitly through x30).
func Ret() []byte {
	w := uint32(0xD65F0000) | (uint32(X30) << 5)
	return le32(w)
}

func fpArith(opcode uint32, dst, n, m D) []byte {
	w := uint32(0x1E600800) | (uint32(m) << 16) | (opcode << 12) | (uint32(n) << 5) | uint32(dst)
	return le32(w)
}

// Fadd, Fsub, Fmul, Fdiv encode `f<op> dst, n, m` (scalar double).
func Fadd(dst, n, m D) []byte { return fpArith(2, dst, n, m) }
func Fsub(dst, n, m D) []byte { return fpArith(3, dst, n, m) }
func Fmul(dst, n, m D) []byte { return fpArith(0, dst, n, m) }
func Fdiv(dst, n, m D) []byte { return fpArith(1, dst, n, m) }

// FmovImm encodes `fmov dst, #{1.0,-1.0}` — the two non-zero reserved
// constants. Zero is produced via FmovFromZR instead, since 0.0 is not
// representable in AArch64's 8-bit float-immediate encoding.
func FmovImm(dst D, imm8 byte) []byte {
	w := uint32(0x1E601000) | (uint32(imm8) << 13) | uint32(dst)
	return le32(w)
}

// FmovOnePositive and FmovOneNegative are the imm8 patterns for +1.0
// and -1.0 under AArch64's floating-point immediate encoding.
const (
	FmovOnePositive = 0x70
	FmovOneNegative = 0xF0
)

// FmovFromZR encodes `fmov dst, xzr`, producing 0.0 in dst.
func FmovFromZR(dst D) []byte {
	w := uint32(0x9E670000) | (uint32(XZR) << 5) | uint32(dst)
	return le32(w)
}

// Fneg encodes `fneg dst, src` (scalar double).
func Fneg(dst, src D) []byte {
	w := uint32(0x1E614000) | (uint32(src) << 5) | uint32(dst)
	return le32(w)
}

// Fsqrt encodes `fsqrt dst, src` (scalar double) — the inline form of
// the `root` operator when a backend chooses not to dispatch it
// through the host vtable.
func Fsqrt(dst, src D) []byte {
	w := uint32(0x1E61C000) | (uint32(src) << 5) | uint32(dst)
	return le32(w)
}

func vectorBitwise(base uint32, dst, n, m D) []byte {
	w := base | (uint32(m) << 16) | (uint32(n) << 5) | uint32(dst)
	return le32(w)
}

// And8B, Orr8B, Eor8B, Bsl8B operate on the 8-byte vector view of D
// registers — the bitwise building blocks of the AND/ANDN/OR
// ternary-select sequence, collapsed on AArch64 to a single `bsl`
// where the mask already selects whole lanes.
func And8B(dst, n, m D) []byte { return vectorBitwise(0x0E201C00, dst, n, m) }
func Orr8B(dst, n, m D) []byte { return vectorBitwise(0x0EA01C00, dst, n, m) }
func Eor8B(dst, n, m D) []byte { return vectorBitwise(0x2E201C00, dst, n, m) }
func Bsl8B(dst, n, m D) []byte { return vectorBitwise(0x2E601C00, dst, n, m) }

// Not8B encodes `not dst.8b, src.8b`.
func Not8B(dst, src D) []byte {
	w := uint32(0x2E205800) | (uint32(src) << 5) | uint32(dst)
	return le32(w)
}

func fcm(base uint32, dst, n, m D) []byte {
	return vectorBitwise(base, dst, n, m)
}

// FcmGT, FcmGE, FcmEQ encode the scalar NEON compare forms that
// produce an all-ones/all-zeros mask directly in a D register.
func FcmGT(dst, n, m D) []byte { return fcm(0x7EE0E400, dst, n, m) }
func FcmGE(dst, n, m D) []byte { return fcm(0x7E60E400, dst, n, m) }
func FcmEQ(dst, n, m D) []byte { return fcm(0x5E60E400, dst, n, m) }

// LdrD encodes `ldr dst, [base, #disp]` (disp a non-negative multiple
// of 8).
func LdrD(dst D, base Reg, disp uint16) []byte {
	imm12 := (disp / 8) & 0xFFF
	w := uint32(0xFD400000) | (uint32(imm12) << 10) | (uint32(base) << 5) | uint32(dst)
	return le32(w)
}

// StrD encodes `str src, [base, #disp]`.
func StrD(src D, base Reg, disp uint16) []byte {
	imm12 := (disp / 8) & 0xFFF
	w := uint32(0xFD000000) | (uint32(imm12) << 10) | (uint32(base) << 5) | uint32(src)
	return le32(w)
}

// LdrX encodes `ldr dst, [base, #disp]` for a 64-bit GP register.
func LdrX(dst Reg, base Reg, disp uint16) []byte {
	imm12 := (disp / 8) & 0xFFF
	w := uint32(0xF9400000) | (uint32(imm12) << 10) | (uint32(base) << 5) | uint32(dst)
	return le32(w)
}

func init() {
	if X19 != 19 || X20 != 20 {
		panic(fmt.Sprintf("arm64: unexpected register numbering: x19=%d x20=%d", X19, X20))
	}
}
