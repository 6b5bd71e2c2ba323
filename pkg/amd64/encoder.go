// Package amd64 is the AMD64 native backend: a byte-exact SSE2
// instruction encoder plus the single-accumulator codegen algorithm of
// spec.md §4.6. Grounded on the teacher's table-driven byte-encoder
// idiom (pkg/z80asm/encoder.go) adapted to a different ISA, and on
// spec.md §8's "Encoder laws", which this package's tests assert
// byte-for-byte.
package amd64

import "fmt"

// Reg is a SysV general-purpose register, numbered as the ISA does.
type Reg byte

const (
	RAX Reg = 0
	RCX Reg = 1
	RDX Reg = 2
	RBX Reg = 3
	RSP Reg = 4
	RBP Reg = 5
	RSI Reg = 6
	RDI Reg = 7
)

// XMM is a scalar-double vector register, XMM0..XMM7.
type XMM byte

const (
	XMM0 XMM = 0
	XMM1 XMM = 1
	XMM2 XMM = 2
	XMM3 XMM = 3
	XMM4 XMM = 4
	XMM5 XMM = 5
	XMM6 XMM = 6
	XMM7 XMM = 7
)

// Predicate is an SSE2 cmpsd comparison kind (the imm8 operand).
type Predicate byte

const (
	PredEQ  Predicate = 0
	PredLT  Predicate = 1
	PredLE  Predicate = 2
	PredNEQ Predicate = 4
	PredNLT Predicate = 5
	PredNLE Predicate = 6
)

func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

// PushReg encodes `push r64`.
func PushReg(r Reg) []byte {
	return []byte{0x50 + byte(r)}
}

// PopReg encodes `pop r64`.
func PopReg(r Reg) []byte {
	return []byte{0x58 + byte(r)}
}

// MovRR encodes `mov dst, src` (r/m64, r64 form, REX.W set).
func MovRR(dst, src Reg) []byte {
	return []byte{0x48, 0x89, modrm(3, byte(src), byte(dst))}
}

// disp8 reports whether d fits a one-byte signed displacement.
func disp8(d int32) (byte, bool) {
	if d >= -128 && d <= 127 {
		return byte(int8(d)), true
	}
	return 0, false
}

func encodeMemOperand(reg byte, base Reg, disp int32) []byte {
	if disp == 0 && base != RBP && base != RSP {
		return []byte{modrm(0, reg, byte(base))}
	}
	if d, ok := disp8(disp); ok {
		out := []byte{modrm(1, reg, byte(base))}
		if base == RSP {
			out = append(out, 0x24) // SIB: no index, base = rsp
		}
		return append(out, d)
	}
	out := []byte{modrm(2, reg, byte(base))}
	if base == RSP {
		out = append(out, 0x24)
	}
	d := uint32(disp)
	return append(out, byte(d), byte(d>>8), byte(d>>16), byte(d>>24))
}

// MovsdLoad encodes `movsd dst, [base+disp]`.
func MovsdLoad(dst XMM, base Reg, disp int32) []byte {
	out := []byte{0xf2, 0x0f, 0x10}
	return append(out, encodeMemOperand(byte(dst), base, disp)...)
}

// MovsdStore encodes `movsd [base+disp], src`.
func MovsdStore(base Reg, disp int32, src XMM) []byte {
	out := []byte{0xf2, 0x0f, 0x11}
	return append(out, encodeMemOperand(byte(src), base, disp)...)
}

// Movapd encodes `movapd dst, src` (xmm-to-xmm copy).
func Movapd(dst, src XMM) []byte {
	return []byte{0x66, 0x0f, 0x28, modrm(3, byte(dst), byte(src))}
}

func sseArith(opcode byte, dst, src XMM) []byte {
	return []byte{0xf2, 0x0f, opcode, modrm(3, byte(dst), byte(src))}
}

// Addsd, Subsd, Mulsd, Divsd encode `<op>sd dst, src` (dst ← dst op src).
func Addsd(dst, src XMM) []byte { return sseArith(0x58, dst, src) }
func Subsd(dst, src XMM) []byte { return sseArith(0x5c, dst, src) }
func Mulsd(dst, src XMM) []byte { return sseArith(0x59, dst, src) }
func Divsd(dst, src XMM) []byte { return sseArith(0x5e, dst, src) }

// Cmpsd encodes `cmp<pred>sd dst, src`, the masked-compare form every
// comparison operator and the ternary-select sequence build on.
func Cmpsd(dst, src XMM, p Predicate) []byte {
	return []byte{0xf2, 0x0f, 0xc2, modrm(3, byte(dst), byte(src)), byte(p)}
}

// Andpd, Andnpd, Orpd, Xorpd encode the packed-double bitwise ops the
// ternary-select sequence uses to combine compare masks with operands.
func Andpd(dst, src XMM) []byte  { return []byte{0x66, 0x0f, 0x54, modrm(3, byte(dst), byte(src))} }
func Andnpd(dst, src XMM) []byte { return []byte{0x66, 0x0f, 0x55, modrm(3, byte(dst), byte(src))} }
func Orpd(dst, src XMM) []byte   { return []byte{0x66, 0x0f, 0x56, modrm(3, byte(dst), byte(src))} }
func Xorpd(dst, src XMM) []byte  { return []byte{0x66, 0x0f, 0x57, modrm(3, byte(dst), byte(src))} }

// CallReg encodes `call r64` (indirect call through a GP register).
func CallReg(r Reg) []byte {
	return []byte{0xff, modrm(3, 2, byte(r))}
}

// Ret encodes `ret`.
func Ret() []byte { return []byte{0xc3} }

// LoadGPMem64 encodes `mov dst, [base+disp]` for a 64-bit GP load —
// used to fetch a host function pointer out of the vtable before an
// indirect call.
func LoadGPMem64(dst Reg, base Reg, disp int32) []byte {
	out := []byte{0x48, 0x8b}
	return append(out, encodeMemOperand(byte(dst), base, disp)...)
}

func init() {
	// Guard against an accidental register renumbering breaking the
	// encoder's modrm math — a misassigned constant would silently
	// corrupt every emitted instruction.
	if RBP != 5 || RDI != 7 || RSI != 6 {
		panic(fmt.Sprintf("amd64: unexpected register numbering: rbp=%d rdi=%d rsi=%d", RBP, RDI, RSI))
	}
}
