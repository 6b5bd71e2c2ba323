package amd64

import (
	"bytes"
	"testing"
)

// TestEncoderLaws asserts the byte-exact output spec.md §8 prescribes
// for a representative mnemonic from each instruction family.
func TestEncoderLaws(t *testing.T) {
	cases := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"push rbp", PushReg(RBP), []byte{0x55}},
		{"push rbx", PushReg(RBX), []byte{0x53}},
		{"mov rbp, rdi", MovRR(RBP, RDI), []byte{0x48, 0x89, 0xfd}},
		{"movsd xmm0, [rbp+0x58]", MovsdLoad(XMM0, RBP, 0x58), []byte{0xf2, 0x0f, 0x10, 0x45, 0x58}},
		{"mulsd xmm0, xmm1", Mulsd(XMM0, XMM1), []byte{0xf2, 0x0f, 0x59, 0xc1}},
		{"cmpnltsd xmm0, xmm1", Cmpsd(XMM0, XMM1, PredNLT), []byte{0xf2, 0x0f, 0xc2, 0xc1, 0x05}},
		{"call rax", CallReg(RAX), []byte{0xff, 0xd0}},
		{"ret", Ret(), []byte{0xc3}},
	}

	for _, c := range cases {
		if !bytes.Equal(c.got, c.want) {
			t.Errorf("%s: got % x, want % x", c.name, c.got, c.want)
		}
	}
}

func TestModRMHelpersAreSymmetric(t *testing.T) {
	// push/pop of the same register round-trip to the same opcode base.
	for r := Reg(0); r <= RDI; r++ {
		push := PushReg(r)
		pop := PopReg(r)
		if push[0] != 0x50+byte(r) || pop[0] != 0x58+byte(r) {
			t.Fatalf("register %d: push/pop opcodes not offset by register number", r)
		}
	}
}
