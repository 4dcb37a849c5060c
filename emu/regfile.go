// Package emu provides functional TTK-91 emulation: register file, ALU,
// MMU, device layer, supervisor routines, and the fetch-decode-execute
// core.
package emu

import "ttk91/insts"

// Status register bits, bit index from the LSB. Bits 21-24 (I, S, P, D)
// are reserved and never written by this emulator.
const (
	SRG Status = 1 << 31 // last COMP: first > second
	SRE Status = 1 << 30 // last COMP: equal
	SRL Status = 1 << 29 // last COMP: first < second
	SRO Status = 1 << 28 // arithmetic overflow (ADD/SUB/MUL)
	SRZ Status = 1 << 27 // division by zero
	SRU Status = 1 << 26 // unknown opcode or invalid addressing mode
	SRM Status = 1 << 25 // memory or device access violation

	// faultMask is the set of bits that abort a step and halt the run.
	faultMask = SRO | SRZ | SRU | SRM
	// compareMask is the set of mutually-exclusive comparison bits.
	compareMask = SRL | SRE | SRG
)

// Status is the TTK-91 status register: a bit set of SRxxx flags.
type Status uint32

// Has reports whether any of the given bits are set.
func (s Status) Has(bits Status) bool {
	return s&bits != 0
}

// Faulted reports whether any fault bit (SR_O, SR_M, SR_U, SR_Z) is set.
func (s Status) Faulted() bool {
	return s.Has(faultMask)
}

// String renders the status register as one lower/upper-case letter
// per bit, upper-case meaning set.
func (s Status) String() string {
	bit := func(set bool, c byte) byte {
		if set {
			return c - 32 // uppercase
		}
		return c
	}
	b := []byte{
		bit(s.Has(SRG), 'g'),
		bit(s.Has(SRE), 'e'),
		bit(s.Has(SRL), 'l'),
		bit(s.Has(SRO), 'o'),
		bit(s.Has(SRZ), 'z'),
		bit(s.Has(SRU), 'u'),
		bit(s.Has(SRM), 'm'),
	}
	return string(b)
}

// RegFile holds the eight TTK-91 working registers and the machine's
// internal latches. R6 is aliased SP (stack pointer), R7 is aliased FP
// (frame pointer).
type RegFile struct {
	R [8]int32

	AluIn1, AluIn2, AluOut int32

	PC int32
	IR uint32
	TR int32
	SR Status

	MMUBase, MMULimit int32

	MAR, MBR int32
}

// SP returns the current stack pointer (R6).
func (f *RegFile) SP() int32 { return f.R[insts.SP] }

// SetSP sets the stack pointer (R6).
func (f *RegFile) SetSP(v int32) { f.R[insts.SP] = v }

// FP returns the current frame pointer (R7).
func (f *RegFile) FP() int32 { return f.R[insts.FP] }

// SetFP sets the frame pointer (R7).
func (f *RegFile) SetFP(v int32) { f.R[insts.FP] = v }
