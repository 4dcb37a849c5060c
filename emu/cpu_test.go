package emu_test

import (
	"bytes"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ttk91/emu"
	"ttk91/insts"
	"ttk91/internal/ttklog"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newMachine(memSize int, opts ...emu.MachineOption) (*emu.Machine, *bytes.Buffer) {
	mem := emu.NewMemory(memSize)
	var out bytes.Buffer
	devices := emu.NewDevices(strings.NewReader(""), &out, nil, nil, ttklog.Discard())
	m := emu.NewMachine(mem, devices, opts...)
	return m, &out
}

func load(m *emu.Machine, addr int32, word uint32) {
	m.Mem.WritePhysical(addr, int32(word))
}

var _ = Describe("Machine", func() {
	It("loads and stores via direct addressing", func() {
		m, _ := newMachine(20)
		// LOAD R1, 10  (constant 99 stored at address 10)
		load(m, 0, insts.Encode(insts.LOAD, insts.R1, insts.Direct, insts.R0, 10))
		m.Mem.WritePhysical(10, 99)
		// STORE R1, 11
		load(m, 1, insts.Encode(insts.STORE, insts.R1, insts.Direct, insts.R0, 11))
		load(m, 2, insts.Encode(insts.SVC, insts.R0, insts.Immediate, insts.R0, emu.SvcHalt))

		Expect(m.Step()).To(BeTrue())
		Expect(m.Regs.R[1]).To(Equal(int32(99)))
		Expect(m.Step()).To(BeTrue())
		v, _ := m.Mem.ReadPhysical(11)
		Expect(v).To(Equal(int32(99)))
		Expect(m.Step()).To(BeTrue())
		Expect(m.Halted()).To(BeTrue())
	})

	It("follows indirect addressing through two memory fetches", func() {
		m, _ := newMachine(20)
		m.Mem.WritePhysical(10, 11) // address 10 holds pointer to 11
		m.Mem.WritePhysical(11, 7)  // address 11 holds the value
		load(m, 0, insts.Encode(insts.LOAD, insts.R1, insts.Indirect, insts.R0, 10))

		Expect(m.Step()).To(BeTrue())
		Expect(m.Regs.R[1]).To(Equal(int32(7)))
	})

	It("adds an index register to the address", func() {
		m, _ := newMachine(20)
		m.Regs.R[2] = 3
		m.Mem.WritePhysical(13, 55)
		load(m, 0, insts.Encode(insts.LOAD, insts.R1, insts.Direct, insts.R2, 10))

		Expect(m.Step()).To(BeTrue())
		Expect(m.Regs.R[1]).To(Equal(int32(55)))
	})

	It("performs arithmetic with an immediate operand", func() {
		m, _ := newMachine(20)
		m.Regs.R[1] = 4
		load(m, 0, insts.Encode(insts.ADD, insts.R1, insts.Immediate, insts.R0, 6))

		Expect(m.Step()).To(BeTrue())
		Expect(m.Regs.R[1]).To(Equal(int32(10)))
	})

	It("keeps comparison bits mutually exclusive and resets them each COMP", func() {
		m, _ := newMachine(20)
		m.Regs.R[1] = 5
		load(m, 0, insts.Encode(insts.COMP, insts.R1, insts.Immediate, insts.R0, 5))
		load(m, 1, insts.Encode(insts.COMP, insts.R1, insts.Immediate, insts.R0, 9))

		Expect(m.Step()).To(BeTrue())
		Expect(m.Regs.SR.Has(emu.SRE)).To(BeTrue())
		Expect(m.Regs.SR.Has(emu.SRL | emu.SRG)).To(BeFalse())

		Expect(m.Step()).To(BeTrue())
		Expect(m.Regs.SR.Has(emu.SRL)).To(BeTrue())
		Expect(m.Regs.SR.Has(emu.SRE | emu.SRG)).To(BeFalse())
	})

	It("faults on an unknown opcode, setting SR_U and halting the run", func() {
		m, _ := newMachine(20)
		load(m, 0, insts.Encode(insts.Opcode(0x99), insts.R0, insts.Immediate, insts.R0, 0))

		Expect(m.Step()).To(BeFalse())
		Expect(m.Regs.SR.Has(emu.SRU)).To(BeTrue())
		Expect(m.Regs.SR.Faulted()).To(BeTrue())
	})

	It("faults on an out-of-range memory access", func() {
		m, _ := newMachine(5)
		load(m, 0, insts.Encode(insts.LOAD, insts.R1, insts.Direct, insts.R0, 999))

		Expect(m.Step()).To(BeFalse())
		Expect(m.Regs.SR.Has(emu.SRM)).To(BeTrue())
	})

	It("is terminal once halted: Step returns false forever after", func() {
		m, _ := newMachine(5)
		load(m, 0, insts.Encode(insts.SVC, insts.R0, insts.Immediate, insts.R0, emu.SvcHalt))
		m.Regs.SetFP(2)
		m.Regs.SetSP(2)

		Expect(m.Step()).To(BeTrue())
		Expect(m.Halted()).To(BeTrue())
		Expect(m.Step()).To(BeFalse())
	})

	It("round-trips CALL/EXIT, restoring PC and FP and dropping parameters", func() {
		m, _ := newMachine(30)
		// CALL R6, 5 at PC 0; subroutine at 5 does EXIT R6, 1 (1 parameter)
		load(m, 0, insts.Encode(insts.CALL, insts.SP, insts.Immediate, insts.R0, 5))
		load(m, 1, insts.Encode(insts.SVC, insts.R0, insts.Immediate, insts.R0, emu.SvcHalt))
		load(m, 5, insts.Encode(insts.EXIT, insts.SP, insts.Immediate, insts.R0, 1))
		m.Regs.SetSP(20)

		spBefore := m.Regs.SP()
		Expect(m.Step()).To(BeTrue()) // CALL
		Expect(m.Regs.PC).To(Equal(int32(5)))
		Expect(m.Regs.SP()).To(Equal(spBefore + 2))

		Expect(m.Step()).To(BeTrue()) // EXIT
		Expect(m.Regs.PC).To(Equal(int32(1)))
		Expect(m.Regs.SP()).To(Equal(spBefore - 1))
	})

	It("runs a factorial-style loop to completion via SVC HALT", func() {
		// R1 = 5 (n), R2 = 1 (acc); loop: if n == 0 jump to halt, acc *= n, n -= 1
		m, _ := newMachine(30)
		m.Regs.R[1] = 5
		m.Regs.R[2] = 1
		load(m, 0, insts.Encode(insts.COMP, insts.R1, insts.Immediate, insts.R0, 0))
		load(m, 1, insts.Encode(insts.JEQU, insts.R0, insts.Immediate, insts.R0, 5))
		load(m, 2, insts.Encode(insts.MUL, insts.R2, insts.Immediate, insts.R1, 0))
		load(m, 3, insts.Encode(insts.SUB, insts.R1, insts.Immediate, insts.R0, 1))
		load(m, 4, insts.Encode(insts.JUMP, insts.R0, insts.Immediate, insts.R0, 0))
		load(m, 5, insts.Encode(insts.SVC, insts.R0, insts.Immediate, insts.R0, emu.SvcHalt))
		m.Regs.SetFP(2)
		m.Regs.SetSP(2)

		Expect(m.Run(1000)).To(BeZero())
		Expect(m.Halted()).To(BeTrue())
		Expect(m.Regs.R[2]).To(Equal(int32(120)))
	})

	It("reproduces the TitoKone SVC DATE month bug only with EmulateBugs", func() {
		fixed := fixedClock{t: time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)}

		m, _ := newMachine(30, emu.WithClock(fixed))
		m.Regs.SetSP(8) // SVC pushes PC and FP at 9 and 10, leaving FP = 10
		load(m, 0, insts.Encode(insts.SVC, insts.SP, insts.Immediate, insts.R0, emu.SvcDate))
		m.Mem.WritePhysical(8, 8)  // destination for day   (FP-2)
		m.Mem.WritePhysical(7, 7) // destination for month (FP-3)
		m.Mem.WritePhysical(6, 6) // destination for year  (FP-4)

		Expect(m.Step()).To(BeTrue())
		month, _ := m.Mem.ReadPhysical(7)
		Expect(month).To(Equal(int32(3))) // March is month 3, no bug

		m2, _ := newMachine(30, emu.WithClock(fixed), emu.WithEmulateBugs(true))
		m2.Regs.SetSP(8)
		load(m2, 0, insts.Encode(insts.SVC, insts.SP, insts.Immediate, insts.R0, emu.SvcDate))
		m2.Mem.WritePhysical(8, 8)
		m2.Mem.WritePhysical(7, 7)
		m2.Mem.WritePhysical(6, 6)

		Expect(m2.Step()).To(BeTrue())
		month2, _ := m2.Mem.ReadPhysical(7)
		Expect(month2).To(Equal(int32(2))) // zero-based when bugs emulated
	})
})
