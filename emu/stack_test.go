package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ttk91/emu"
	"ttk91/insts"
)

var _ = Describe("Stack instructions", func() {
	It("PUSH increments SP before storing, POP loads then decrements", func() {
		m, _ := newMachine(50)
		m.Regs.SetSP(10)
		m.Regs.R[1] = 42
		load(m, 0, insts.Encode(insts.PUSH, insts.SP, insts.Direct, insts.R1, 0))
		load(m, 1, insts.Encode(insts.POP, insts.SP, insts.Immediate, insts.R2, 0))

		// PUSH SP, Direct addressing with index R1, addr 0: TR = mem[R1] = mem[42]
		m.Mem.WritePhysical(42, 77)
		Expect(m.Step()).To(BeTrue())
		Expect(m.Regs.SP()).To(Equal(int32(11)))
		v, _ := m.Mem.ReadPhysical(11)
		Expect(v).To(Equal(int32(77)))

		Expect(m.Step()).To(BeTrue())
		Expect(m.Regs.R[2]).To(Equal(int32(77)))
		Expect(m.Regs.SP()).To(Equal(int32(10)))
	})

	It("POP writes a decremented value when the first and index registers coincide", func() {
		m, _ := newMachine(30)
		m.Regs.SetSP(10)
		m.Mem.WritePhysical(10, 99)
		load(m, 0, insts.Encode(insts.POP, insts.SP, insts.Immediate, insts.SP, 0))

		Expect(m.Step()).To(BeTrue())
		// R[sp] is first set to 99, then decremented in place since
		// first == index, landing on 98.
		Expect(m.Regs.SP()).To(Equal(int32(98)))
	})

	It("PUSHR stores the post-incremented value of the stack-pointer register", func() {
		m, _ := newMachine(30)
		m.Regs.SetSP(10)
		load(m, 0, insts.Encode(insts.PUSHR, insts.SP, insts.Immediate, insts.R0, 0))

		Expect(m.Step()).To(BeTrue())
		// R0..R6 pushed in order; the 7th push (for R6/SP itself) stores
		// the value AFTER that push's own increment.
		Expect(m.Regs.SP()).To(Equal(int32(17)))
		v, _ := m.Mem.ReadPhysical(17)
		Expect(v).To(Equal(int32(17)))
	})

	It("PUSHR/POPR round-trip restores every register", func() {
		m, _ := newMachine(40)
		m.Regs.SetSP(10)
		for i := 0; i < 6; i++ {
			m.Regs.R[i] = int32(100 + i)
		}
		load(m, 0, insts.Encode(insts.PUSHR, insts.SP, insts.Immediate, insts.R0, 0))
		load(m, 1, insts.Encode(insts.POPR, insts.SP, insts.Immediate, insts.R0, 0))

		Expect(m.Step()).To(BeTrue())
		spAfterPush := m.Regs.SP()

		for i := 0; i < 6; i++ {
			m.Regs.R[i] = 0
		}

		Expect(m.Step()).To(BeTrue())
		Expect(m.Regs.SP()).To(Equal(spAfterPush - 7))
		for i := 0; i < 6; i++ {
			Expect(m.Regs.R[i]).To(Equal(int32(100 + i)))
		}
	})
})
