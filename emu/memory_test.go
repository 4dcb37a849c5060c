package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ttk91/emu"
)

var _ = Describe("Memory", func() {
	It("reads and writes within the MMU window", func() {
		mem := emu.NewMemory(100)
		bits := mem.Write(5, 10, 90, 42)
		Expect(bits).To(BeZero())

		v, bits := mem.Read(5, 10, 90)
		Expect(bits).To(BeZero())
		Expect(v).To(Equal(int32(42)))
	})

	It("reports SR_M for an address at or beyond the limit", func() {
		mem := emu.NewMemory(100)
		_, bits := mem.Read(90, 10, 90)
		Expect(bits.Has(emu.SRM)).To(BeTrue())
	})

	It("reports SR_M for a negative logical address", func() {
		mem := emu.NewMemory(100)
		_, bits := mem.Read(-1, 10, 90)
		Expect(bits.Has(emu.SRM)).To(BeTrue())
	})

	It("does not perform the write when out of bounds", func() {
		mem := emu.NewMemory(10)
		bits := mem.Write(20, 0, 10, 99)
		Expect(bits.Has(emu.SRM)).To(BeTrue())
	})
})
