package emu_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ttk91/emu"
	"ttk91/insts"
	"ttk91/internal/ttklog"
)

var _ = Describe("Devices", func() {
	It("prompts on KBD but not on the file-backed STDIN device", func() {
		var crt bytes.Buffer
		devices := emu.NewDevices(strings.NewReader("7\n"), &crt, strings.NewReader("9\n"), nil, ttklog.Discard())

		kbd := devices.Get(emu.DevKBD)
		Expect(kbd.ReadInt(ttklog.Discard())).To(Equal(int32(7)))
		Expect(crt.String()).To(ContainSubstring("Enter an integer:"))

		crt.Reset()
		stdin := devices.Get(emu.DevSTDIN)
		Expect(stdin.ReadInt(ttklog.Discard())).To(Equal(int32(9)))
		Expect(crt.String()).To(BeEmpty())
	})

	It("prefixes CRT writes but not STDOUT writes", func() {
		var crt, stdout bytes.Buffer
		devices := emu.NewDevices(strings.NewReader(""), &crt, nil, &stdout, ttklog.Discard())

		devices.Get(emu.DevCRT).WriteInt(5)
		Expect(crt.String()).To(Equal("Program outputted: 5\n"))

		devices.Get(emu.DevSTDOUT).WriteInt(6)
		Expect(stdout.String()).To(Equal("6\n"))
	})

	It("returns nil for an unknown device number", func() {
		devices := emu.NewDevices(strings.NewReader(""), &bytes.Buffer{}, nil, nil, ttklog.Discard())
		Expect(devices.Get(42)).To(BeNil())
	})

	It("IN from an output-only device sets SR_M", func() {
		m, _ := newMachine(10)
		// IN R1, =CRT: CRT is an output device, so this must fault.
		load(m, 0, insts.Encode(insts.IN, insts.R1, insts.Immediate, insts.R0, emu.DevCRT))

		Expect(m.Step()).To(BeFalse())
		Expect(m.Regs.SR.Has(emu.SRM)).To(BeTrue())
	})

	It("OUT to an input-only device sets SR_M", func() {
		m, _ := newMachine(10)
		load(m, 0, insts.Encode(insts.OUT, insts.R1, insts.Immediate, insts.R0, emu.DevKBD))

		Expect(m.Step()).To(BeFalse())
		Expect(m.Regs.SR.Has(emu.SRM)).To(BeTrue())
	})
})
