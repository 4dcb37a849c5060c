package emu

import "time"

// Supervisor call codes, loaded into TR before SVC.
const (
	SvcHalt = 11
	SvcRead = 12
	SvcWrite = 13
	SvcTime = 14
	SvcDate = 15
)

// Clock abstracts wall-clock time so tests can supply a fixed instant;
// production code uses RealClock.
type Clock interface {
	Now() time.Time
}

// RealClock reports the host's local time.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time { return time.Now() }

// doIn implements the IN instruction: read an integer from the device
// named by TR into register `first`. Sets SR_M if the device does not
// exist, is not an input device, or has no usable stream.
func (m *Machine) doIn(first int) {
	dev := m.Devices.Get(m.Regs.TR)
	if dev == nil || !dev.IsInput || dev.r == nil {
		m.Regs.SR |= SRM
		return
	}
	m.Regs.R[first] = dev.ReadInt(m.Log)
}

// doOut implements the OUT instruction: write register `first` to the
// device named by TR. Sets SR_M if the device does not exist, is not
// an output device, or has no usable stream.
func (m *Machine) doOut(first int) {
	dev := m.Devices.Get(m.Regs.TR)
	if dev == nil || dev.IsInput || dev.w == nil {
		m.Regs.SR |= SRM
		return
	}
	dev.WriteInt(m.Regs.R[first])
}

// svc dispatches on TR and returns the number of stack arguments the
// call consumed; execSvc uses this count to pop them off SP afterward.
// An unrecognized trap code sets SR_U and consumes nothing.
func (m *Machine) svc() int32 {
	switch m.Regs.TR {
	case SvcHalt:
		m.halted = true
		m.Log.Info("halted")
		return 0
	case SvcRead:
		return m.svcRead()
	case SvcWrite:
		return m.svcWrite()
	case SvcTime:
		return m.svcTime()
	case SvcDate:
		return m.svcDate()
	default:
		m.Log.Error(nil, "invalid SVC", "tr", m.Regs.TR)
		m.Regs.SR |= SRU
		return 0
	}
}

// svcRead implements SVC READ: read an integer from KBD and store it
// at the address found on the stack. A historical interpreter bug — an
// extra unused stack argument — is reproduced when EmulateBugs is set.
func (m *Machine) svcRead() int32 {
	dev := m.Devices.Get(DevKBD)
	ofs := int32(0)
	if m.EmulateBugs {
		ofs = 1
	}

	dest := m.mmuReadOrFault(m.Regs.FP() - (2 + ofs))
	value := dev.ReadInt(m.Log)
	m.mmuWriteOrFault(dest, value)

	return 1 + ofs
}

// svcWrite implements SVC WRITE: write the integer found on the stack
// to CRT.
func (m *Machine) svcWrite() int32 {
	dev := m.Devices.Get(DevCRT)
	value := m.mmuReadOrFault(m.Regs.FP() - 2)
	dev.WriteInt(value)
	return 1
}

// svcTime implements SVC TIME: store seconds, minutes, hours (in that
// order, each at one more word below FP-2) from the host's local time.
func (m *Machine) svcTime() int32 {
	t := m.Clock.Now()
	m.storeAtStackSlot(2, int32(t.Second()))
	m.storeAtStackSlot(3, int32(t.Minute()))
	m.storeAtStackSlot(4, int32(t.Hour()))
	return 3
}

// svcDate implements SVC DATE: store day, month, year from the host's
// local date. With EmulateBugs the month is reported zero-based,
// reproducing a historical off-by-one in the month field.
func (m *Machine) svcDate() int32 {
	t := m.Clock.Now()
	month := int32(t.Month()) - 1 // zero-based, like C's tm_mon
	if !m.EmulateBugs {
		month++
	}
	m.storeAtStackSlot(2, int32(t.Day()))
	m.storeAtStackSlot(3, month)
	m.storeAtStackSlot(4, int32(t.Year()))
	return 3
}

// storeAtStackSlot reads the destination address out of the word at
// FP-slot and stores value there, the two-step indirection every
// SVC TIME/DATE field write performs.
func (m *Machine) storeAtStackSlot(slot int32, value int32) {
	dest := m.mmuReadOrFault(m.Regs.FP() - slot)
	m.mmuWriteOrFault(dest, value)
}

// mmuReadOrFault and mmuWriteOrFault wrap Memory.Read/Write, folding
// SR_M into the register file and updating MAR/MBR the way every
// memory access does.
func (m *Machine) mmuReadOrFault(addr int32) int32 {
	m.Regs.MAR = addr
	v, bits := m.Mem.Read(addr, m.Regs.MMUBase, m.Regs.MMULimit)
	m.Regs.MBR = v
	m.Regs.SR |= bits
	return v
}

func (m *Machine) mmuWriteOrFault(addr, value int32) {
	m.Regs.MAR = addr
	m.Regs.MBR = value
	m.Regs.SR |= m.Mem.Write(addr, m.Regs.MMUBase, m.Regs.MMULimit, value)
}
