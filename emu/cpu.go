package emu

import (
	"ttk91/insts"
	"ttk91/internal/ttklog"
)

// Machine is the complete TTK-91 machine state: registers, memory, the
// device table, and the switches that control emulation of historical
// TitoKone bugs.
type Machine struct {
	Regs    RegFile
	Mem     *Memory
	Devices *Devices
	Log     ttklog.Logger
	Clock   Clock

	// EmulateBugs reproduces TitoKone 1.203's SVC READ stack-offset bug
	// and SVC DATE month off-by-one when set.
	EmulateBugs bool

	halted bool
	alu    ALU
}

// MachineOption configures a Machine at construction time.
type MachineOption func(*Machine)

// WithEmulateBugs enables historical TitoKone bug emulation.
func WithEmulateBugs(v bool) MachineOption {
	return func(m *Machine) { m.EmulateBugs = v }
}

// WithClock overrides the wall clock used by SVC TIME/DATE, primarily
// for tests.
func WithClock(c Clock) MachineOption {
	return func(m *Machine) { m.Clock = c }
}

// WithLogger attaches a logger; the default is ttklog.Discard().
func WithLogger(l ttklog.Logger) MachineOption {
	return func(m *Machine) { m.Log = l }
}

// NewMachine builds a Machine over the given memory and device table,
// with MMU base 0 and limit equal to the memory's size until the
// loader or caller configures otherwise.
func NewMachine(mem *Memory, devices *Devices, opts ...MachineOption) *Machine {
	m := &Machine{
		Mem:     mem,
		Devices: devices,
		Log:     ttklog.Discard(),
		Clock:   RealClock{},
	}
	m.Regs.MMULimit = int32(mem.Size())
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Halted reports whether the machine has executed SVC HALT.
func (m *Machine) Halted() bool { return m.halted }

// Run executes steps until the machine halts or faults, returning the
// fault status (zero if it halted cleanly). It stops after maxSteps
// iterations as a runaway guard against programs that never halt.
func (m *Machine) Run(maxSteps int) Status {
	for i := 0; i < maxSteps; i++ {
		if m.halted {
			return 0
		}
		if ok := m.Step(); !ok {
			return m.Regs.SR
		}
	}
	return 0
}

// Step performs one fetch-decode-execute cycle: fetch the instruction,
// compute its second operand into TR, execute it, and report whether
// the cycle completed without a fault. A false return means a fault bit
// (SR_O, SR_M, SR_U, or SR_Z) is now set in the status register and the
// machine must not be stepped again. Once the machine has halted, Step
// does nothing and also returns false.
func (m *Machine) Step() bool {
	if m.halted {
		return false
	}

	m.fetch()
	if m.Regs.SR.Has(SRM) {
		return false
	}

	ir := insts.Decode(m.Regs.IR)
	m.Log.Info("executing", "instruction", ir.String())

	m.calculateSecondOperand(ir)
	if m.Regs.SR.Has(SRO | SRM | SRU) {
		return false
	}

	m.execute(ir)
	if m.Regs.SR.Has(faultMask) {
		return false
	}

	return true
}

// fetch loads the instruction at PC into IR, post-incrementing PC.
func (m *Machine) fetch() {
	addr := m.Regs.PC
	m.Regs.PC++
	m.Regs.IR = uint32(m.mmuReadOrFault(addr))
}

// calculateSecondOperand computes TR = addr + (index!=R0 ? R[index] : 0),
// then follows 0/1/2 memory indirections depending on the addressing
// mode.
func (m *Machine) calculateSecondOperand(ir insts.Instruction) {
	m.Regs.AluIn1 = int32(ir.Addr)
	if ir.Index != insts.R0 {
		m.Regs.AluIn2 = m.Regs.R[ir.Index]
	} else {
		m.Regs.AluIn2 = 0
	}

	out, bits := m.alu.Exec(AluAdd, m.Regs.AluIn1, m.Regs.AluIn2)
	m.Regs.AluOut = out
	m.Regs.SR |= bits
	if m.Regs.SR.Has(SRO) {
		return
	}
	m.Regs.TR = m.Regs.AluOut

	fetches := 0
	switch ir.Mode {
	case insts.Immediate:
		fetches = 0
	case insts.Direct:
		fetches = 1
	case insts.Indirect:
		fetches = 2
	default:
		m.Regs.SR |= SRU
		return
	}

	for i := 0; i < fetches; i++ {
		v := m.mmuReadOrFault(m.Regs.TR)
		if m.Regs.SR.Has(SRM) {
			return
		}
		m.Regs.TR = v
	}
}

// execute dispatches on opcode class.
func (m *Machine) execute(ir insts.Instruction) {
	op := ir.Op
	first := int(ir.First)
	switch {
	case op == insts.NOP:
	case op == insts.STORE || op == insts.LOAD:
		m.execStoreLoad(ir)
	case op == insts.IN || op == insts.OUT:
		if op == insts.IN {
			m.doIn(first)
		} else {
			m.doOut(first)
		}
	case op >= insts.ADD && op <= insts.SHRA:
		m.execArithmetic(ir)
	case op == insts.COMP:
		m.execComp(ir)
	case op >= insts.JUMP && op <= insts.JNGRE:
		m.execJump(ir)
	case op == insts.CALL:
		m.execCall(ir)
	case op == insts.EXIT:
		m.execExit(ir)
	case op == insts.PUSH:
		m.execPush(ir)
	case op == insts.POP:
		m.execPop(ir)
	case op == insts.PUSHR:
		m.execPushr(ir)
	case op == insts.POPR:
		m.execPopr(ir)
	case op == insts.SVC:
		m.execSvc(ir)
	default:
		m.Log.Error(nil, "unknown opcode", "opcode", uint8(op))
		m.Regs.SR |= SRU
	}
}

func (m *Machine) execStoreLoad(ir insts.Instruction) {
	first := int(ir.First)
	if ir.Op == insts.STORE {
		m.Regs.MAR = m.Regs.TR
		m.Regs.MBR = m.Regs.R[first]
		m.Regs.SR |= m.Mem.Write(m.Regs.MAR, m.Regs.MMUBase, m.Regs.MMULimit, m.Regs.MBR)
	} else {
		m.Regs.R[first] = m.Regs.TR
	}
}

var aluOpFor = map[insts.Opcode]AluOp{
	insts.ADD: AluAdd, insts.SUB: AluSub, insts.MUL: AluMul,
	insts.DIV: AluDiv, insts.MOD: AluMod,
	insts.AND: AluAnd, insts.OR: AluOr, insts.XOR: AluXor,
	insts.SHL: AluShl, insts.SHR: AluShr, insts.NOT: AluNot, insts.SHRA: AluShra,
}

func (m *Machine) execArithmetic(ir insts.Instruction) {
	first := int(ir.First)
	m.Regs.AluIn1 = m.Regs.R[first]
	m.Regs.AluIn2 = m.Regs.TR

	out, bits := m.alu.Exec(aluOpFor[ir.Op], m.Regs.AluIn1, m.Regs.AluIn2)
	if bits.Has(SRZ) {
		// Divide/mod by zero: ALU_OUT is meaningless and stays latched
		// at its prior value.
		m.Regs.SR |= bits
		return
	}
	m.Regs.AluOut = out
	m.Regs.SR |= bits
	if m.Regs.SR.Has(SRO) {
		return
	}
	m.Regs.R[first] = m.Regs.AluOut
}

func (m *Machine) execComp(ir insts.Instruction) {
	m.Regs.SR &^= compareMask
	a := m.Regs.R[int(ir.First)]
	b := m.Regs.TR
	switch {
	case a < b:
		m.Regs.SR |= SRL
	case a == b:
		m.Regs.SR |= SRE
	default:
		m.Regs.SR |= SRG
	}
}

func (m *Machine) execJump(ir insts.Instruction) {
	a := m.Regs.R[int(ir.First)]
	sr := m.Regs.SR
	jump := false
	switch ir.Op {
	case insts.JUMP:
		jump = true
	case insts.JNEG:
		jump = a < 0
	case insts.JZER:
		jump = a == 0
	case insts.JPOS:
		jump = a > 0
	case insts.JNNEG:
		jump = a >= 0
	case insts.JNZER:
		jump = a != 0
	case insts.JNPOS:
		jump = a <= 0
	case insts.JLES:
		jump = sr.Has(SRL)
	case insts.JEQU:
		jump = sr.Has(SRE)
	case insts.JGRE:
		jump = sr.Has(SRG)
	case insts.JNLES:
		jump = !sr.Has(SRL)
	case insts.JNEQU:
		jump = !sr.Has(SRE)
	case insts.JNGRE:
		jump = !sr.Has(SRG)
	}
	if jump {
		m.Regs.PC = m.Regs.TR
	}
}

// pushFrame pushes PC and FP onto the stack pointed to by sp, then sets
// FP = the post-push SP.
func (m *Machine) pushFrame(sp int) {
	m.Regs.R[sp]++
	m.Regs.SR |= m.Mem.Write(m.Regs.R[sp], m.Regs.MMUBase, m.Regs.MMULimit, m.Regs.PC)
	m.Regs.R[sp]++
	m.Regs.SR |= m.Mem.Write(m.Regs.R[sp], m.Regs.MMUBase, m.Regs.MMULimit, m.Regs.FP())
	m.Regs.SetFP(m.Regs.R[sp])
}

// popFrame pops FP and PC off the stack pointed to by sp.
func (m *Machine) popFrame(sp int) {
	fp := m.mmuReadOrFault(m.Regs.R[sp])
	m.Regs.R[sp]--
	pc := m.mmuReadOrFault(m.Regs.R[sp])
	m.Regs.R[sp]--
	m.Regs.SetFP(fp)
	m.Regs.PC = pc
}

func (m *Machine) execCall(ir insts.Instruction) {
	m.pushFrame(int(ir.First))
	m.Regs.PC = m.Regs.TR
}

func (m *Machine) execExit(ir insts.Instruction) {
	sp := int(ir.First)
	m.popFrame(sp)
	m.Regs.R[sp] -= m.Regs.TR
}

func (m *Machine) execPush(ir insts.Instruction) {
	sp := int(ir.First)
	m.Regs.R[sp]++
	m.Regs.MAR = m.Regs.R[sp]
	m.Regs.MBR = m.Regs.TR
	m.Regs.SR |= m.Mem.Write(m.Regs.MAR, m.Regs.MMUBase, m.Regs.MMULimit, m.Regs.MBR)
}

// execPop stores the popped value into the index register, then
// decrements the stack-pointer register. If both registers are the
// same, the value written by the pop is visibly decremented by one,
// reproducing cpu_exec_pop's documented quirk.
func (m *Machine) execPop(ir insts.Instruction) {
	sp := int(ir.First)
	v := m.mmuReadOrFault(m.Regs.R[sp])
	m.Regs.R[int(ir.Index)] = v
	m.Regs.R[sp]--
}

func (m *Machine) execPushr(ir insts.Instruction) {
	sp := int(ir.First)
	for r := 0; r <= int(insts.SP); r++ {
		m.Regs.R[sp]++
		m.mmuWriteOrFault(m.Regs.R[sp], m.Regs.R[r])
	}
}

func (m *Machine) execPopr(ir insts.Instruction) {
	sp := int(ir.First)
	for r := int(insts.SP); r >= 0; r-- {
		v := m.mmuReadOrFault(m.Regs.R[sp])
		m.Regs.R[r] = v
		m.Regs.R[sp]--
	}
}

func (m *Machine) execSvc(ir insts.Instruction) {
	sp := int(ir.First)
	m.pushFrame(sp)
	params := m.svc()
	if !m.halted {
		m.popFrame(sp)
		m.Regs.R[sp] -= params
	}
}
