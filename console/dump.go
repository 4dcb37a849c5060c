// Package console renders machine state to a writer — registers,
// memory, and the symbol table — and drives the --step pause loop.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"ttk91/emu"
	"ttk91/insts"
	"ttk91/loader"
)

// hexDec renders a value in both hex and decimal.
func hexDec(v int32) string {
	return fmt.Sprintf("0x%08x (%11d)", uint32(v), v)
}

// DumpRegisters writes the eight working registers alongside the
// machine's internal latches (PC, IR, TR, ALU_IN1/2, ALU_OUT, MAR, MBR)
// and the status register, one line per register pair.
func DumpRegisters(w io.Writer, m *emu.Machine) {
	fmt.Fprintln(w, "Registers:")
	labels := [8]string{"R0", "R1", "R2", "R3", "R4", "R5", "R6 (SP)", "R7 (FP)"}
	latchName := [8]string{"PC", "IR", "TR", "ALU_IN1", "ALU_IN2", "ALU_OUT", "MAR", "MBR"}
	latchVal := func(i int) int32 {
		switch i {
		case 0:
			return m.Regs.PC
		case 1:
			return int32(m.Regs.IR)
		case 2:
			return m.Regs.TR
		case 3:
			return m.Regs.AluIn1
		case 4:
			return m.Regs.AluIn2
		case 5:
			return m.Regs.AluOut
		case 6:
			return m.Regs.MAR
		default:
			return m.Regs.MBR
		}
	}

	for i := 0; i < 8; i++ {
		fmt.Fprintf(w, "%-9s= %s   %-8s= %s\n",
			labels[i], hexDec(m.Regs.R[i]), latchName[i], hexDec(latchVal(i)))
	}

	fmt.Fprintf(w, "SR = %s... (0x%08x)\n", m.Regs.SR.String(), uint32(m.Regs.SR))
}

// DumpMemory renders the machine's memory as a grid of `cols` columns
// per row, with a row header giving the starting address. base is 10
// or 16.
func DumpMemory(w io.Writer, m *emu.Machine, cols, base int) {
	size := m.Mem.Size()
	fmt.Fprintf(w, "Memory size: %d words, MMU base: 0x%08x (%d), MMU limit: %d words\n",
		size, m.Regs.MMUBase, m.Regs.MMUBase, m.Regs.MMULimit)
	fmt.Fprintf(w, "Accessible memory area: 0x%08x - 0x%08x (%d - %d)\n",
		m.Regs.MMUBase, m.Regs.MMUBase+m.Regs.MMULimit-1,
		m.Regs.MMUBase, m.Regs.MMUBase+m.Regs.MMULimit-1)

	fmt.Fprint(w, "Memory      ")
	for i := 0; i < cols; i++ {
		if base == 10 {
			fmt.Fprintf(w, "%12d", i)
		} else {
			fmt.Fprintf(w, "%12x", i)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprint(w, strings.Repeat("-", 12))
	for i := 0; i < cols; i++ {
		fmt.Fprint(w, strings.Repeat("-", 12))
	}
	fmt.Fprintln(w)

	for i := 0; i < size; i++ {
		if i%cols == 0 {
			if base == 10 {
				fmt.Fprintf(w, "%10d |", i)
			} else {
				fmt.Fprintf(w, "0x%08x |", i)
			}
		}

		v, _ := m.Mem.ReadPhysical(int32(i))
		if base == 10 {
			fmt.Fprintf(w, " %11d", v)
		} else {
			fmt.Fprintf(w, "  0x%08x", uint32(v))
		}

		if i%cols == cols-1 || i == size-1 {
			fmt.Fprintln(w)
		}
	}
}

// DumpState prints the full current-state block: registers, the next
// instruction (when step is true), the symbol table (when
// showSymtable is true), and the memory grid.
func DumpState(w io.Writer, m *emu.Machine, step bool, cols, base int, showSymtable bool, symbols *loader.SymbolTable) {
	fmt.Fprintln(w, "\nCurrent state:")
	fmt.Fprintln(w)
	DumpRegisters(w, m)
	if step {
		fmt.Fprintln(w)
		fmt.Fprintf(w, ">>> Next instruction: %s\n", nextInstruction(m))
	}
	fmt.Fprintln(w)
	if showSymtable && symbols != nil {
		fmt.Fprint(w, symbols.Dump())
		fmt.Fprintln(w)
	}
	DumpMemory(w, m, cols, base)
	fmt.Fprintln(w)
}

func nextInstruction(m *emu.Machine) string {
	if m.Halted() || m.Regs.PC < 0 || m.Regs.PC >= m.Regs.MMULimit {
		return "N/A"
	}
	word, ok := m.Mem.ReadPhysical(m.Regs.MMUBase + m.Regs.PC)
	if !ok {
		return "N/A"
	}
	return insts.Decode(uint32(word)).String()
}

// Pause prompts the user between steps, reading commands from r:
// blank -> continue, "s" -> show the symbol table and prompt again,
// "q" -> stop. It reports whether the run should continue.
func Pause(r *bufio.Reader, w io.Writer, symbols *loader.SymbolTable) bool {
	for {
		fmt.Fprint(w, "Type enter to execute the next instruction, \"s\" to show\n"+
			"the symbol table, or \"q\" to quit: \n")

		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		line = strings.TrimRight(line, "\r\n")

		switch line {
		case "":
			return true
		case "s":
			fmt.Fprintln(w)
			if symbols != nil {
				fmt.Fprint(w, symbols.Dump())
			}
			fmt.Fprintln(w)
		case "q":
			return false
		}
	}
}
