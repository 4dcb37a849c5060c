// Command ttk91 runs a TTK-91 b91 program under emulation, built as a
// cobra.Command with its flags bound directly to an options struct.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ttk91/console"
	"ttk91/emu"
	"ttk91/internal/ttklog"
	"ttk91/loader"
)

const (
	defaultMemSize = 10000
	defaultMemCols = 8

	// memDumpBase is always decimal; no flag toggles it.
	memDumpBase = 10
)

type options struct {
	stdinFile    string
	stdoutFile   string
	memSize      int
	mmuBase      int
	mmuLimit     int
	clean        bool
	columns      int
	step         bool
	verbosity    int
	emulateBugs  bool
	showSymtable bool
}

func main() {
	opts := &options{mmuLimit: -1}

	root := &cobra.Command{
		Use:   "ttk91 PROGRAM_FILE",
		Short: "ttk91 is a TTK-91 machine emulator",
		Long: "ttk91 runs a b91 object file on an emulated TTK-91 machine.\n" +
			"If PROGRAM_FILE is -, the program is read from standard input.\n" +
			"The --stdin and --stdout flags override devices declared in the program file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	flags := root.Flags()
	flags.StringVarP(&opts.stdinFile, "stdin", "i", "", "use FILE as the STDIN device")
	flags.StringVarP(&opts.stdoutFile, "stdout", "o", "", "use FILE as the STDOUT device")
	flags.IntVarP(&opts.memSize, "mem-size", "m", defaultMemSize, "use SIZE words of memory")
	flags.IntVar(&opts.mmuBase, "mmu-base", 0, "set the MMU base to BASE")
	flags.IntVar(&opts.mmuLimit, "mmu-limit", -1, "set the MMU limit to LIMIT (default: mem-size - mmu-base)")
	flags.BoolVar(&opts.clean, "clean", false, "fill memory and registers with zero before starting")
	flags.BoolVar(&opts.clean, "zero", false, "alias for --clean")
	flags.IntVarP(&opts.columns, "columns", "c", defaultMemCols, "use COLS columns in the memory dump")
	flags.BoolVarP(&opts.step, "step", "s", false, "pause execution after each instruction")
	flags.CountVarP(&opts.verbosity, "verbose", "v", "be verbose (use twice to be very verbose)")
	flags.BoolVar(&opts.emulateBugs, "emulate-bugs", false, "emulate a bug found in TitoKone 1.203")
	flags.BoolVarP(&opts.showSymtable, "show-symtable", "y", false, "include the symbol table in dumps")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts *options, programArg string, stdout, stderr io.Writer) error {
	if opts.memSize <= 0 {
		return fmt.Errorf("mem-size must be positive")
	}
	if opts.mmuBase < 0 {
		return fmt.Errorf("mmu-base must be non-negative")
	}
	if opts.mmuBase >= opts.memSize {
		return fmt.Errorf("mmu-base must be less than mem-size")
	}
	if opts.mmuLimit < 0 {
		opts.mmuLimit = opts.memSize - opts.mmuBase
	}
	if opts.mmuBase+opts.mmuLimit > opts.memSize {
		return fmt.Errorf("mmu-base + mmu-limit must not exceed mem-size")
	}

	log := ttklog.New(clampVerbosity(opts.verbosity), stderr)

	programFile := os.Stdin
	if programArg != "-" {
		f, err := os.Open(programArg)
		if err != nil {
			return fmt.Errorf("opening program file: %w", err)
		}
		defer f.Close()
		programFile = f
	}

	program, err := loader.Parse(programFile)
	if err != nil {
		return fmt.Errorf("loading program: %w", err)
	}

	mem := emu.NewMemory(opts.memSize)
	if opts.clean {
		log.Info("zeroing memory before loading the program")
	}
	if err := loader.Place(program, mem, int32(opts.mmuBase), int32(opts.mmuLimit)); err != nil {
		return err
	}

	stdinFile, stdoutFile := openDeviceFiles(opts, program.Symbols, log)
	// A file that failed to open is passed as a nil interface, not a nil
	// *os.File, so that the device faults on use.
	var stdinDev io.Reader
	if stdinFile != nil {
		defer stdinFile.Close()
		stdinDev = stdinFile
	}
	var stdoutDev io.Writer
	if stdoutFile != nil {
		defer stdoutFile.Close()
		stdoutDev = stdoutFile
	}

	devices := emu.NewDevices(os.Stdin, stdout, stdinDev, stdoutDev, log)

	machine := emu.NewMachine(mem, devices,
		emu.WithEmulateBugs(opts.emulateBugs),
		emu.WithLogger(log))
	machine.Regs.MMUBase = int32(opts.mmuBase)
	machine.Regs.MMULimit = int32(opts.mmuLimit)
	machine.Regs.SetFP(program.InitialFP)
	machine.Regs.SetSP(program.InitialSP)

	log.Info("running program")

	in := bufio.NewReader(os.Stdin)
	if opts.step {
		console.DumpState(stdout, machine, true, opts.columns, memDumpBase, opts.showSymtable, program.Symbols)
		if !console.Pause(in, stdout, program.Symbols) {
			return fmt.Errorf("stopped by user")
		}
	}

	const maxSteps = 10_000_000
	for i := 0; i < maxSteps && !machine.Halted(); i++ {
		if !machine.Step() {
			break
		}
		if opts.step {
			console.DumpState(stdout, machine, true, opts.columns, memDumpBase, opts.showSymtable, program.Symbols)
			if !console.Pause(in, stdout, program.Symbols) {
				return fmt.Errorf("stopped by user")
			}
		}
	}

	console.DumpState(stdout, machine, false, opts.columns, memDumpBase, opts.showSymtable, program.Symbols)

	if machine.Regs.SR.Faulted() {
		return fmt.Errorf("emulation aborted: status register = %s", machine.Regs.SR)
	}
	if !machine.Halted() {
		return fmt.Errorf("emulation did not halt within %d steps", maxSteps)
	}
	return nil
}

func clampVerbosity(v int) int {
	if v > 2 {
		return 2
	}
	return v
}

func openDeviceFiles(opts *options, symbols *loader.SymbolTable, log ttklog.Logger) (stdinFile, stdoutFile *os.File) {
	stdinPath := opts.stdinFile
	if stdinPath == "" {
		stdinPath = "stdin"
		if v, ok := symbols.LookupStr("stdin"); ok {
			stdinPath = v
		}
	}
	if f, err := os.Open(stdinPath); err == nil {
		stdinFile = f
	} else {
		log.Warn("cannot open file for reading; trying to read from STDIN will not work", "file", stdinPath)
	}

	stdoutPath := opts.stdoutFile
	if stdoutPath == "" {
		stdoutPath = "stdout"
		if v, ok := symbols.LookupStr("stdout"); ok {
			stdoutPath = v
		}
	}
	if f, err := os.Create(stdoutPath); err == nil {
		stdoutFile = f
	} else {
		log.Warn("cannot open file for writing; trying to write to STDOUT will not work", "file", stdoutPath)
	}

	return stdinFile, stdoutFile
}
