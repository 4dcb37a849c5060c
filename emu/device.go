package emu

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ttk91/internal/ttklog"
)

// Device numbers, fixed by the architecture.
const (
	DevCRT   = 0
	DevKBD   = 1
	DevSTDIN = 6
	DevSTDOUT = 7
)

// Device is one entry of the fixed four-device table. CRT and KBD are
// always wired to the process's stdout/stdin and print interactive
// prompts; STDIN and STDOUT are file-backed and silent. A Machine is
// never shared across goroutines, so the table carries no locking.
type Device struct {
	Num     int
	Name    string
	IsInput bool
	// Interactive is true for CRT/KBD: reads print "Enter an integer: "
	// and writes print "Program outputted: " before the value.
	Interactive bool

	r *bufio.Reader
	w io.Writer
}

// Devices holds the four fixed devices and the log used to report open
// failures. A device whose backing file failed to open still exists in
// the table; using it later sets SR_M.
type Devices struct {
	byNum map[int]*Device
	log   ttklog.Logger
}

// NewDevices builds the fixed device table. stdin/stdout are the
// process's own CRT/KBD streams; stdinFile/stdoutFile back the STDIN/
// STDOUT devices (nil means the file failed to open, in which case the
// device exists but faults on use).
func NewDevices(stdin io.Reader, stdout io.Writer, stdinFile io.Reader, stdoutFile io.Writer, log ttklog.Logger) *Devices {
	d := &Devices{byNum: map[int]*Device{}, log: log}
	d.byNum[DevCRT] = &Device{Num: DevCRT, Name: "CRT", IsInput: false, Interactive: true, w: stdout}
	d.byNum[DevKBD] = &Device{Num: DevKBD, Name: "KBD", IsInput: true, Interactive: true, r: bufio.NewReader(stdin), w: stdout}

	in := &Device{Num: DevSTDIN, Name: "STDIN", IsInput: true}
	if stdinFile != nil {
		in.r = bufio.NewReader(stdinFile)
	} else {
		log.Warn("cannot open file for reading; trying to read from STDIN will not work")
	}
	d.byNum[DevSTDIN] = in

	out := &Device{Num: DevSTDOUT, Name: "STDOUT", IsInput: false}
	if stdoutFile != nil {
		out.w = stdoutFile
	} else {
		log.Warn("cannot open file for writing; trying to write to STDOUT will not work")
	}
	d.byNum[DevSTDOUT] = out

	return d
}

// Get returns the device with the given number, or nil if it does not
// exist.
func (d *Devices) Get(num int32) *Device {
	return d.byNum[int(num)]
}

// ReadInt reads a newline-terminated integer from the device. A
// non-numeric line yields 0 and a warning rather than an error.
func (dev *Device) ReadInt(log ttklog.Logger) int32 {
	if dev.Interactive {
		fmt.Fprint(dev.w, "Enter an integer: ")
	}
	line, _ := dev.r.ReadString('\n')
	line = strings.TrimSpace(line)
	v, err := strconv.Atoi(line)
	if err != nil {
		log.Warn("the value read was not an integer")
		return 0
	}
	return int32(v)
}

// WriteInt writes value to the device, prefixed for CRT devices.
func (dev *Device) WriteInt(value int32) {
	if dev.Interactive {
		fmt.Fprint(dev.w, "Program outputted: ")
	}
	fmt.Fprintf(dev.w, "%d\n", value)
}
