// Package hd44780test provides a simulated HD44780 controller for testing
// code that drives the bus.
//
// Controller implements hd44780.Port. It decodes latched instructions,
// keeps DDRAM and the address counter, reports the busy flag for a
// configurable number of status reads after each latch, and records every
// protocol violation it sees (direction switched with enable high, a byte
// latched while busy, the bus read while driven).
package hd44780test

import (
	"fmt"
	"time"

	"github.com/harveysanders/picolock/smartlock/hd44780"
)

// OpKind distinguishes latched instructions from character writes.
type OpKind uint8

const (
	OpInstruction OpKind = iota
	OpData
)

func (k OpKind) String() string {
	if k == OpData {
		return "data"
	}
	return "instruction"
}

// Op is one byte latched by a falling enable edge.
type Op struct {
	Kind  OpKind
	Value byte
	// Address is the DDRAM address counter when the byte was latched.
	Address uint8
	// Polls counts status reads issued after this op, busy or not.
	Polls int
	// BusyPolls counts the status reads that reported busy.
	BusyPolls int
}

// Controller simulates the part on the other side of the bus.
type Controller struct {
	// BusyPolls is how many status reads report busy after each latch.
	BusyPolls int
	// PowerOnBusyPolls is how many status reads report busy after Configure.
	PowerOnBusyPolls int
	// Stuck keeps the busy flag set forever.
	Stuck bool
	// ClaimErr is returned by Configure.
	ClaimErr error

	pins       hd44780.PinAssignment
	configured bool
	dir        hd44780.Direction
	rs, rw, e  bool
	bus        byte
	busyLeft   int

	addr      uint8
	increment bool
	shift     bool
	display   bool
	cursor    bool
	blink     bool
	eightBit  bool
	twoLines  bool
	ddram     [0x80]byte

	ops         []Op
	statusReads int
	violations  []string
}

// NewController returns a controller that reports busy for two status
// reads after each instruction.
func NewController() *Controller {
	c := &Controller{BusyPolls: 2, increment: true}
	for i := range c.ddram {
		c.ddram[i] = ' '
	}
	return c
}

// Configure implements hd44780.Port.
func (c *Controller) Configure(pins hd44780.PinAssignment) error {
	if c.ClaimErr != nil {
		return c.ClaimErr
	}
	c.pins = pins
	c.configured = true
	c.dir = hd44780.Input
	c.busyLeft = c.PowerOnBusyPolls
	return nil
}

// SetDirection implements hd44780.Port.
func (c *Controller) SetDirection(dir hd44780.Direction) {
	c.checkConfigured("SetDirection")
	if c.e {
		c.violate("bus switched to %s with enable high", dir)
	}
	c.dir = dir
}

// WriteData implements hd44780.Port.
func (c *Controller) WriteData(value byte) {
	c.checkConfigured("WriteData")
	if c.dir != hd44780.Output {
		c.violate("wrote 0x%02x to a released bus", value)
	}
	c.bus = value
}

// ReadData implements hd44780.Port.
func (c *Controller) ReadData() byte {
	c.checkConfigured("ReadData")
	if c.dir != hd44780.Input {
		c.violate("read a driven bus")
		return c.bus
	}
	if !c.e || !c.rw {
		return 0
	}
	if c.rs {
		return c.ddram[c.addr&0x7F]
	}
	return c.status()
}

// SetLine implements hd44780.Port.
func (c *Controller) SetLine(line hd44780.Line, high bool) {
	c.checkConfigured("SetLine")
	switch line {
	case hd44780.LineRS:
		if c.e && c.rs != high {
			c.violate("RS changed with enable high")
		}
		c.rs = high
	case hd44780.LineRW:
		if c.e && c.rw != high {
			c.violate("RW changed with enable high")
		}
		c.rw = high
	case hd44780.LineE:
		if !c.e && high && c.rw && c.dir == hd44780.Output {
			c.violate("enable raised for a read while the host drives the bus")
		}
		if c.e && !high && !c.rw {
			c.latch()
		}
		c.e = high
	}
}

func (c *Controller) status() byte {
	c.statusReads++
	busy := c.Stuck || c.busyLeft > 0
	if c.busyLeft > 0 {
		c.busyLeft--
	}
	if n := len(c.ops); n > 0 {
		c.ops[n-1].Polls++
		if busy {
			c.ops[n-1].BusyPolls++
		}
	}
	if busy {
		return 0x80 | c.addr
	}
	return c.addr & 0x7F
}

func (c *Controller) latch() {
	if c.dir != hd44780.Output {
		c.violate("latched with a released bus")
	}
	if c.Stuck || c.busyLeft > 0 {
		c.violate("latched 0x%02x while busy", c.bus)
	}
	op := Op{Kind: OpInstruction, Value: c.bus, Address: c.addr}
	if c.rs {
		op.Kind = OpData
		c.ddram[c.addr&0x7F] = c.bus
		c.step()
	} else {
		c.decode(c.bus)
	}
	c.ops = append(c.ops, op)
	c.busyLeft = c.BusyPolls
}

func (c *Controller) decode(v byte) {
	switch {
	case v&0x80 != 0:
		c.addr = v & 0x7F
	case v&0x40 != 0:
		// CGRAM addressing is not modelled.
	case v&0x20 != 0:
		c.eightBit = v&0x10 != 0
		c.twoLines = v&0x08 != 0
	case v&0x10 != 0:
		if v&0x08 == 0 {
			if v&0x04 != 0 {
				c.addr = next(c.addr)
			} else {
				c.addr = prev(c.addr)
			}
		}
	case v&0x08 != 0:
		c.display = v&0x04 != 0
		c.cursor = v&0x02 != 0
		c.blink = v&0x01 != 0
	case v&0x04 != 0:
		c.increment = v&0x02 != 0
		c.shift = v&0x01 != 0
	case v&0x02 != 0:
		c.addr = 0
	case v&0x01 != 0:
		for i := range c.ddram {
			c.ddram[i] = ' '
		}
		c.addr = 0
		c.increment = true
	}
}

func (c *Controller) step() {
	if c.increment {
		c.addr = next(c.addr)
	} else {
		c.addr = prev(c.addr)
	}
}

// next and prev follow the two-line address map: 0x00-0x27, 0x40-0x67.
func next(a uint8) uint8 {
	switch a {
	case 0x27:
		return 0x40
	case 0x67:
		return 0x00
	}
	return a + 1
}

func prev(a uint8) uint8 {
	switch a {
	case 0x00:
		return 0x67
	case 0x40:
		return 0x27
	}
	return a - 1
}

func (c *Controller) checkConfigured(op string) {
	if !c.configured {
		c.violate("%s before Configure", op)
	}
}

func (c *Controller) violate(format string, args ...any) {
	c.violations = append(c.violations, fmt.Sprintf(format, args...))
}

// Ops returns every latched byte in order.
func (c *Controller) Ops() []Op { return c.ops }

// Instructions returns the latched instruction bytes in order.
func (c *Controller) Instructions() []hd44780.Instruction {
	var out []hd44780.Instruction
	for _, op := range c.ops {
		if op.Kind == OpInstruction {
			out = append(out, hd44780.Instruction(op.Value))
		}
	}
	return out
}

// Characters returns the latched character codes in order.
func (c *Controller) Characters() []byte {
	var out []byte
	for _, op := range c.ops {
		if op.Kind == OpData {
			out = append(out, op.Value)
		}
	}
	return out
}

// ResetLog forgets recorded ops and violations, keeping controller state.
func (c *Controller) ResetLog() {
	c.ops = nil
	c.violations = nil
	c.statusReads = 0
}

// Violations returns the protocol violations seen so far.
func (c *Controller) Violations() []string { return c.violations }

// StatusReads counts busy flag reads.
func (c *Controller) StatusReads() int { return c.statusReads }

// Enabled reports the level of E.
func (c *Controller) Enabled() bool { return c.e }

// Address returns the address counter.
func (c *Controller) Address() uint8 { return c.addr }

// Text returns n characters of DDRAM starting at the given row.
func (c *Controller) Text(row, n int) string {
	start := 0x00
	if row == 1 {
		start = 0x40
	}
	return string(c.ddram[start : start+n])
}

// DisplayState returns the display, cursor and blink flags.
func (c *Controller) DisplayState() (display, cursor, blink bool) {
	return c.display, c.cursor, c.blink
}

// FunctionState returns the bus width and line count flags.
func (c *Controller) FunctionState() (eightBit, twoLines bool) {
	return c.eightBit, c.twoLines
}

// EntryState returns the entry mode flags.
func (c *Controller) EntryState() (increment, shift bool) {
	return c.increment, c.shift
}

// Clock is a manual clock: Sleep advances Now without blocking.
type Clock struct {
	now    time.Time
	slept  time.Duration
	ctrl   *Controller
	sleeps []Sleep
}

// Sleep is one call to Clock.Sleep, seen from an attached controller.
type Sleep struct {
	D time.Duration
	// EnableHigh is the level of E during the sleep.
	EnableHigh bool
	// StatusReads is the controller's status read count when it began.
	StatusReads int
}

// NewClock returns a clock starting at the Unix epoch.
func NewClock() *Clock { return &Clock{now: time.Unix(0, 0)} }

// Attach records every later Sleep against the state of ctrl.
func (c *Clock) Attach(ctrl *Controller) { c.ctrl = ctrl }

// Now implements hd44780.Clock.
func (c *Clock) Now() time.Time { return c.now }

// Sleep implements hd44780.Clock.
func (c *Clock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.slept += d
	if c.ctrl != nil {
		c.sleeps = append(c.sleeps, Sleep{D: d, EnableHigh: c.ctrl.e, StatusReads: c.ctrl.statusReads})
	}
}

// Slept returns the total time passed to Sleep.
func (c *Clock) Slept() time.Duration { return c.slept }

// Sleeps returns the sleeps recorded since Attach.
func (c *Clock) Sleeps() []Sleep { return c.sleeps }
