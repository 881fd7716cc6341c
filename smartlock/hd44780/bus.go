package hd44780

import (
	"errors"
	"fmt"
	"time"
)

// Pin identifies a GPIO by its platform number.
type Pin uint8

// PinAssignment maps the controller's signals to GPIOs.
// Data[0] is D0 and Data[7] is D7. The data lines must be consecutive,
// ascending pin numbers: ports drive them as one masked register field.
type PinAssignment struct {
	RS   Pin // register select
	RW   Pin // read/write
	E    Pin // enable
	Data [8]Pin
}

// ContiguousPins returns an assignment whose data lines start at d0.
func ContiguousPins(rs, rw, e, d0 Pin) PinAssignment {
	p := PinAssignment{RS: rs, RW: rw, E: e}
	for i := range p.Data {
		p.Data[i] = d0 + Pin(i)
	}
	return p
}

// Validate reports whether the assignment can be claimed as a bus.
func (p PinAssignment) Validate() error {
	for i := 1; i < len(p.Data); i++ {
		if p.Data[i] != p.Data[0]+Pin(i) {
			return fmt.Errorf("%w: data line D%d is pin %d, want %d", ErrPinClaim, i, p.Data[i], p.Data[0]+Pin(i))
		}
	}
	if int(p.Data[0])+7 > 31 {
		return fmt.Errorf("%w: data field D0=%d does not fit a 32-bit register", ErrPinClaim, p.Data[0])
	}
	for _, c := range [...]Pin{p.RS, p.RW, p.E} {
		if c >= p.Data[0] && c <= p.Data[7] {
			return fmt.Errorf("%w: control pin %d overlaps the data field", ErrPinClaim, c)
		}
	}
	if p.RS == p.RW || p.RS == p.E || p.RW == p.E {
		return fmt.Errorf("%w: control pins must be distinct", ErrPinClaim)
	}
	return nil
}

// DataShift is the bit offset of D0 in a GPIO register.
func (p PinAssignment) DataShift() uint32 { return uint32(p.Data[0]) }

// DataMask selects the eight data lines in a GPIO register.
func (p PinAssignment) DataMask() uint32 { return 0xFF << p.DataShift() }

// Direction of the eight data lines, always switched together.
type Direction uint8

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// Line is one of the single-pin control signals.
type Line uint8

const (
	LineRS Line = iota
	LineRW
	LineE
)

func (l Line) String() string {
	switch l {
	case LineRS:
		return "RS"
	case LineRW:
		return "RW"
	case LineE:
		return "E"
	default:
		return "?"
	}
}

// Control line levels.
const (
	rsCommand = false
	rsData    = true
	rwWrite   = false
	rwRead    = true
)

// Port is the hardware side of the bus. Implementations only move pins;
// ordering and protocol rules are enforced by Bus.
type Port interface {
	// Configure claims the pins: control lines as outputs, data lines as inputs.
	Configure(pins PinAssignment) error
	// SetDirection switches all eight data lines at once.
	SetDirection(dir Direction)
	// WriteData drives the data lines without touching other pins.
	WriteData(value byte)
	// ReadData samples the data lines.
	ReadData() byte
	// SetLine drives a control line.
	SetLine(line Line, high bool)
}

// Bus owns a Port and guards the shared data lines: they are written only
// while driven, read only while released, and never switched with enable high.
type Bus struct {
	port       Port
	clock      Clock
	settle     time.Duration
	configured bool
	dir        Direction
	enable     bool
}

// NewBus returns a bus over port. settle is how long enable is held high
// before the busy flag is sampled.
func NewBus(port Port, clock Clock, settle time.Duration) *Bus {
	if clock == nil {
		clock = systemClock{}
	}
	return &Bus{port: port, clock: clock, settle: settle}
}

// Configure claims the pins and leaves the bus idle: data lines released,
// RS=0, RW=read, E=0. It must be called once before any other operation.
func (b *Bus) Configure(pins PinAssignment) error {
	if err := pins.Validate(); err != nil {
		return err
	}
	if err := b.port.Configure(pins); err != nil {
		if errors.Is(err, ErrPinClaim) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPinClaim, err)
	}
	b.port.SetLine(LineE, false)
	b.enable = false
	b.port.SetDirection(Input)
	b.dir = Input
	b.port.SetLine(LineRS, rsCommand)
	b.port.SetLine(LineRW, rwRead)
	b.configured = true
	return nil
}

// Configured reports whether Configure succeeded.
func (b *Bus) Configured() bool { return b.configured }

// Direction returns the current data line direction.
func (b *Bus) Direction() Direction { return b.dir }

// Enabled reports whether the enable line is high.
func (b *Bus) Enabled() bool { return b.enable }

// SetDirection switches all eight data lines.
func (b *Bus) SetDirection(dir Direction) error {
	if !b.configured {
		return ErrNotConfigured
	}
	if b.enable {
		return ErrEnableHigh
	}
	b.port.SetDirection(dir)
	b.dir = dir
	return nil
}

// WriteByte drives value onto the data lines. The bus must be an output.
func (b *Bus) WriteByte(value byte) error {
	if !b.configured {
		return ErrNotConfigured
	}
	if b.dir != Output {
		return ErrBusDirection
	}
	b.port.WriteData(value)
	return nil
}

// ReadByte samples the data lines. The bus must be an input.
func (b *Bus) ReadByte() (byte, error) {
	if !b.configured {
		return 0, ErrNotConfigured
	}
	if b.dir != Input {
		return 0, ErrBusDirection
	}
	return b.port.ReadData(), nil
}

// SetRegisterSelect drives RS: false selects the instruction register,
// true the data register.
func (b *Bus) SetRegisterSelect(high bool) error { return b.setLine(LineRS, high) }

// SetReadWrite drives RW: true reads, false writes.
func (b *Bus) SetReadWrite(high bool) error { return b.setLine(LineRW, high) }

// SetEnable drives E.
func (b *Bus) SetEnable(high bool) error { return b.setLine(LineE, high) }

func (b *Bus) setLine(line Line, high bool) error {
	if !b.configured {
		return ErrNotConfigured
	}
	b.drive(line, high)
	return nil
}

// drive moves a control line of a configured bus.
func (b *Bus) drive(line Line, high bool) {
	b.port.SetLine(line, high)
	if line == LineE {
		b.enable = high
	}
}

// PollBusy performs one busy flag read: RS=0, RW=read, E high, settle,
// sample, E low. The bus must already be an input.
func (b *Bus) PollBusy() (bool, error) {
	if !b.configured {
		return false, ErrNotConfigured
	}
	if b.dir != Input {
		return false, ErrBusDirection
	}
	b.drive(LineRS, rsCommand)
	b.drive(LineRW, rwRead)
	b.drive(LineE, true)
	b.clock.Sleep(b.settle)
	v := b.port.ReadData()
	b.drive(LineE, false)
	return IsBusy(v), nil
}

// IsBusy reports whether the busy flag (bit 7) is set in a status read.
func IsBusy(status byte) bool { return status&0x80 != 0 }
