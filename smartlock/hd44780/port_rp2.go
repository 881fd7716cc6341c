//go:build tinygo && (rp2040 || rp2350)

package hd44780

import (
	"device/rp"
	"machine"
)

// maxGPIO is the highest pin in the SIO bank-0 registers used here.
const maxGPIO = 29

// GPIOPort drives the bus through the RP2 SIO block. The data field is
// switched, written and sampled with single masked register accesses, which
// is why the data lines must be contiguous.
type GPIOPort struct {
	pins  PinAssignment
	mask  uint32
	shift uint32
}

// NewGPIOPort returns a port for the board's GPIOs.
func NewGPIOPort() *GPIOPort { return &GPIOPort{} }

// Configure implements Port.
func (p *GPIOPort) Configure(pins PinAssignment) error {
	if pins.Data[7] > maxGPIO || pins.RS > maxGPIO || pins.RW > maxGPIO || pins.E > maxGPIO {
		return ErrPinClaim
	}
	p.pins = pins
	p.mask = pins.DataMask()
	p.shift = pins.DataShift()

	for _, c := range [...]Pin{pins.RS, pins.RW, pins.E} {
		machine.Pin(c).Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	for _, d := range pins.Data {
		machine.Pin(d).Configure(machine.PinConfig{Mode: machine.PinInput})
	}
	rp.SIO.GPIO_OE_CLR.Set(p.mask)
	return nil
}

// SetDirection implements Port.
func (p *GPIOPort) SetDirection(dir Direction) {
	if dir == Output {
		rp.SIO.GPIO_OE_SET.Set(p.mask)
	} else {
		rp.SIO.GPIO_OE_CLR.Set(p.mask)
	}
}

// WriteData implements Port. Only bits that differ are toggled, so pins
// outside the data field keep their level.
func (p *GPIOPort) WriteData(value byte) {
	want := uint32(value) << p.shift
	cur := rp.SIO.GPIO_OUT.Get()
	rp.SIO.GPIO_OUT_XOR.Set((cur ^ want) & p.mask)
}

// ReadData implements Port.
func (p *GPIOPort) ReadData() byte {
	return byte((rp.SIO.GPIO_IN.Get() & p.mask) >> p.shift)
}

// SetLine implements Port.
func (p *GPIOPort) SetLine(line Line, high bool) {
	switch line {
	case LineRS:
		machine.Pin(p.pins.RS).Set(high)
	case LineRW:
		machine.Pin(p.pins.RW).Set(high)
	case LineE:
		machine.Pin(p.pins.E).Set(high)
	}
}
