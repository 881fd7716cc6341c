//go:build tinygo && !rp2040 && !rp2350

package hd44780

import "machine"

// GPIOPort drives the bus one machine.Pin at a time, for targets without
// a masked GPIO register. Enable is low whenever the data lines change, so
// the controller never sees a partial byte.
type GPIOPort struct {
	pins PinAssignment
	data [8]machine.Pin
}

// NewGPIOPort returns a port for the board's GPIOs.
func NewGPIOPort() *GPIOPort { return &GPIOPort{} }

// Configure implements Port.
func (p *GPIOPort) Configure(pins PinAssignment) error {
	for _, c := range [...]Pin{pins.RS, pins.RW, pins.E, pins.Data[0]} {
		if machine.Pin(c) == machine.NoPin {
			return ErrPinClaim
		}
	}
	p.pins = pins
	for _, c := range [...]Pin{pins.RS, pins.RW, pins.E} {
		machine.Pin(c).Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	for i, d := range pins.Data {
		p.data[i] = machine.Pin(d)
	}
	p.SetDirection(Input)
	return nil
}

// SetDirection implements Port.
func (p *GPIOPort) SetDirection(dir Direction) {
	mode := machine.PinInput
	if dir == Output {
		mode = machine.PinOutput
	}
	for _, d := range p.data {
		d.Configure(machine.PinConfig{Mode: mode})
	}
}

// WriteData implements Port.
func (p *GPIOPort) WriteData(value byte) {
	for i, d := range p.data {
		d.Set(value&(1<<i) != 0)
	}
}

// ReadData implements Port.
func (p *GPIOPort) ReadData() byte {
	var v byte
	for i, d := range p.data {
		if d.Get() {
			v |= 1 << i
		}
	}
	return v
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
