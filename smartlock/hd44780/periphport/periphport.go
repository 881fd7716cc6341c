// Package periphport drives the HD44780 bus from a Linux host (Raspberry Pi
// and friends) through periph.io GPIO pins.
//
// Pins are looked up by their GPIO number ("GPIO16"). Unlike the RP2 port,
// each data line is switched on its own, so writes are not atomic; the
// controller only samples on the falling enable edge so this is harmless.
package periphport

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/harveysanders/picolock/smartlock/hd44780"
)

// Port implements hd44780.Port on periph.io pins.
type Port struct {
	byName func(name string) gpio.PinIO
	ctrl   [3]gpio.PinIO
	data   [8]gpio.PinIO
	err    error
}

// New returns a port using the host's GPIO registry. periph's host.Init
// must have been called.
func New() *Port {
	return NewWithLookup(gpioreg.ByName)
}

// NewWithLookup returns a port that resolves pins with byName.
func NewWithLookup(byName func(name string) gpio.PinIO) *Port {
	return &Port{byName: byName}
}

// Configure implements hd44780.Port.
func (p *Port) Configure(pins hd44780.PinAssignment) error {
	for i, n := range [...]hd44780.Pin{pins.RS, pins.RW, pins.E} {
		pin, err := p.lookup(n)
		if err != nil {
			return err
		}
		if err := pin.Out(gpio.Low); err != nil {
			return fmt.Errorf("%w: %s: %v", hd44780.ErrPinClaim, pin, err)
		}
		p.ctrl[i] = pin
	}
	for i, n := range pins.Data {
		pin, err := p.lookup(n)
		if err != nil {
			return err
		}
		if err := pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return fmt.Errorf("%w: %s: %v", hd44780.ErrPinClaim, pin, err)
		}
		p.data[i] = pin
	}
	return nil
}

func (p *Port) lookup(n hd44780.Pin) (gpio.PinIO, error) {
	name := fmt.Sprintf("GPIO%d", n)
	pin := p.byName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s not found", hd44780.ErrPinClaim, name)
	}
	return pin, nil
}

// SetDirection implements hd44780.Port. Switching to output keeps the
// levels the pins already report so the bus does not glitch.
func (p *Port) SetDirection(dir hd44780.Direction) {
	for _, pin := range p.data {
		if dir == hd44780.Output {
			p.keep(pin.Out(pin.Read()))
		} else {
			p.keep(pin.In(gpio.PullNoChange, gpio.NoEdge))
		}
	}
}

// WriteData implements hd44780.Port.
func (p *Port) WriteData(value byte) {
	for i, pin := range p.data {
		p.keep(pin.Out(gpio.Level(value&(1<<i) != 0)))
	}
}

// ReadData implements hd44780.Port.
func (p *Port) ReadData() byte {
	var v byte
	for i, pin := range p.data {
		if pin.Read() == gpio.High {
			v |= 1 << i
		}
	}
	return v
}

// SetLine implements hd44780.Port.
func (p *Port) SetLine(line hd44780.Line, high bool) {
	p.keep(p.ctrl[line].Out(gpio.Level(high)))
}

// Err returns the first pin error seen since Configure. The Port interface
// has no error returns on the hot path, so failures are collected here.
func (p *Port) Err() error { return p.err }

func (p *Port) keep(err error) {
	if err != nil && p.err == nil {
		p.err = err
	}
}
