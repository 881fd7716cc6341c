package lcd

import (
	"fmt"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/hd44780i2c"

	"github.com/harveysanders/picolock/smartlock/hd44780"
)

// DefaultI2CAddress is the usual PCF8574 backpack address. Some boards
// ship at 0x3F instead.
const DefaultI2CAddress = 0x27

// I2CDisplay adapts an LCD behind an I2C backpack to Display, for boards
// wired without the parallel bus.
type I2CDisplay struct {
	dev    hd44780i2c.Device
	width  uint8
	height uint8
}

// NewI2CDisplay configures the backpack at addr (0 means DefaultI2CAddress).
func NewI2CDisplay(bus drivers.I2C, addr uint8, width, height uint8) (*I2CDisplay, error) {
	if addr == 0 {
		addr = DefaultI2CAddress
	}
	dev := hd44780i2c.New(bus, addr)
	err := dev.Configure(hd44780i2c.Config{
		Width:  width,
		Height: height,
	})
	if err != nil {
		return nil, fmt.Errorf("configure lcd at 0x%02x: %w", addr, err)
	}
	return &I2CDisplay{dev: dev, width: width, height: height}, nil
}

// ClearDisplay implements Display.
func (d *I2CDisplay) ClearDisplay() error {
	d.dev.ClearDisplay()
	return nil
}

// SetCursorLocation implements Display.
func (d *I2CDisplay) SetCursorLocation(row, column uint8) error {
	if row >= d.height || column >= d.width {
		return fmt.Errorf("%w: row %d column %d", hd44780.ErrInvalidInput, row, column)
	}
	d.dev.SetCursor(column, row)
	return nil
}

// Print implements Display.
func (d *I2CDisplay) Print(text []byte) error {
	if len(text) == 0 {
		return fmt.Errorf("%w: empty string", hd44780.ErrInvalidInput)
	}
	d.dev.Print(text)
	return nil
}

// Size implements Display.
func (d *I2CDisplay) Size() (width, height uint8) { return d.width, d.height }
