// Package hd44780 drives an HD44780 character LCD over an 8-bit parallel
// bus by toggling GPIOs directly.
//
// The package has two layers. Bus owns the pins and guards the shared data
// lines (direction switching, raw reads and writes, the busy flag read).
// Device encodes instructions and runs each one through the write, pulse,
// wait-not-busy protocol, exposing the small API the rest of the firmware uses.
//
// Example usage:
//
//	lcd := hd44780.New(hd44780.NewGPIOPort())
//	err := lcd.Configure(hd44780.Config{
//	    Pins:   hd44780.ContiguousPins(16, 17, 18, 6), // RS, RW, E, D0
//	    Width:  16,
//	    Height: 2,
//	})
//	if err != nil {
//	    // pins could not be claimed or the controller never became ready
//	}
//	lcd.SetCursorLocation(0, 5)
//	lcd.PrintString("locked")
//
// Every busy-wait is bounded by Config.BusyTimeout; a controller that keeps
// the busy flag set yields ErrControllerUnresponsive instead of a hang.
package hd44780
