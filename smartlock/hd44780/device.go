package hd44780

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Default timing. Clear and home take about 1.5ms on the part; the
// busy-wait absorbs that by polling.
const (
	DefaultEnablePulse  = 1 * time.Microsecond
	DefaultSettleTime   = 1 * time.Microsecond
	DefaultPollInterval = 5 * time.Microsecond
	DefaultBusyTimeout  = 50 * time.Millisecond
)

// Row start addresses in DDRAM. Each row holds 40 characters.
const (
	row0Address uint8 = 0x00
	row1Address uint8 = 0x40

	ddramLineLength = 40
)

// Config configures a Device. Zero fields take defaults.
type Config struct {
	Pins PinAssignment

	// Width is the number of visible columns (default 16).
	Width uint8
	// Height is the number of display lines, 1 or 2 (default 2).
	Height uint8
	// LineLength is the longest string PrintString accepts (default 20).
	LineLength uint8

	CursorOn    bool
	CursorBlink bool

	// EnablePulse is how long E is held high to latch a byte.
	EnablePulse time.Duration
	// SettleTime is how long E is held high before sampling the busy flag.
	SettleTime time.Duration
	// PollInterval is the pause between busy flag reads.
	PollInterval time.Duration
	// BusyTimeout bounds each busy-wait.
	BusyTimeout time.Duration

	Clock  Clock
	Logger *slog.Logger
}

// Device drives an HD44780 over an 8-bit parallel bus. It is the sole
// owner of the bus pins and must be used from one goroutine at a time.
type Device struct {
	port   Port
	bus    *Bus
	cfg    Config
	clock  Clock
	logger *slog.Logger
}

// New returns a device on port. Call Configure before use.
func New(port Port) *Device {
	return &Device{port: port}
}

// Configure claims the bus and runs the initialization sequence: wait for
// the power-on busy flag, clear, 8-bit function set, display on with the
// configured cursor, increment without shift.
func (d *Device) Configure(cfg Config) error {
	if cfg.Width == 0 {
		cfg.Width = 16
	}
	if cfg.Height == 0 {
		cfg.Height = 2
	}
	if cfg.LineLength == 0 {
		cfg.LineLength = 20
	}
	if cfg.EnablePulse == 0 {
		cfg.EnablePulse = DefaultEnablePulse
	}
	if cfg.SettleTime == 0 {
		cfg.SettleTime = DefaultSettleTime
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = DefaultBusyTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	if cfg.Height > 2 {
		return fmt.Errorf("%w: height %d", ErrInvalidInput, cfg.Height)
	}
	if cfg.Width > ddramLineLength {
		return fmt.Errorf("%w: width %d", ErrInvalidInput, cfg.Width)
	}
	if cfg.LineLength > ddramLineLength {
		return fmt.Errorf("%w: line length %d", ErrInvalidInput, cfg.LineLength)
	}

	d.cfg = cfg
	d.clock = cfg.Clock
	d.logger = cfg.Logger
	d.bus = NewBus(d.port, cfg.Clock, cfg.SettleTime)

	if err := d.bus.Configure(cfg.Pins); err != nil {
		d.logger.Error("hd44780:configure-failed", slog.String("err", err.Error()))
		return err
	}

	start := d.clock.Now()
	if err := d.waitReady(); err != nil {
		return err
	}
	if err := d.ClearDisplay(); err != nil {
		return err
	}
	if err := d.FunctionSet(true, cfg.Height == 2, false); err != nil {
		return err
	}
	if err := d.DisplayControl(true, cfg.CursorOn, cfg.CursorBlink); err != nil {
		return err
	}
	if err := d.EntryModeSet(true, false); err != nil {
		return err
	}
	d.logger.Info("hd44780:init",
		slog.Int("width", int(cfg.Width)),
		slog.Int("height", int(cfg.Height)),
		slog.Duration("duration", d.clock.Now().Sub(start)),
	)
	return nil
}

// Size returns the configured columns and lines.
func (d *Device) Size() (width, height uint8) {
	return d.cfg.Width, d.cfg.Height
}

// Bus exposes the underlying bus layer.
func (d *Device) Bus() *Bus { return d.bus }

// ClearDisplay blanks the display and resets the address to 0.
func (d *Device) ClearDisplay() error { return d.command(Clear) }

// ReturnHome resets the address and display shift without clearing.
func (d *Device) ReturnHome() error { return d.command(Home) }

// EntryModeSet selects increment or decrement and whether writes shift the display.
func (d *Device) EntryModeSet(increment, shiftDisplay bool) error {
	return d.command(EntryMode(increment, shiftDisplay))
}

// DisplayControl switches the display, cursor and blink.
func (d *Device) DisplayControl(displayOn, cursorOn, blinkOn bool) error {
	return d.command(DisplayOnOff(displayOn, cursorOn, blinkOn))
}

// CursorOrDisplayShift moves the cursor, or the visible window when
// shiftDisplay is true, one position left or right.
func (d *Device) CursorOrDisplayShift(shiftDisplay, shiftRight bool) error {
	return d.command(CursorShift(shiftDisplay, shiftRight))
}

// FunctionSet selects bus width, line count and font. Only the 8-bit bus
// is wired; other combinations are sent as encoded.
func (d *Device) FunctionSet(eightBitBus, twoLines, tallFont bool) error {
	return d.command(FunctionMode(eightBitBus, twoLines, tallFont))
}

// SetDDRAMAddress sets where the next character is written.
func (d *Device) SetDDRAMAddress(addr uint8) error {
	return d.command(DDRAMAddress(addr))
}

// SetCGRAMAddress is not implemented: custom glyphs are not uploaded.
func (d *Device) SetCGRAMAddress(addr uint8) error {
	return ErrNotSupported
}

// WriteCharacter writes one character code at the current address.
func (d *Device) WriteCharacter(c byte) error {
	return d.execute(rsData, c)
}

// ReadCharacter is not implemented: RAM readback is not wired.
func (d *Device) ReadCharacter() (byte, error) {
	return 0, ErrNotSupported
}

// PrintString writes text from the current address. It does not wrap or
// clear; position the cursor first.
func (d *Device) PrintString(text string) error {
	if !d.configured() {
		return ErrNotConfigured
	}
	if err := d.checkLength(len(text)); err != nil {
		return err
	}
	for i := 0; i < len(text); i++ {
		if err := d.WriteCharacter(text[i]); err != nil {
			return err
		}
	}
	return nil
}

// Print is PrintString for a byte slice.
func (d *Device) Print(text []byte) error {
	if !d.configured() {
		return ErrNotConfigured
	}
	if err := d.checkLength(len(text)); err != nil {
		return err
	}
	for _, c := range text {
		if err := d.WriteCharacter(c); err != nil {
			return err
		}
	}
	return nil
}

// SetCursorLocation moves the address to row (0 or 1) and column.
func (d *Device) SetCursorLocation(row, column uint8) error {
	if !d.configured() {
		return ErrNotConfigured
	}
	if row > 1 || row >= d.cfg.Height {
		return fmt.Errorf("%w: row %d", ErrInvalidInput, row)
	}
	if column >= d.cfg.Width {
		return fmt.Errorf("%w: column %d", ErrInvalidInput, column)
	}
	return d.SetDDRAMAddress(CursorAddress(row, column))
}

// CursorAddress returns the DDRAM address of a row and column.
func CursorAddress(row, column uint8) uint8 {
	if row == 0 {
		return row0Address + column
	}
	return row1Address + column
}

func (d *Device) configured() bool {
	return d.bus != nil && d.bus.Configured()
}

func (d *Device) checkLength(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: empty string", ErrInvalidInput)
	}
	if n > int(d.cfg.LineLength) {
		return fmt.Errorf("%w: %d characters exceeds line length %d", ErrInvalidInput, n, d.cfg.LineLength)
	}
	return nil
}

func (d *Device) command(i Instruction) error {
	if d.logger != nil && d.logger.Enabled(context.Background(), slog.LevelDebug) {
		d.logger.Debug("hd44780:instruction", slog.String("instr", i.String()))
	}
	return d.execute(rsCommand, byte(i))
}

// execute latches value into the register selected by rs and waits until
// the controller reports ready.
func (d *Device) execute(rs bool, value byte) error {
	if !d.configured() {
		return ErrNotConfigured
	}
	d.bus.drive(LineRS, rs)
	d.bus.drive(LineRW, rwWrite)
	if err := d.bus.SetDirection(Output); err != nil {
		return err
	}
	if err := d.bus.WriteByte(value); err != nil {
		return err
	}
	d.bus.drive(LineE, true)
	d.clock.Sleep(d.cfg.EnablePulse)
	d.bus.drive(LineE, false)

	d.bus.drive(LineRS, rsCommand)
	d.bus.drive(LineRW, rwRead)
	if err := d.bus.SetDirection(Input); err != nil {
		return err
	}
	return d.waitReady()
}

// waitReady polls the busy flag until it clears or BusyTimeout passes.
func (d *Device) waitReady() error {
	deadline := d.clock.Now().Add(d.cfg.BusyTimeout)
	for polls := 1; ; polls++ {
		busy, err := d.bus.PollBusy()
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		if !d.clock.Now().Before(deadline) {
			d.logger.Error("hd44780:busy-timeout",
				slog.Int("polls", polls),
				slog.Duration("timeout", d.cfg.BusyTimeout),
			)
			return ErrControllerUnresponsive
		}
		d.clock.Sleep(d.cfg.PollInterval)
	}
}
