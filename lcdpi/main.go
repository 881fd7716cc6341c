//go:build linux

// Lcdpi prints text on an HD44780 LCD wired to a Raspberry Pi's GPIO
// header over the 8-bit parallel bus.
//
//	lcdpi -row 0 -col 5 locked
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"periph.io/x/host/v3"

	"github.com/harveysanders/picolock/smartlock/hd44780"
	"github.com/harveysanders/picolock/smartlock/hd44780/periphport"
)

var (
	verbose  = flag.Bool("v", false, "enable verbose (debug) logging")
	jsonLog  = flag.Bool("json", false, "use JSON log format")
	row      = flag.Uint("row", 0, "cursor row (0 or 1)")
	col      = flag.Uint("col", 0, "cursor column")
	clearLCD = flag.Bool("clear", true, "clear the display first")
	rs       = flag.Uint("rs", 21, "GPIO of RS")
	rw       = flag.Uint("rw", 22, "GPIO of RW")
	en       = flag.Uint("e", 25, "GPIO of E")
	d0       = flag.Uint("d0", 12, "GPIO of D0; D1-D7 follow it")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] text\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if *jsonLog {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)

	text := strings.Join(flag.Args(), " ")
	if text == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(logger, text); err != nil {
		logger.Error("lcdpi", slog.Any("reason", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, text string) error {
	pins, err := pinsFromFlags(*rs, *rw, *en, *d0)
	if err != nil {
		return err
	}
	r, err := flagByte("row", *row)
	if err != nil {
		return err
	}
	c, err := flagByte("col", *col)
	if err != nil {
		return err
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}

	port := periphport.New()
	lcd := hd44780.New(port)
	err = lcd.Configure(hd44780.Config{
		Pins:   pins,
		Logger: logger,
		// Linux scheduling makes microsecond sleeps coarse; allow the
		// busy-wait more headroom.
		BusyTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		return err
	}
	if *clearLCD {
		if err := lcd.ClearDisplay(); err != nil {
			return err
		}
	}
	if err := lcd.SetCursorLocation(r, c); err != nil {
		return err
	}
	if err := lcd.PrintString(text); err != nil {
		return err
	}
	return port.Err()
}

// flagByte narrows a flag value without wrapping.
func flagByte(name string, v uint) (uint8, error) {
	if v > math.MaxUint8 {
		return 0, fmt.Errorf("%w: -%s %d out of range", hd44780.ErrInvalidInput, name, v)
	}
	return uint8(v), nil
}

// pinsFromFlags builds the wiring, rejecting GPIO numbers that do not fit
// a Pin, including a data field running past the last one.
func pinsFromFlags(rs, rw, e, d0 uint) (hd44780.PinAssignment, error) {
	var p [4]uint8
	for i, f := range [...]struct {
		name string
		v    uint
	}{{"rs", rs}, {"rw", rw}, {"e", e}, {"d0", d0}} {
		b, err := flagByte(f.name, f.v)
		if err != nil {
			return hd44780.PinAssignment{}, err
		}
		p[i] = b
	}
	if d0 > math.MaxUint8-7 {
		return hd44780.PinAssignment{}, fmt.Errorf("%w: -d0 %d leaves no room for D7", hd44780.ErrInvalidInput, d0)
	}
	return hd44780.ContiguousPins(hd44780.Pin(p[0]), hd44780.Pin(p[1]), hd44780.Pin(p[2]), hd44780.Pin(p[3])), nil
}
