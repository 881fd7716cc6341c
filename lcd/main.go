//go:build tinygo

// Lcd prints a greeting on a 16x2 LCD wired to the 8-bit parallel bus.
package main

import (
	"log/slog"
	"machine"
	"time"

	"github.com/harveysanders/picolock/smartlock/hd44780"
)

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	lcd := hd44780.New(hd44780.NewGPIOPort())
	err := lcd.Configure(hd44780.Config{
		Pins:     hd44780.ContiguousPins(16, 17, 18, 6), // RS, RW, E, D0
		Width:    16,
		Height:   2,
		CursorOn: true,
		Logger:   logger,
	})
	if err != nil {
		for {
			println("could not configure LCD:", err.Error())
			time.Sleep(time.Second)
		}
	}

	lcd.SetCursorLocation(0, 0)
	lcd.PrintString("Hello from")
	lcd.SetCursorLocation(1, 0)
	lcd.PrintString("TinyGo")

	// Keep main() running
	for {
		println("done..")
		time.Sleep(time.Second * 5)
	}
}
