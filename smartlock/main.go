//go:build tinygo

// Smartlock is the Pico W door lock firmware: a push button or an MQTT
// "unlock" command opens the latch servo for a few seconds while the
// parallel LCD shows the lock state.
package main

import (
	"context"
	"log/slog"
	"machine"
	"net/netip"
	"time"

	"github.com/harveysanders/picolock/smartlock/cyw43439"
	"github.com/harveysanders/picolock/smartlock/hd44780"
	"github.com/harveysanders/picolock/smartlock/lcd"
	"github.com/harveysanders/picolock/smartlock/lock"
	"github.com/harveysanders/picolock/smartlock/mqtt"
	"github.com/harveysanders/picolock/smartlock/settings"
)

const (
	hostname      = "picolock"
	topicPrefix   = "picolock"
	serverAddrStr = "10.0.0.9:1883"
)

// Wiring. The LCD data lines D0-D7 sit on GP6-GP13.
const (
	lcdRS     = 16
	lcdRW     = 17
	lcdE      = 18
	lcdD0     = 6
	servoPin  = machine.GP14 // PWM slice 7
	buttonPin = machine.GP20
	ledPin    = machine.GP21
)

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	display, err := configureDisplay(logger)
	if err != nil {
		printErrForever(logger, "configure display", slog.Any("reason", err))
	}
	lcdMessages := make(chan lcd.Message, 10)
	screen := lcd.NewHandler(display, lcdMessages, logger)
	go screen.Run()

	cfg := settings.Default()
	var recorder lock.Recorder
	store, err := settings.Open(machine.Flash, logger)
	if err != nil {
		logger.Error("settings:open", slog.Any("reason", err))
	} else {
		recorder = store
		if cfg, err = store.Load(); err != nil {
			logger.Error("settings:load", slog.Any("reason", err))
		}
	}
	logger.Info("settings",
		slog.Duration("hold", cfg.Hold()),
		slog.Duration("open", cfg.OpenPulse()),
		slog.Duration("closed", cfg.ClosedPulse()),
		slog.Uint64("unlocks", uint64(cfg.UnlockCount)),
	)

	actuator, err := lock.NewServoActuator(machine.PWM7, servoPin, cfg.OpenPulse(), cfg.ClosedPulse())
	if err != nil {
		printErrForever(logger, "configure servo", slog.Any("reason", err))
	}

	// Buffered so a slow broker never stalls the latch.
	events := make(chan lock.Event, 10)
	requests := make(chan lock.Request, 4)

	ctrl := lock.NewController(lock.Config{
		Actuator: actuator,
		Screen:   screen,
		Recorder: recorder,
		Events:   events,
		Hold:     cfg.Hold(),
		Logger:   logger,
	})
	if err := ctrl.Init(); err != nil {
		printErrForever(logger, "init lock", slog.Any("reason", err))
	}

	ctx := context.Background()

	buttonPin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	button := lock.NewButton(buttonPin.Get, lock.DefaultPollInterval)
	go button.Run(ctx, requests)

	go runNetwork(ctx, logger, screen, events, requests)
	go blink(ledPin)

	if err := ctrl.Run(ctx, requests); err != nil {
		printErrForever(logger, "lock stopped", slog.Any("reason", err))
	}
}

// configureDisplay brings up the parallel LCD, falling back to an I2C
// backpack on GP4/GP5 when the parallel controller does not answer.
func configureDisplay(logger *slog.Logger) (lcd.Display, error) {
	dev := hd44780.New(hd44780.NewGPIOPort())
	err := dev.Configure(hd44780.Config{
		Pins:   hd44780.ContiguousPins(lcdRS, lcdRW, lcdE, lcdD0),
		Width:  16,
		Height: 2,
		Logger: logger,
	})
	if err == nil {
		return dev, nil
	}
	logger.Warn("lcd:parallel-failed", slog.Any("reason", err))

	err = machine.I2C0.Configure(machine.I2CConfig{
		SDA: machine.GP4,
		SCL: machine.GP5,
	})
	if err != nil {
		return nil, err
	}
	return lcd.NewI2CDisplay(machine.I2C0, lcd.DefaultI2CAddress, 16, 2)
}

// runNetwork joins WiFi and serves MQTT. The lock keeps working from the
// button when any of this fails.
func runNetwork(ctx context.Context, logger *slog.Logger, screen *lcd.Handler, events <-chan lock.Event, requests chan<- lock.Request) {
	status := func(s string) { screen.Send(lcd.Message{Line2: []byte(s)}) }

	stack, err := cyw43439.Connect(cyw43439.Config{
		SSID:     cyw43439.SSID(),
		Password: cyw43439.Password(),
		Hostname: hostname,
		Logger:   logger,
		OnStatus: status,
	})
	if err != nil {
		logger.Error("wifi:connect", slog.Any("reason", err))
		status("offline")
		return
	}
	go stack.Serve(ctx)

	if _, err := stack.SetupWithDHCP(netip.Addr{}); err != nil {
		logger.Error("dhcp", slog.Any("reason", err))
		status("no address")
		return
	}

	c := mqtt.Client{
		ID:                hostname,
		Logger:            logger,
		Timeout:           5 * time.Second,
		TCPBufSize:        2030, // MTU - ethhdr - iphdr - tcphdr
		HeartbeatInterval: 30 * time.Second,
		Topics:            mqtt.NewTopics(topicPrefix),
		Screen:            screen,
	}
	if err := c.Run(stack.Lneto(), serverAddrStr, events, requests); err != nil {
		logger.Error("mqtt", slog.Any("reason", err))
		status("mqtt error")
	}
}

func blink(led machine.Pin) {
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(50 * time.Millisecond)
		led.Low()
		time.Sleep(2 * time.Second)
	}
}

// printErrForever prints a string to serial @ 1hz. It blocks forever.
func printErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}
