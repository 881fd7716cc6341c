// Package lock sequences the latch: it drives the actuator, keeps the
// display in step, and serialises unlock requests from the button and the
// network.
package lock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/harveysanders/picolock/smartlock/lcd"
)

// DefaultHold is how long the latch stays open.
const DefaultHold = 4 * time.Second

var ErrActuator = errors.New("lock: actuator failed")

// State is the latch position.
type State uint8

const (
	Closed State = iota
	Open
)

// String returns the text shown on the display for s.
func (s State) String() string {
	if s == Open {
		return "unlocked"
	}
	return "locked"
}

// Source identifies what asked for a transition.
type Source string

const (
	SourceBoot    Source = "boot"
	SourceButton  Source = "button"
	SourceNetwork Source = "network"
)

// Actuator moves the latch.
type Actuator interface {
	SetState(State) error
}

// Screen shows lock status. *lcd.Handler satisfies it.
type Screen interface {
	Send(msg lcd.Message) bool
}

// Recorder persists the unlock count. *settings.Store satisfies it.
type Recorder interface {
	RecordUnlock() (uint32, error)
}

// Request asks the controller to run one unlock sequence.
type Request struct {
	Source Source
}

// Event reports a completed transition.
type Event struct {
	State  State
	Source Source
	// Count is the persisted unlock count, zero when no Recorder is set.
	Count uint32
	// SinceBoot is the time since the controller was created.
	SinceBoot time.Duration
}

// Config configures a Controller. Actuator is required.
type Config struct {
	Actuator Actuator
	Screen   Screen
	Recorder Recorder
	// Events receives every transition. Sends never block; events are
	// dropped when the channel is full.
	Events chan<- Event
	// Hold is how long the latch stays open (default DefaultHold).
	Hold   time.Duration
	Logger *slog.Logger
}

// Controller owns the latch. Unlock and Run must not be called concurrently.
type Controller struct {
	actuator Actuator
	screen   Screen
	recorder Recorder
	events   chan<- Event
	hold     time.Duration
	logger   *slog.Logger
	boot     time.Time
	state    State
	count    uint32
}

// NewController returns a controller. Call Init before use.
func NewController(cfg Config) *Controller {
	if cfg.Hold <= 0 {
		cfg.Hold = DefaultHold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return &Controller{
		actuator: cfg.Actuator,
		screen:   cfg.Screen,
		recorder: cfg.Recorder,
		events:   cfg.Events,
		hold:     cfg.Hold,
		logger:   cfg.Logger,
		boot:     time.Now(),
	}
}

// State returns the last commanded latch position.
func (c *Controller) State() State { return c.state }

// Init closes the latch and shows "locked".
func (c *Controller) Init() error {
	if err := c.set(Closed); err != nil {
		return err
	}
	c.show(Closed)
	c.emit(Closed, SourceBoot)
	c.logger.Info("lock:init", slog.Duration("hold", c.hold))
	return nil
}

// Unlock shows "unlocked", opens the latch, holds it, closes it and shows
// "locked". The latch is closed even if ctx is cancelled during the hold.
func (c *Controller) Unlock(ctx context.Context, source Source) error {
	c.logger.Info("lock:unlock", slog.String("source", string(source)))
	c.show(Open)
	if err := c.set(Open); err != nil {
		// Best effort: leave the latch closed and say so.
		c.set(Closed)
		c.show(Closed)
		return err
	}
	if c.recorder != nil {
		n, err := c.recorder.RecordUnlock()
		if err != nil {
			c.logger.Error("lock:record", slog.String("err", err.Error()))
		}
		c.count = n
	}
	c.emit(Open, source)

	timer := time.NewTimer(c.hold)
	var ctxErr error
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		ctxErr = ctx.Err()
	}

	if err := c.set(Closed); err != nil {
		return err
	}
	c.show(Closed)
	c.emit(Closed, source)
	return ctxErr
}

// Run performs an unlock for each request until ctx is done. Requests that
// queue up while the latch is open are absorbed by that unlock.
func (c *Controller) Run(ctx context.Context, requests <-chan Request) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-requests:
			if err := c.Unlock(ctx, req.Source); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("lock:unlock-failed", slog.String("err", err.Error()))
			}
			c.drain(requests)
		}
	}
}

func (c *Controller) drain(requests <-chan Request) {
	for {
		select {
		case req := <-requests:
			c.logger.Debug("lock:coalesced", slog.String("source", string(req.Source)))
		default:
			return
		}
	}
}

func (c *Controller) set(s State) error {
	if err := c.actuator.SetState(s); err != nil {
		c.logger.Error("lock:actuator", slog.String("state", s.String()), slog.String("err", err.Error()))
		return fmt.Errorf("%w: %s: %v", ErrActuator, s, err)
	}
	c.state = s
	return nil
}

func (c *Controller) show(s State) {
	if c.screen == nil {
		return
	}
	c.screen.Send(lcd.Message{Line1: []byte(s.String())})
}

func (c *Controller) emit(s State, source Source) {
	if c.events == nil {
		return
	}
	ev := Event{
		State:     s,
		Source:    source,
		Count:     c.count,
		SinceBoot: time.Since(c.boot),
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("lock:event-dropped", slog.String("state", s.String()))
	}
}
