package lock

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/harveysanders/picolock/smartlock/lcd"
)

type fakeActuator struct {
	states  []State
	failOn  State
	failErr error
}

func (a *fakeActuator) SetState(s State) error {
	if a.failErr != nil && s == a.failOn {
		return a.failErr
	}
	a.states = append(a.states, s)
	return nil
}

type fakeScreen struct{ lines []string }

func (s *fakeScreen) Send(msg lcd.Message) bool {
	s.lines = append(s.lines, string(msg.Line1))
	return true
}

type fakeRecorder struct{ n uint32 }

func (r *fakeRecorder) RecordUnlock() (uint32, error) {
	r.n++
	return r.n, nil
}

func newTestController(events chan Event) (*Controller, *fakeActuator, *fakeScreen) {
	act := &fakeActuator{}
	scr := &fakeScreen{}
	c := NewController(Config{
		Actuator: act,
		Screen:   scr,
		Recorder: &fakeRecorder{},
		Events:   events,
		Hold:     10 * time.Millisecond,
	})
	return c, act, scr
}

func TestStateString(t *testing.T) {
	if Closed.String() != "locked" {
		t.Errorf("Closed.String() = %q, want locked", Closed.String())
	}
	if Open.String() != "unlocked" {
		t.Errorf("Open.String() = %q, want unlocked", Open.String())
	}
}

func TestInit(t *testing.T) {
	events := make(chan Event, 4)
	c, act, scr := newTestController(events)

	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !reflect.DeepEqual(act.states, []State{Closed}) {
		t.Errorf("actuator: expected [Closed], got %v", act.states)
	}
	if !reflect.DeepEqual(scr.lines, []string{"locked"}) {
		t.Errorf("screen: expected [locked], got %q", scr.lines)
	}
	ev := <-events
	if ev.State != Closed || ev.Source != SourceBoot {
		t.Errorf("event: expected closed/boot, got %v/%v", ev.State, ev.Source)
	}
}

func TestUnlockSequence(t *testing.T) {
	events := make(chan Event, 4)
	c, act, scr := newTestController(events)

	start := time.Now()
	if err := c.Unlock(context.Background(), SourceButton); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("latch held for %v, want at least 10ms", elapsed)
	}

	if !reflect.DeepEqual(act.states, []State{Open, Closed}) {
		t.Errorf("actuator: expected [Open Closed], got %v", act.states)
	}
	if !reflect.DeepEqual(scr.lines, []string{"unlocked", "locked"}) {
		t.Errorf("screen: expected [unlocked locked], got %q", scr.lines)
	}
	if c.State() != Closed {
		t.Errorf("State() = %v, want Closed", c.State())
	}

	opened, closed := <-events, <-events
	if opened.State != Open || opened.Source != SourceButton || opened.Count != 1 {
		t.Errorf("first event: got %+v", opened)
	}
	if closed.State != Closed || closed.Source != SourceButton {
		t.Errorf("second event: got %+v", closed)
	}
	if closed.SinceBoot < opened.SinceBoot {
		t.Errorf("events out of order: %v then %v", opened.SinceBoot, closed.SinceBoot)
	}
}

func TestUnlockCancelledDuringHold(t *testing.T) {
	act := &fakeActuator{}
	c := NewController(Config{Actuator: act, Hold: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.Unlock(ctx, SourceNetwork)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Unlock() = %v, want DeadlineExceeded", err)
	}
	if c.State() != Closed {
		t.Error("latch left open after cancellation")
	}
}

func TestUnlockActuatorFailure(t *testing.T) {
	act := &fakeActuator{failOn: Open, failErr: errors.New("stall")}
	scr := &fakeScreen{}
	c := NewController(Config{Actuator: act, Screen: scr, Hold: time.Millisecond})

	err := c.Unlock(context.Background(), SourceButton)
	if !errors.Is(err, ErrActuator) {
		t.Fatalf("Unlock() = %v, want ErrActuator", err)
	}
	if !reflect.DeepEqual(act.states, []State{Closed}) {
		t.Errorf("actuator: expected [Closed], got %v", act.states)
	}
	if got := scr.lines[len(scr.lines)-1]; got != "locked" {
		t.Errorf("screen left at %q", got)
	}
}

func TestRunCoalescesRequests(t *testing.T) {
	events := make(chan Event, 8)
	c, act, _ := newTestController(events)

	requests := make(chan Request, 4)
	requests <- Request{Source: SourceButton}
	requests <- Request{Source: SourceNetwork}
	requests <- Request{Source: SourceButton}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, requests) }()

	for ev := range events {
		if ev.State == Closed {
			break
		}
	}
	// Give Run a moment to drain.
	time.Sleep(5 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if !reflect.DeepEqual(act.states, []State{Open, Closed}) {
		t.Errorf("actuator: expected one unlock, got %v", act.states)
	}
	if len(requests) != 0 {
		t.Errorf("%d requests left queued", len(requests))
	}
}

func TestEventsDropWhenFull(t *testing.T) {
	events := make(chan Event)
	c, _, _ := newTestController(events)

	done := make(chan error, 1)
	go func() { done <- c.Unlock(context.Background(), SourceButton) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Unlock failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Unlock blocked on a full event channel")
	}
}
