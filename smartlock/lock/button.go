package lock

import (
	"context"
	"time"
)

// DefaultPollInterval is how often the button is sampled.
const DefaultPollInterval = 25 * time.Millisecond

// Button turns presses of an active-high push button into unlock requests.
type Button struct {
	read     func() bool
	interval time.Duration
	pressed  bool
}

// NewButton returns a button sampled by read, typically machine.Pin.Get.
func NewButton(read func() bool, interval time.Duration) *Button {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Button{read: read, interval: interval}
}

// Poll samples the button once and reports a press (a low to high edge).
// Holding the button down produces one press.
func (b *Button) Poll() bool {
	level := b.read()
	press := level && !b.pressed
	b.pressed = level
	return press
}

// Run polls until ctx is done, queuing a SourceButton request for each
// press. A press is dropped when the queue is full. A button already held
// when Run starts does not count as a press.
func (b *Button) Run(ctx context.Context, requests chan<- Request) error {
	b.pressed = b.read()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !b.Poll() {
				continue
			}
			select {
			case requests <- Request{Source: SourceButton}:
			default:
			}
		}
	}
}
