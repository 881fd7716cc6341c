package lock

import (
	"fmt"
	"time"
)

// PWM is the part of a PWM slice the actuator needs. The slice must
// already be configured with a 20ms period.
type PWM interface {
	Top() uint32
	Set(channel uint8, value uint32)
}

// PWMActuator drives a hobby servo from a raw PWM channel.
type PWMActuator struct {
	pwm     PWM
	channel uint8
	period  time.Duration
	open    time.Duration
	closed  time.Duration
}

// NewPWMActuator returns an actuator on channel of pwm, whose period
// is 1/ServoFrequencyHz. open and closed are the pulse widths of the two
// positions.
func NewPWMActuator(pwm PWM, channel uint8, open, closed time.Duration) *PWMActuator {
	return &PWMActuator{
		pwm:     pwm,
		channel: channel,
		period:  time.Second / ServoFrequencyHz,
		open:    open,
		closed:  closed,
	}
}

// SetState implements Actuator.
func (a *PWMActuator) SetState(s State) error {
	pulse := a.closed
	if s == Open {
		pulse = a.open
	}
	if pulse <= 0 || pulse >= a.period {
		return fmt.Errorf("pulse %v outside period %v", pulse, a.period)
	}
	a.pwm.Set(a.channel, Duty(a.pwm.Top(), pulse, a.period))
	return nil
}

// Duty returns the counter compare value that holds the output high for
// pulse out of every period.
func Duty(top uint32, pulse, period time.Duration) uint32 {
	return uint32(uint64(top) * uint64(pulse) / uint64(period))
}
