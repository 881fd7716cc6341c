//go:build tinygo

package lock

import (
	"fmt"
	"machine"
	"time"

	"tinygo.org/x/drivers/servo"
)

// ServoActuator drives the latch servo through the tinygo servo driver.
type ServoActuator struct {
	servo  servo.Servo
	open   int16
	closed int16
}

// NewServoActuator configures pwm for a 50 Hz servo on pin. On the RP2040
// GP14 and GP15 share slice machine.PWM7.
func NewServoActuator(pwm servo.PWM, pin machine.Pin, open, closed time.Duration) (*ServoActuator, error) {
	s, err := servo.New(pwm, pin)
	if err != nil {
		return nil, fmt.Errorf("servo on pin %d: %w", pin, err)
	}
	return &ServoActuator{
		servo:  s,
		open:   int16(open / time.Microsecond),
		closed: int16(closed / time.Microsecond),
	}, nil
}

// SetState implements Actuator.
func (a *ServoActuator) SetState(s State) error {
	if s == Open {
		a.servo.SetMicroseconds(a.open)
	} else {
		a.servo.SetMicroseconds(a.closed)
	}
	return nil
}
