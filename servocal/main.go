//go:build tinygo

// Servocal swings the latch servo between its closed and open positions
// so the horn can be mounted and the pulse widths checked.
package main

import (
	"machine"
	"time"

	"github.com/harveysanders/picolock/smartlock/lock"
)

func main() {
	servo := machine.GP14

	// GP14/GP15 are driven by PWM slice 7 on the RP2350/RP2040.
	pwm := machine.PWM7
	err := pwm.Configure(machine.PWMConfig{
		// 50 Hz frame; the RP2 divider reaches 20ms comfortably.
		Period: uint64(time.Second / lock.ServoFrequencyHz),
	})
	if err != nil {
		println("could not configure PWM:", err.Error())
		return
	}

	ch, err := pwm.Channel(servo)
	if err != nil {
		println("could not get channel for pin:", err.Error())
		return
	}

	open := lock.PulseWidth(lock.OpenDutyPercent, lock.ServoFrequencyHz)
	closed := lock.PulseWidth(lock.ClosedDutyPercent, lock.ServoFrequencyHz)
	actuator := lock.NewPWMActuator(pwm, ch, open, closed)

	state := lock.Closed
	for {
		if err := actuator.SetState(state); err != nil {
			println("set state:", err.Error())
		}
		println(state.String(), "pulse(us):", int64(pulseFor(state, open, closed)/time.Microsecond))
		time.Sleep(2 * time.Second)
		if state == lock.Closed {
			state = lock.Open
		} else {
			state = lock.Closed
		}
	}
}

func pulseFor(s lock.State, open, closed time.Duration) time.Duration {
	if s == lock.Open {
		return open
	}
	return closed
}
