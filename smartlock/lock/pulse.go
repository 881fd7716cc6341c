package lock

import "time"

// Servo drive of the latch: 50 Hz frame, duty cycle per position.
const (
	ServoFrequencyHz  = 50
	OpenDutyPercent   = 9.5
	ClosedDutyPercent = 2.5
)

// PulseWidth converts a PWM duty cycle at frequencyHz into the high time
// of one frame. 9.5% at 50 Hz is 1.9ms.
func PulseWidth(dutyPercent float64, frequencyHz uint32) time.Duration {
	if frequencyHz == 0 {
		return 0
	}
	period := float64(time.Second) / float64(frequencyHz)
	return time.Duration(period * dutyPercent / 100)
}

// DutyPercent is the inverse of PulseWidth.
func DutyPercent(pulse time.Duration, frequencyHz uint32) float64 {
	period := float64(time.Second) / float64(frequencyHz)
	return float64(pulse) / period * 100
}
