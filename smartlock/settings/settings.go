// Package settings holds the lock's tunable parameters and unlock counter,
// persisted as a fixed-size binary record on flash.
package settings

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// CurrentVersion is the record format version. Records with any other
// version are ignored and replaced by defaults.
const CurrentVersion uint16 = 1

// RecordSize is the encoded size of Settings.
const RecordSize = 16

// Defaults.
const (
	DefaultHoldMillis        = 4000
	DefaultOpenPulseMicros   = 1900
	DefaultClosedPulseMicros = 500
)

// Servo pulse limits accepted by Validate.
const (
	minPulseMicros = 400
	maxPulseMicros = 2600
)

var (
	ErrInvalidSize     = errors.New("invalid settings size")
	ErrInvalidSettings = errors.New("invalid settings")
)

// Settings is the persisted lock configuration.
//
// Layout (little-endian):
//
//	[0:2]   Version
//	[2:4]   HoldMillis
//	[4:6]   OpenPulseMicros
//	[6:8]   ClosedPulseMicros
//	[8:12]  UnlockCount
//	[12:16] reserved, zero
type Settings struct {
	Version           uint16
	HoldMillis        uint16
	OpenPulseMicros   uint16
	ClosedPulseMicros uint16
	UnlockCount       uint32
}

// Default returns the factory settings.
func Default() Settings {
	return Settings{
		Version:           CurrentVersion,
		HoldMillis:        DefaultHoldMillis,
		OpenPulseMicros:   DefaultOpenPulseMicros,
		ClosedPulseMicros: DefaultClosedPulseMicros,
	}
}

// Hold is how long the latch stays open after an unlock.
func (s Settings) Hold() time.Duration {
	return time.Duration(s.HoldMillis) * time.Millisecond
}

// OpenPulse is the servo pulse width for the open position.
func (s Settings) OpenPulse() time.Duration {
	return time.Duration(s.OpenPulseMicros) * time.Microsecond
}

// ClosedPulse is the servo pulse width for the closed position.
func (s Settings) ClosedPulse() time.Duration {
	return time.Duration(s.ClosedPulseMicros) * time.Microsecond
}

// Validate checks the tunables are usable by the actuator.
func (s Settings) Validate() error {
	if s.HoldMillis == 0 {
		return fmt.Errorf("%w: zero hold time", ErrInvalidSettings)
	}
	for _, p := range [...]uint16{s.OpenPulseMicros, s.ClosedPulseMicros} {
		if p < minPulseMicros || p > maxPulseMicros {
			return fmt.Errorf("%w: pulse %dµs outside %d-%dµs", ErrInvalidSettings, p, minPulseMicros, maxPulseMicros)
		}
	}
	if s.OpenPulseMicros == s.ClosedPulseMicros {
		return fmt.Errorf("%w: open and closed pulses are equal", ErrInvalidSettings)
	}
	return nil
}

// MarshalBinary encodes the record.
func (s *Settings) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint16(buf[0:], s.Version)
	binary.LittleEndian.PutUint16(buf[2:], s.HoldMillis)
	binary.LittleEndian.PutUint16(buf[4:], s.OpenPulseMicros)
	binary.LittleEndian.PutUint16(buf[6:], s.ClosedPulseMicros)
	binary.LittleEndian.PutUint32(buf[8:], s.UnlockCount)
	return buf, nil
}

// UnmarshalBinary decodes the record.
func (s *Settings) UnmarshalBinary(data []byte) error {
	if len(data) < RecordSize {
		return ErrInvalidSize
	}
	s.Version = binary.LittleEndian.Uint16(data[0:])
	s.HoldMillis = binary.LittleEndian.Uint16(data[2:])
	s.OpenPulseMicros = binary.LittleEndian.Uint16(data[4:])
	s.ClosedPulseMicros = binary.LittleEndian.Uint16(data[6:])
	s.UnlockCount = binary.LittleEndian.Uint32(data[8:])
	return nil
}
