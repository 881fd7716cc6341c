package hd44780

import "errors"

var (
	// ErrPinClaim is returned by Configure when the platform could not
	// reserve one of the assigned pins. It is not retried.
	ErrPinClaim = errors.New("hd44780: pin claim failed")

	// ErrInvalidInput is returned for out-of-range rows and columns and for
	// empty or over-length strings. No bus activity happens before it is returned.
	ErrInvalidInput = errors.New("hd44780: invalid input")

	// ErrControllerUnresponsive is returned when the busy flag does not clear
	// within the configured timeout.
	ErrControllerUnresponsive = errors.New("hd44780: controller unresponsive")

	// ErrNotSupported is returned by CGRAM addressing and RAM readback.
	ErrNotSupported = errors.New("hd44780: not supported")

	// ErrNotConfigured is returned by bus operations issued before Configure.
	ErrNotConfigured = errors.New("hd44780: bus not configured")

	// ErrBusDirection is returned when the data bus is read while driven
	// or written while released.
	ErrBusDirection = errors.New("hd44780: wrong bus direction")

	// ErrEnableHigh is returned when the bus direction is switched while
	// the enable line is high.
	ErrEnableHigh = errors.New("hd44780: enable is high")
)
