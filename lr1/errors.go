package lr1

import (
	"errors"
	"fmt"
)

// ErrNoCalibration is returned when a calibration-dependent operation runs
// on a session without a loaded calibration. Not every unit ships fully
// calibrated; callers must treat this as an expected condition.
var ErrNoCalibration = errors.New("no calibration loaded")

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("spectrometer session is closed")

// ErrTooManyPackets is returned before any I/O when the current frame
// format would require more packets than the protocol maximum per frame.
var ErrTooManyPackets = errors.New("frame requires more packets than the protocol maximum")

// TransportError wraps a USB I/O failure: timeout, bus error, or device
// unplugged. Generally retryable by the caller after reopening the session;
// the core never retries on its own.
type TransportError struct {
	// Op is the operation that failed
	Op string

	// Err is the underlying transport error
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RangeError indicates a flash access outside the device's address space.
// Rejected before any packet is sent.
type RangeError struct {
	// Offset is the requested absolute flash offset
	Offset int

	// Length is the requested transfer length in bytes
	Length int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("flash range out of bounds: offset %d, length %d (flash spans [0, 0x%X))",
		e.Offset, e.Length, flashSize)
}
