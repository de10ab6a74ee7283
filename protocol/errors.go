package protocol

import "fmt"

// ReplyMismatchError indicates that a reply packet's leading code did not
// match the code expected for the request. The wire protocol has no
// request-id correlation, so a mismatch means the session is desynchronized;
// the caller should treat it as unreliable and reopen.
type ReplyMismatchError struct {
	// Expected is the reply code the request maps to
	Expected ReplyCode

	// Got is the leading byte actually received
	Got byte
}

func (e *ReplyMismatchError) Error() string {
	return fmt.Sprintf("reply mismatch: expected %s (0x%02X), got 0x%02X",
		e.Expected, byte(e.Expected), e.Got)
}

// DeviceError indicates a device-reported fault during a multi-packet
// transfer, signalled by a remaining-packets counter at or above
// RemainingPacketsError. The transfer must be aborted.
type DeviceError struct {
	// Remaining is the counter value the device reported
	Remaining byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device reported transfer fault: remaining-packets counter %d", e.Remaining)
}

// DroppedPacketError indicates the local remaining-packets integrity check
// failed: the device's counter did not match the count of packets still
// owed. A packet was dropped or duplicated on the wire.
type DroppedPacketError struct {
	// Expected is the count of packets still owed after the current one
	Expected int

	// Got is the counter value the device reported
	Got int
}

func (e *DroppedPacketError) Error() string {
	return fmt.Sprintf("remaining-packets mismatch: expected %d, got %d (packet dropped?)", e.Expected, e.Got)
}
