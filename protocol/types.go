package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// exposureUnitsPerMs converts the exposure time between milliseconds and the
// device's native unit of 10 microseconds.
const exposureUnitsPerMs = 100

// ScanMode selects how the device sequences scans within a capture.
type ScanMode byte

// Scan modes.
const (
	ScanContinuous     ScanMode = 0
	ScanIdle           ScanMode = 1
	ScanEveryFrameIdle ScanMode = 2
	ScanFrameAveraging ScanMode = 3
)

func (m ScanMode) String() string {
	switch m {
	case ScanContinuous:
		return "continuous"
	case ScanIdle:
		return "idle"
	case ScanEveryFrameIdle:
		return "every frame idle"
	case ScanFrameAveraging:
		return "frame averaging"
	}
	return fmt.Sprintf("unknown scan mode 0x%02X", byte(m))
}

// AverageMode selects on-device pixel binning for a frame.
type AverageMode byte

// Average (reduction) modes.
const (
	AverageNone AverageMode = 0
	Average2    AverageMode = 1
	Average4    AverageMode = 2
	Average8    AverageMode = 3
)

func (m AverageMode) String() string {
	switch m {
	case AverageNone:
		return "none"
	case Average2:
		return "average 2"
	case Average4:
		return "average 4"
	case Average8:
		return "average 8"
	}
	return fmt.Sprintf("unknown average mode 0x%02X", byte(m))
}

// TriggerMode enables or disables a trigger source.
type TriggerMode byte

// Trigger modes.
const (
	TriggerDisabled TriggerMode = 0
	TriggerEnabled  TriggerMode = 1
	TriggerOneShot  TriggerMode = 2
)

// TriggerSlope selects the edge the external trigger fires on.
type TriggerSlope byte

// Trigger slopes.
const (
	SlopeDisabled TriggerSlope = 0
	SlopeRising   TriggerSlope = 1
	SlopeFalling  TriggerSlope = 2
	SlopeRiseFall TriggerSlope = 3
)

// Status is the coarse device state, reported as bit flags.
type Status byte

// Status flags.
const (
	// StatusIdle means no capture is running and memory holds no pending frame
	StatusIdle Status = 0

	// StatusInProgress is set while a capture is running
	StatusInProgress Status = 1 << 0

	// StatusMemoryFull is set when device frame memory is full
	StatusMemoryFull Status = 1 << 1
)

// InProgress reports whether a capture is currently running.
func (s Status) InProgress() bool { return s&StatusInProgress != 0 }

// MemoryFull reports whether device frame memory is full.
func (s Status) MemoryFull() bool { return s&StatusMemoryFull != 0 }

func (s Status) String() string {
	if s == StatusIdle {
		return "idle"
	}
	out := ""
	if s.InProgress() {
		out = "in progress"
	}
	if s.MemoryFull() {
		if out != "" {
			out += "|"
		}
		out += "memory full"
	}
	return out
}

// Parameters holds the acquisition parameter block.
//
// On the wire the block is 9 little-endian bytes:
//
//	[SCAN_COUNT(2)][BLANK_SCAN_COUNT(2)][SCAN_MODE(1)][EXPOSURE_10US(4)]
//
// The exposure is stored by the device as an unsigned 32-bit count of
// 10-microsecond units; ExposureTimeMs carries it in milliseconds.
type Parameters struct {
	// ScanCount is the number of scans per capture
	ScanCount uint16

	// BlankScanCount is the number of discarded lead-in scans
	BlankScanCount uint16

	// ScanMode selects the scan sequencing mode
	ScanMode ScanMode

	// ExposureTimeMs is the exposure time in milliseconds
	ExposureTimeMs float64
}

// DefaultParameters returns the parameter block the driver assumes before
// the first device query.
func DefaultParameters() Parameters {
	return Parameters{ScanCount: 1, ScanMode: ScanContinuous, ExposureTimeMs: 10}
}

// ExposureUnits returns the exposure time in the device's 10-microsecond
// units, or an error if it does not fit the wire field.
func (p Parameters) ExposureUnits() (uint32, error) {
	units := p.ExposureTimeMs * exposureUnitsPerMs
	if units < 0 || units > math.MaxUint32 {
		return 0, fmt.Errorf("exposure time %g ms does not fit a 32-bit unit count", p.ExposureTimeMs)
	}
	return uint32(units), nil
}

// Encode serializes the parameter block to its 9-byte wire layout.
func (p Parameters) Encode() ([]byte, error) {
	units, err := p.ExposureUnits()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, ParametersSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.ScanCount)
	binary.LittleEndian.PutUint16(buf[2:4], p.BlankScanCount)
	buf[4] = byte(p.ScanMode)
	binary.LittleEndian.PutUint32(buf[5:9], units)
	return buf, nil
}

// DecodeParameters deserializes a 9-byte parameter block.
func DecodeParameters(buf []byte) (Parameters, error) {
	if len(buf) < ParametersSize {
		return Parameters{}, fmt.Errorf("parameter block too short: got %d bytes, expected %d", len(buf), ParametersSize)
	}
	return Parameters{
		ScanCount:      binary.LittleEndian.Uint16(buf[0:2]),
		BlankScanCount: binary.LittleEndian.Uint16(buf[2:4]),
		ScanMode:       ScanMode(buf[4]),
		ExposureTimeMs: float64(binary.LittleEndian.Uint32(buf[5:9])) / exposureUnitsPerMs,
	}, nil
}

// FrameFormat holds the frame geometry block.
//
// On the wire the block is 7 little-endian bytes:
//
//	[START_ELEMENT(2)][END_ELEMENT(2)][REDUCTION_MODE(1)][PIXELS_IN_FRAME(2)]
//
// PixelsInFrame drives how many packets a frame read needs; a cached value
// is stale after any frame format change and must be refreshed before the
// next capture.
type FrameFormat struct {
	// StartElement is the first sensor element included in the frame
	StartElement uint16

	// EndElement is the last sensor element included in the frame
	EndElement uint16

	// ReductionMode selects on-device pixel binning
	ReductionMode AverageMode

	// PixelsInFrame is the device-reported frame length in pixels
	PixelsInFrame uint16
}

// Encode serializes the frame format to its 7-byte wire layout.
func (f FrameFormat) Encode() []byte {
	buf := make([]byte, FrameFormatSize)
	binary.LittleEndian.PutUint16(buf[0:2], f.StartElement)
	binary.LittleEndian.PutUint16(buf[2:4], f.EndElement)
	buf[4] = byte(f.ReductionMode)
	binary.LittleEndian.PutUint16(buf[5:7], f.PixelsInFrame)
	return buf
}

// DecodeFrameFormat deserializes a 7-byte frame format block.
func DecodeFrameFormat(buf []byte) (FrameFormat, error) {
	if len(buf) < FrameFormatSize {
		return FrameFormat{}, fmt.Errorf("frame format block too short: got %d bytes, expected %d", len(buf), FrameFormatSize)
	}
	return FrameFormat{
		StartElement:  binary.LittleEndian.Uint16(buf[0:2]),
		EndElement:    binary.LittleEndian.Uint16(buf[2:4]),
		ReductionMode: AverageMode(buf[4]),
		PixelsInFrame: binary.LittleEndian.Uint16(buf[5:7]),
	}, nil
}
