package protocol

import "time"

// USB identification for the ASEQ LR1 spectrometer.
const (
	// VendorID is the USB vendor ID of the spectrometer
	VendorID = 0xE220

	// ProductID is the USB product ID of the spectrometer
	ProductID = 0x0100

	// EndpointOut is the address of the host-to-device interrupt endpoint
	EndpointOut = 0x02

	// EndpointIn is the address of the device-to-host interrupt endpoint
	EndpointIn = 0x81
)

// Packet framing constants.
const (
	// PacketSize is the fixed USB transfer size in bytes.
	// Every reply packet is exactly this long.
	PacketSize = 64

	// ZeroReportID is the report id byte prepended to every request.
	// The transport strips it before the interrupt transfer.
	ZeroReportID = 0x00

	// PixelsPerPacket is the number of 16-bit pixels carried by one
	// get_frame reply packet
	PixelsPerPacket = 30

	// MaxPacketsInFrame is the protocol limit on packets per frame read
	MaxPacketsInFrame = 124

	// RemainingPacketsError is the threshold for the remaining-packets
	// counter: values at or above it signal a device-side fault
	RemainingPacketsError = 250
)

// Flash transfer constants.
const (
	// FlashReadPayload is the number of data bytes in one read_flash reply
	// packet (PacketSize minus the 4-byte header)
	FlashReadPayload = PacketSize - 4

	// FlashMaxReadPackets is the maximum packet count for one read_flash
	// request; longer reads are issued in batches
	FlashMaxReadPackets = 100

	// FlashMaxWriteBytes is the maximum payload per write_flash request.
	// Taken verbatim from the vendor protocol constants; do not re-derive
	// it from the packet arithmetic.
	FlashMaxWriteBytes = 58

	// FlashMaxOffset is the highest addressable flash byte offset
	FlashMaxOffset = 0x1FFFF

	// FlashSize is the total flash address space in bytes
	FlashSize = 0x20000

	// CalibrationBlockSize is the size of the factory calibration block
	// stored at flash offset 0
	CalibrationBlockSize = 97089
)

// Timing constants.
const (
	// StandardTimeout bounds a single packet read or write
	StandardTimeout = 100 * time.Millisecond

	// FlashEraseTimeout bounds the erase_flash reply; full-chip erase is
	// slow and must not use the standard timeout
	FlashEraseTimeout = 5000 * time.Millisecond

	// ParameterSettleDelay is slept after set_acquisition_parameters; the
	// device needs it to apply timing changes before the next command
	ParameterSettleDelay = 100 * time.Millisecond

	// FlashBatchDelay is slept after each read_flash batch request before
	// polling for replies; the firmware needs it to start responding
	FlashBatchDelay = 10 * time.Millisecond

	// ResetSettleDelay is slept after a reset request
	ResetSettleDelay = 100 * time.Millisecond
)

// Frame trim constants. The sensor reads back overscan samples that carry
// no optical signal; they are stripped after reassembly.
const (
	// FrameHeadTrim is the number of samples dropped from the front of a
	// reassembled frame
	FrameHeadTrim = 32

	// FrameTailTrim is the number of samples dropped from the back of a
	// reassembled frame
	FrameTailTrim = 14
)

// Request payload sizes.
const (
	// ParametersSize is the encoded size of acquisition parameters
	ParametersSize = 9

	// FrameFormatSize is the encoded size of a frame format block
	FrameFormatSize = 7

	// ExposureFieldSize is the size of the trailing exposure field of the
	// encoded parameters, used by the set_exposure fast path
	ExposureFieldSize = 4
)
