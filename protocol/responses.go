package protocol

import (
	"encoding/binary"
	"fmt"
)

// CheckReply validates that a reply packet starts with the expected reply
// code. Returns a ReplyMismatchError on any other leading byte; that error
// indicates the session is desynchronized and should be reopened.
func CheckReply(packet []byte, expected ReplyCode) error {
	if len(packet) == 0 {
		return fmt.Errorf("empty reply packet")
	}
	if packet[0] != byte(expected) {
		return &ReplyMismatchError{Expected: expected, Got: packet[0]}
	}
	return nil
}

// CheckRemaining validates the remaining-packets counter of one reply packet
// in a multi-packet transfer. expected is the count of packets still owed
// after this one (packets requested minus packets received so far).
//
// The protocol has no checksum; this counter is the only transfer-integrity
// signal. A counter at or above RemainingPacketsError is a device-reported
// fault (DeviceError); any other value that does not match expected means a
// packet was dropped or reordered on the wire (DroppedPacketError).
func CheckRemaining(remaining byte, expected int) error {
	if remaining >= RemainingPacketsError {
		return &DeviceError{Remaining: remaining}
	}
	if int(remaining) != expected {
		return &DroppedPacketError{Expected: expected, Got: int(remaining)}
	}
	return nil
}

// ParseStatusReply parses a status reply packet.
//
// Reply structure:
//
//	[REPLY_CODE][STATUS_FLAGS(1)][FRAMES_IN_MEM(2)]
func ParseStatusReply(packet []byte) (Status, uint16, error) {
	if err := CheckReply(packet, RepStatus); err != nil {
		return 0, 0, err
	}
	if len(packet) < 4 {
		return 0, 0, fmt.Errorf("status reply too short: got %d bytes, expected at least 4", len(packet))
	}
	return Status(packet[1]), binary.LittleEndian.Uint16(packet[2:4]), nil
}

// ParseParametersReply parses a get_acquisition_parameters reply packet.
//
// Reply structure:
//
//	[REPLY_CODE][PARAMETERS(9)]
func ParseParametersReply(packet []byte) (Parameters, error) {
	if err := CheckReply(packet, RepGetAcquisitionParameters); err != nil {
		return Parameters{}, err
	}
	if len(packet) < 1+ParametersSize {
		return Parameters{}, fmt.Errorf("parameters reply too short: got %d bytes, expected at least %d", len(packet), 1+ParametersSize)
	}
	return DecodeParameters(packet[1 : 1+ParametersSize])
}

// ParseFrameFormatReply parses a get_frame_format reply packet.
//
// Reply structure:
//
//	[REPLY_CODE][FRAME_FORMAT(7)]
func ParseFrameFormatReply(packet []byte) (FrameFormat, error) {
	if err := CheckReply(packet, RepGetFrameFormat); err != nil {
		return FrameFormat{}, err
	}
	if len(packet) < 1+FrameFormatSize {
		return FrameFormat{}, fmt.Errorf("frame format reply too short: got %d bytes, expected at least %d", len(packet), 1+FrameFormatSize)
	}
	return DecodeFrameFormat(packet[1 : 1+FrameFormatSize])
}

// FramePacket is one decoded get_frame reply packet.
type FramePacket struct {
	// PixelOffset is the position of this packet's pixels inside the frame
	PixelOffset uint16

	// Remaining is the device's count of packets still owed after this one
	Remaining byte

	// Pixels are the PixelsPerPacket intensities carried by the packet
	Pixels [PixelsPerPacket]uint16
}

// ParseFramePacket parses one get_frame reply packet.
//
// Reply structure:
//
//	[REPLY_CODE][PIXEL_OFFSET(2)][REMAINING(1)][PIXELS(30x2)]
func ParseFramePacket(packet []byte) (FramePacket, error) {
	var fp FramePacket
	if err := CheckReply(packet, RepGetFrame); err != nil {
		return fp, err
	}
	if len(packet) < PacketSize {
		return fp, fmt.Errorf("frame packet too short: got %d bytes, expected %d", len(packet), PacketSize)
	}
	fp.PixelOffset = binary.LittleEndian.Uint16(packet[1:3])
	fp.Remaining = packet[3]
	for i := 0; i < PixelsPerPacket; i++ {
		fp.Pixels[i] = binary.LittleEndian.Uint16(packet[4+2*i : 6+2*i])
	}
	return fp, nil
}

// FlashPacket is one decoded read_flash reply packet.
type FlashPacket struct {
	// LocalOffset is the byte position of this packet's payload inside the
	// current batch
	LocalOffset uint16

	// Remaining is the device's count of packets still owed after this one
	Remaining byte

	// Payload is the FlashReadPayload bytes carried by the packet
	Payload [FlashReadPayload]byte
}

// ParseFlashPacket parses one read_flash reply packet.
//
// Reply structure:
//
//	[REPLY_CODE][LOCAL_OFFSET(2)][REMAINING(1)][PAYLOAD(60)]
func ParseFlashPacket(packet []byte) (FlashPacket, error) {
	var fp FlashPacket
	if err := CheckReply(packet, RepReadFlash); err != nil {
		return fp, err
	}
	if len(packet) < PacketSize {
		return fp, fmt.Errorf("flash packet too short: got %d bytes, expected %d", len(packet), PacketSize)
	}
	fp.LocalOffset = binary.LittleEndian.Uint16(packet[1:3])
	fp.Remaining = packet[3]
	copy(fp.Payload[:], packet[4:4+FlashReadPayload])
	return fp, nil
}
