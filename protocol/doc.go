// Package protocol implements the ASEQ LR1 spectrometer wire protocol.
//
// This package provides functions to build request packets and parse reply
// packets for the vendor command set of the LR1 USB spectrometer.
//
// # Protocol Overview
//
// The device speaks a fixed-size packet protocol over USB interrupt
// endpoints (OUT 0x02, IN 0x81). Every transfer unit is 64 bytes:
//
//	Request: [REPORT_ID][CMD][FIELDS...]        (report id stripped on the wire)
//	Reply:   [REPLY_CODE][FIELDS...]            (always PacketSize bytes)
//
// All multi-byte fields are little-endian. Each request code has exactly one
// reply code, formed by setting the high bit (e.g. status 0x01 -> 0x81).
// Reset (0xF1) and detach (0xF2) are fire-and-forget.
//
// # Command Builders
//
// Use the Build* functions to create request packets:
//
//	cmd := protocol.BuildStatusCmd()
//	cmd, err := protocol.BuildGetFrameCmd(0, 0, packets)
//	// ... etc
//
// # Reply Parsers
//
// Use CheckReply to validate the leading reply code, and the Parse*
// functions for command-specific decoding:
//
//	status, frames, err := protocol.ParseStatusReply(packet)
//	pkt, err := protocol.ParseFramePacket(packet)
//
// # Transfer Integrity
//
// The protocol carries no checksum. Multi-packet transfers (get_frame,
// read_flash) are guarded only by a per-packet remaining-packets counter
// that counts down to zero. CheckRemaining enforces it:
//
//	if err := protocol.CheckRemaining(pkt.Remaining, owed); err != nil {
//	    // *DeviceError: counter >= 250, device-side fault
//	    // *DroppedPacketError: counter disagreed with local accounting
//	}
package protocol
