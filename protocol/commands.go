package protocol

import (
	"encoding/binary"
	"fmt"
)

// newCmd allocates a request with the report id and request code in place.
func newCmd(code RequestCode, payloadSize int) []byte {
	cmd := make([]byte, 2, 2+payloadSize)
	cmd[0] = ZeroReportID
	cmd[1] = byte(code)
	return cmd
}

// BuildStatusCmd constructs a status request.
//
// Frame structure:
//
//	[REPORT_ID][CMD][PAD(1)]
func BuildStatusCmd() []byte {
	cmd := newCmd(ReqStatus, 1)
	return append(cmd, 0x00)
}

// BuildGetAcquisitionParametersCmd constructs a get_acquisition_parameters
// request.
func BuildGetAcquisitionParametersCmd() []byte {
	cmd := newCmd(ReqGetAcquisitionParameters, 1)
	return append(cmd, 0x00)
}

// BuildSetAcquisitionParametersCmd constructs a set_acquisition_parameters
// request carrying the full 9-byte parameter block.
//
// Frame structure:
//
//	[REPORT_ID][CMD][SCAN_COUNT(2)][BLANK_SCAN_COUNT(2)][SCAN_MODE(1)][EXPOSURE_10US(4)]
func BuildSetAcquisitionParametersCmd(p Parameters) ([]byte, error) {
	block, err := p.Encode()
	if err != nil {
		return nil, err
	}
	cmd := newCmd(ReqSetAcquisitionParameters, len(block))
	return append(cmd, block...), nil
}

// BuildSetExposureCmd constructs a set_exposure request. This is the fast
// path that updates only the exposure field: the payload is the trailing
// 4 bytes of the encoded parameter block.
//
// Frame structure:
//
//	[REPORT_ID][CMD][EXPOSURE_10US(4)]
func BuildSetExposureCmd(p Parameters) ([]byte, error) {
	units, err := p.ExposureUnits()
	if err != nil {
		return nil, err
	}
	cmd := newCmd(ReqSetExposure, ExposureFieldSize)
	cmd = cmd[:2+ExposureFieldSize]
	binary.LittleEndian.PutUint32(cmd[2:6], units)
	return cmd, nil
}

// BuildGetFrameFormatCmd constructs a get_frame_format request.
func BuildGetFrameFormatCmd() []byte {
	return newCmd(ReqGetFrameFormat, 0)
}

// BuildSetFrameFormatCmd constructs a set_frame_format request carrying the
// 7-byte frame format block.
//
// Frame structure:
//
//	[REPORT_ID][CMD][START(2)][END(2)][REDUCTION(1)][PIXELS(2)]
func BuildSetFrameFormatCmd(f FrameFormat) []byte {
	cmd := newCmd(ReqSetFrameFormat, FrameFormatSize)
	return append(cmd, f.Encode()...)
}

// BuildSetAllParametersCmd constructs a set_all_parameters request carrying
// the parameter block followed by the frame format block in one packet.
//
// Frame structure:
//
//	[REPORT_ID][CMD][PARAMETERS(9)][FRAME_FORMAT(7)]
func BuildSetAllParametersCmd(p Parameters, f FrameFormat) ([]byte, error) {
	block, err := p.Encode()
	if err != nil {
		return nil, err
	}
	cmd := newCmd(ReqSetAllParameters, ParametersSize+FrameFormatSize)
	cmd = append(cmd, block...)
	return append(cmd, f.Encode()...), nil
}

// BuildSetExternalTriggerCmd constructs a set_external_trigger request.
//
// Frame structure:
//
//	[REPORT_ID][CMD][MODE(1)][SLOPE(1)]
func BuildSetExternalTriggerCmd(mode TriggerMode, slope TriggerSlope) []byte {
	cmd := newCmd(ReqSetExternalTrigger, 2)
	return append(cmd, byte(mode), byte(slope))
}

// BuildSetOpticalTriggerCmd constructs a set_optical_trigger request.
// The packet carries only the pixel index and threshold; the trigger mode
// is host-side state on this hardware revision.
//
// Frame structure:
//
//	[REPORT_ID][CMD][PIXEL_INDEX(2)][THRESHOLD(2)]
func BuildSetOpticalTriggerCmd(pixelIndex, threshold uint16) []byte {
	cmd := newCmd(ReqSetOpticalTrigger, 4)
	cmd = cmd[:6]
	binary.LittleEndian.PutUint16(cmd[2:4], pixelIndex)
	binary.LittleEndian.PutUint16(cmd[4:6], threshold)
	return cmd
}

// BuildSoftwareTriggerCmd constructs a set_software_trigger request.
// No reply is awaited; the device answers with status transitions.
func BuildSoftwareTriggerCmd() []byte {
	return newCmd(ReqSetSoftwareTrigger, 0)
}

// BuildClearMemoryCmd constructs a clear_memory request.
func BuildClearMemoryCmd() []byte {
	return newCmd(ReqClearMemory, 0)
}

// BuildGetFrameCmd constructs a get_frame request.
//
// Frame structure:
//
//	[REPORT_ID][CMD][PIXEL_OFFSET(2)][BUFFER_INDEX(2)][PACKET_COUNT(1)]
//
// packetCount must not exceed MaxPacketsInFrame.
func BuildGetFrameCmd(offset, bufferIndex uint16, packetCount int) ([]byte, error) {
	if packetCount <= 0 || packetCount > MaxPacketsInFrame {
		return nil, fmt.Errorf("packet count %d out of range 1-%d", packetCount, MaxPacketsInFrame)
	}
	cmd := newCmd(ReqGetFrame, 5)
	cmd = cmd[:7]
	binary.LittleEndian.PutUint16(cmd[2:4], offset)
	binary.LittleEndian.PutUint16(cmd[4:6], bufferIndex)
	cmd[6] = byte(packetCount)
	return cmd, nil
}

// BuildReadFlashCmd constructs a read_flash request for one batch of reply
// packets starting at the absolute flash offset.
//
// Frame structure:
//
//	[REPORT_ID][CMD][ABS_OFFSET(4)][PACKET_COUNT(1)]
//
// packetCount must not exceed FlashMaxReadPackets.
func BuildReadFlashCmd(absOffset uint32, packetCount int) ([]byte, error) {
	if packetCount <= 0 || packetCount > FlashMaxReadPackets {
		return nil, fmt.Errorf("packet count %d out of range 1-%d", packetCount, FlashMaxReadPackets)
	}
	cmd := newCmd(ReqReadFlash, 5)
	cmd = cmd[:7]
	binary.LittleEndian.PutUint32(cmd[2:6], absOffset)
	cmd[6] = byte(packetCount)
	return cmd, nil
}

// BuildWriteFlashCmd constructs a write_flash request for one chunk of at
// most FlashMaxWriteBytes payload bytes.
//
// Frame structure:
//
//	[REPORT_ID][CMD][ABS_OFFSET(4)][PAYLOAD_LEN(1)][PAYLOAD...]
func BuildWriteFlashCmd(absOffset uint32, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("payload cannot be empty")
	}
	if len(payload) > FlashMaxWriteBytes {
		return nil, fmt.Errorf("payload length %d exceeds maximum %d bytes", len(payload), FlashMaxWriteBytes)
	}
	cmd := newCmd(ReqWriteFlash, 5+len(payload))
	cmd = cmd[:7]
	binary.LittleEndian.PutUint32(cmd[2:6], absOffset)
	cmd[6] = byte(len(payload))
	return append(cmd, payload...), nil
}

// BuildEraseFlashCmd constructs an erase_flash request. The reply must be
// awaited with FlashEraseTimeout.
func BuildEraseFlashCmd() []byte {
	return newCmd(ReqEraseFlash, 0)
}

// BuildResetCmd constructs a reset request. No reply is awaited.
func BuildResetCmd() []byte {
	return newCmd(ReqReset, 0)
}

// BuildDetachCmd constructs a detach request. No reply is awaited.
func BuildDetachCmd() []byte {
	return newCmd(ReqDetach, 0)
}
