package lr1

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/aseqtools/go-lr1/protocol"
)

// framePacket builds one get_frame reply packet carrying pixels at the
// given frame position.
func framePacket(pixelOffset uint16, remaining byte, pixels []uint16) []byte {
	packet := make([]byte, protocol.PacketSize)
	packet[0] = byte(protocol.RepGetFrame)
	binary.LittleEndian.PutUint16(packet[1:3], pixelOffset)
	packet[3] = remaining
	for i, px := range pixels {
		binary.LittleEndian.PutUint16(packet[4+2*i:6+2*i], px)
	}
	return packet
}

// rampPixels returns PixelsPerPacket pixels whose value equals their frame
// position, starting at offset.
func rampPixels(offset int) []uint16 {
	pixels := make([]uint16, protocol.PixelsPerPacket)
	for i := range pixels {
		pixels[i] = uint16(offset + i)
	}
	return pixels
}

func openForCapture(t *testing.T, pixelsInFrame uint16) (*Spectrometer, *mockDevice) {
	t.Helper()
	device := newMockDevice()
	scriptOpen(device, pixelsInFrame)
	spec, err := Open(context.Background(), device, WithoutCalibration(), WithSettleDelay(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { spec.Close() })
	return spec, device
}

func TestRawFrameReassemblesOutOfOrderPackets(t *testing.T) {
	// 300 pixels = 10 packets, delivered in scrambled offset order. The
	// remaining counter still counts down in arrival order; only the pixel
	// offsets are shuffled.
	spec, device := openForCapture(t, 300)

	order := []int{3, 0, 9, 5, 1, 7, 2, 8, 4, 6}
	for i, pkt := range order {
		offset := pkt * protocol.PixelsPerPacket
		device.replies = append(device.replies,
			framePacket(uint16(offset), byte(len(order)-1-i), rampPixels(offset)))
	}

	frame, err := spec.RawFrame(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantLen := 300 - protocol.FrameHeadTrim - protocol.FrameTailTrim
	if len(frame) != wantLen {
		t.Fatalf("frame length = %d, want %d", len(frame), wantLen)
	}
	for i, px := range frame {
		if int(px) != i+protocol.FrameHeadTrim {
			t.Fatalf("frame[%d] = %d, want %d", i, px, i+protocol.FrameHeadTrim)
		}
	}
}

func TestRawFrameTruncatesPartialLastPacket(t *testing.T) {
	// 290 pixels still need 10 packets; the last packet carries 10 pixels
	// of padding past the end of the frame.
	spec, device := openForCapture(t, 290)

	for pkt := 0; pkt < 10; pkt++ {
		offset := pkt * protocol.PixelsPerPacket
		device.replies = append(device.replies,
			framePacket(uint16(offset), byte(9-pkt), rampPixels(offset)))
	}

	frame, err := spec.RawFrame(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantLen := 290 - protocol.FrameHeadTrim - protocol.FrameTailTrim
	if len(frame) != wantLen {
		t.Fatalf("frame length = %d, want %d", len(frame), wantLen)
	}
	if last := frame[len(frame)-1]; int(last) != 290-protocol.FrameTailTrim-1 {
		t.Errorf("last pixel = %d, want %d", last, 290-protocol.FrameTailTrim-1)
	}
}

func TestRawFrameDroppedPacket(t *testing.T) {
	spec, device := openForCapture(t, 300)

	// First packet is fine, second reports one packet too few still owed.
	device.replies = append(device.replies,
		framePacket(0, 9, rampPixels(0)),
		framePacket(30, 7, rampPixels(30)))

	_, err := spec.RawFrame(context.Background(), 0, 0)
	var dropped *protocol.DroppedPacketError
	if !errors.As(err, &dropped) {
		t.Fatalf("error = %v, want DroppedPacketError", err)
	}
	if dropped.Expected != 8 || dropped.Got != 7 {
		t.Errorf("Expected/Got = %d/%d, want 8/7", dropped.Expected, dropped.Got)
	}
}

func TestRawFrameDeviceError(t *testing.T) {
	spec, device := openForCapture(t, 300)

	device.replies = append(device.replies,
		framePacket(0, protocol.RemainingPacketsError, rampPixels(0)))

	_, err := spec.RawFrame(context.Background(), 0, 0)
	var devErr *protocol.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("error = %v, want DeviceError", err)
	}
	if devErr.Remaining != protocol.RemainingPacketsError {
		t.Errorf("Remaining = %d, want %d", devErr.Remaining, protocol.RemainingPacketsError)
	}
}

func TestRawFrameTooManyPackets(t *testing.T) {
	spec, device := openForCapture(t, protocol.MaxPacketsInFrame*protocol.PixelsPerPacket+1)

	requests := len(device.writes)
	_, err := spec.RawFrame(context.Background(), 0, 0)
	if !errors.Is(err, ErrTooManyPackets) {
		t.Fatalf("error = %v, want ErrTooManyPackets", err)
	}
	if len(device.writes) != requests {
		t.Error("an oversized frame request must not reach the device")
	}
}

func TestGrabOne(t *testing.T) {
	spec, device := openForCapture(t, 60)

	device.addReply(protocol.RepSetAcquisitionParameters)
	device.addReply(protocol.RepClearMemory)
	device.addReply(protocol.RepStatus, byte(protocol.StatusInProgress), 0, 0)
	device.addReply(protocol.RepStatus, byte(protocol.StatusInProgress), 0, 0)
	device.addReply(protocol.RepStatus, byte(protocol.StatusIdle), 1, 0)
	device.replies = append(device.replies,
		framePacket(0, 1, rampPixels(0)),
		framePacket(30, 0, rampPixels(30)))

	frame, err := spec.GrabOne(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wantLen := 60 - protocol.FrameHeadTrim - protocol.FrameTailTrim; len(frame) != wantLen {
		t.Errorf("frame length = %d, want %d", len(frame), wantLen)
	}

	// The cached parameter block is pushed on every capture, even without
	// an exposure override.
	if got := device.requestCount(protocol.ReqSetAcquisitionParameters); got != 1 {
		t.Errorf("set parameter requests = %d, want 1", got)
	}
	// One status poll during open, then exactly three while the capture ran:
	// two in-progress answers and the final idle.
	if got := device.requestCount(protocol.ReqStatus); got != 4 {
		t.Errorf("status requests = %d, want 4", got)
	}
	if got := device.requestCount(protocol.ReqSetSoftwareTrigger); got != 1 {
		t.Errorf("software trigger requests = %d, want 1", got)
	}
	if got := device.requestCount(protocol.ReqClearMemory); got != 1 {
		t.Errorf("clear memory requests = %d, want 1", got)
	}
}

func TestGrabOneWithExposure(t *testing.T) {
	spec, device := openForCapture(t, 60)

	device.addReply(protocol.RepSetAcquisitionParameters)
	device.addReply(protocol.RepClearMemory)
	device.addReply(protocol.RepStatus, byte(protocol.StatusIdle), 1, 0)
	device.replies = append(device.replies,
		framePacket(0, 1, rampPixels(0)),
		framePacket(30, 0, rampPixels(30)))

	if _, err := spec.GrabOne(context.Background(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.params.ExposureTimeMs != 5 {
		t.Errorf("cached exposure = %g, want 5", spec.params.ExposureTimeMs)
	}
	// The override travels inside the full parameter block; no separate
	// set_exposure command is sent.
	if got := device.requestCount(protocol.ReqSetExposure); got != 0 {
		t.Errorf("set exposure requests = %d, want 0", got)
	}
	if got := device.requestCount(protocol.ReqSetAcquisitionParameters); got != 1 {
		t.Errorf("set parameter requests = %d, want 1", got)
	}
}

func TestGrabOneExternalTrigger(t *testing.T) {
	spec, device := openForCapture(t, 60)
	device.addReply(protocol.RepSetExternalTrigger)
	if err := spec.SetExternalTrigger(context.Background(), protocol.TriggerEnabled, protocol.SlopeRising); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	device.addReply(protocol.RepSetAcquisitionParameters)
	device.addReply(protocol.RepClearMemory)
	// Two idle polls before the hardware trigger fires, then the capture
	// runs to completion.
	device.addReply(protocol.RepStatus, byte(protocol.StatusIdle), 0, 0)
	device.addReply(protocol.RepStatus, byte(protocol.StatusIdle), 0, 0)
	device.addReply(protocol.RepStatus, byte(protocol.StatusInProgress), 0, 0)
	device.addReply(protocol.RepStatus, byte(protocol.StatusInProgress), 0, 0)
	device.addReply(protocol.RepStatus, byte(protocol.StatusIdle), 1, 0)
	device.replies = append(device.replies,
		framePacket(0, 1, rampPixels(0)),
		framePacket(30, 0, rampPixels(30)))

	spec.config.IdlePollInterval = 0

	if _, err := spec.GrabOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := device.requestCount(protocol.ReqSetSoftwareTrigger); got != 0 {
		t.Errorf("software trigger requests = %d, want 0 with an external trigger armed", got)
	}
}

func TestGrabOneCancellation(t *testing.T) {
	spec, device := openForCapture(t, 60)

	device.addReply(protocol.RepSetAcquisitionParameters)
	device.addReply(protocol.RepClearMemory)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := spec.GrabOne(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
