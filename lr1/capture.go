package lr1

import (
	"context"
	"fmt"
	"time"

	"github.com/aseqtools/go-lr1/protocol"
)

// RawFrame reads one captured frame out of device memory and reassembles
// it. bufferIndex selects which stored frame; offset selects the first
// pixel to read, in pixels.
//
// Packets may arrive out of order. Each carries its own pixel offset, so
// pixels land by position, and each carries a remaining-packets count that
// is checked against the host's expectation: a mismatch means the bus
// dropped a packet and the frame cannot be trusted.
//
// The returned slice has the dark and trailing reference pixels trimmed
// off; only optically active pixels remain.
func (s *Spectrometer) RawFrame(ctx context.Context, bufferIndex, offset uint16) ([]uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rawFrame(ctx, bufferIndex, offset)
}

func (s *Spectrometer) rawFrame(ctx context.Context, bufferIndex, offset uint16) ([]uint16, error) {
	pixels := int(s.format.PixelsInFrame)
	packetsToGet := (pixels + protocol.PixelsPerPacket - 1) / protocol.PixelsPerPacket
	if packetsToGet > protocol.MaxPacketsInFrame {
		return nil, ErrTooManyPackets
	}

	s.logDebug("reading frame", "buffer", bufferIndex, "pixels", pixels, "packets", packetsToGet)

	cmd, err := protocol.BuildGetFrameCmd(offset, bufferIndex, packetsToGet)
	if err != nil {
		return nil, err
	}
	if err := s.send(cmd); err != nil {
		return nil, err
	}

	// The last packet may carry pixels past the end of the frame; size the
	// buffer for whole packets and slice down afterwards.
	frame := make([]uint16, packetsToGet*protocol.PixelsPerPacket)
	for received := 0; received < packetsToGet; received++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reply, err := s.receive(protocol.RepGetFrame, s.config.Timeout)
		if err != nil {
			return nil, err
		}
		pkt, err := protocol.ParseFramePacket(reply)
		if err != nil {
			return nil, err
		}
		if err := protocol.CheckRemaining(pkt.Remaining, packetsToGet-received-1); err != nil {
			return nil, err
		}
		start := int(pkt.PixelOffset)
		for i, px := range pkt.Pixels {
			if start+i < len(frame) {
				frame[start+i] = px
			}
		}
	}

	frame = frame[:pixels]
	if len(frame) <= protocol.FrameHeadTrim+protocol.FrameTailTrim {
		return nil, fmt.Errorf("frame of %d pixels is shorter than the %d trimmed pixels",
			len(frame), protocol.FrameHeadTrim+protocol.FrameTailTrim)
	}
	return frame[protocol.FrameHeadTrim : len(frame)-protocol.FrameTailTrim], nil
}

// GrabOne runs one full acquisition and returns the frame: push the cached
// acquisition parameters, clear device memory, trigger, poll until the
// capture completes, then read the frame out of buffer zero. The parameter
// push and its settle delay happen on every capture.
//
// With an external trigger armed, no software trigger is sent; instead the
// device is polled until its own trigger fires. The optional exposureMs
// overrides the exposure time for this and subsequent captures.
func (s *Spectrometer) GrabOne(ctx context.Context, exposureMs ...float64) ([]uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(exposureMs) > 0 {
		s.params.ExposureTimeMs = exposureMs[0]
	}
	if err := s.pushParameters(ctx); err != nil {
		return nil, err
	}

	if err := s.clearMemory(ctx); err != nil {
		return nil, err
	}

	if s.externalTrigger {
		// Wait for the device's own trigger to start the capture.
		for {
			status, err := s.queryStatus(ctx)
			if err != nil {
				return nil, err
			}
			if status.InProgress() {
				break
			}
			if err := sleepCtx(ctx, s.config.IdlePollInterval); err != nil {
				return nil, err
			}
		}
	} else {
		if err := s.softwareTrigger(ctx); err != nil {
			return nil, err
		}
	}

	// Sleep for one exposure between polls; the capture cannot finish
	// sooner than that.
	exposure := time.Duration(s.params.ExposureTimeMs * float64(time.Millisecond))
	for {
		status, err := s.queryStatus(ctx)
		if err != nil {
			return nil, err
		}
		if !status.InProgress() {
			break
		}
		if err := sleepCtx(ctx, exposure); err != nil {
			return nil, err
		}
	}

	return s.rawFrame(ctx, 0, 0)
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
