package lr1

import (
	"context"
	"time"

	"github.com/aseqtools/go-lr1/protocol"
)

const flashSize = protocol.FlashSize

// checkFlashRange rejects any access that starts past the last valid
// offset or runs off the end of the flash array.
func checkFlashRange(offset, length int) error {
	if offset < 0 || length < 0 || offset > protocol.FlashMaxOffset || offset+length > flashSize {
		return &RangeError{Offset: offset, Length: length}
	}
	return nil
}

// ReadFlash reads length bytes of device flash starting at offset.
//
// The device streams flash in batches of up to FlashMaxReadPackets
// packets per request. Packets within a batch may arrive out of order;
// each carries a batch-local offset that places its payload, and a
// remaining-packets counter that is checked against the host's count. A
// short delay follows each batch request; the device needs it before it
// starts streaming.
func (s *Spectrometer) ReadFlash(ctx context.Context, offset, length int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readFlash(ctx, offset, length)
}

func (s *Spectrometer) readFlash(ctx context.Context, offset, length int) ([]byte, error) {
	if err := checkFlashRange(offset, length); err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}

	s.logDebug("reading flash", "offset", offset, "length", length)

	totalPackets := (length + protocol.FlashReadPayload - 1) / protocol.FlashReadPayload
	// The last packet may carry bytes past the requested length; size the
	// buffer for whole packets and truncate afterwards.
	data := make([]byte, totalPackets*protocol.FlashReadPayload)

	done := 0
	for done < totalPackets {
		batch := totalPackets - done
		if batch > protocol.FlashMaxReadPackets {
			batch = protocol.FlashMaxReadPackets
		}
		batchOffset := done * protocol.FlashReadPayload

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cmd, err := protocol.BuildReadFlashCmd(uint32(offset+batchOffset), batch)
		if err != nil {
			return nil, err
		}
		if err := s.send(cmd); err != nil {
			return nil, err
		}
		time.Sleep(s.config.BatchDelay)

		for received := 0; received < batch; received++ {
			reply, err := s.receive(protocol.RepReadFlash, s.config.Timeout)
			if err != nil {
				return nil, err
			}
			pkt, err := protocol.ParseFlashPacket(reply)
			if err != nil {
				return nil, err
			}
			if err := protocol.CheckRemaining(pkt.Remaining, batch-received-1); err != nil {
				return nil, err
			}
			copy(data[batchOffset+int(pkt.LocalOffset):], pkt.Payload[:])
		}

		done += batch
		bytesDone := done * protocol.FlashReadPayload
		if bytesDone > length {
			bytesDone = length
		}
		s.reportProgress(Progress{Operation: "read flash", BytesDone: bytesDone, BytesTotal: length})
	}

	return data[:length], nil
}

// WriteFlash writes data to device flash starting at offset. The region
// should be erased first; flash writes only clear bits.
//
// Data moves in chunks of up to FlashMaxWriteBytes, one acknowledged
// request per chunk. The write aborts on the first failed chunk, leaving
// the flash partially written.
func (s *Spectrometer) WriteFlash(ctx context.Context, offset int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkFlashRange(offset, len(data)); err != nil {
		return err
	}

	s.logDebug("writing flash", "offset", offset, "length", len(data))

	for written := 0; written < len(data); {
		chunk := len(data) - written
		if chunk > protocol.FlashMaxWriteBytes {
			chunk = protocol.FlashMaxWriteBytes
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd, err := protocol.BuildWriteFlashCmd(uint32(offset+written), data[written:written+chunk])
		if err != nil {
			return err
		}
		if _, err := s.sendAndReceive(ctx, cmd, protocol.RepWriteFlash, s.config.Timeout); err != nil {
			return err
		}
		written += chunk
		s.reportProgress(Progress{Operation: "write flash", BytesDone: written, BytesTotal: len(data)})
	}
	return nil
}

// EraseFlash erases the entire flash array, calibration included. The
// erase is slow; the reply is awaited with the erase timeout rather than
// the standard one.
func (s *Spectrometer) EraseFlash(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logDebug("erasing flash")
	_, err := s.sendAndReceive(ctx, protocol.BuildEraseFlashCmd(), protocol.RepEraseFlash, s.config.EraseTimeout)
	return err
}
