package lr1

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/aseqtools/go-lr1/protocol"
)

// flashDevice emulates the instrument far enough to exercise flash access
// and session open: it keeps a full flash image and answers the state-load
// and flash requests from it. Unwritten flash reads as 0xFF.
type flashDevice struct {
	mem    []byte
	queue  [][]byte
	writes [][]byte
}

func newFlashDevice() *flashDevice {
	d := &flashDevice{mem: make([]byte, protocol.FlashSize)}
	for i := range d.mem {
		d.mem[i] = 0xFF
	}
	return d
}

func (d *flashDevice) reply(packet ...byte) {
	full := make([]byte, protocol.PacketSize)
	copy(full, packet)
	d.queue = append(d.queue, full)
}

func (d *flashDevice) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	d.writes = append(d.writes, cp)
	if len(p) == 0 {
		return 0, nil
	}

	switch protocol.RequestCode(p[0]) {
	case protocol.ReqStatus:
		d.reply(byte(protocol.RepStatus), byte(protocol.StatusIdle), 0, 0)

	case protocol.ReqGetAcquisitionParameters:
		enc, _ := protocol.DefaultParameters().Encode()
		d.reply(append([]byte{byte(protocol.RepGetAcquisitionParameters)}, enc...)...)

	case protocol.ReqGetFrameFormat:
		format := protocol.FrameFormat{EndElement: 3693, PixelsInFrame: 3694}
		d.reply(append([]byte{byte(protocol.RepGetFrameFormat)}, format.Encode()...)...)

	case protocol.ReqReadFlash:
		offset := int(binary.LittleEndian.Uint32(p[1:5]))
		count := int(p[5])
		for i := 0; i < count; i++ {
			local := i * protocol.FlashReadPayload
			packet := make([]byte, protocol.PacketSize)
			packet[0] = byte(protocol.RepReadFlash)
			binary.LittleEndian.PutUint16(packet[1:3], uint16(local))
			packet[3] = byte(count - 1 - i)
			if start := offset + local; start < len(d.mem) {
				end := start + protocol.FlashReadPayload
				if end > len(d.mem) {
					end = len(d.mem)
				}
				copy(packet[4:], d.mem[start:end])
			}
			d.queue = append(d.queue, packet)
		}

	case protocol.ReqWriteFlash:
		offset := int(binary.LittleEndian.Uint32(p[1:5]))
		length := int(p[5])
		copy(d.mem[offset:], p[6:6+length])
		d.reply(byte(protocol.RepWriteFlash))

	case protocol.ReqEraseFlash:
		for i := range d.mem {
			d.mem[i] = 0xFF
		}
		d.reply(byte(protocol.RepEraseFlash))

	case protocol.ReqReset, protocol.ReqDetach:
		// no reply
	}
	return len(p), nil
}

func (d *flashDevice) ReadTimeout(p []byte, _ time.Duration) (int, error) {
	if len(d.queue) == 0 {
		return 0, errors.New("read timed out")
	}
	packet := d.queue[0]
	d.queue = d.queue[1:]
	copy(p, packet)
	return len(packet), nil
}

func (d *flashDevice) Close() error { return nil }

func openOnFlash(t *testing.T, device *flashDevice, opts ...Option) *Spectrometer {
	t.Helper()
	spec, err := Open(context.Background(), device, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { spec.Close() })
	return spec
}

func TestFlashRoundTrip(t *testing.T) {
	device := newFlashDevice()
	spec := openOnFlash(t, device, WithoutCalibration())

	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i * 7)
	}

	const offset = 0x1234
	if err := spec.WriteFlash(context.Background(), offset, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := spec.ReadFlash(context.Background(), offset, len(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("flash read does not match what was written")
	}
}

func TestReadFlashSpansBatches(t *testing.T) {
	device := newFlashDevice()
	spec := openOnFlash(t, device, WithoutCalibration())

	// 101 packets worth of data forces a second batch request.
	length := (protocol.FlashMaxReadPackets + 1) * protocol.FlashReadPayload
	for i := 0; i < length; i++ {
		device.mem[i] = byte(i)
	}

	got, err := spec.ReadFlash(context.Background(), 0, length)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != length {
		t.Fatalf("read %d bytes, want %d", len(got), length)
	}
	for i, b := range got {
		if b != byte(i) {
			t.Fatalf("byte %d = 0x%02X, want 0x%02X", i, b, byte(i))
		}
	}
	if batches := countRequests(device.writes, protocol.ReqReadFlash); batches != 2 {
		t.Errorf("read batches = %d, want 2", batches)
	}
}

func TestReadFlashPartialLastPacket(t *testing.T) {
	device := newFlashDevice()
	spec := openOnFlash(t, device, WithoutCalibration())

	// 70 bytes needs two packets; the second carries 50 bytes of padding
	// that must be truncated away.
	for i := 0; i < 70; i++ {
		device.mem[i] = byte(i + 1)
	}

	got, err := spec.ReadFlash(context.Background(), 0, 70)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 70 {
		t.Fatalf("read %d bytes, want 70", len(got))
	}
	if got[69] != 70 {
		t.Errorf("last byte = %d, want 70", got[69])
	}
}

func TestReadFlashZeroLength(t *testing.T) {
	device := newFlashDevice()
	spec := openOnFlash(t, device, WithoutCalibration())

	requests := len(device.writes)
	got, err := spec.ReadFlash(context.Background(), 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("read %d bytes, want 0", len(got))
	}
	if len(device.writes) != requests {
		t.Error("a zero-length read must not reach the device")
	}
}

func TestFlashRangeValidation(t *testing.T) {
	device := newFlashDevice()
	spec := openOnFlash(t, device, WithoutCalibration())

	tests := []struct {
		name   string
		offset int
		length int
	}{
		{"offset past end", protocol.FlashSize, 1},
		{"offset past last valid", protocol.FlashMaxOffset + 1, 1},
		{"runs off the end", protocol.FlashMaxOffset, 2},
		{"negative offset", -1, 10},
		{"negative length", 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requests := len(device.writes)

			_, err := spec.ReadFlash(context.Background(), tt.offset, tt.length)
			var rangeErr *RangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("ReadFlash error = %v, want RangeError", err)
			}

			// Negative lengths cannot be expressed as a write payload.
			if tt.length >= 0 {
				err = spec.WriteFlash(context.Background(), tt.offset, make([]byte, tt.length))
				if !errors.As(err, &rangeErr) {
					t.Fatalf("WriteFlash error = %v, want RangeError", err)
				}
			}

			if len(device.writes) != requests {
				t.Error("an out-of-range access must not reach the device")
			}
		})
	}
}

func TestFlashProgressReporting(t *testing.T) {
	device := newFlashDevice()

	var reads, writes []Progress
	spec := openOnFlash(t, device,
		WithoutCalibration(),
		WithProgressCallback(func(p Progress) {
			switch p.Operation {
			case "read flash":
				reads = append(reads, p)
			case "write flash":
				writes = append(writes, p)
			}
		}),
	)

	data := make([]byte, 150) // three write chunks
	if err := spec.WriteFlash(context.Background(), 0, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := spec.ReadFlash(context.Background(), 0, 150); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(writes) != 3 {
		t.Fatalf("write progress reports = %d, want 3", len(writes))
	}
	if last := writes[len(writes)-1]; last.BytesDone != 150 || last.BytesTotal != 150 {
		t.Errorf("final write progress = %d/%d, want 150/150", last.BytesDone, last.BytesTotal)
	}
	for i := 1; i < len(writes); i++ {
		if writes[i].BytesDone <= writes[i-1].BytesDone {
			t.Fatal("write progress must be monotonic")
		}
	}
	if len(reads) == 0 {
		t.Fatal("no read progress reported")
	}
	if last := reads[len(reads)-1]; last.BytesDone != 150 {
		t.Errorf("final read progress = %d, want 150", last.BytesDone)
	}
}

func TestEraseFlash(t *testing.T) {
	device := newFlashDevice()
	spec := openOnFlash(t, device, WithoutCalibration())

	if err := spec.WriteFlash(context.Background(), 0, []byte{1, 2, 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := spec.EraseFlash(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := spec.ReadFlash(context.Background(), 0, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte{0xFF, 0xFF, 0xFF}) {
		t.Errorf("flash after erase = % X, want all 0xFF", got)
	}
}

func countRequests(writes [][]byte, code protocol.RequestCode) int {
	n := 0
	for _, w := range writes {
		if len(w) > 0 && w[0] == byte(code) {
			n++
		}
	}
	return n
}
