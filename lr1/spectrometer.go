package lr1

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aseqtools/go-lr1/caldata"
	"github.com/aseqtools/go-lr1/protocol"
)

// Device is the transport the session drives: one USB interrupt endpoint
// pair moving fixed-size packets. Implementations report raw I/O errors;
// the session wraps them in TransportError and decides nothing about
// retries.
//
// The usb package provides the gousb-backed implementation; tests inject
// in-memory devices.
type Device interface {
	// Write sends one request packet to the device
	Write(p []byte) (int, error)

	// ReadTimeout reads one reply packet, failing once the timeout expires
	ReadTimeout(p []byte, timeout time.Duration) (int, error)

	// Close releases the device
	Close() error
}

// Spectrometer is one open LR1 session.
//
// The wire protocol has no request-id correlation: a reply is trusted to
// belong to the most recently sent request. A single mutex therefore
// serializes every command; concurrent callers queue rather than
// interleave.
type Spectrometer struct {
	mu     sync.Mutex
	dev    Device
	config Config
	open   bool

	params          protocol.Parameters
	format          protocol.FrameFormat
	status          protocol.Status
	framesInMem     uint16
	externalTrigger bool
	cal             *caldata.Calibration
}

// Open starts a session on the device: issues a best-effort reset, loads
// the acquisition parameters, frame format and status, and reads the
// factory calibration off flash.
//
// The reset may fail while the device warms up; that is logged and
// ignored. A calibration that cannot be read or parsed is also logged and
// left absent; the device stays usable for raw acquisition, and
// Calibration returns nil.
func Open(ctx context.Context, dev Device, opts ...Option) (*Spectrometer, error) {
	if dev == nil {
		return nil, fmt.Errorf("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Spectrometer{
		dev:    dev,
		config: cfg,
		open:   true,
		params: protocol.DefaultParameters(),
	}

	if err := s.Reset(ctx); err != nil {
		s.logWarning("reset failed, continuing (device may still be warming up)", "err", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.queryParameters(ctx); err != nil {
		return nil, fmt.Errorf("query acquisition parameters: %w", err)
	}
	if _, err := s.queryFrameFormat(ctx); err != nil {
		return nil, fmt.Errorf("query frame format: %w", err)
	}
	if _, err := s.queryStatus(ctx); err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}

	if !cfg.SkipCalibration {
		if err := s.loadCalibration(ctx); err != nil {
			s.logError("unable to load calibration, continuing without", "err", err)
		}
	}

	s.logDebug("session opened",
		"pixels_in_frame", s.format.PixelsInFrame,
		"exposure_ms", s.params.ExposureTimeMs,
		"calibrated", s.cal != nil,
	)
	return s, nil
}

// Close releases the device and clears all cached state. The session is
// unusable afterwards.
func (s *Spectrometer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false
	s.params = protocol.Parameters{}
	s.format = protocol.FrameFormat{}
	s.status = 0
	s.framesInMem = 0
	s.cal = nil

	err := s.dev.Close()
	s.logDebug("session closed")
	return err
}

// send strips the leading zero report id, if present, and writes one
// request packet. USB interrupt transfers on this device omit the report
// id byte.
func (s *Spectrometer) send(cmd []byte) error {
	if !s.open {
		return ErrClosed
	}
	if len(cmd) > 0 && cmd[0] == protocol.ZeroReportID {
		cmd = cmd[1:]
	}
	if _, err := s.dev.Write(cmd); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// receive reads exactly one reply packet and validates its leading code.
func (s *Spectrometer) receive(expected protocol.ReplyCode, timeout time.Duration) ([]byte, error) {
	if !s.open {
		return nil, ErrClosed
	}
	buf := make([]byte, protocol.PacketSize)
	n, err := s.dev.ReadTimeout(buf, timeout)
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	packet := buf[:n]
	if err := protocol.CheckReply(packet, expected); err != nil {
		return nil, err
	}
	return packet, nil
}

// sendAndReceive performs one request/reply round trip. It is the building
// block of every operation: synchronous, blocking, one outstanding request
// at a time.
func (s *Spectrometer) sendAndReceive(ctx context.Context, cmd []byte, expected protocol.ReplyCode, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.send(cmd); err != nil {
		return nil, err
	}
	return s.receive(expected, timeout)
}

// Status polls the device status and the count of frames held in device
// memory. The status is read fresh on every call, never cached across
// captures.
func (s *Spectrometer) Status(ctx context.Context) (protocol.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryStatus(ctx)
}

func (s *Spectrometer) queryStatus(ctx context.Context) (protocol.Status, error) {
	reply, err := s.sendAndReceive(ctx, protocol.BuildStatusCmd(), protocol.RepStatus, s.config.Timeout)
	if err != nil {
		return 0, err
	}
	status, frames, err := protocol.ParseStatusReply(reply)
	if err != nil {
		return 0, err
	}
	s.status = status
	s.framesInMem = frames
	return status, nil
}

// FramesInMemory returns the frame count reported by the most recent
// status poll.
func (s *Spectrometer) FramesInMemory() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framesInMem
}

// Parameters queries the acquisition parameter block from the device and
// caches it.
func (s *Spectrometer) Parameters(ctx context.Context) (protocol.Parameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryParameters(ctx)
}

func (s *Spectrometer) queryParameters(ctx context.Context) (protocol.Parameters, error) {
	s.logDebug("loading parameters")
	reply, err := s.sendAndReceive(ctx, protocol.BuildGetAcquisitionParametersCmd(),
		protocol.RepGetAcquisitionParameters, s.config.Timeout)
	if err != nil {
		return protocol.Parameters{}, err
	}
	params, err := protocol.ParseParametersReply(reply)
	if err != nil {
		return protocol.Parameters{}, err
	}
	s.params = params
	return params, nil
}

// SetParameters pushes an acquisition parameter block and caches it. A
// settle delay follows the reply; the device needs it to apply timing
// changes before the next command is trusted.
func (s *Spectrometer) SetParameters(ctx context.Context, p protocol.Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	return s.pushParameters(ctx)
}

func (s *Spectrometer) pushParameters(ctx context.Context) error {
	s.logDebug("setting parameters", "exposure_ms", s.params.ExposureTimeMs)
	cmd, err := protocol.BuildSetAcquisitionParametersCmd(s.params)
	if err != nil {
		return err
	}
	if _, err := s.sendAndReceive(ctx, cmd, protocol.RepSetAcquisitionParameters, s.config.Timeout); err != nil {
		return err
	}
	time.Sleep(s.config.SettleDelay)
	return nil
}

// SetExposure updates only the exposure time, in milliseconds. This is the
// light-weight path: the request carries just the trailing exposure field
// of the parameter block, and the cached parameters stay consistent with
// the wire value.
func (s *Spectrometer) SetExposure(ctx context.Context, exposureMs float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setExposure(ctx, exposureMs)
}

func (s *Spectrometer) setExposure(ctx context.Context, exposureMs float64) error {
	s.logDebug("setting exposure", "exposure_ms", exposureMs)
	updated := s.params
	updated.ExposureTimeMs = exposureMs
	cmd, err := protocol.BuildSetExposureCmd(updated)
	if err != nil {
		return err
	}
	if _, err := s.sendAndReceive(ctx, cmd, protocol.RepSetExposure, s.config.Timeout); err != nil {
		return err
	}
	s.params = updated
	return nil
}

// FrameFormat queries the frame geometry from the device and caches it.
// The cached geometry drives how many packets a frame read needs, so it
// must be refreshed after any capture-format change.
func (s *Spectrometer) FrameFormat(ctx context.Context) (protocol.FrameFormat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryFrameFormat(ctx)
}

func (s *Spectrometer) queryFrameFormat(ctx context.Context) (protocol.FrameFormat, error) {
	s.logDebug("getting frame format")
	reply, err := s.sendAndReceive(ctx, protocol.BuildGetFrameFormatCmd(),
		protocol.RepGetFrameFormat, s.config.Timeout)
	if err != nil {
		return protocol.FrameFormat{}, err
	}
	format, err := protocol.ParseFrameFormatReply(reply)
	if err != nil {
		return protocol.FrameFormat{}, err
	}
	s.format = format
	return format, nil
}

// SetFrameFormat pushes a frame geometry block and caches it.
func (s *Spectrometer) SetFrameFormat(ctx context.Context, f protocol.FrameFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logDebug("setting frame format", "pixels_in_frame", f.PixelsInFrame)
	if _, err := s.sendAndReceive(ctx, protocol.BuildSetFrameFormatCmd(f),
		protocol.RepSetFrameFormat, s.config.Timeout); err != nil {
		return err
	}
	s.format = f
	return nil
}

// SetAllParameters pushes the acquisition parameters and frame geometry in
// a single request and caches both.
func (s *Spectrometer) SetAllParameters(ctx context.Context, p protocol.Parameters, f protocol.FrameFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd, err := protocol.BuildSetAllParametersCmd(p, f)
	if err != nil {
		return err
	}
	if _, err := s.sendAndReceive(ctx, cmd, protocol.RepSetAllParameters, s.config.Timeout); err != nil {
		return err
	}
	s.params = p
	s.format = f
	time.Sleep(s.config.SettleDelay)
	return nil
}

// SetExternalTrigger configures the external trigger input. While any mode
// other than disabled is active, GrabOne waits for the device's own
// edge/level detection instead of sending a software trigger.
func (s *Spectrometer) SetExternalTrigger(ctx context.Context, mode protocol.TriggerMode, slope protocol.TriggerSlope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.sendAndReceive(ctx, protocol.BuildSetExternalTriggerCmd(mode, slope),
		protocol.RepSetExternalTrigger, s.config.Timeout); err != nil {
		return err
	}
	s.externalTrigger = mode != protocol.TriggerDisabled
	return nil
}

// SetOpticalTrigger configures triggering on the signal level of one
// pixel. The mode is tracked host-side; the packet carries only the pixel
// index and threshold on this hardware revision.
func (s *Spectrometer) SetOpticalTrigger(ctx context.Context, mode protocol.TriggerMode, pixelIndex, threshold uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.sendAndReceive(ctx, protocol.BuildSetOpticalTriggerCmd(pixelIndex, threshold),
		protocol.RepSetOpticalTrigger, s.config.Timeout); err != nil {
		return err
	}
	s.externalTrigger = mode != protocol.TriggerDisabled
	return nil
}

// SoftwareTrigger starts a capture immediately. No reply is awaited; the
// device answers through status transitions.
func (s *Spectrometer) SoftwareTrigger(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.softwareTrigger(ctx)
}

func (s *Spectrometer) softwareTrigger(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logDebug("software trigger")
	return s.send(protocol.BuildSoftwareTriggerCmd())
}

// ClearMemory discards all frames held in device memory.
func (s *Spectrometer) ClearMemory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearMemory(ctx)
}

func (s *Spectrometer) clearMemory(ctx context.Context) error {
	s.logDebug("clearing memory")
	_, err := s.sendAndReceive(ctx, protocol.BuildClearMemoryCmd(), protocol.RepClearMemory, s.config.Timeout)
	return err
}

// Reset issues a device reset. No reply is awaited; a settle delay gives
// the device time to come back.
func (s *Spectrometer) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(protocol.BuildResetCmd()); err != nil {
		return err
	}
	time.Sleep(protocol.ResetSettleDelay)
	s.logDebug("device reset")
	return nil
}

// Detach asks the device to drop off the bus. No reply is awaited; the
// session should be closed afterwards.
func (s *Spectrometer) Detach(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(protocol.BuildDetachCmd()); err != nil {
		return err
	}
	s.logDebug("device detached")
	return nil
}

func (s *Spectrometer) reportProgress(p Progress) {
	if s.config.ProgressCallback != nil {
		s.config.ProgressCallback(p)
	}
}

func (s *Spectrometer) logDebug(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (s *Spectrometer) logWarning(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Warning(msg, keysAndValues...)
	}
}

func (s *Spectrometer) logError(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Error(msg, keysAndValues...)
	}
}
