package lr1

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/aseqtools/go-lr1/caldata"
	"github.com/aseqtools/go-lr1/protocol"
)

// LoadCalibration reads the factory calibration block off device flash
// and parses it. Open does this automatically; call it again only after
// rewriting the calibration.
func (s *Spectrometer) LoadCalibration(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCalibration(ctx)
}

func (s *Spectrometer) loadCalibration(ctx context.Context) error {
	s.logDebug("loading calibration", "bytes", protocol.CalibrationBlockSize)
	raw, err := s.readFlash(ctx, 0, protocol.CalibrationBlockSize)
	if err != nil {
		return fmt.Errorf("read calibration block: %w", err)
	}
	cal, err := caldata.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse calibration block: %w", err)
	}
	s.cal = cal
	s.logDebug("calibration loaded", "model", cal.Model, "serial", cal.Serial)
	return nil
}

// Calibration returns the parsed factory calibration, or nil if none was
// loaded. The returned value is shared, not copied.
func (s *Spectrometer) Calibration() *caldata.Calibration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cal
}

// ApplyIrradianceCalibration converts a raw frame into relative spectral
// irradiance using the factory calibration: each count is scaled by the
// irradiance response of its pixel and normalized by the PRNU response,
// the irradiance scaler and the exposure time the frame was captured
// with.
//
// The raw frame must be the trimmed frame RawFrame and GrabOne return,
// matching the calibration arrays pixel for pixel. Returns
// ErrNoCalibration when no calibration is loaded.
func (s *Spectrometer) ApplyIrradianceCalibration(raw []uint16) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cal == nil {
		return nil, ErrNoCalibration
	}
	irr := s.cal.IrrNorm()
	prnu := s.cal.PRNUNorm()
	if len(raw) != len(irr) {
		return nil, fmt.Errorf("frame length %d does not match calibration length %d", len(raw), len(irr))
	}

	corrected := make([]float64, len(raw))
	for i, px := range raw {
		corrected[i] = float64(px)
	}
	floats.Mul(corrected, irr)
	floats.Div(corrected, prnu)
	floats.Scale(1/(s.cal.IrrScaler*s.params.ExposureTimeMs*exposureScale), corrected)
	return corrected, nil
}

// exposureScale folds the device's 10 microsecond exposure unit into the
// irradiance normalization, matching the factory software's scaling.
const exposureScale = 100
