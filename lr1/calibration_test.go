package lr1

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/aseqtools/go-lr1/caldata"
)

// calibrationBlock builds a minimal on-flash calibration text with
// constant normalization arrays.
func calibrationBlock(irrScaler, prnu, irr float64) []byte {
	lines := make([]string, caldata.BlockLines)
	for i := range lines {
		lines[i] = "0"
	}
	lines[0] = "LR1 c.Y 424242"
	lines[1] = strconv.FormatFloat(irrScaler, 'e', 6, 64)
	lines[2] = "500.000000"
	// Short representations keep the block inside the on-flash window.
	for i := 12; i < 3665; i++ {
		lines[i] = strconv.FormatFloat(300+0.1*float64(i-12), 'f', 2, 64)
	}
	prnuText := strconv.FormatFloat(prnu, 'g', -1, 64)
	for i := 3666; i < 7318; i++ {
		lines[i] = prnuText
	}
	irrText := strconv.FormatFloat(irr, 'g', -1, 64)
	for i := 7320; i < 10974; i++ {
		lines[i] = irrText
	}
	return []byte(strings.Join(lines, "\n"))
}

// calibratedDevice returns a flash emulator with a calibration block
// preloaded at offset zero.
func calibratedDevice(irrScaler, prnu, irr float64) *flashDevice {
	device := newFlashDevice()
	copy(device.mem, calibrationBlock(irrScaler, prnu, irr))
	return device
}

func TestOpenLoadsCalibration(t *testing.T) {
	device := calibratedDevice(0.5, 1.0, 2.0)
	spec := openOnFlash(t, device)

	cal := spec.Calibration()
	if cal == nil {
		t.Fatal("calibration not loaded")
	}
	if cal.Model != "LR1" || cal.Serial != 424242 {
		t.Errorf("header = %s/%d, want LR1/424242", cal.Model, cal.Serial)
	}
	if cal.IrrScaler != 0.5 {
		t.Errorf("IrrScaler = %g, want 0.5", cal.IrrScaler)
	}
	if got := len(cal.Wavelengths()); got != caldata.WavelengthCount-caldata.WavelengthTrim {
		t.Errorf("wavelength count = %d, want %d", got, caldata.WavelengthCount-caldata.WavelengthTrim)
	}
}

func TestOpenSurvivesBlankFlash(t *testing.T) {
	device := newFlashDevice() // all 0xFF, no calibration written
	logger := &mockLogger{}
	spec := openOnFlash(t, device, WithLogger(logger))

	if spec.Calibration() != nil {
		t.Error("blank flash must not produce a calibration")
	}
	if len(logger.errorMsgs) == 0 {
		t.Error("expected an error log for the failed calibration load")
	}
}

func TestLoadCalibrationAfterWrite(t *testing.T) {
	device := newFlashDevice()
	spec := openOnFlash(t, device, WithoutCalibration())

	if err := spec.WriteFlash(context.Background(), 0, calibrationBlock(1.0, 1.0, 1.0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := spec.LoadCalibration(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Calibration() == nil {
		t.Fatal("calibration not loaded after rewrite")
	}
}

func TestApplyIrradianceCalibration(t *testing.T) {
	// With irradiance response 2.0, PRNU 1.0, scaler 0.5 and the default
	// 10 ms exposure, each count maps to count*2/(1*0.5*10*100) = count/250.
	device := calibratedDevice(0.5, 1.0, 2.0)
	spec := openOnFlash(t, device)

	raw := make([]uint16, len(spec.Calibration().IrrNorm()))
	for i := range raw {
		raw[i] = 1000
	}

	corrected, err := spec.ApplyIrradianceCalibration(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(corrected) != len(raw) {
		t.Fatalf("corrected length = %d, want %d", len(corrected), len(raw))
	}
	for i, v := range corrected {
		if math.Abs(v-4.0) > 1e-9 {
			t.Fatalf("corrected[%d] = %g, want 4.0", i, v)
		}
	}
}

func TestApplyIrradianceCalibrationNoCalibration(t *testing.T) {
	device := newMockDevice()
	scriptOpen(device, 300)
	spec, err := Open(context.Background(), device, WithoutCalibration())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer spec.Close()

	if _, err := spec.ApplyIrradianceCalibration(make([]uint16, 10)); !errors.Is(err, ErrNoCalibration) {
		t.Fatalf("error = %v, want ErrNoCalibration", err)
	}
}

func TestApplyIrradianceCalibrationLengthMismatch(t *testing.T) {
	device := calibratedDevice(0.5, 1.0, 2.0)
	spec := openOnFlash(t, device)

	if _, err := spec.ApplyIrradianceCalibration(make([]uint16, 10)); err == nil {
		t.Fatal("expected error for a frame not matching the calibration length")
	}
}
