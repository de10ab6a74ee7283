package caldata

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Line-layout constants of the on-flash calibration block. The block is a
// fixed-line-count ASCII file; the ranges below are the historical layout of
// the c.Y hardware revision and must not be re-derived.
const (
	// BlockLines is the exact line count of a decoded calibration block.
	// Any other count means the flash layout drifted from the supported
	// hardware revision.
	BlockLines = 10975

	// WavelengthCount is the internal wavelength array length
	WavelengthCount = 3653

	// NormCount is the internal PRNU and irradiance array length
	NormCount = 3654

	// WavelengthTrim is the count of trailing sentinel elements dropped
	// from the internal wavelength array by the public accessor
	WavelengthTrim = 5

	// NormTrim is the count of trailing sentinel elements dropped from the
	// internal PRNU and irradiance arrays by the public accessors
	NormTrim = 6

	wavelengthStart = 12
	wavelengthEnd   = 3665
	prnuStart       = 3666
	prnuEnd         = 7318
	irrStart        = 7320
	irrEnd          = 10974

	// prnuParsedCount is the number of PRNU values actually present in the
	// block; the internal array is padded to NormCount with sentinel 1.0
	// values. The length mismatch is inherited from the factory layout.
	prnuParsedCount = prnuEnd - prnuStart
)

// fillByte marks unwritten flash; trailing runs of it are stripped before
// decoding.
const fillByte = 0xFF

// FormatError indicates that a raw flash block does not decode to the
// supported calibration layout. A device whose calibration fails to parse
// remains usable for uncorrected acquisition.
type FormatError struct {
	// Reason describes what part of the layout did not match
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid calibration block: %s", e.Reason)
}

// Calibration is the factory calibration of one spectrometer: the per-pixel
// wavelength mapping and the normalization arrays enabling irradiance
// correction, plus scalar metadata from the block header.
//
// The internal arrays keep the trailing sentinel elements of the on-flash
// layout; the public accessors return the trimmed forms that calibration
// application consumes.
type Calibration struct {
	// Model is the device model from the block header (e.g. "LR1")
	Model string

	// Type is the calibration type from the block header; only the c.Y
	// type with irradiance calibration is supported
	Type string

	// Serial is the device serial number from the block header
	Serial uint32

	// IrrScaler is the irradiance scaling coefficient
	IrrScaler float64

	// IrrWave is the irradiance reference wavelength
	IrrWave float64

	wavelengths []float64
	prnuNorm    []float64
	irrNorm     []float64
}

// New builds a calibration from its scalar metadata and internal-length
// arrays. wavelengths must hold WavelengthCount elements; prnuNorm and
// irrNorm must hold NormCount elements each, including their trailing
// sentinel regions. Intended for writing new calibration blocks and for
// tests; device calibrations come from Parse.
func New(model, calType string, serial uint32, irrScaler, irrWave float64, wavelengths, prnuNorm, irrNorm []float64) (*Calibration, error) {
	if len(wavelengths) != WavelengthCount {
		return nil, fmt.Errorf("wavelength array must hold %d elements, got %d", WavelengthCount, len(wavelengths))
	}
	if len(prnuNorm) != NormCount {
		return nil, fmt.Errorf("PRNU array must hold %d elements, got %d", NormCount, len(prnuNorm))
	}
	if len(irrNorm) != NormCount {
		return nil, fmt.Errorf("irradiance array must hold %d elements, got %d", NormCount, len(irrNorm))
	}
	return &Calibration{
		Model:       model,
		Type:        calType,
		Serial:      serial,
		IrrScaler:   irrScaler,
		IrrWave:     irrWave,
		wavelengths: wavelengths,
		prnuNorm:    prnuNorm,
		irrNorm:     irrNorm,
	}, nil
}

// Wavelengths returns the per-pixel wavelengths in nanometers with the
// trailing sentinel region removed.
func (c *Calibration) Wavelengths() []float64 {
	return c.wavelengths[:len(c.wavelengths)-WavelengthTrim]
}

// PRNUNorm returns the pixel-response-non-uniformity normalization array
// with the trailing sentinel region removed.
func (c *Calibration) PRNUNorm() []float64 {
	return c.prnuNorm[:len(c.prnuNorm)-NormTrim]
}

// IrrNorm returns the irradiance normalization array with the trailing
// sentinel region removed.
func (c *Calibration) IrrNorm() []float64 {
	return c.irrNorm[:len(c.irrNorm)-NormTrim]
}

// Parse decodes a calibration block from raw flash bytes.
//
// Trailing 0xFF filler is stripped, tabs and carriage returns are dropped,
// and the text is split into lines. The line count must equal BlockLines
// exactly. Ranges between the documented fields are reserved and left
// unparsed.
func Parse(raw []byte) (*Calibration, error) {
	for len(raw) > 0 && raw[len(raw)-1] == fillByte {
		raw = raw[:len(raw)-1]
	}
	text := strings.NewReplacer("\t", "", "\r", "").Replace(string(raw))
	lines := strings.Split(text, "\n")

	if len(lines) != BlockLines {
		return nil, &FormatError{Reason: fmt.Sprintf("expected %d lines, got %d", BlockLines, len(lines))}
	}

	header := strings.Fields(lines[0])
	if len(header) < 3 {
		return nil, &FormatError{Reason: fmt.Sprintf("header %q has %d fields, expected 3", lines[0], len(header))}
	}
	serial, err := strconv.ParseUint(header[2], 10, 32)
	if err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("serial %q: %v", header[2], err)}
	}

	c := &Calibration{
		Model:  header[0],
		Type:   header[1],
		Serial: uint32(serial),
	}
	if c.IrrScaler, err = strconv.ParseFloat(lines[1], 64); err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("irradiance scaler %q: %v", lines[1], err)}
	}
	if c.IrrWave, err = strconv.ParseFloat(lines[2], 64); err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("irradiance wavelength %q: %v", lines[2], err)}
	}

	if c.wavelengths, err = parseFloats(lines[wavelengthStart:wavelengthEnd]); err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("wavelength array: %v", err)}
	}
	if c.prnuNorm, err = parseFloats(lines[prnuStart:prnuEnd]); err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("PRNU array: %v", err)}
	}
	// The block holds two fewer PRNU values than the irradiance array.
	// Pad with unity sentinels to NormCount; the padded tail never reaches
	// the public accessor.
	for len(c.prnuNorm) < NormCount {
		c.prnuNorm = append(c.prnuNorm, 1.0)
	}
	if c.irrNorm, err = parseFloats(lines[irrStart:irrEnd]); err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("irradiance array: %v", err)}
	}

	return c, nil
}

// ParseReader decodes a calibration block from any io.Reader.
func ParseReader(r io.Reader) (*Calibration, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration block: %w", err)
	}
	return Parse(raw)
}

// ParseFile decodes a calibration block from a file on disk.
func ParseFile(path string) (*Calibration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return Parse(raw)
}

// Encode serializes the calibration back to the on-flash text layout.
//
// The layout is the exact inverse of Parse: the two sentinel values padding
// the PRNU array are not written, so Parse(Encode(c)) reproduces the same
// numeric arrays. Byte-identical round trips are not guaranteed; float
// formatting may differ from the factory writer.
func (c *Calibration) Encode() []byte {
	lines := make([]string, BlockLines)
	lines[0] = fmt.Sprintf("%s %s %d", c.Model, c.Type, c.Serial)
	lines[1] = strconv.FormatFloat(c.IrrScaler, 'e', 6, 64)
	lines[2] = strconv.FormatFloat(c.IrrWave, 'f', 6, 64)

	writeFloats(lines[wavelengthStart:wavelengthEnd], c.wavelengths)
	writeFloats(lines[prnuStart:prnuEnd], c.prnuNorm[:prnuParsedCount])
	writeFloats(lines[irrStart:irrEnd], c.irrNorm)

	return []byte(strings.Join(lines, "\n"))
}

// WriteFile serializes the calibration to a file on disk.
func (c *Calibration) WriteFile(path string) error {
	return os.WriteFile(path, c.Encode(), 0o644)
}

func parseFloats(lines []string) ([]float64, error) {
	out := make([]float64, len(lines))
	for i, line := range lines {
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("value %d (%q): %w", i, line, err)
		}
		out[i] = v
	}
	return out, nil
}

func writeFloats(lines []string, values []float64) {
	for i, v := range values {
		lines[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
}
