// Package caldata provides the codec for the ASEQ LR1 factory calibration
// block stored in device flash.
//
// # Block Format
//
// The calibration is a fixed-line-count ASCII file written into the first
// 97089 bytes of flash; unwritten memory beyond it reads back as 0xFF.
// Decoded, the block is exactly 10975 newline-separated lines:
//
//	line 0          "<model> <type> <serial>" header, e.g. "LR1 Y 12345"
//	line 1          irradiance scaler (float)
//	line 2          irradiance reference wavelength (float)
//	lines 12-3664   wavelength array, 3653 values (nanometers)
//	lines 3666-7317 PRNU normalization array, 3652 values
//	lines 7320-10973 irradiance normalization array, 3654 values
//
// Lines outside those ranges are reserved and tolerated, not parsed. The
// array lengths carry historical quirks: the detector has 3648 pixels, so
// every array ends in a sentinel region (5 trailing wavelengths, 6 trailing
// normalization values) that the public accessors trim; and the block holds
// two fewer PRNU values than irradiance values, compensated by appending two
// 1.0 sentinels at parse time. Both quirks are load-bearing for field
// devices and are preserved exactly.
//
// # Usage
//
// Parse raw flash bytes:
//
//	cal, err := caldata.Parse(raw)
//	if err != nil {
//	    // calibration absent or unsupported layout; raw acquisition
//	    // remains possible
//	}
//	nm := cal.Wavelengths() // 3648 values, sentinels trimmed
//
// Any deviation from the 10975-line layout yields *FormatError: the flash
// layout has drifted from the supported hardware revision.
//
// # Round Trips
//
// Encode writes the inverse layout. Parse(Encode(c)) reproduces the same
// numeric arrays; byte-identical text is not guaranteed (float formatting
// may differ from the factory writer). Numeric equality is the contract.
package caldata
