package lr1

import (
	"time"

	"github.com/aseqtools/go-lr1/protocol"
)

// Config holds the session configuration.
type Config struct {
	// ProgressCallback is called during flash transfers to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Timeout bounds one packet write or read
	Timeout time.Duration

	// EraseTimeout bounds the erase_flash reply; full-chip erase is slow
	EraseTimeout time.Duration

	// SettleDelay is slept after pushing acquisition parameters
	SettleDelay time.Duration

	// BatchDelay is slept after each read_flash batch request
	BatchDelay time.Duration

	// IdlePollInterval is the status poll interval while waiting for an
	// external trigger edge
	IdlePollInterval time.Duration

	// SkipCalibration disables the calibration load at open time
	SkipCalibration bool
}

// defaultConfig returns the default configuration. The timing values are
// the vendor protocol constants.
func defaultConfig() Config {
	return Config{
		Timeout:          protocol.StandardTimeout,
		EraseTimeout:     protocol.FlashEraseTimeout,
		SettleDelay:      protocol.ParameterSettleDelay,
		BatchDelay:       protocol.FlashBatchDelay,
		IdlePollInterval: 10 * time.Millisecond,
	}
}

// Option is a functional option for configuring the session.
type Option func(*Config)

// WithProgressCallback sets a callback to track flash transfer progress.
//
// Example:
//
//	spectro, err := lr1.Open(ctx, device,
//	    lr1.WithProgressCallback(func(p lr1.Progress) {
//	        fmt.Printf("%s: %d/%d bytes\n", p.Operation, p.BytesDone, p.BytesTotal)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for session operations.
//
// Example:
//
//	spectro, err := lr1.Open(ctx, device, lr1.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTimeout sets the per-packet I/O timeout. The default is the vendor
// protocol's 100 ms.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithEraseTimeout sets the erase_flash reply timeout. The default is the
// vendor protocol's 5000 ms.
func WithEraseTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.EraseTimeout = timeout
		}
	}
}

// WithSettleDelay sets the delay slept after pushing acquisition
// parameters. The device needs it before the next command is trusted.
func WithSettleDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.SettleDelay = delay
		}
	}
}

// WithIdlePollInterval sets the status poll interval used while waiting
// for an external trigger edge. The default is 10 ms.
func WithIdlePollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.IdlePollInterval = interval
		}
	}
}

// WithoutCalibration skips the calibration load during Open. Useful for
// test rigs that only need raw acquisition; the ~97 KB flash read takes
// several seconds.
func WithoutCalibration() Option {
	return func(c *Config) {
		c.SkipCalibration = true
	}
}
