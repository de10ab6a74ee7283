// Package lr1 drives an ASEQ LR1 spectrometer over USB.
//
// A session wraps an injected Device transport and exposes the
// instrument's operations: acquisition parameters, triggering, frame
// capture, flash access and calibration. The zero entry point is Open,
// which resets the device, loads its state and reads the factory
// calibration off flash.
//
// # Basic Usage
//
//	dev, err := usb.Open()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	spec, err := lr1.Open(context.Background(), dev)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer spec.Close()
//
//	frame, err := spec.GrabOne(context.Background(), 10) // 10 ms exposure
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Configuration
//
// Open accepts functional options:
//
//	spec, err := lr1.Open(ctx, dev,
//		lr1.WithLogger(myLogger),
//		lr1.WithProgressCallback(func(p lr1.Progress) {
//			fmt.Printf("%s: %d/%d\n", p.Operation, p.BytesDone, p.BytesTotal)
//		}),
//	)
//
// # Concurrency
//
// A Spectrometer is safe for concurrent use. The wire protocol cannot
// interleave requests, so every operation takes an internal mutex and
// concurrent callers run one at a time.
//
// # Errors
//
// Transport failures are wrapped in TransportError. Protocol-level
// faults surface as the protocol package's typed errors:
// ReplyMismatchError for a desynchronized session, DeviceError and
// DroppedPacketError for failed multi-packet transfers. All support
// errors.As and errors.Is.
package lr1
