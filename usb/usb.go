// Package usb provides the gousb-backed transport for the lr1 session
// layer. It opens the spectrometer by its vendor and product ID, claims
// the default interface and exposes the two interrupt endpoints through
// the lr1.Device interface.
package usb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/op/go-logging"

	"github.com/aseqtools/go-lr1/protocol"
)

var log = logging.MustGetLogger("lr1-usb")

// configureSettle is slept after claiming the interface; the device drops
// the first transfers issued immediately after configuration.
const configureSettle = 200 * time.Millisecond

type config struct {
	vendorID  uint16
	productID uint16
}

// Option configures Open.
type Option func(*config)

// WithVIDPID overrides the USB IDs the device is matched by. Useful for
// units reflashed with non-factory descriptors.
func WithVIDPID(vendorID, productID uint16) Option {
	return func(c *config) {
		c.vendorID = vendorID
		c.productID = productID
	}
}

// DeviceInfo describes one spectrometer found on the bus.
type DeviceInfo struct {
	Bus     int
	Address int
}

// Discover enumerates the bus and returns every matching spectrometer
// without opening any of them.
func Discover(opts ...Option) ([]DeviceInfo, error) {
	cfg := config{vendorID: protocol.VendorID, productID: protocol.ProductID}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := gousb.NewContext()
	defer ctx.Close()

	var found []DeviceInfo
	_, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == gousb.ID(cfg.vendorID) && desc.Product == gousb.ID(cfg.productID) {
			found = append(found, DeviceInfo{Bus: desc.Bus, Address: desc.Address})
		}
		return false
	})
	if err != nil {
		return found, fmt.Errorf("enumerate bus: %w", err)
	}
	return found, nil
}

// Device is an open USB handle to the spectrometer. It implements
// lr1.Device.
type Device struct {
	ctx    *gousb.Context
	device *gousb.Device
	iface  *gousb.Interface
	done   func()
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
}

// Open finds the first spectrometer on the bus and claims it.
func Open(opts ...Option) (*Device, error) {
	cfg := config{vendorID: protocol.VendorID, productID: protocol.ProductID}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(cfg.vendorID), gousb.ID(cfg.productID))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("open device %04X:%04X: %w", cfg.vendorID, cfg.productID, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("no device with ID %04X:%04X on the bus", cfg.vendorID, cfg.productID)
	}

	// The OS HID driver binds the device first; detach it before claiming.
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("set auto detach: %w", err)
	}

	iface, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("claim default interface: %w", err)
	}

	d := &Device{ctx: ctx, device: dev, iface: iface, done: done}

	if d.out, err = iface.OutEndpoint(protocol.EndpointOut & 0x0F); err != nil {
		d.Close()
		return nil, fmt.Errorf("open OUT endpoint 0x%02X: %w", protocol.EndpointOut, err)
	}
	if d.in, err = iface.InEndpoint(protocol.EndpointIn & 0x0F); err != nil {
		d.Close()
		return nil, fmt.Errorf("open IN endpoint 0x%02X: %w", protocol.EndpointIn, err)
	}

	time.Sleep(configureSettle)
	log.Debugf("opened %04X:%04X on bus %d address %d",
		cfg.vendorID, cfg.productID, dev.Desc.Bus, dev.Desc.Address)
	return d, nil
}

// Write sends one request packet on the interrupt OUT endpoint.
func (d *Device) Write(p []byte) (int, error) {
	return d.out.Write(p)
}

// ReadTimeout reads one reply packet from the interrupt IN endpoint,
// failing once the timeout expires.
func (d *Device) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return d.in.ReadContext(ctx, p)
}

// Close releases the interface, the device and the USB context.
func (d *Device) Close() error {
	if d.done != nil {
		d.done()
		d.done = nil
	}
	var err error
	if d.device != nil {
		err = d.device.Close()
		d.device = nil
	}
	if d.ctx != nil {
		if cerr := d.ctx.Close(); err == nil {
			err = cerr
		}
		d.ctx = nil
	}
	return err
}
