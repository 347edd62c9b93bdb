package capture

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/angelmondragon/poslane/pkg/logger"
)

// Provider-level failures. Providers return these sentinels; Acquire maps
// them onto the device error surface the UI understands.
var (
	ErrPermissionDenied = errors.New("capture permission denied")
	ErrNoDevice         = errors.New("no capture device")
	ErrDeviceBusy       = errors.New("capture device busy")
)

// Device is one attached video input.
type Device struct {
	ID     string
	Label  string
	Facing string
}

// Constraints narrows a stream request. Zero values leave the dimension to
// the provider.
type Constraints struct {
	DeviceID string
	Facing   string
	Width    int
	Height   int
}

// Stream is a live video feed handed to the barcode detector. Closing it
// releases the device.
type Stream interface {
	Device() Device
	Close() error
}

// Provider abstracts the camera subsystem of the lane's hardware.
type Provider interface {
	RequestStream(ctx context.Context, constraints Constraints) (Stream, error)
	EnumerateDevices(ctx context.Context) ([]Device, error)
}

// rear-facing label fragments, checked case-insensitively.
var rearLabelHints = []string{"back", "rear", "environment"}

// Acquire opens the scanning stream, preferring a rear-facing camera.
//
// Device labels are often blank until a stream has been granted once, so a
// throwaway high-resolution request runs first to surface the permission
// prompt and unlock labels. Selection then goes label probe, last listed
// device, explicit rear facing, front facing.
func Acquire(ctx context.Context, provider Provider, logg *logger.Logger) (Stream, error) {
	probe, err := provider.RequestStream(ctx, Constraints{Width: 1280, Height: 720})
	if err != nil {
		return nil, deviceError(err)
	}
	_ = probe.Close()

	devices, err := provider.EnumerateDevices(ctx)
	if err != nil {
		logg.Warn(ctx, "device enumeration failed, falling back to facing constraints")
		devices = nil
	}

	if picked, ok := pickDevice(devices); ok {
		stream, err := provider.RequestStream(ctx, Constraints{DeviceID: picked.ID})
		if err == nil {
			return stream, nil
		}
		logg.Warn(ctx, "selected capture device rejected the stream, falling back to facing constraints")
	}

	stream, err := provider.RequestStream(ctx, Constraints{Facing: "environment"})
	if err == nil {
		return stream, nil
	}

	stream, err = provider.RequestStream(ctx, Constraints{Facing: "user"})
	if err != nil {
		return nil, deviceError(err)
	}
	return stream, nil
}

// pickDevice prefers the first rear-labelled device, then the last listed
// one, which on multi-camera hardware is usually the outward lens.
func pickDevice(devices []Device) (Device, bool) {
	if len(devices) == 0 {
		return Device{}, false
	}
	for _, device := range devices {
		label := strings.ToLower(device.Label)
		for _, hint := range rearLabelHints {
			if strings.Contains(label, hint) {
				return device, true
			}
		}
	}
	return devices[len(devices)-1], true
}

// deviceError maps provider sentinels onto typed device errors with messages
// the cashier can act on.
func deviceError(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return pkgerrors.Wrap(pkgerrors.CodeDevice, err, "Camera permission denied")
	case errors.Is(err, ErrNoDevice):
		return pkgerrors.Wrap(pkgerrors.CodeDevice, err, "No camera found")
	case errors.Is(err, ErrDeviceBusy):
		return pkgerrors.Wrap(pkgerrors.CodeDevice, err, "Camera is in use by another application")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDevice, err, "Could not start the camera")
	}
}
