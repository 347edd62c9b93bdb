package capture

import "context"

// Unattached is the provider for lanes without a camera subsystem. Session
// starts fail with a device error and intake falls back to wedge scanners or
// hand-keyed codes, which bypass the camera entirely.
type Unattached struct{}

func (Unattached) RequestStream(context.Context, Constraints) (Stream, error) {
	return nil, ErrNoDevice
}

func (Unattached) EnumerateDevices(context.Context) ([]Device, error) {
	return nil, ErrNoDevice
}
