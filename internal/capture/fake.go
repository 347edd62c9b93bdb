package capture

import (
	"context"
	"sync"
)

// FakeStream is the test stream handed out by FakeProvider.
type FakeStream struct {
	device Device
	mu     sync.Mutex
	closed bool
}

func (s *FakeStream) Device() Device { return s.device }

func (s *FakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether the stream has been released.
func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// FakeProvider is an in-memory camera subsystem for tests. RequestErr fails
// every stream request; Devices and EnumerateErr drive enumeration.
type FakeProvider struct {
	Devices      []Device
	RequestErr   error
	EnumerateErr error

	mu       sync.Mutex
	requests []Constraints
	streams  []*FakeStream
}

func (p *FakeProvider) RequestStream(_ context.Context, constraints Constraints) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, constraints)
	if p.RequestErr != nil {
		return nil, p.RequestErr
	}

	device := Device{ID: constraints.DeviceID, Facing: constraints.Facing}
	for _, candidate := range p.Devices {
		if candidate.ID == constraints.DeviceID {
			device = candidate
			break
		}
	}
	stream := &FakeStream{device: device}
	p.streams = append(p.streams, stream)
	return stream, nil
}

func (p *FakeProvider) EnumerateDevices(_ context.Context) ([]Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.EnumerateErr != nil {
		return nil, p.EnumerateErr
	}
	out := make([]Device, len(p.Devices))
	copy(out, p.Devices)
	return out, nil
}

// Requests returns every constraint set seen, in order.
func (p *FakeProvider) Requests() []Constraints {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Constraints, len(p.requests))
	copy(out, p.requests)
	return out
}

// Streams returns every stream handed out, in order.
func (p *FakeProvider) Streams() []*FakeStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*FakeStream, len(p.streams))
	copy(out, p.streams)
	return out
}
