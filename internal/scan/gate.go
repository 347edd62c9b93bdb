package scan

import "context"

// Gate serializes cart mutations. Only one add, update, delete or checkout
// runs at a time per terminal, so backend writes for one cashier never
// interleave.
type Gate struct {
	slot chan struct{}
}

// NewGate builds a single-slot gate.
func NewGate() *Gate {
	return &Gate{slot: make(chan struct{}, 1)}
}

// Do runs fn while holding the slot, waiting for the current holder or the
// context, whichever resolves first.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slot }()
	return fn(ctx)
}
