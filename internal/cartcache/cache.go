package cartcache

import (
	"context"
	"sync"

	"github.com/angelmondragon/poslane/internal/cartapi"
	"github.com/google/uuid"
)

// Cache holds the terminal's last-known cart snapshots. Snapshots are never
// authoritative: every cart mutation invalidates, and readers fall back to
// the backend on a miss.
type Cache interface {
	Get(ctx context.Context, cartID uuid.UUID) (*cartapi.Cart, bool, error)
	Set(ctx context.Context, cart *cartapi.Cart) error
	Invalidate(ctx context.Context, cartID uuid.UUID) error
}

// Memory is the default in-process cache.
type Memory struct {
	mu    sync.Mutex
	carts map[uuid.UUID]cartapi.Cart
}

func NewMemory() *Memory {
	return &Memory{carts: map[uuid.UUID]cartapi.Cart{}}
}

func (m *Memory) Get(_ context.Context, cartID uuid.UUID) (*cartapi.Cart, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[cartID]
	if !ok {
		return nil, false, nil
	}
	copied := cart
	return &copied, true, nil
}

func (m *Memory) Set(_ context.Context, cart *cartapi.Cart) error {
	if cart == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.ID] = *cart
	return nil
}

func (m *Memory) Invalidate(_ context.Context, cartID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, cartID)
	return nil
}
