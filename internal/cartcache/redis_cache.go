package cartcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angelmondragon/poslane/internal/cartapi"
	"github.com/angelmondragon/poslane/pkg/redis"
	"github.com/google/uuid"
)

const snapshotTTL = 5 * time.Minute

// Redis keeps cart snapshots in the shared cache so a terminal restart does
// not start cold. TTL bounds staleness; reconciliation still wins.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, cartID uuid.UUID) (*cartapi.Cart, bool, error) {
	raw, err := r.client.Get(ctx, r.client.CartKey(cartID.String()))
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cart cartapi.Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		// Corrupt payloads behave like a miss; the next Set overwrites.
		return nil, false, nil
	}
	return &cart, true, nil
}

func (r *Redis) Set(ctx context.Context, cart *cartapi.Cart) error {
	if cart == nil {
		return nil
	}
	payload, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.client.CartKey(cart.ID.String()), string(payload), snapshotTTL)
}

func (r *Redis) Invalidate(ctx context.Context, cartID uuid.UUID) error {
	return r.client.Del(ctx, r.client.CartKey(cartID.String()))
}
