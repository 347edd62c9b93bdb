package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/poslane/internal/cartapi"
	"github.com/angelmondragon/poslane/internal/cartcache"
	"github.com/angelmondragon/poslane/internal/tabs"
	"github.com/angelmondragon/poslane/pkg/enums"
	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/angelmondragon/poslane/pkg/logger"
	"github.com/angelmondragon/poslane/pkg/metrics"
	"github.com/google/uuid"
)

// Service merges the backend's active cart list into the local tab list.
// The backend always wins: every tab field is overwritten from the remote
// cart, and local tabs the backend no longer knows are verified once and
// dropped if the verification does not confirm them.
type Service struct {
	api      cartapi.API
	store    *tabs.Store
	cache    cartcache.Cache
	logg     *logger.Logger
	stats    *metrics.SyncMetrics
	interval time.Duration
	now      func() time.Time
}

// Params wires the reconciliation service.
type Params struct {
	API      cartapi.API
	Store    *tabs.Store
	Cache    cartcache.Cache
	Logger   *logger.Logger
	Metrics  *metrics.SyncMetrics
	Interval time.Duration
	Now      func() time.Time
}

// New builds the service.
func New(params Params) (*Service, error) {
	if params.API == nil {
		return nil, fmt.Errorf("cart api required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("tab store required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("cart cache required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		api:      params.API,
		store:    params.Store,
		cache:    params.Cache,
		logg:     params.Logger,
		stats:    params.Metrics,
		interval: interval,
		now:      now,
	}, nil
}

// Reconcile runs one pass for the cashier. When the backend list cannot be
// fetched the local list is returned untouched along with the error; the
// terminal keeps operating on its last-known state.
func (s *Service) Reconcile(ctx context.Context, username string, storeID uuid.UUID, preferredActiveID *uuid.UUID) (*tabs.UserCarts, error) {
	ctx = s.logg.WithStoreID(s.logg.WithUsername(ctx, username), storeID.String())
	started := s.now()
	defer func() { s.stats.ObserveDuration(s.now().Sub(started)) }()

	remote, err := s.api.ListActiveCarts(ctx)
	if err != nil {
		s.stats.IncFailure()
		s.logg.Warn(ctx, "cart list fetch failed, keeping local tabs")
		return s.store.Load(ctx, username), err
	}

	local := s.store.Load(ctx, username)
	var previous *uuid.UUID
	if local != nil {
		previous = local.ActiveTabID
	}

	merged := make([]tabs.CartTab, 0, len(remote))
	remoteIDs := map[uuid.UUID]bool{}
	for i := range remote {
		cart := &remote[i]
		if cart.StoreID != storeID {
			continue
		}
		remoteIDs[cart.ID] = true
		merged = append(merged, tabs.TabFromCart(cart))
		if err := s.cache.Set(ctx, cart); err != nil {
			s.logg.Warn(s.logg.WithCartID(ctx, cart.ID.String()), "failed to cache reconciled cart")
		}
	}

	if local != nil {
		for _, tab := range local.Tabs {
			if remoteIDs[tab.ID] {
				continue
			}
			if verified := s.verifyTab(ctx, storeID, tab); verified != nil {
				merged = append(merged, *verified)
			}
		}
	}

	userCarts := &tabs.UserCarts{
		Username:    username,
		Tabs:        merged,
		ActiveTabID: tabs.ResolveActive(merged, preferredActiveID, previous),
	}
	if err := s.store.Replace(ctx, userCarts); err != nil {
		s.stats.IncFailure()
		return local, fmt.Errorf("persisting reconciled tabs: %w", err)
	}

	s.stats.IncSuccess()
	s.logg.Debug(ctx, "tabs reconciled")
	return userCarts, nil
}

// verifyTab checks a local tab missing from the backend list against the
// backend directly. Only a confirmed active cart in the same store survives;
// everything else drops, including carts that cannot be verified at all.
// Checked-out and deleted carts disappear here without ceremony.
func (s *Service) verifyTab(ctx context.Context, storeID uuid.UUID, tab tabs.CartTab) *tabs.CartTab {
	ctx = s.logg.WithCartID(ctx, tab.ID.String())

	cart, err := s.api.GetCart(ctx, tab.ID)
	if err != nil {
		if !pkgerrors.IsNotFound(err) {
			s.logg.Warn(ctx, "tab verification failed, dropping local tab")
		}
		s.stats.IncDropped()
		s.dropCached(ctx, tab.ID)
		return nil
	}
	if cart.StoreID != storeID || (cart.Status != "" && cart.Status != enums.CartStatusActive) {
		s.stats.IncDropped()
		s.dropCached(ctx, tab.ID)
		return nil
	}

	refreshed := tabs.TabFromCart(cart)
	return &refreshed
}

func (s *Service) dropCached(ctx context.Context, cartID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, cartID); err != nil {
		s.logg.Warn(ctx, "failed to drop cached cart")
	}
}

// Run executes passes on the configured interval until the context ends.
// One pass runs immediately so the terminal converges right after startup.
func (s *Service) Run(ctx context.Context, username string, storeID uuid.UUID) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if _, err := s.Reconcile(ctx, username, storeID, nil); err != nil {
		s.logg.Warn(ctx, "startup reconciliation pass failed")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Reconcile(ctx, username, storeID, nil); err != nil {
				s.logg.Warn(ctx, "reconciliation pass failed")
			}
		}
	}
}
