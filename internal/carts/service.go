package carts

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/poslane/internal/cartapi"
	"github.com/angelmondragon/poslane/internal/cartcache"
	"github.com/angelmondragon/poslane/internal/pricing"
	"github.com/angelmondragon/poslane/internal/scan"
	"github.com/angelmondragon/poslane/internal/tabs"
	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/angelmondragon/poslane/pkg/logger"
	"github.com/angelmondragon/poslane/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the terminal-side surface over cart mutations. Every write goes
// through the shared mutation gate, refreshes the local tab projection, and
// keeps the snapshot cache honest.
type Service struct {
	username string
	storeID  uuid.UUID

	api   cartapi.API
	store *tabs.Store
	cache cartcache.Cache
	gate  *scan.Gate
	logg  *logger.Logger
	stats *metrics.ScanPipelineMetrics
	now   func() time.Time
}

// Params wires the cart service.
type Params struct {
	Username string
	StoreID  uuid.UUID

	API     cartapi.API
	Store   *tabs.Store
	Cache   cartcache.Cache
	Gate    *scan.Gate
	Logger  *logger.Logger
	Metrics *metrics.ScanPipelineMetrics
	Now     func() time.Time
}

// New builds the service.
func New(params Params) (*Service, error) {
	if params.Username == "" {
		return nil, fmt.Errorf("username required")
	}
	if params.StoreID == uuid.Nil {
		return nil, fmt.Errorf("store id required")
	}
	if params.API == nil {
		return nil, fmt.Errorf("cart api required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("tab store required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("cart cache required")
	}
	if params.Gate == nil {
		return nil, fmt.Errorf("mutation gate required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		username: params.Username,
		storeID:  params.StoreID,
		api:      params.API,
		store:    params.Store,
		cache:    params.Cache,
		gate:     params.Gate,
		logg:     params.Logger,
		stats:    params.Metrics,
		now:      now,
	}, nil
}

// Get returns the cart, serving the cached snapshot when one exists and
// falling back to the backend on a miss.
func (s *Service) Get(ctx context.Context, cartID uuid.UUID) (*cartapi.Cart, error) {
	if cart, hit, err := s.cache.Get(ctx, cartID); err == nil && hit {
		return cart, nil
	} else if err != nil {
		s.logg.Warn(s.logg.WithCartID(ctx, cartID.String()), "cart cache read failed")
	}

	cart, err := s.api.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cart); err != nil {
		s.logg.Warn(ctx, "failed to cache fetched cart")
	}
	return cart, nil
}

// Create opens a new backend cart, adds its tab, and makes it active.
func (s *Service) Create(ctx context.Context) (*cartapi.Cart, *tabs.UserCarts, error) {
	cart, err := s.api.CreateCart(ctx, s.storeID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.store.AddOrUpdateTab(ctx, s.username, tabs.TabFromCart(cart)); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist new tab")
	}
	userCarts, err := s.store.SetActive(ctx, s.username, cart.ID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate new tab")
	}
	if err := s.cache.Set(ctx, cart); err != nil {
		s.logg.Warn(ctx, "failed to cache new cart")
	}
	return cart, userCarts, nil
}

// IncrementItem adds one unit to an item line.
func (s *Service) IncrementItem(ctx context.Context, cartID, itemID uuid.UUID) (*cartapi.Cart, error) {
	action := cartapi.ActionIncrement
	return s.updateItem(ctx, cartID, itemID, cartapi.UpdateItemInput{Action: &action})
}

// DecrementItem removes one unit; the backend drops the line at zero.
func (s *Service) DecrementItem(ctx context.Context, cartID, itemID uuid.UUID) (*cartapi.Cart, error) {
	action := cartapi.ActionDecrement
	return s.updateItem(ctx, cartID, itemID, cartapi.UpdateItemInput{Action: &action})
}

// SetManualPrice overrides an item's unit price after checking the floor
// locally, so a doomed mutation never reaches the backend.
func (s *Service) SetManualPrice(ctx context.Context, cartID, itemID uuid.UUID, price decimal.Decimal) (*cartapi.Cart, error) {
	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	var item *cartapi.CartItem
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			item = &cart.Items[i]
			break
		}
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found in cart")
	}
	if err := pricing.ValidateManualPrice(item.Product, price); err != nil {
		return nil, err
	}

	return s.updateItem(ctx, cartID, itemID, cartapi.UpdateItemInput{ManualUnitPrice: &price})
}

// DeleteItem removes an item line entirely.
func (s *Service) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (*cartapi.Cart, error) {
	err := s.gate.Do(ctx, func(ctx context.Context) error {
		started := s.now()
		defer func() { s.stats.ObserveMutation(s.now().Sub(started)) }()
		return s.api.DeleteItem(ctx, cartID, itemID)
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, cartID); err != nil {
		s.logg.Warn(ctx, "failed to invalidate cart cache")
	}

	cart, err := s.api.GetCart(ctx, cartID)
	if err != nil {
		// The line is gone either way; the next reconcile pass refreshes
		// the tab projection.
		s.logg.Warn(s.logg.WithCartID(ctx, cartID.String()), "could not refresh cart after item delete")
		return nil, nil
	}
	s.refresh(ctx, cart)
	return cart, nil
}

// CheckoutResult carries the invoice and the tab list after the checkout,
// including the replacement tab when the last one was consumed.
type CheckoutResult struct {
	Invoice   *cartapi.Invoice
	UserCarts *tabs.UserCarts
}

// Checkout converts the cart to an invoice. The checked-out tab disappears
// locally; consuming the last tab immediately opens a replacement cart so
// the cashier is never left without one.
func (s *Service) Checkout(ctx context.Context, cartID uuid.UUID, input cartapi.CheckoutInput) (*CheckoutResult, error) {
	var invoice *cartapi.Invoice
	err := s.gate.Do(ctx, func(ctx context.Context) error {
		started := s.now()
		defer func() { s.stats.ObserveMutation(s.now().Sub(started)) }()
		var err error
		invoice, err = s.api.Checkout(ctx, cartID, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, cartID); err != nil {
		s.logg.Warn(ctx, "failed to invalidate checked-out cart")
	}

	_, userCarts, err := s.store.RemoveTab(ctx, s.username, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove checked-out tab")
	}

	if userCarts == nil || len(userCarts.Tabs) == 0 {
		if _, replacement, err := s.Create(ctx); err != nil {
			s.logg.Error(s.logg.WithUsername(ctx, s.username), "failed to open replacement cart after checkout", err)
		} else {
			userCarts = replacement
		}
	}

	return &CheckoutResult{Invoice: invoice, UserCarts: userCarts}, nil
}

// updateItem runs one serialized item mutation and refreshes local state
// from the returned cart.
func (s *Service) updateItem(ctx context.Context, cartID, itemID uuid.UUID, input cartapi.UpdateItemInput) (*cartapi.Cart, error) {
	var cart *cartapi.Cart
	err := s.gate.Do(ctx, func(ctx context.Context) error {
		started := s.now()
		defer func() { s.stats.ObserveMutation(s.now().Sub(started)) }()
		var err error
		cart, err = s.api.UpdateItem(ctx, cartID, itemID, input)
		return err
	})
	if err != nil {
		if invErr := s.cache.Invalidate(ctx, cartID); invErr != nil {
			s.logg.Warn(ctx, "failed to invalidate cart cache")
		}
		return nil, err
	}

	s.refresh(ctx, cart)
	return cart, nil
}

func (s *Service) refresh(ctx context.Context, cart *cartapi.Cart) {
	if cart == nil {
		return
	}
	if err := s.cache.Set(ctx, cart); err != nil {
		s.logg.Warn(ctx, "failed to cache refreshed cart")
	}
	if _, err := s.store.AddOrUpdateTab(ctx, s.username, tabs.TabFromCart(cart)); err != nil {
		s.logg.Warn(ctx, "failed to refresh tab projection")
	}
}
