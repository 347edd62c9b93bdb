package scan

import (
	"context"
	"fmt"
	"sync"
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

// Item is one scan travelling through the queue. Terminal items stick around
// for the retention window so the UI can show what just happened.
type Item struct {
	ID        uuid.UUID        `json:"id"`
	Code      string           `json:"code"`
	Status    enums.ScanStatus `json:"status"`
	Message   string           `json:"message"`
	ErrorCode pkgerrors.Code   `json:"error_code,omitempty"`
	CartID    *uuid.UUID       `json:"cart_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	SettledAt *time.Time       `json:"settled_at,omitempty"`
}

// Queue processes accepted scans one at a time, in arrival order, against the
// cashier's active cart. Each item reaches exactly one terminal status.
type Queue struct {
	mu       sync.Mutex
	items    []*Item
	draining bool

	username  string
	storeID   uuid.UUID
	retention time.Duration

	api   cartapi.API
	store *tabs.Store
	cache cartcache.Cache
	gate  *Gate
	logg  *logger.Logger
	stats *metrics.ScanPipelineMetrics
	now   func() time.Time

	// onSettled fires after every terminal transition; the session uses it to
	// release the debouncer and drive the capture lifecycle.
	onSettled func(item Item)

	// runAsync overrides drain scheduling, used by tests to drain inline.
	runAsync func(fn func())
}

// QueueParams wires a scan queue.
type QueueParams struct {
	Username string
	StoreID  uuid.UUID

	API       cartapi.API
	Store     *tabs.Store
	Cache     cartcache.Cache
	Gate      *Gate
	Logger    *logger.Logger
	Metrics   *metrics.ScanPipelineMetrics
	Retention time.Duration

	Now      func() time.Time
	RunAsync func(fn func())
}

// NewQueue builds the queue.
func NewQueue(params QueueParams) (*Queue, error) {
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
	runAsync := params.RunAsync
	if runAsync == nil {
		runAsync = func(fn func()) { go fn() }
	}
	retention := params.Retention
	if retention <= 0 {
		retention = 5 * time.Second
	}
	return &Queue{
		username:  params.Username,
		storeID:   params.StoreID,
		retention: retention,
		api:       params.API,
		store:     params.Store,
		cache:     params.Cache,
		gate:      params.Gate,
		logg:      params.Logger,
		stats:     params.Metrics,
		now:       now,
		runAsync:  runAsync,
	}, nil
}

// SetOnSettled registers the terminal-transition hook. Must be called before
// the first Enqueue.
func (q *Queue) SetOnSettled(fn func(item Item)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onSettled = fn
}

// Enqueue adds an accepted code as a pending item and kicks the drain loop.
// It returns the item snapshot immediately; processing is asynchronous.
func (q *Queue) Enqueue(ctx context.Context, code string) Item {
	q.mu.Lock()
	item := &Item{
		ID:        uuid.New(),
		Code:      code,
		Status:    enums.ScanStatusPending,
		CreatedAt: q.now(),
	}
	q.items = append(q.items, item)
	q.pruneLocked()
	q.stats.SetQueueDepth(len(q.items))
	snapshot := *item

	kick := !q.draining
	if kick {
		q.draining = true
	}
	q.mu.Unlock()

	if kick {
		bgCtx := context.WithoutCancel(ctx)
		q.runAsync(func() { q.drain(bgCtx) })
	}
	return snapshot
}

// Snapshot returns the queue in arrival order, pruned of expired items.
func (q *Queue) Snapshot() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pruneLocked()
	out := make([]Item, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, *item)
	}
	return out
}

// drain processes pending items until none remain. A single drainer runs at
// a time; Enqueue restarts it when it has exited.
func (q *Queue) drain(ctx context.Context) {
	for {
		q.mu.Lock()
		var next *Item
		for _, item := range q.items {
			if item.Status == enums.ScanStatusPending {
				next = item
				break
			}
		}
		if next == nil {
			q.draining = false
			q.mu.Unlock()
			return
		}
		next.Status = enums.ScanStatusProcessing
		q.mu.Unlock()

		q.process(ctx, next)
	}
}

// process drives one item to its terminal status.
func (q *Queue) process(ctx context.Context, item *Item) {
	ctx = q.logg.WithBarcode(q.logg.WithUsername(ctx, q.username), item.Code)

	cart, err := q.freshActiveCart(ctx)
	if err != nil {
		q.settle(ctx, item, enums.ScanStatusError, publicMessage(err, "Cart unavailable"), errorCode(err), nil)
		return
	}

	// The cart check runs before the queue check: a code already applied to
	// the cart reports "Already in cart" even when an earlier queue item for
	// it is still visible.
	if cart != nil && cart.ContainsBarcode(item.Code) {
		q.settle(ctx, item, enums.ScanStatusSuccess, "Already in cart", "", &cart.ID)
		return
	}

	if q.hasCompetingItem(item) {
		q.settle(ctx, item, enums.ScanStatusError, "Duplicate scan", pkgerrors.CodeConflict, cartIDOf(cart))
		return
	}

	lookup, err := q.api.LookupByBarcode(ctx, item.Code, true)
	switch {
	case pkgerrors.IsNotFound(err):
		q.settle(ctx, item, enums.ScanStatusError, "Product not found", pkgerrors.CodeNotFound, cartIDOf(cart))
		return
	case err != nil:
		q.settle(ctx, item, enums.ScanStatusError, publicMessage(err, "Lookup failed"), errorCode(err), cartIDOf(cart))
		return
	case !lookup.BarcodeAvailable:
		message := "Unit already sold"
		if lookup.SoldInvoiceRef != nil && *lookup.SoldInvoiceRef != "" {
			message = fmt.Sprintf("Unit already sold (invoice %s)", *lookup.SoldInvoiceRef)
		}
		q.settle(ctx, item, enums.ScanStatusError, message, pkgerrors.CodeUnavailable, cartIDOf(cart))
		return
	}

	if cart == nil {
		cart, err = q.createCart(ctx)
		if err != nil {
			q.settle(ctx, item, enums.ScanStatusError, publicMessage(err, "Could not open a cart"), errorCode(err), nil)
			return
		}
	}

	var result *cartapi.AddItemResult
	mutationErr := q.gate.Do(ctx, func(ctx context.Context) error {
		started := q.now()
		defer func() { q.stats.ObserveMutation(q.now().Sub(started)) }()

		productID := lookup.ProductID
		code := item.Code
		result, err = q.api.AddItem(ctx, cart.ID, cartapi.AddItemInput{
			ProductID: &productID,
			Quantity:  1,
			Barcode:   &code,
		})
		return err
	})
	if mutationErr != nil {
		q.settle(ctx, item, enums.ScanStatusError, publicMessage(mutationErr, "Could not add item"), errorCode(mutationErr), &cart.ID)
		return
	}

	message := result.Message
	if message == "" {
		message = "Added"
	}
	if result.Cart != nil {
		if err := q.cache.Set(ctx, result.Cart); err != nil {
			q.logg.Warn(ctx, "failed to cache refreshed cart")
		}
		if _, err := q.store.AddOrUpdateTab(ctx, q.username, tabs.TabFromCart(result.Cart)); err != nil {
			q.logg.Warn(ctx, "failed to refresh tab after add")
		}
	}
	q.settle(ctx, item, enums.ScanStatusSuccess, message, "", &cart.ID)
}

// freshActiveCart fetches the active cart from the backend, never the cache.
// A missing active tab yields (nil, nil); the cart is created lazily on the
// first successful lookup.
func (q *Queue) freshActiveCart(ctx context.Context) (*cartapi.Cart, error) {
	userCarts := q.store.Load(ctx, q.username)
	if userCarts == nil || userCarts.ActiveTabID == nil {
		return nil, nil
	}

	cart, err := q.api.GetCart(ctx, *userCarts.ActiveTabID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			// The active cart vanished remotely; scanning proceeds into a
			// fresh cart and reconciliation cleans the stale tab up.
			q.logg.Warn(q.logg.WithCartID(ctx, userCarts.ActiveTabID.String()), "active cart gone remotely, will open a new one")
			return nil, nil
		}
		return nil, err
	}

	if err := q.cache.Set(ctx, cart); err != nil {
		q.logg.Warn(ctx, "failed to cache fresh cart")
	}
	return cart, nil
}

// createCart opens a cart for the store and makes it the active tab.
func (q *Queue) createCart(ctx context.Context) (*cartapi.Cart, error) {
	cart, err := q.api.CreateCart(ctx, q.storeID)
	if err != nil {
		return nil, err
	}
	if _, err := q.store.AddOrUpdateTab(ctx, q.username, tabs.TabFromCart(cart)); err != nil {
		return nil, err
	}
	if _, err := q.store.SetActive(ctx, q.username, cart.ID); err != nil {
		return nil, err
	}
	return cart, nil
}

// hasCompetingItem reports whether another live item carries the same code:
// one still processing, or one that already succeeded and has not been
// pruned yet.
func (q *Queue) hasCompetingItem(current *Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.ID == current.ID || item.Code != current.Code {
			continue
		}
		if item.Status == enums.ScanStatusProcessing || item.Status == enums.ScanStatusSuccess {
			return true
		}
	}
	return false
}

// settle applies the single terminal transition for an item.
func (q *Queue) settle(ctx context.Context, item *Item, status enums.ScanStatus, message string, code pkgerrors.Code, cartID *uuid.UUID) {
	q.mu.Lock()
	if item.Status.Terminal() {
		q.mu.Unlock()
		return
	}
	item.Status = status
	item.Message = message
	item.ErrorCode = code
	item.CartID = cartID
	settledAt := q.now()
	item.SettledAt = &settledAt
	q.pruneLocked()
	q.stats.IncOutcome(string(status))
	q.stats.SetQueueDepth(len(q.items))
	snapshot := *item
	hook := q.onSettled
	q.mu.Unlock()

	if status == enums.ScanStatusError && cartID != nil {
		if err := q.cache.Invalidate(ctx, *cartID); err != nil {
			q.logg.Warn(ctx, "failed to invalidate cart cache")
		}
	}
	if hook != nil {
		hook(snapshot)
	}
}

// pruneLocked drops terminal items past the retention window.
func (q *Queue) pruneLocked() {
	cutoff := q.now().Add(-q.retention)
	kept := q.items[:0]
	for _, item := range q.items {
		if item.Status.Terminal() && item.SettledAt != nil && item.SettledAt.Before(cutoff) {
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
}

func cartIDOf(cart *cartapi.Cart) *uuid.UUID {
	if cart == nil {
		return nil
	}
	id := cart.ID
	return &id
}

func publicMessage(err error, fallback string) string {
	if typed := pkgerrors.As(err); typed != nil {
		if msg := typed.Message(); msg != "" {
			return msg
		}
		return pkgerrors.MetadataFor(typed.Code()).PublicMessage
	}
	return fallback
}

func errorCode(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return pkgerrors.CodeInternal
}
