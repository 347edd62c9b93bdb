package reconcile

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/poslane/internal/cartapi"
	"github.com/angelmondragon/poslane/internal/cartcache"
	"github.com/angelmondragon/poslane/internal/tabs"
	"github.com/angelmondragon/poslane/pkg/db"
	"github.com/angelmondragon/poslane/pkg/enums"
	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/angelmondragon/poslane/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPI struct {
	cartapi.API

	listed  []cartapi.Cart
	listErr error
	carts   map[uuid.UUID]*cartapi.Cart
	getErr  error
}

func (s *stubAPI) ListActiveCarts(context.Context) ([]cartapi.Cart, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listed, nil
}

func (s *stubAPI) GetCart(_ context.Context, id uuid.UUID) (*cartapi.Cart, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	cart, ok := s.carts[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return cart, nil
}

type fixture struct {
	service *Service
	store   *tabs.Store
	cache   *cartcache.Memory
	storeID uuid.UUID
}

func newFixture(t *testing.T, api *stubAPI) *fixture {
	t.Helper()
	client, err := db.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	store, err := tabs.NewStore(client, logg)
	require.NoError(t, err)

	cache := cartcache.NewMemory()
	service, err := New(Params{
		API:    api,
		Store:  store,
		Cache:  cache,
		Logger: logg,
	})
	require.NoError(t, err)
	return &fixture{service: service, store: store, cache: cache, storeID: uuid.New()}
}

func remoteCart(storeID uuid.UUID, number string, at time.Time) cartapi.Cart {
	return cartapi.Cart{
		ID:         uuid.New(),
		CartNumber: number,
		StoreID:    storeID,
		Status:     enums.CartStatusActive,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func TestReconcileBackendWins(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	fix := newFixture(t, nil)

	remote := remoteCart(fix.storeID, "C-001", base)
	stale := tabs.TabFromCart(&remote)
	stale.CartNumber = "C-OLD"
	stale.ItemCount = 99
	_, err := fix.store.AddOrUpdateTab(context.Background(), "cashier-1", stale)
	require.NoError(t, err)

	api := &stubAPI{listed: []cartapi.Cart{remote}}
	fix.service.api = api

	userCarts, err := fix.service.Reconcile(context.Background(), "cashier-1", fix.storeID, nil)
	require.NoError(t, err)
	require.Len(t, userCarts.Tabs, 1)
	assert.Equal(t, "C-001", userCarts.Tabs[0].CartNumber, "every field comes from the backend")
	assert.Zero(t, userCarts.Tabs[0].ItemCount)
}

func TestReconcileFiltersOtherStores(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	fix := newFixture(t, nil)

	mine := remoteCart(fix.storeID, "C-001", base)
	other := remoteCart(uuid.New(), "C-002", base.Add(time.Minute))
	fix.service.api = &stubAPI{listed: []cartapi.Cart{mine, other}}

	userCarts, err := fix.service.Reconcile(context.Background(), "cashier-1", fix.storeID, nil)
	require.NoError(t, err)
	require.Len(t, userCarts.Tabs, 1)
	assert.Equal(t, mine.ID, userCarts.Tabs[0].ID)
}

func TestReconcileDropsVanishedLocalTab(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	fix := newFixture(t, nil)

	ghost := remoteCart(fix.storeID, "C-GHOST", base)
	_, err := fix.store.AddOrUpdateTab(context.Background(), "cashier-1", tabs.TabFromCart(&ghost))
	require.NoError(t, err)
	require.NoError(t, fix.cache.Set(context.Background(), &ghost))

	fix.service.api = &stubAPI{listed: nil, carts: map[uuid.UUID]*cartapi.Cart{}}

	userCarts, err := fix.service.Reconcile(context.Background(), "cashier-1", fix.storeID, nil)
	require.NoError(t, err)
	assert.Empty(t, userCarts.Tabs)

	_, hit, err := fix.cache.Get(context.Background(), ghost.ID)
	require.NoError(t, err)
	assert.False(t, hit, "the dropped cart leaves the cache too")
}

func TestReconcileKeepsVerifiedLocalTab(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	fix := newFixture(t, nil)

	kept := remoteCart(fix.storeID, "C-KEPT", base)
	_, err := fix.store.AddOrUpdateTab(context.Background(), "cashier-1", tabs.TabFromCart(&kept))
	require.NoError(t, err)

	// The list omits the cart but a direct fetch still confirms it.
	fix.service.api = &stubAPI{carts: map[uuid.UUID]*cartapi.Cart{kept.ID: &kept}}

	userCarts, err := fix.service.Reconcile(context.Background(), "cashier-1", fix.storeID, nil)
	require.NoError(t, err)
	require.Len(t, userCarts.Tabs, 1)
	assert.Equal(t, kept.ID, userCarts.Tabs[0].ID)
}

func TestReconcileDropsUnverifiableLocalTab(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	fix := newFixture(t, nil)

	flaky := remoteCart(fix.storeID, "C-FLAKY", base)
	_, err := fix.store.AddOrUpdateTab(context.Background(), "cashier-1", tabs.TabFromCart(&flaky))
	require.NoError(t, err)

	fix.service.api = &stubAPI{getErr: pkgerrors.New(pkgerrors.CodeDependency, "timeout")}

	userCarts, err := fix.service.Reconcile(context.Background(), "cashier-1", fix.storeID, nil)
	require.NoError(t, err)
	assert.Empty(t, userCarts.Tabs, "a tab that cannot be verified does not survive")
}

func TestReconcileListFailureKeepsLocalState(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	fix := newFixture(t, nil)

	local := remoteCart(fix.storeID, "C-LOCAL", base)
	_, err := fix.store.AddOrUpdateTab(context.Background(), "cashier-1", tabs.TabFromCart(&local))
	require.NoError(t, err)

	fix.service.api = &stubAPI{listErr: pkgerrors.New(pkgerrors.CodeDependency, "backend down")}

	userCarts, err := fix.service.Reconcile(context.Background(), "cashier-1", fix.storeID, nil)
	require.Error(t, err)
	require.NotNil(t, userCarts)
	require.Len(t, userCarts.Tabs, 1, "local tabs survive a failed pass untouched")
	assert.Equal(t, local.ID, userCarts.Tabs[0].ID)
}

func TestReconcileActiveTabPrecedence(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	fix := newFixture(t, nil)

	first := remoteCart(fix.storeID, "C-001", base)
	second := remoteCart(fix.storeID, "C-002", base.Add(time.Minute))
	fix.service.api = &stubAPI{listed: []cartapi.Cart{first, second}}

	preferred := first.ID
	userCarts, err := fix.service.Reconcile(context.Background(), "cashier-1", fix.storeID, &preferred)
	require.NoError(t, err)
	require.NotNil(t, userCarts.ActiveTabID)
	assert.Equal(t, first.ID, *userCarts.ActiveTabID)

	// Without a preference the previous active survives when still present.
	userCarts, err = fix.service.Reconcile(context.Background(), "cashier-1", fix.storeID, nil)
	require.NoError(t, err)
	require.NotNil(t, userCarts.ActiveTabID)
	assert.Equal(t, first.ID, *userCarts.ActiveTabID)
}

func TestReconcileOrdersTabsOldestFirst(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	fix := newFixture(t, nil)

	newer := remoteCart(fix.storeID, "C-NEW", base.Add(time.Hour))
	older := remoteCart(fix.storeID, "C-OLD", base)
	fix.service.api = &stubAPI{listed: []cartapi.Cart{newer, older}}

	userCarts, err := fix.service.Reconcile(context.Background(), "cashier-1", fix.storeID, nil)
	require.NoError(t, err)
	require.Len(t, userCarts.Tabs, 2)
	assert.Equal(t, older.ID, userCarts.Tabs[0].ID)
	assert.Equal(t, newer.ID, userCarts.Tabs[1].ID)
}
