package tabs

import (
	"context"
	"io"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/angelmondragon/poslane/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDeleter struct {
	err   error
	calls []uuid.UUID
}

func (s *stubDeleter) DeleteCart(_ context.Context, cartID uuid.UUID) error {
	s.calls = append(s.calls, cartID)
	return s.err
}

type stubInvalidator struct {
	calls []uuid.UUID
}

func (s *stubInvalidator) Invalidate(_ context.Context, cartID uuid.UUID) error {
	s.calls = append(s.calls, cartID)
	return nil
}

type stubReconciler struct {
	calls int
	err   error
}

func (s *stubReconciler) Reconcile(_ context.Context, _ string, _ uuid.UUID, _ *uuid.UUID) (*UserCarts, error) {
	s.calls++
	return nil, s.err
}

func newDeletionFixture(t *testing.T, api *stubDeleter, reconciler *stubReconciler) (*DeletionController, *Store, *stubInvalidator) {
	t.Helper()
	store := newTestStore(t)
	cache := &stubInvalidator{}

	controller, err := NewDeletionController(DeletionControllerParams{
		Store:      store,
		API:        api,
		Cache:      cache,
		Reconciler: reconciler,
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		RunAsync:   func(fn func()) { fn() },
	})
	require.NoError(t, err)
	return controller, store, cache
}

func seedTwoTabs(t *testing.T, store *Store) (CartTab, CartTab) {
	t.Helper()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	first := tabAt(base)
	second := tabAt(base.Add(time.Minute))

	active := second.ID
	require.NoError(t, store.Save(context.Background(), &UserCarts{
		Username:    "cashier-1",
		Tabs:        []CartTab{first, second},
		ActiveTabID: &active,
	}))
	return first, second
}

func TestDeleteTabRemovesLocallyAndCallsBackend(t *testing.T) {
	api := &stubDeleter{}
	reconciler := &stubReconciler{}
	controller, store, cache := newDeletionFixture(t, api, reconciler)
	first, second := seedTwoTabs(t, store)

	updated, err := controller.DeleteTab(context.Background(), "cashier-1", first.StoreID, first.ID)
	require.NoError(t, err)

	require.Len(t, updated.Tabs, 1)
	assert.Equal(t, second.ID, updated.Tabs[0].ID)
	require.NotNil(t, updated.ActiveTabID)
	assert.Equal(t, second.ID, *updated.ActiveTabID)

	require.Len(t, api.calls, 1)
	assert.Equal(t, first.ID, api.calls[0])
	require.Len(t, cache.calls, 1)
	assert.Equal(t, first.ID, cache.calls[0])
}

func TestDeleteTabRefusesLastTab(t *testing.T) {
	api := &stubDeleter{}
	controller, store, _ := newDeletionFixture(t, api, &stubReconciler{})

	tab := tabAt(time.Now().UTC())
	_, err := store.AddOrUpdateTab(context.Background(), "cashier-1", tab)
	require.NoError(t, err)

	_, err = controller.DeleteTab(context.Background(), "cashier-1", tab.StoreID, tab.ID)
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	assert.Empty(t, api.calls, "backend must not be called when the delete is refused")
}

func TestDeleteTabUnknownTabIsNotFound(t *testing.T) {
	controller, store, _ := newDeletionFixture(t, &stubDeleter{}, &stubReconciler{})
	seedTwoTabs(t, store)

	_, err := controller.DeleteTab(context.Background(), "cashier-1", uuid.New(), uuid.New())
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestDeleteTabTreatsBackendNotFoundAsSuccess(t *testing.T) {
	api := &stubDeleter{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")}
	reconciler := &stubReconciler{}
	controller, store, _ := newDeletionFixture(t, api, reconciler)
	first, _ := seedTwoTabs(t, store)

	updated, err := controller.DeleteTab(context.Background(), "cashier-1", first.StoreID, first.ID)
	require.NoError(t, err)
	require.Len(t, updated.Tabs, 1)

	loaded := store.Load(context.Background(), "cashier-1")
	require.NotNil(t, loaded)
	assert.False(t, loaded.HasTab(first.ID), "tab stays removed when the backend already dropped the cart")
}

func TestDeleteTabBackendFailureTriggersReconcileWithoutResurface(t *testing.T) {
	api := &stubDeleter{err: pkgerrors.New(pkgerrors.CodeDependency, "backend unreachable")}
	reconciler := &stubReconciler{}
	controller, store, _ := newDeletionFixture(t, api, reconciler)
	first, _ := seedTwoTabs(t, store)

	updated, err := controller.DeleteTab(context.Background(), "cashier-1", first.StoreID, first.ID)
	require.NoError(t, err, "a failed background delete never surfaces to the caller")
	require.Len(t, updated.Tabs, 1)

	assert.Equal(t, 1, reconciler.calls, "reconciliation self-heals after a failed delete")
}

func TestDeleteTabReconcilesAfterConfirmedDelete(t *testing.T) {
	reconciler := &stubReconciler{}
	controller, store, _ := newDeletionFixture(t, &stubDeleter{}, reconciler)
	first, _ := seedTwoTabs(t, store)

	_, err := controller.DeleteTab(context.Background(), "cashier-1", first.StoreID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reconciler.calls)
}
