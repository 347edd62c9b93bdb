package tabs

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/angelmondragon/poslane/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

type backendDeleter interface {
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, cartID uuid.UUID) error
}

// Reconciler is the slice of the reconciliation engine the deletion
// controller needs to self-heal after a failed background delete.
type Reconciler interface {
	Reconcile(ctx context.Context, username string, storeID uuid.UUID, preferredActiveID *uuid.UUID) (*UserCarts, error)
}

// DeletionController removes tabs optimistically: the local list updates
// synchronously, the backend delete runs in the background, and a cart that
// is already gone counts as deleted.
type DeletionController struct {
	store      *Store
	api        backendDeleter
	cache      cacheInvalidator
	reconciler Reconciler
	logg       *logger.Logger
	runAsync   func(fn func())
}

// DeletionControllerParams wires the controller.
type DeletionControllerParams struct {
	Store      *Store
	API        backendDeleter
	Cache      cacheInvalidator
	Reconciler Reconciler
	Logger     *logger.Logger

	// RunAsync overrides background execution, used by tests to run the
	// backend delete synchronously.
	RunAsync func(fn func())
}

// NewDeletionController builds the controller.
func NewDeletionController(params DeletionControllerParams) (*DeletionController, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("tab store required")
	}
	if params.API == nil {
		return nil, fmt.Errorf("cart api required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("cart cache required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	runAsync := params.RunAsync
	if runAsync == nil {
		runAsync = func(fn func()) { go fn() }
	}
	return &DeletionController{
		store:      params.Store,
		api:        params.API,
		cache:      params.Cache,
		reconciler: params.Reconciler,
		logg:       params.Logger,
		runAsync:   runAsync,
	}, nil
}

// DeleteTab removes the tab locally and returns the updated list without
// waiting on the network. The last remaining tab can never be deleted.
func (c *DeletionController) DeleteTab(ctx context.Context, username string, storeID, tabID uuid.UUID) (*UserCarts, error) {
	userCarts := c.store.Load(ctx, username)
	if userCarts == nil || !userCarts.HasTab(tabID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tab not found")
	}
	if len(userCarts.Tabs) <= 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot delete the last remaining tab")
	}

	if err := c.cache.Invalidate(ctx, tabID); err != nil {
		c.logg.Warn(c.logg.WithCartID(ctx, tabID.String()), "failed to drop cached cart for deleted tab")
	}

	_, updated, err := c.store.RemoveTab(ctx, username, tabID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove tab locally")
	}

	bgCtx := context.WithoutCancel(ctx)
	bgCtx = c.logg.WithUsername(bgCtx, username)
	bgCtx = c.logg.WithCartID(bgCtx, tabID.String())
	c.runAsync(func() {
		c.deleteInBackground(bgCtx, username, storeID, tabID)
	})

	return updated, nil
}

// deleteInBackground issues the backend delete. A not-found outcome means
// the cart was already gone and counts as success. Any other failure is
// logged and handed to reconciliation to self-heal; the deleted tab is
// never re-surfaced and the cashier is never blocked.
func (c *DeletionController) deleteInBackground(ctx context.Context, username string, storeID, tabID uuid.UUID) {
	err := c.api.DeleteCart(ctx, tabID)
	switch {
	case err == nil, pkgerrors.IsNotFound(err):
		c.logg.Debug(ctx, "backend cart delete confirmed")
	default:
		reconcileErr := c.reconcileAfterFailure(ctx, username, storeID)
		c.logg.Error(ctx, "backend cart delete failed", multierr.Append(err, reconcileErr))
		return
	}

	// Reconcile after a confirmed delete too, fire-and-forget, so the rest
	// of the tab list converges without blocking the UI.
	if err := c.reconcileAfterFailure(ctx, username, storeID); err != nil {
		c.logg.Warn(ctx, "post-delete reconciliation failed")
	}
}

func (c *DeletionController) reconcileAfterFailure(ctx context.Context, username string, storeID uuid.UUID) error {
	if c.reconciler == nil {
		return nil
	}
	_, err := c.reconciler.Reconcile(ctx, username, storeID, nil)
	return err
}
