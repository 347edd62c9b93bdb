package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/poslane/api/responses"
	"github.com/angelmondragon/poslane/api/validators"
	"github.com/angelmondragon/poslane/internal/carts"
	"github.com/angelmondragon/poslane/internal/tabs"
	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/angelmondragon/poslane/pkg/logger"
)

// Identity binds the controllers to the lane's cashier and store. It is
// resolved once at startup from the terminal's API token and config.
type Identity struct {
	Username string
	StoreID  uuid.UUID
}

// TabsList returns the cashier's current tab list.
func TabsList(store *tabs.Store, identity Identity, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userCarts := store.Load(r.Context(), identity.Username)
		if userCarts == nil {
			userCarts = &tabs.UserCarts{Username: identity.Username, Tabs: []tabs.CartTab{}}
		}
		responses.WriteSuccess(w, userCarts)
	}
}

// TabsCreate opens a new backend cart and makes it the active tab.
func TabsCreate(svc *carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cart, userCarts, err := svc.Create(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"cart":       cart,
			"user_carts": userCarts,
		})
	}
}

// TabsActivate switches the active tab.
func TabsActivate(store *tabs.Store, identity Identity, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tabID, err := validators.ParseUUIDParam("tab id", chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userCarts, err := store.SetActive(r.Context(), identity.Username, tabID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "tab not found"))
			return
		}
		responses.WriteSuccess(w, userCarts)
	}
}

// TabsDelete removes a tab optimistically.
func TabsDelete(controller *tabs.DeletionController, identity Identity, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tabID, err := validators.ParseUUIDParam("tab id", chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userCarts, err := controller.DeleteTab(r.Context(), identity.Username, identity.StoreID, tabID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, userCarts)
	}
}

type reconcileRequest struct {
	PreferredActiveID *uuid.UUID `json:"preferred_active_id"`
}

// ReconcileRunner is the reconciliation surface the API consumes.
type ReconcileRunner interface {
	Reconcile(ctx context.Context, username string, storeID uuid.UUID, preferredActiveID *uuid.UUID) (*tabs.UserCarts, error)
}

// TabsReconcile runs an on-demand reconciliation pass, used by the UI on
// store switch and manual refresh.
func TabsReconcile(svc ReconcileRunner, identity Identity, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload reconcileRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		userCarts, err := svc.Reconcile(r.Context(), identity.Username, identity.StoreID, payload.PreferredActiveID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, userCarts)
	}
}
