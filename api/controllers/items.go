package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/poslane/api/responses"
	"github.com/angelmondragon/poslane/api/validators"
	"github.com/angelmondragon/poslane/internal/carts"
	"github.com/angelmondragon/poslane/internal/cartapi"
	"github.com/angelmondragon/poslane/pkg/logger"
)

func itemParams(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	cartID, err := validators.ParseUUIDParam("tab id", chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	itemID, err := validators.ParseUUIDParam("item id", chi.URLParam(r, "itemID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return cartID, itemID, nil
}

type itemActionRequest struct {
	Action string `json:"action" validate:"required,oneof=increment decrement"`
}

// ItemAdjust increments or decrements an item line by one unit.
func ItemAdjust(svc *carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, itemID, err := itemParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload itemActionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var cart *cartapi.Cart
		if payload.Action == cartapi.ActionIncrement {
			cart, err = svc.IncrementItem(r.Context(), cartID, itemID)
		} else {
			cart, err = svc.DecrementItem(r.Context(), cartID, itemID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cart)
	}
}

type itemPriceRequest struct {
	Price *decimal.Decimal `json:"price" validate:"required"`
}

// ItemPrice sets a manual unit price override, enforcing the price floor
// before the backend is touched. The rejected value is echoed in the error
// details so the UI can keep the edit state.
func ItemPrice(svc *carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, itemID, err := itemParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload itemPriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.SetManualPrice(r.Context(), cartID, itemID, *payload.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cart)
	}
}

// ItemDelete removes an item line.
func ItemDelete(svc *carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, itemID, err := itemParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.DeleteItem(r.Context(), cartID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cart)
	}
}
