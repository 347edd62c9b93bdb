package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/poslane/api/responses"
	"github.com/angelmondragon/poslane/api/validators"
	"github.com/angelmondragon/poslane/internal/cartapi"
	"github.com/angelmondragon/poslane/internal/carts"
	"github.com/angelmondragon/poslane/pkg/enums"
	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/angelmondragon/poslane/pkg/logger"
)

type checkoutRequest struct {
	InvoiceType  string                     `json:"invoice_type" validate:"required"`
	CustomerID   *uuid.UUID                 `json:"customer_id"`
	SplitAmounts map[string]decimal.Decimal `json:"split_amounts"`
}

// Checkout converts a tab's cart into an invoice. Consuming the last tab
// opens a replacement cart in the same response.
func Checkout(svc *carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.ParseUUIDParam("tab id", chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoiceType, err := enums.ParseInvoiceType(payload.InvoiceType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid invoice type"))
			return
		}
		if invoiceType == enums.InvoiceTypeMixed && len(payload.SplitAmounts) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "split amounts required for mixed tender"))
			return
		}

		result, err := svc.Checkout(r.Context(), cartID, cartapi.CheckoutInput{
			InvoiceType:  invoiceType,
			CustomerID:   payload.CustomerID,
			SplitAmounts: payload.SplitAmounts,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"invoice":    result.Invoice,
			"user_carts": result.UserCarts,
		})
	}
}
