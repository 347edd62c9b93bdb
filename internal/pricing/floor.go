package pricing

import (
	"fmt"

	"github.com/angelmondragon/poslane/internal/cartapi"
	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/shopspring/decimal"
)

// Floor returns the lowest unit price a cashier may set for the product and
// whether a floor applies at all. The purchase price is the floor unless the
// product is flagged to allow selling below it.
func Floor(meta cartapi.ProductMeta) (decimal.Decimal, bool) {
	if meta.CanGoBelowPurchasePrice {
		return decimal.Zero, false
	}
	return meta.PurchasePrice, true
}

// FloorDetails is attached to a rejected price so the UI can show the
// cashier how low they may go and keep the edit buffer on the value they
// typed. The backend re-validates on its side; this check only saves the
// round trip.
type FloorDetails struct {
	Floor    decimal.Decimal `json:"floor"`
	Rejected decimal.Decimal `json:"rejected"`
}

// ValidateManualPrice checks a proposed manual unit price against the
// product's floor before the mutation is attempted.
func ValidateManualPrice(meta cartapi.ProductMeta, price decimal.Decimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	floor, bounded := Floor(meta)
	if !bounded || price.GreaterThanOrEqual(floor) {
		return nil
	}

	message := fmt.Sprintf("price cannot go below the purchase price of %s", floor.StringFixed(2))
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(FloorDetails{Floor: floor, Rejected: price})
}
