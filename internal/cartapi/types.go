package cartapi

import (
	"time"

	"github.com/angelmondragon/poslane/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the authoritative remote cart. The terminal caches copies keyed
// by id and never trusts its cache over a fresh fetch.
type Cart struct {
	ID           uuid.UUID         `json:"id"`
	CartNumber   string            `json:"cart_number"`
	StoreID      uuid.UUID         `json:"store_id"`
	CustomerID   *uuid.UUID        `json:"customer_id"`
	CustomerName *string           `json:"customer_name"`
	InvoiceType  enums.InvoiceType `json:"invoice_type"`
	Status       enums.CartStatus  `json:"status"`
	Items        []CartItem        `json:"items"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ProductMeta carries the pricing facts the terminal needs for in-place
// validation before a mutation is attempted.
type ProductMeta struct {
	PurchasePrice           decimal.Decimal `json:"purchase_price"`
	SellingPrice            decimal.Decimal `json:"selling_price"`
	TrackInventory          bool            `json:"track_inventory"`
	CanGoBelowPurchasePrice bool            `json:"can_go_below_purchase_price"`
}

type CartItem struct {
	ID                uuid.UUID        `json:"id"`
	ProductID         *uuid.UUID       `json:"product_id"`
	CustomProductName *string          `json:"custom_product_name"`
	Quantity          int              `json:"quantity"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	ManualUnitPrice   *decimal.Decimal `json:"manual_unit_price"`
	ScannedBarcodes   []string         `json:"scanned_barcodes"`
	Product           ProductMeta      `json:"product"`
}

// ContainsBarcode reports whether any item in the cart already holds the
// scanned code. Uniqueness is cart-wide, not per item.
func (c *Cart) ContainsBarcode(code string) bool {
	if c == nil {
		return false
	}
	for _, item := range c.Items {
		for _, scanned := range item.ScannedBarcodes {
			if scanned == code {
				return true
			}
		}
	}
	return false
}

// LineCount is the number of item lines, used for tab display.
func (c *Cart) LineCount() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

// LookupResult is the outcome of a strict barcode-only product lookup.
type LookupResult struct {
	ProductID        uuid.UUID `json:"product_id"`
	BarcodeAvailable bool      `json:"barcode_available"`
	MatchedBarcode   string    `json:"matched_barcode"`
	SoldInvoiceRef   *string   `json:"sold_invoice_ref"`
}

// AddItemInput adds a unit to a cart. Either ProductID or CustomProductName
// must be set; Barcode makes the add idempotent backend-side.
type AddItemInput struct {
	ProductID         *uuid.UUID `json:"product_id,omitempty"`
	CustomProductName *string    `json:"custom_product_name,omitempty"`
	Quantity          int        `json:"quantity"`
	Barcode           *string    `json:"barcode,omitempty"`
}

// AddItemResult wraps the refreshed cart and the backend's human message
// ("Added" vs "Quantity updated").
type AddItemResult struct {
	Cart    *Cart  `json:"cart"`
	Message string `json:"message"`
}

// UpdateItemInput adjusts quantity or overrides the unit price. Exactly one
// of Action or ManualUnitPrice is set per call.
type UpdateItemInput struct {
	Action          *string          `json:"action,omitempty"`
	ManualUnitPrice *decimal.Decimal `json:"manual_unit_price,omitempty"`
}

const (
	ActionIncrement = "increment"
	ActionDecrement = "decrement"
)

// CheckoutInput converts a cart to an invoice.
type CheckoutInput struct {
	InvoiceType  enums.InvoiceType          `json:"invoice_type"`
	CustomerID   *uuid.UUID                 `json:"customer_id,omitempty"`
	SplitAmounts map[string]decimal.Decimal `json:"split_amounts,omitempty"`
}

// Invoice is the checkout result; the terminal only displays it.
type Invoice struct {
	ID            uuid.UUID         `json:"id"`
	InvoiceNumber string            `json:"invoice_number"`
	InvoiceType   enums.InvoiceType `json:"invoice_type"`
	Total         decimal.Decimal   `json:"total"`
	CreatedAt     time.Time         `json:"created_at"`
}
