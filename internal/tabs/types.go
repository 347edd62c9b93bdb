package tabs

import (
	"sort"
	"time"

	"github.com/angelmondragon/poslane/internal/cartapi"
	"github.com/angelmondragon/poslane/pkg/enums"
	"github.com/google/uuid"
)

// CartTab is the local handle onto one backend cart. Everything here is a
// cached projection; reconciliation overwrites every field from the backend.
type CartTab struct {
	ID           uuid.UUID         `json:"id"`
	CartNumber   string            `json:"cart_number"`
	StoreID      uuid.UUID         `json:"store_id"`
	CustomerID   *uuid.UUID        `json:"customer_id"`
	CustomerName *string           `json:"customer_name"`
	InvoiceType  enums.InvoiceType `json:"invoice_type"`
	ItemCount    int               `json:"item_count"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TabFromCart projects a backend cart into its local tab form.
func TabFromCart(cart *cartapi.Cart) CartTab {
	tab := CartTab{
		ID:           cart.ID,
		CartNumber:   cart.CartNumber,
		StoreID:      cart.StoreID,
		CustomerID:   cart.CustomerID,
		CustomerName: cart.CustomerName,
		InvoiceType:  cart.InvoiceType,
		ItemCount:    cart.LineCount(),
		CreatedAt:    cart.CreatedAt,
		UpdatedAt:    cart.UpdatedAt,
	}
	if tab.InvoiceType == "" {
		tab.InvoiceType = enums.InvoiceTypeCash
	}
	return tab
}

// sortKey is (updatedAt ?? createdAt): tabs order oldest-touched first,
// mirroring tabs opening left to right.
func (t CartTab) sortKey() time.Time {
	if !t.UpdatedAt.IsZero() {
		return t.UpdatedAt
	}
	return t.CreatedAt
}

// UserCarts is the persisted root record for one cashier.
type UserCarts struct {
	Username    string     `json:"username"`
	Tabs        []CartTab  `json:"tabs"`
	ActiveTabID *uuid.UUID `json:"active_tab_id"`
}

// HasTab reports whether the given id is present.
func (u *UserCarts) HasTab(id uuid.UUID) bool {
	if u == nil {
		return false
	}
	for _, tab := range u.Tabs {
		if tab.ID == id {
			return true
		}
	}
	return false
}

// FindTab returns the tab with the given id, or nil.
func (u *UserCarts) FindTab(id uuid.UUID) *CartTab {
	if u == nil {
		return nil
	}
	for i := range u.Tabs {
		if u.Tabs[i].ID == id {
			return &u.Tabs[i]
		}
	}
	return nil
}

// Normalize re-sorts the tab list and repairs the active id invariant:
// activeTabId must reference a present tab or be nil.
func (u *UserCarts) Normalize() {
	if u == nil {
		return
	}
	sort.SliceStable(u.Tabs, func(i, j int) bool {
		return u.Tabs[i].sortKey().Before(u.Tabs[j].sortKey())
	})
	if u.ActiveTabID != nil && !u.HasTab(*u.ActiveTabID) {
		u.ActiveTabID = nil
	}
	if u.ActiveTabID == nil && len(u.Tabs) > 0 {
		last := u.Tabs[len(u.Tabs)-1].ID
		u.ActiveTabID = &last
	}
}

// ResolveActive applies the active-tab precedence over the given tabs:
// preferred if present, then previous if present, then the newest tab,
// then nil for an empty set.
func ResolveActive(tabs []CartTab, preferred, previous *uuid.UUID) *uuid.UUID {
	contains := func(id *uuid.UUID) bool {
		if id == nil {
			return false
		}
		for _, tab := range tabs {
			if tab.ID == *id {
				return true
			}
		}
		return false
	}

	if contains(preferred) {
		id := *preferred
		return &id
	}
	if contains(previous) {
		id := *previous
		return &id
	}
	if len(tabs) == 0 {
		return nil
	}

	sorted := make([]CartTab, len(tabs))
	copy(sorted, tabs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].sortKey().Before(sorted[j].sortKey())
	})
	id := sorted[len(sorted)-1].ID
	return &id
}
