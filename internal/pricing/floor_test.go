package pricing

import (
	"testing"

	"github.com/angelmondragon/poslane/internal/cartapi"
	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meta(purchase string, canGoBelow bool) cartapi.ProductMeta {
	return cartapi.ProductMeta{
		PurchasePrice:           decimal.RequireFromString(purchase),
		SellingPrice:            decimal.RequireFromString(purchase).Mul(decimal.NewFromInt(2)),
		CanGoBelowPurchasePrice: canGoBelow,
	}
}

func TestFloorIsPurchasePrice(t *testing.T) {
	floor, bounded := Floor(meta("120.50", false))
	require.True(t, bounded)
	assert.True(t, floor.Equal(decimal.RequireFromString("120.50")))
}

func TestFloorLiftedWhenProductAllowsIt(t *testing.T) {
	_, bounded := Floor(meta("120.50", true))
	assert.False(t, bounded)
}

func TestValidateManualPriceAtFloorPasses(t *testing.T) {
	assert.NoError(t, ValidateManualPrice(meta("120.50", false), decimal.RequireFromString("120.50")))
	assert.NoError(t, ValidateManualPrice(meta("120.50", false), decimal.RequireFromString("200.00")))
}

func TestValidateManualPriceBelowFloorFails(t *testing.T) {
	err := ValidateManualPrice(meta("120.50", false), decimal.RequireFromString("99.99"))
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(FloorDetails)
	require.True(t, ok)
	assert.True(t, details.Floor.Equal(decimal.RequireFromString("120.50")))
	assert.True(t, details.Rejected.Equal(decimal.RequireFromString("99.99")))
}

func TestValidateManualPriceBelowPurchaseAllowedWhenFlagged(t *testing.T) {
	assert.NoError(t, ValidateManualPrice(meta("120.50", true), decimal.RequireFromString("1.00")))
}

func TestValidateManualPriceRejectsNegative(t *testing.T) {
	err := ValidateManualPrice(meta("120.50", true), decimal.RequireFromString("-1"))
	require.Error(t, err)
}
