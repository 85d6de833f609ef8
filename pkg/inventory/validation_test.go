package inventory

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSKU(t *testing.T) {
	assert.Equal(t, "ITEM-A", NormalizeSKU("  item-a "))
	assert.Equal(t, "", NormalizeSKU("   "))
}

func TestValidateSKU(t *testing.T) {
	assert.NoError(t, ValidateSKU("ITEM_A.1-2"))
	assert.Error(t, ValidateSKU(""))
	assert.Error(t, ValidateSKU("ITEM A"))
	assert.Error(t, ValidateSKU(strings.Repeat("A", 101)))
}

func TestValidateMovementRequest(t *testing.T) {
	valid := MovementRequest{ProductID: 1, Action: ActionSale, QuantityChange: -1}
	require.NoError(t, ValidateMovementRequest(valid))

	tests := []struct {
		name    string
		mutate  func(*MovementRequest)
		wantErr error
		field   string
	}{
		{"増減数0", func(r *MovementRequest) { r.QuantityChange = 0 }, ErrInvalidDelta, "quantity_change"},
		{"無効な種別", func(r *MovementRequest) { r.Action = "gift" }, ErrInvalidAction, "action"},
		{"空の種別", func(r *MovementRequest) { r.Action = "" }, ErrInvalidAction, "action"},
		{"理由が長すぎる", func(r *MovementRequest) { r.Reason = strings.Repeat("あ", 501) }, ErrInvalidInput, "reason"},
		{"参照番号が長すぎる", func(r *MovementRequest) { r.ReferenceNumber = strings.Repeat("x", 101) }, ErrInvalidInput, "reference_number"},
		{"単価超過", func(r *MovementRequest) { r.UnitCost = decimalPtr("100000000") }, ErrInvalidInput, "unit_cost"},
		{"単価の桁数超過", func(r *MovementRequest) { r.UnitCost = decimalPtr("1.005") }, ErrInvalidInput, "unit_cost"},
		{"商品IDなし", func(r *MovementRequest) { r.ProductID = -3 }, ErrProductNotFound, "product_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			err := ValidateMovementRequest(req)

			assert.ErrorIs(t, err, tt.wantErr)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestValidateMovementRequest_ZeroDeltaCheckedFirst(t *testing.T) {
	err := ValidateMovementRequest(MovementRequest{Action: "bogus", QuantityChange: 0})
	assert.ErrorIs(t, err, ErrInvalidDelta)
}

func TestValidateUnitCost(t *testing.T) {
	assert.NoError(t, ValidateUnitCost(nil))
	assert.NoError(t, ValidateUnitCost(decimalPtr("0")))
	assert.NoError(t, ValidateUnitCost(decimalPtr("18.50")))
	assert.Error(t, ValidateUnitCost(decimalPtr("-0.01")))
}

func TestValidateMoneyScale(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"29.99", false},
		{"18.5", false},
		{"18.500", false},
		{"7", false},
		{"99999999.99", false},
		{"0.001", true},
		{"1.005", true},
		{"29.999", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			d := decimal.RequireFromString(tt.value)

			priceErr := ValidatePrice(d)
			costErr := ValidateUnitCost(&d)

			if !tt.wantErr {
				assert.NoError(t, priceErr)
				assert.NoError(t, costErr)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, priceErr, &vErr)
			assert.Equal(t, "price", vErr.Field)
			require.ErrorAs(t, costErr, &vErr)
			assert.Equal(t, "unit_cost", vErr.Field)
		})
	}
}

func TestValidateProduct(t *testing.T) {
	p := NewProduct("item-a", "USBケーブル", decimal.RequireFromString("29.99"), 50)
	require.NoError(t, ValidateProduct(p))
	assert.Equal(t, "ITEM-A", p.SKU)
	assert.Equal(t, DefaultMinStockLevel, p.MinStockLevel)

	p.Quantity = -1
	assert.ErrorIs(t, ValidateProduct(p), ErrInvalidInput)

	p.Quantity = 0
	p.Price = decimal.Zero
	assert.ErrorIs(t, ValidateProduct(p), ErrInvalidInput)

	p.Price = decimal.RequireFromString("1")
	p.Name = "  "
	assert.ErrorIs(t, ValidateProduct(p), ErrInvalidInput)

	assert.Error(t, ValidateProduct(nil))
}

func TestValidateProductUpdate(t *testing.T) {
	id := int64(1)
	assert.NoError(t, ValidateProductUpdate(ProductUpdate{}))
	assert.Error(t, ValidateProductUpdate(ProductUpdate{CategoryID: &id, ClearCategory: true}))
	assert.Error(t, ValidateProductUpdate(ProductUpdate{SupplierID: &id, ClearSupplier: true}))

	negative := int64(-1)
	assert.Error(t, ValidateProductUpdate(ProductUpdate{MinStockLevel: &negative}))
}

func TestValidateMovement(t *testing.T) {
	ok := &StockMovement{ProductID: 1, Action: ActionSale, QuantityChange: -10, PreviousQuantity: 50, NewQuantity: 40}
	assert.NoError(t, ValidateMovement(ok))

	broken := *ok
	broken.NewQuantity = 41
	var ruleErr *BusinessRuleError
	require.ErrorAs(t, ValidateMovement(&broken), &ruleErr)
	assert.Equal(t, "ledger_arithmetic", ruleErr.Rule)

	negative := &StockMovement{ProductID: 1, Action: ActionSale, QuantityChange: -10, PreviousQuantity: 5, NewQuantity: -5}
	require.ErrorAs(t, ValidateMovement(negative), &ruleErr)
	assert.Equal(t, "negative_stock", ruleErr.Rule)
}

func TestMovementAction_Valid(t *testing.T) {
	for _, a := range MovementActions {
		assert.True(t, a.Valid(), string(a))
	}
	assert.False(t, MovementAction("Sale").Valid())
}

func TestProductUpdate_Apply(t *testing.T) {
	catName := "Electronics"
	catID := int64(3)
	p := newTestProduct(50)
	p.CategoryID = &catID
	p.CategoryName = &catName

	newCat := int64(4)
	ProductUpdate{CategoryID: &newCat}.Apply(p)
	require.NotNil(t, p.CategoryID)
	assert.Equal(t, int64(4), *p.CategoryID)
	assert.Nil(t, p.CategoryName)

	ProductUpdate{ClearCategory: true}.Apply(p)
	assert.Nil(t, p.CategoryID)
	assert.Equal(t, int64(50), p.Quantity)
}
