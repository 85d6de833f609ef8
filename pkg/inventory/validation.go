package inventory

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	maxSKULength       = 100
	maxNameLength      = 200
	maxReasonLength    = 500
	maxReferenceLength = 100
)

// 英数字、ハイフン、アンダースコア、ドットのみ許可
var skuPattern = regexp.MustCompile(`^[A-Z0-9_.-]+$`)

// maxMoney and moneyScale mirror a DECIMAL(10,2) column
var maxMoney = decimal.RequireFromString("99999999.99")

const moneyScale = 2

// NormalizeSKU SKUを大文字に正規化
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// ValidateSKU SKUの形式をバリデーション（正規化後の値を想定）
func ValidateSKU(sku string) error {
	if sku == "" {
		return NewValidationError("sku", "SKUが空です", sku)
	}
	if len(sku) > maxSKULength {
		return NewValidationError("sku", "SKUが長すぎます", sku)
	}
	if !skuPattern.MatchString(sku) {
		return NewValidationError("sku", "SKUに無効な文字が含まれています", sku)
	}
	return nil
}

// ValidateProductName 商品名をバリデーション
func ValidateProductName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name", "商品名が空です", name)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return NewValidationError("name", "商品名が長すぎます", name)
	}
	return nil
}

// ValidatePrice 単価をバリデーション（0より大きいこと）
func ValidatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return NewValidationError("price", "単価は0より大きい必要があります", price.String())
	}
	if price.GreaterThan(maxMoney) {
		return NewValidationError("price", "単価が有効範囲を超えています", price.String())
	}
	if !hasMoneyScale(price) {
		return NewValidationError("price", "単価は小数点以下2桁までです", price.String())
	}
	return nil
}

// hasMoneyScale reports whether d survives rounding to the column scale unchanged
func hasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(moneyScale))
}

// ValidateMinStockLevel 最低在庫数をバリデーション
func ValidateMinStockLevel(level int64) error {
	if level < 0 {
		return NewValidationError("min_stock_level", "最低在庫数は0以上である必要があります", fmt.Sprintf("%d", level))
	}
	return nil
}

// ValidateAction 在庫変動種別をバリデーション
func ValidateAction(action MovementAction) error {
	if !action.Valid() {
		return newKindValidationError(ErrInvalidAction, "action", "無効な在庫変動種別です", string(action))
	}
	return nil
}

// ValidateQuantityChange 増減数をバリデーション
func ValidateQuantityChange(change int64) error {
	if change == 0 {
		return newKindValidationError(ErrInvalidDelta, "quantity_change", "増減数を0にすることはできません", "0")
	}
	return nil
}

// ValidateReason 理由をバリデーション
func ValidateReason(reason string) error {
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return NewValidationError("reason", "理由が長すぎます", reason)
	}
	return nil
}

// ValidateReferenceNumber 参照番号をバリデーション
func ValidateReferenceNumber(reference string) error {
	if utf8.RuneCountInString(reference) > maxReferenceLength {
		return NewValidationError("reference_number", "参照番号が長すぎます", reference)
	}
	return nil
}

// ValidateUnitCost 取引単価をバリデーション（任意、0以上）
func ValidateUnitCost(cost *decimal.Decimal) error {
	if cost == nil {
		return nil
	}
	if cost.IsNegative() {
		return NewValidationError("unit_cost", "単価は0以上である必要があります", cost.String())
	}
	if cost.GreaterThan(maxMoney) {
		return NewValidationError("unit_cost", "単価が有効範囲を超えています", cost.String())
	}
	if !hasMoneyScale(*cost) {
		return NewValidationError("unit_cost", "単価は小数点以下2桁までです", cost.String())
	}
	return nil
}

// ValidateMovementRequest 在庫変動リクエスト全体をバリデーション
func ValidateMovementRequest(req MovementRequest) error {
	if err := ValidateQuantityChange(req.QuantityChange); err != nil {
		return err
	}
	if err := ValidateAction(req.Action); err != nil {
		return err
	}
	if err := ValidateReason(req.Reason); err != nil {
		return err
	}
	if err := ValidateReferenceNumber(req.ReferenceNumber); err != nil {
		return err
	}
	if err := ValidateUnitCost(req.UnitCost); err != nil {
		return err
	}
	if req.ProductID <= 0 {
		return newKindValidationError(ErrProductNotFound, "product_id", "商品IDが不正です", fmt.Sprintf("%d", req.ProductID))
	}
	return nil
}

// ValidateProduct 商品全体をバリデーション
func ValidateProduct(p *Product) error {
	if p == nil {
		return NewValidationError("product", "商品が指定されていません", "nil")
	}
	if err := ValidateSKU(p.SKU); err != nil {
		return err
	}
	if err := ValidateProductName(p.Name); err != nil {
		return err
	}
	if p.Quantity < 0 {
		return NewValidationError("quantity", "在庫数量は0以上である必要があります", fmt.Sprintf("%d", p.Quantity))
	}
	if err := ValidatePrice(p.Price); err != nil {
		return err
	}
	return ValidateMinStockLevel(p.MinStockLevel)
}

// ValidateProductUpdate 商品更新内容をバリデーション
func ValidateProductUpdate(u ProductUpdate) error {
	if u.Name != nil {
		if err := ValidateProductName(*u.Name); err != nil {
			return err
		}
	}
	if u.Price != nil {
		if err := ValidatePrice(*u.Price); err != nil {
			return err
		}
	}
	if u.MinStockLevel != nil {
		if err := ValidateMinStockLevel(*u.MinStockLevel); err != nil {
			return err
		}
	}
	if u.ClearCategory && u.CategoryID != nil {
		return NewValidationError("category_id", "カテゴリの設定と解除は同時に指定できません", fmt.Sprintf("%d", *u.CategoryID))
	}
	if u.ClearSupplier && u.SupplierID != nil {
		return NewValidationError("supplier_id", "仕入先の設定と解除は同時に指定できません", fmt.Sprintf("%d", *u.SupplierID))
	}
	return nil
}

// ValidateMovement 台帳レコードの整合性をバリデーション（new = previous + change）
func ValidateMovement(m *StockMovement) error {
	if m == nil {
		return NewValidationError("movement", "台帳レコードが指定されていません", "nil")
	}
	if err := ValidateAction(m.Action); err != nil {
		return err
	}
	if err := ValidateQuantityChange(m.QuantityChange); err != nil {
		return err
	}
	if m.NewQuantity != m.PreviousQuantity+m.QuantityChange {
		return NewBusinessRuleError("ledger_arithmetic", "変更後数量が変更前数量と増減数の合計と一致しません",
			fmt.Sprintf("previous=%d change=%d new=%d", m.PreviousQuantity, m.QuantityChange, m.NewQuantity))
	}
	if m.NewQuantity < 0 {
		return NewBusinessRuleError("negative_stock", "負の在庫は許可されていません", fmt.Sprintf("商品ID: %d", m.ProductID))
	}
	return nil
}
