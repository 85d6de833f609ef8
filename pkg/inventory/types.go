// Package inventory provides the stock ledger engine: atomic quantity
// mutations paired with immutable movement records, plus read-only reporting.
package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultMinStockLevel is applied when a product is created without a threshold
// 閾値未指定で商品を作成した場合の最低在庫数
const DefaultMinStockLevel int64 = 10

// Product represents a catalog product and its current stock level
// カタログ上の商品と現在の在庫数を表現
type Product struct {
	ID            int64           `json:"id" db:"id"`                           // 商品ID
	SKU           string          `json:"sku" db:"sku"`                         // SKU（大文字に正規化）
	Name          string          `json:"name" db:"name"`                       // 商品名
	Description   string          `json:"description" db:"description"`         // 商品説明
	Quantity      int64           `json:"quantity" db:"quantity"`               // 在庫数量
	Price         decimal.Decimal `json:"price" db:"price"`                     // 単価
	MinStockLevel int64           `json:"min_stock_level" db:"min_stock_level"` // 最低在庫数
	IsActive      bool            `json:"is_active" db:"is_active"`             // アクティブ状態
	CategoryID    *int64          `json:"category_id" db:"category_id"`         // カテゴリID
	CategoryName  *string         `json:"category_name" db:"category_name"`     // カテゴリ名（参照用）
	SupplierID    *int64          `json:"supplier_id" db:"supplier_id"`         // 仕入先ID
	SupplierName  *string         `json:"supplier_name" db:"supplier_name"`     // 仕入先名（参照用）
	CreatedBy     *int64          `json:"created_by" db:"created_by"`           // 作成者
	ModifiedBy    *int64          `json:"modified_by" db:"modified_by"`         // 最終更新者
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`           // 作成日時
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`           // 更新日時
}

// NewProduct creates an active product with the default threshold
// 既定の最低在庫数でアクティブな商品を作成
func NewProduct(sku, name string, price decimal.Decimal, quantity int64) *Product {
	return &Product{
		SKU:           NormalizeSKU(sku),
		Name:          name,
		Quantity:      quantity,
		Price:         price,
		MinStockLevel: DefaultMinStockLevel,
		IsActive:      true,
	}
}

// IsLowStock reports whether the quantity is at or below the threshold
// 在庫数が最低在庫数以下かチェック
func (p *Product) IsLowStock() bool {
	return p.Quantity <= p.MinStockLevel
}

// StockValue returns quantity × price
// 在庫金額（数量 × 単価）を計算
func (p *Product) StockValue() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(p.Quantity))
}

// Category groups products
// 商品カテゴリを表現
type Category struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Supplier represents a product supplier
// 仕入先を表現
type Supplier struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	ContactPerson string    `json:"contact_person" db:"contact_person"`
	Email         string    `json:"email" db:"email"`
	Phone         string    `json:"phone" db:"phone"`
	Address       string    `json:"address" db:"address"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// MovementAction is the cause of a stock movement
// 在庫移動の種別を定義
type MovementAction string

const (
	ActionRestock    MovementAction = "restock"    // 入荷
	ActionSale       MovementAction = "sale"       // 販売
	ActionAdjustment MovementAction = "adjustment" // 棚卸調整
	ActionReturn     MovementAction = "return"     // 返品
	ActionDamage     MovementAction = "damage"     // 破損・紛失
	ActionTransfer   MovementAction = "transfer"   // 移動
)

// MovementActions lists every supported action in display order
var MovementActions = []MovementAction{
	ActionRestock,
	ActionSale,
	ActionAdjustment,
	ActionReturn,
	ActionDamage,
	ActionTransfer,
}

// Valid reports whether the action belongs to the fixed enumeration
func (a MovementAction) Valid() bool {
	for _, known := range MovementActions {
		if a == known {
			return true
		}
	}
	return false
}

// StockMovement is an immutable ledger entry for one quantity change
// 在庫変動の不変な台帳レコードを表現
type StockMovement struct {
	ID               int64            `json:"id" db:"id"`                               // 台帳ID（単調増加）
	ProductID        int64            `json:"product_id" db:"product_id"`               // 商品ID
	Action           MovementAction   `json:"action" db:"action"`                       // 種別
	QuantityChange   int64            `json:"quantity_change" db:"quantity_change"`     // 増減数（符号付き）
	PreviousQuantity int64            `json:"previous_quantity" db:"previous_quantity"` // 変更前数量
	NewQuantity      int64            `json:"new_quantity" db:"new_quantity"`           // 変更後数量
	Reason           string           `json:"reason" db:"reason"`                       // 理由
	ReferenceNumber  string           `json:"reference_number" db:"reference_number"`   // 参照番号（発注書番号など）
	UnitCost         *decimal.Decimal `json:"unit_cost" db:"unit_cost"`                 // 取引単価
	UserID           *int64           `json:"user_id" db:"user_id"`                     // 実行者
	Timestamp        time.Time        `json:"timestamp" db:"timestamp"`                 // 作成日時
}

// TotalValue returns |change| × unit cost, falling back to the product price
// 取引金額を計算（単価未設定の場合は商品単価を使用）
func (m *StockMovement) TotalValue(productPrice decimal.Decimal) decimal.Decimal {
	qty := m.QuantityChange
	if qty < 0 {
		qty = -qty
	}
	cost := productPrice
	if m.UnitCost != nil {
		cost = *m.UnitCost
	}
	return cost.Mul(decimal.NewFromInt(qty))
}

// Actor is the identity attributed to a mutation, supplied by the auth layer
// 監査用の実行者（認証層から渡される）
type Actor struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func (a *Actor) userID() *int64 {
	if a == nil {
		return nil
	}
	id := a.ID
	return &id
}

// MovementRequest is the input of ApplyMovement
// 在庫変動リクエストを表現
type MovementRequest struct {
	ProductID       int64            `json:"product_id"`
	Action          MovementAction   `json:"action"`
	QuantityChange  int64            `json:"quantity_change"`
	Reason          string           `json:"reason,omitempty"`
	ReferenceNumber string           `json:"reference_number,omitempty"`
	UnitCost        *decimal.Decimal `json:"unit_cost,omitempty"`
	Actor           *Actor           `json:"-"`
}

// MovementResult carries the updated product and the created ledger entry
// 更新後の商品と作成された台帳レコード
type MovementResult struct {
	Product  Product       `json:"product"`
	Movement StockMovement `json:"stock_log"`
}

// ProductUpdate enumerates the product fields editable outside the ledger.
// Nil fields are left untouched. Quantity is intentionally absent.
// 台帳以外から更新可能な商品フィールド（nilは変更なし）
type ProductUpdate struct {
	Name          *string          `json:"name,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	MinStockLevel *int64           `json:"min_stock_level,omitempty"`
	IsActive      *bool            `json:"is_active,omitempty"`
	CategoryID    *int64           `json:"category_id,omitempty"`
	ClearCategory bool             `json:"clear_category,omitempty"`
	SupplierID    *int64           `json:"supplier_id,omitempty"`
	ClearSupplier bool             `json:"clear_supplier,omitempty"`
}

// Apply copies the set fields onto p
func (u ProductUpdate) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.MinStockLevel != nil {
		p.MinStockLevel = *u.MinStockLevel
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	switch {
	case u.ClearCategory:
		p.CategoryID, p.CategoryName = nil, nil
	case u.CategoryID != nil:
		if p.CategoryID == nil || *p.CategoryID != *u.CategoryID {
			p.CategoryName = nil
		}
		id := *u.CategoryID
		p.CategoryID = &id
	}
	switch {
	case u.ClearSupplier:
		p.SupplierID, p.SupplierName = nil, nil
	case u.SupplierID != nil:
		if p.SupplierID == nil || *p.SupplierID != *u.SupplierID {
			p.SupplierName = nil
		}
		id := *u.SupplierID
		p.SupplierID = &id
	}
}

// ReportFilter narrows reports by category/supplier name (case-insensitive substring)
// レポート用フィルタ（カテゴリ名・仕入先名の部分一致）
type ReportFilter struct {
	Category string `json:"category,omitempty"`
	Supplier string `json:"supplier,omitempty"`
}

// MovementFilter narrows ledger history queries
// 台帳履歴の検索条件
type MovementFilter struct {
	ProductID  *int64         `json:"product_id,omitempty"`
	ProductSKU string         `json:"product_sku,omitempty"` // 完全一致（大文字小文字無視）
	Action     MovementAction `json:"action,omitempty"`
	UserID     *int64         `json:"user_id,omitempty"`
	From       *time.Time     `json:"date_from,omitempty"`
	To         *time.Time     `json:"date_to,omitempty"`
	Increase   *bool          `json:"increase,omitempty"` // true: 増加のみ, false: 減少のみ
	Limit      int            `json:"limit,omitempty"`
	Offset     int            `json:"offset,omitempty"`
}

// ProductCounts is the result of CountProducts
type ProductCounts struct {
	Total    int64 `json:"total" db:"total"`
	Active   int64 `json:"active" db:"active"`
	Inactive int64 `json:"inactive" db:"inactive"`
}

// StockHealth is the result of the low/out-of-stock query.
// A product at quantity 0 is counted in both buckets.
type StockHealth struct {
	LowStockCount   int64 `json:"low_stock_count" db:"low_stock_count"`
	OutOfStockCount int64 `json:"out_of_stock_count" db:"out_of_stock_count"`
}

// StockValuation holds the value and quantity sums over active products
type StockValuation struct {
	TotalValue    decimal.Decimal `json:"total_value" db:"total_value"`
	TotalQuantity int64           `json:"total_quantity" db:"total_quantity"`
}

// CategoryCount is one row of the top-categories ranking
type CategoryCount struct {
	Name         string `json:"name" db:"name"`
	ProductCount int64  `json:"product_count" db:"product_count"`
}

// InventoryReport is the comprehensive inventory summary
// 在庫総合レポート
type InventoryReport struct {
	TotalProducts      int64           `json:"total_products"`
	ActiveProducts     int64           `json:"active_products"`
	InactiveProducts   int64           `json:"inactive_products"`
	LowStockProducts   int64           `json:"low_stock_products"`
	OutOfStockProducts int64           `json:"out_of_stock_products"`
	TotalStockValue    decimal.Decimal `json:"total_stock_value"`
	TotalQuantity      int64           `json:"total_quantity"`
	CategoriesCount    int64           `json:"categories_count"`
	SuppliersCount     int64           `json:"suppliers_count"`
	RecentStockChanges int64           `json:"recent_stock_changes"`
	Filters            ReportFilter    `json:"filters"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// DashboardStats is the quick dashboard summary
// ダッシュボード用の集計
type DashboardStats struct {
	TotalProducts        int64           `json:"total_products"`
	LowStockCount        int64           `json:"low_stock_count"`
	OutOfStockCount      int64           `json:"out_of_stock_count"`
	InventoryValue       decimal.Decimal `json:"inventory_value"`
	RecentStockMovements int64           `json:"recent_stock_movements"`
	TopCategories        []CategoryCount `json:"top_categories"`
	Timestamp            time.Time       `json:"timestamp"`
}

// BatchResult reports the outcome of ExecuteBatch
// バッチ処理の結果を表現
type BatchResult struct {
	ID           string                `json:"id"`
	Results      []MovementResult      `json:"results"`
	SuccessCount int                   `json:"success_count"`
	FailureCount int                   `json:"failure_count"`
	Errors       []BatchOperationError `json:"errors"`
	CreatedAt    time.Time             `json:"created_at"`
	CompletedAt  time.Time             `json:"completed_at"`
}

// BatchOperationError represents an error in batch processing
// バッチ処理でのエラーを表現
type BatchOperationError struct {
	OperationIndex int    `json:"operation_index"` // 操作インデックス
	Error          string `json:"error"`           // エラーメッセージ
}

// NewBatchID generates a new batch operation ID
// 新しいバッチ操作IDを生成
func NewBatchID() string {
	return uuid.New().String()
}
