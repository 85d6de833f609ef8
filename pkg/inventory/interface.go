package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StockLedger defines the write side of the engine
// 在庫台帳の更新系インターフェースを定義
type StockLedger interface {
	ApplyMovement(ctx context.Context, req MovementRequest) (*MovementResult, error)
	UpdateProduct(ctx context.Context, productID int64, update ProductUpdate, actor *Actor) (*Product, error)
	GetProduct(ctx context.Context, productID int64) (*Product, error)
	ExecuteBatch(ctx context.Context, requests []MovementRequest) (*BatchResult, error)
}

// InventoryReporter defines read-only aggregate queries
// 在庫集計（読み取り専用）のインターフェースを定義
type InventoryReporter interface {
	CountProducts(ctx context.Context, filter ReportFilter) (ProductCounts, error)
	StockHealth(ctx context.Context, filter ReportFilter) (StockHealth, error)
	TotalStockValue(ctx context.Context, filter ReportFilter) (decimal.Decimal, error)
	RecentMovementCount(ctx context.Context, window time.Duration) (int64, error)
	TopCategoriesByActiveProductCount(ctx context.Context, limit int) ([]CategoryCount, error)
	LowStockProducts(ctx context.Context, filter ReportFilter) ([]Product, error)
	InventoryReport(ctx context.Context, filter ReportFilter) (*InventoryReport, error)
	DashboardStats(ctx context.Context) (*DashboardStats, error)
}

// LedgerAuditor defines ledger history and verification queries
// 台帳の履歴照会と検証のインターフェースを定義
type LedgerAuditor interface {
	MovementHistory(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
	Replay(ctx context.Context, productID int64) (*ReplayReport, error)
	MovementValue(ctx context.Context, movement StockMovement) (decimal.Decimal, error)
	AverageRestockCost(ctx context.Context, productID int64) (decimal.Decimal, error)
}

// Storage defines the persistence layer shared by the ledger, reporter and auditor
// データ永続化層のインターフェースを定義
type Storage interface {
	// Unit of work for the read-modify-write-append sequence
	Begin(ctx context.Context) (Tx, error)

	// Catalog reads
	GetProduct(ctx context.Context, productID int64) (*Product, error)

	// Ledger reads
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
	ListProductMovements(ctx context.Context, productID int64) ([]StockMovement, error)

	ReportStorage

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// ReportStorage provides the aggregates behind the reporter.
// Each call must observe a single consistent snapshot.
// 集計クエリ（各呼び出しは一貫したスナップショットを参照）
type ReportStorage interface {
	CountProducts(ctx context.Context, filter ReportFilter) (ProductCounts, error)
	StockHealth(ctx context.Context, filter ReportFilter) (StockHealth, error)
	StockValuation(ctx context.Context, filter ReportFilter) (StockValuation, error)
	CountMovementsBetween(ctx context.Context, from, to time.Time) (int64, error)
	TopCategories(ctx context.Context, limit int) ([]CategoryCount, error)
	ListLowStockProducts(ctx context.Context, filter ReportFilter) ([]Product, error)
	CountCategories(ctx context.Context) (int64, error)
	CountSuppliers(ctx context.Context) (int64, error)
}

// Catalog provides catalog writes outside the ledger. Products are created with
// their opening quantity; later changes go through StockLedger.
// カタログ（商品・カテゴリ・仕入先）の登録
type Catalog interface {
	CreateProduct(ctx context.Context, product *Product) error
	CreateCategory(ctx context.Context, category *Category) error
	CreateSupplier(ctx context.Context, supplier *Supplier) error
	GetProductBySKU(ctx context.Context, sku string) (*Product, error)
}

// Tx is a storage unit of work. Commit or Rollback must be called exactly once;
// Rollback after Commit is a no-op.
// ストレージのトランザクション（CommitまたはRollbackを必ず呼ぶ）
type Tx interface {
	// GetProductForUpdate reads the product and holds its row lock until the end of the unit of work
	GetProductForUpdate(ctx context.Context, productID int64) (*Product, error)
	UpdateProduct(ctx context.Context, product *Product) error
	// AppendMovement inserts the entry; movement.ID is set by the time Commit returns
	AppendMovement(ctx context.Context, movement *StockMovement) error
	Commit() error
	Rollback() error
}

// EventPublisher defines interface for publishing inventory events
// 在庫イベント発行のインターフェースを定義
type EventPublisher interface {
	PublishStockChanged(ctx context.Context, event StockChangedEvent) error
	PublishLowStockAlert(ctx context.Context, event LowStockAlertEvent) error
}

// StockChangedEvent represents a committed stock level change
// 在庫レベル変更イベントを表現
type StockChangedEvent struct {
	ProductID       int64          `json:"product_id"`
	SKU             string         `json:"sku"`
	MovementID      int64          `json:"movement_id"`
	Action          MovementAction `json:"action"`
	OldQuantity     int64          `json:"old_quantity"`
	NewQuantity     int64          `json:"new_quantity"`
	ReferenceNumber string         `json:"reference_number"`
	UserID          *int64         `json:"user_id"`
	Timestamp       time.Time      `json:"timestamp"`
}

// LowStockAlertEvent is raised when a product crosses into low stock
// 低在庫アラートイベントを表現
type LowStockAlertEvent struct {
	ProductID     int64     `json:"product_id"`
	SKU           string    `json:"sku"`
	CurrentQty    int64     `json:"current_qty"`
	MinStockLevel int64     `json:"min_stock_level"`
	Timestamp     time.Time `json:"timestamp"`
}
