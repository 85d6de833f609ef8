package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reporter implements the InventoryReporter interface.
// It only reads; every method is safe for concurrent use.
// InventoryReporterインターフェースの実装（読み取り専用）
type Reporter struct {
	storage ReportStorage
	logger  *zap.Logger
	config  *Config
	metrics *Metrics
	now     func() time.Time
}

var _ InventoryReporter = (*Reporter)(nil)

// NewReporter creates a new inventory reporter
// 新しい在庫レポーターを作成
func NewReporter(storage ReportStorage, logger *zap.Logger, config *Config, opts ...Option) *Reporter {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := buildOptions(opts)
	return &Reporter{
		storage: storage,
		logger:  logger,
		config:  config,
		metrics: o.metrics,
		now:     o.now,
	}
}

// CountProducts counts total, active and inactive products
// 商品数（全体・アクティブ・非アクティブ）を集計
func (r *Reporter) CountProducts(ctx context.Context, filter ReportFilter) (ProductCounts, error) {
	counts, err := r.storage.CountProducts(ctx, filter)
	r.metrics.observeReport("count_products", err)
	if err != nil {
		return ProductCounts{}, wrapStorage("count_products", "商品数の集計に失敗しました", err)
	}
	return counts, nil
}

// StockHealth counts low-stock and out-of-stock active products.
// A product at quantity 0 falls in both buckets.
// 低在庫・在庫切れの商品数を集計（数量0は両方に含まれる）
func (r *Reporter) StockHealth(ctx context.Context, filter ReportFilter) (StockHealth, error) {
	health, err := r.storage.StockHealth(ctx, filter)
	r.metrics.observeReport("stock_health", err)
	if err != nil {
		return StockHealth{}, wrapStorage("stock_health", "在庫状況の集計に失敗しました", err)
	}
	return health, nil
}

// TotalStockValue sums quantity × price over active products
// アクティブ商品の在庫金額合計を計算
func (r *Reporter) TotalStockValue(ctx context.Context, filter ReportFilter) (decimal.Decimal, error) {
	valuation, err := r.storage.StockValuation(ctx, filter)
	r.metrics.observeReport("total_stock_value", err)
	if err != nil {
		return decimal.Zero, wrapStorage("stock_valuation", "在庫金額の集計に失敗しました", err)
	}
	return valuation.TotalValue, nil
}

// RecentMovementCount counts ledger entries within [now - window, now]
// 直近期間の台帳レコード数を集計
func (r *Reporter) RecentMovementCount(ctx context.Context, window time.Duration) (int64, error) {
	if window <= 0 {
		return 0, NewValidationError("window", "集計期間は正の値である必要があります", window.String())
	}
	to := r.now()
	count, err := r.storage.CountMovementsBetween(ctx, to.Add(-window), to)
	r.metrics.observeReport("recent_movement_count", err)
	if err != nil {
		return 0, wrapStorage("count_movements", "台帳レコード数の集計に失敗しました", err)
	}
	return count, nil
}

// TopCategoriesByActiveProductCount ranks categories by active product count,
// ties broken by name ascending
// アクティブ商品数の多い順にカテゴリを取得（同数は名前順）
func (r *Reporter) TopCategoriesByActiveProductCount(ctx context.Context, limit int) ([]CategoryCount, error) {
	if limit <= 0 {
		return nil, NewValidationError("limit", "取得件数は正の値である必要があります", fmt.Sprintf("%d", limit))
	}
	categories, err := r.storage.TopCategories(ctx, limit)
	r.metrics.observeReport("top_categories", err)
	if err != nil {
		return nil, wrapStorage("top_categories", "カテゴリ集計に失敗しました", err)
	}
	return categories, nil
}

// LowStockProducts lists active products at or below their threshold, lowest quantity first
// 低在庫商品を数量の少ない順に取得
func (r *Reporter) LowStockProducts(ctx context.Context, filter ReportFilter) ([]Product, error) {
	products, err := r.storage.ListLowStockProducts(ctx, filter)
	r.metrics.observeReport("low_stock_products", err)
	if err != nil {
		return nil, wrapStorage("list_low_stock", "低在庫商品の取得に失敗しました", err)
	}
	return products, nil
}

// InventoryReport builds the comprehensive inventory summary.
// Each figure is its own snapshot.
// 在庫総合レポートを作成
func (r *Reporter) InventoryReport(ctx context.Context, filter ReportFilter) (*InventoryReport, error) {
	counts, err := r.CountProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	health, err := r.StockHealth(ctx, filter)
	if err != nil {
		return nil, err
	}
	valuation, err := r.storage.StockValuation(ctx, filter)
	r.metrics.observeReport("total_stock_value", err)
	if err != nil {
		return nil, wrapStorage("stock_valuation", "在庫金額の集計に失敗しました", err)
	}
	categories, err := r.storage.CountCategories(ctx)
	if err != nil {
		return nil, wrapStorage("count_categories", "カテゴリ数の集計に失敗しました", err)
	}
	suppliers, err := r.storage.CountSuppliers(ctx)
	if err != nil {
		return nil, wrapStorage("count_suppliers", "仕入先数の集計に失敗しました", err)
	}
	recent, err := r.RecentMovementCount(ctx, r.config.ReportRecentWindow)
	if err != nil {
		return nil, err
	}

	report := &InventoryReport{
		TotalProducts:      counts.Total,
		ActiveProducts:     counts.Active,
		InactiveProducts:   counts.Inactive,
		LowStockProducts:   health.LowStockCount,
		OutOfStockProducts: health.OutOfStockCount,
		TotalStockValue:    valuation.TotalValue,
		TotalQuantity:      valuation.TotalQuantity,
		CategoriesCount:    categories,
		SuppliersCount:     suppliers,
		RecentStockChanges: recent,
		Filters:            filter,
		GeneratedAt:        r.now(),
	}

	r.logger.Info("在庫レポート作成完了",
		zap.String("category_filter", filter.Category),
		zap.String("supplier_filter", filter.Supplier),
		zap.Int64("total_products", report.TotalProducts),
	)

	return report, nil
}

// DashboardStats builds the quick dashboard summary
// ダッシュボード用の集計を作成
func (r *Reporter) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	counts, err := r.CountProducts(ctx, ReportFilter{})
	if err != nil {
		return nil, err
	}
	health, err := r.StockHealth(ctx, ReportFilter{})
	if err != nil {
		return nil, err
	}
	value, err := r.TotalStockValue(ctx, ReportFilter{})
	if err != nil {
		return nil, err
	}
	recent, err := r.RecentMovementCount(ctx, r.config.DashboardRecentWindow)
	if err != nil {
		return nil, err
	}
	top, err := r.TopCategoriesByActiveProductCount(ctx, r.config.TopCategoriesLimit)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		TotalProducts:        counts.Active,
		LowStockCount:        health.LowStockCount,
		OutOfStockCount:      health.OutOfStockCount,
		InventoryValue:       value,
		RecentStockMovements: recent,
		TopCategories:        top,
		Timestamp:            r.now(),
	}, nil
}
