package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

// PoolConfig holds connection pool settings
// 接続プール設定
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns the pool settings used by the services
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// PostgreSQLStorage implements the Storage interface using PostgreSQL
// PostgreSQLを使用したStorageインターフェースの実装
type PostgreSQLStorage struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ inventory.Storage = (*PostgreSQLStorage)(nil)

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
// 新しいPostgreSQLストレージインスタンスを作成
func NewPostgreSQLStorage(ctx context.Context, dsn string, pool PoolConfig, logger *zap.Logger) (*PostgreSQLStorage, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// 接続テスト
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースpingに失敗しました: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return NewPostgreSQLStorageFromDB(db, logger), nil
}

// NewPostgreSQLStorageFromDB wraps an existing connection pool
func NewPostgreSQLStorageFromDB(db *sqlx.DB, logger *zap.Logger) *PostgreSQLStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgreSQLStorage{db: db, logger: logger}
}

// DB exposes the underlying pool, e.g. for migrations
func (s *PostgreSQLStorage) DB() *sqlx.DB {
	return s.db
}

const productColumns = `
	p.id, p.sku, p.name, p.description, p.quantity, p.price, p.min_stock_level, p.is_active,
	p.category_id, c.name AS category_name, p.supplier_id, s.name AS supplier_name,
	p.created_by, p.modified_by, p.created_at, p.updated_at`

const productFrom = `
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
	LEFT JOIN suppliers s ON s.id = p.supplier_id`

const movementColumns = `
	m.id, m.product_id, m.action, m.quantity_change, m.previous_quantity, m.new_quantity,
	m.reason, m.reference_number, m.unit_cost, m.user_id, m.timestamp`

// Begin starts a new unit of work
// 新しいトランザクションを開始
func (s *PostgreSQLStorage) Begin(ctx context.Context) (inventory.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗しました: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

// GetProduct gets a product by id
// 商品を取得
func (s *PostgreSQLStorage) GetProduct(ctx context.Context, productID int64) (*inventory.Product, error) {
	var p inventory.Product
	query := `SELECT` + productColumns + productFrom + ` WHERE p.id = $1`
	if err := s.db.GetContext(ctx, &p, query, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrProductNotFound
		}
		return nil, fmt.Errorf("商品取得に失敗しました: %w", err)
	}
	return &p, nil
}

// GetProductBySKU gets a product by SKU (case-insensitive)
// SKUで商品を取得
func (s *PostgreSQLStorage) GetProductBySKU(ctx context.Context, sku string) (*inventory.Product, error) {
	var p inventory.Product
	query := `SELECT` + productColumns + productFrom + ` WHERE p.sku = $1`
	if err := s.db.GetContext(ctx, &p, query, inventory.NormalizeSKU(sku)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrProductNotFound
		}
		return nil, fmt.Errorf("商品取得に失敗しました: %w", err)
	}
	return &p, nil
}

// CreateProduct inserts a product and sets its id
// 商品を作成
func (s *PostgreSQLStorage) CreateProduct(ctx context.Context, p *inventory.Product) error {
	p.SKU = inventory.NormalizeSKU(p.SKU)
	if err := inventory.ValidateProduct(p); err != nil {
		return err
	}

	now := time.Now()
	query := `
		INSERT INTO products (sku, name, description, quantity, price, min_stock_level, is_active,
			category_id, supplier_id, created_by, modified_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING id`

	err := s.db.QueryRowxContext(ctx, query,
		p.SKU,
		p.Name,
		p.Description,
		p.Quantity,
		p.Price,
		p.MinStockLevel,
		p.IsActive,
		p.CategoryID,
		p.SupplierID,
		p.CreatedBy,
		p.CreatedBy,
		now,
	).Scan(&p.ID)
	if err != nil {
		return mapProductWriteError(err, "商品作成に失敗しました")
	}

	p.CreatedAt, p.UpdatedAt = now, now
	p.ModifiedBy = p.CreatedBy
	return nil
}

// CreateCategory inserts a category and sets its id
// カテゴリを作成
func (s *PostgreSQLStorage) CreateCategory(ctx context.Context, c *inventory.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return inventory.NewValidationError("name", "カテゴリ名が空です", c.Name)
	}
	c.CreatedAt = time.Now()
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO categories (name, description, created_at) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, c.Description, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return inventory.ErrDuplicateName
		}
		return fmt.Errorf("カテゴリ作成に失敗しました: %w", err)
	}
	return nil
}

// CreateSupplier inserts a supplier and sets its id
// 仕入先を作成
func (s *PostgreSQLStorage) CreateSupplier(ctx context.Context, sup *inventory.Supplier) error {
	if strings.TrimSpace(sup.Name) == "" {
		return inventory.NewValidationError("name", "仕入先名が空です", sup.Name)
	}
	sup.CreatedAt = time.Now()
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO suppliers (name, contact_person, email, phone, address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		sup.Name, sup.ContactPerson, sup.Email, sup.Phone, sup.Address, sup.CreatedAt,
	).Scan(&sup.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return inventory.ErrDuplicateName
		}
		return fmt.Errorf("仕入先作成に失敗しました: %w", err)
	}
	return nil
}

// ListMovements lists ledger entries matching the filter, newest first
// 台帳履歴を検索
func (s *PostgreSQLStorage) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	conditions := []string{}
	args := []interface{}{}

	if filter.ProductID != nil {
		conditions = append(conditions, "m.product_id = ?")
		args = append(args, *filter.ProductID)
	}
	if filter.ProductSKU != "" {
		conditions = append(conditions, "UPPER(p.sku) = UPPER(?)")
		args = append(args, filter.ProductSKU)
	}
	if filter.Action != "" {
		conditions = append(conditions, "m.action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.UserID != nil {
		conditions = append(conditions, "m.user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.From != nil {
		conditions = append(conditions, "m.timestamp >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, "m.timestamp <= ?")
		args = append(args, *filter.To)
	}
	if filter.Increase != nil {
		if *filter.Increase {
			conditions = append(conditions, "m.quantity_change > 0")
		} else {
			conditions = append(conditions, "m.quantity_change < 0")
		}
	}

	query := `SELECT` + movementColumns + ` FROM stock_movements m JOIN products p ON p.id = m.product_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY m.timestamp DESC, m.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	movements := []inventory.StockMovement{}
	if err := s.db.SelectContext(ctx, &movements, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("台帳履歴取得に失敗しました: %w", err)
	}
	return movements, nil
}

// ListProductMovements lists a product's ledger in id order
// 商品の台帳を記録順に取得
func (s *PostgreSQLStorage) ListProductMovements(ctx context.Context, productID int64) ([]inventory.StockMovement, error) {
	movements := []inventory.StockMovement{}
	query := `SELECT` + movementColumns + ` FROM stock_movements m WHERE m.product_id = $1 ORDER BY m.id ASC`
	if err := s.db.SelectContext(ctx, &movements, query, productID); err != nil {
		return nil, fmt.Errorf("台帳履歴取得に失敗しました: %w", err)
	}
	return movements, nil
}

// CountProducts counts total, active and inactive products
// 商品数を集計
func (s *PostgreSQLStorage) CountProducts(ctx context.Context, filter inventory.ReportFilter) (inventory.ProductCounts, error) {
	where, args := reportConditions(filter, false)
	query := `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE p.is_active) AS active,
			COUNT(*) FILTER (WHERE NOT p.is_active) AS inactive` + productFrom + where

	var counts inventory.ProductCounts
	if err := s.db.GetContext(ctx, &counts, s.db.Rebind(query), args...); err != nil {
		return inventory.ProductCounts{}, fmt.Errorf("商品数の集計に失敗しました: %w", err)
	}
	return counts, nil
}

// StockHealth counts low-stock and out-of-stock active products
// 低在庫・在庫切れ数を集計
func (s *PostgreSQLStorage) StockHealth(ctx context.Context, filter inventory.ReportFilter) (inventory.StockHealth, error) {
	where, args := reportConditions(filter, true)
	query := `
		SELECT COUNT(*) FILTER (WHERE p.quantity <= p.min_stock_level) AS low_stock_count,
			COUNT(*) FILTER (WHERE p.quantity = 0) AS out_of_stock_count` + productFrom + where

	var health inventory.StockHealth
	if err := s.db.GetContext(ctx, &health, s.db.Rebind(query), args...); err != nil {
		return inventory.StockHealth{}, fmt.Errorf("在庫状況の集計に失敗しました: %w", err)
	}
	return health, nil
}

// StockValuation sums value and quantity over active products
// 在庫金額と数量を集計
func (s *PostgreSQLStorage) StockValuation(ctx context.Context, filter inventory.ReportFilter) (inventory.StockValuation, error) {
	where, args := reportConditions(filter, true)
	query := `
		SELECT COALESCE(SUM(p.quantity * p.price), 0) AS total_value,
			COALESCE(SUM(p.quantity), 0)::BIGINT AS total_quantity` + productFrom + where

	var valuation inventory.StockValuation
	if err := s.db.GetContext(ctx, &valuation, s.db.Rebind(query), args...); err != nil {
		return inventory.StockValuation{}, fmt.Errorf("在庫金額の集計に失敗しました: %w", err)
	}
	return valuation, nil
}

// CountMovementsBetween counts ledger entries with from <= timestamp <= to
// 期間内の台帳レコード数を集計
func (s *PostgreSQLStorage) CountMovementsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM stock_movements WHERE timestamp >= $1 AND timestamp <= $2`
	if err := s.db.GetContext(ctx, &count, query, from, to); err != nil {
		return 0, fmt.Errorf("台帳レコード数の集計に失敗しました: %w", err)
	}
	return count, nil
}

// TopCategories ranks every category by active product count
// カテゴリをアクティブ商品数順に取得
func (s *PostgreSQLStorage) TopCategories(ctx context.Context, limit int) ([]inventory.CategoryCount, error) {
	query := `
		SELECT c.name, COUNT(p.id) AS product_count
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id AND p.is_active
		GROUP BY c.id, c.name
		ORDER BY product_count DESC, c.name ASC
		LIMIT $1`

	categories := []inventory.CategoryCount{}
	if err := s.db.SelectContext(ctx, &categories, query, limit); err != nil {
		return nil, fmt.Errorf("カテゴリ集計に失敗しました: %w", err)
	}
	return categories, nil
}

// ListLowStockProducts lists active products at or below their threshold
// 低在庫商品を取得
func (s *PostgreSQLStorage) ListLowStockProducts(ctx context.Context, filter inventory.ReportFilter) ([]inventory.Product, error) {
	where, args := reportConditions(filter, true)
	where += " AND p.quantity <= p.min_stock_level"
	query := `SELECT` + productColumns + productFrom + where + ` ORDER BY p.quantity ASC, p.id ASC`

	products := []inventory.Product{}
	if err := s.db.SelectContext(ctx, &products, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("低在庫商品の取得に失敗しました: %w", err)
	}
	return products, nil
}

// CountCategories counts categories
func (s *PostgreSQLStorage) CountCategories(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM categories`); err != nil {
		return 0, fmt.Errorf("カテゴリ数の集計に失敗しました: %w", err)
	}
	return count, nil
}

// CountSuppliers counts suppliers
func (s *PostgreSQLStorage) CountSuppliers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM suppliers`); err != nil {
		return 0, fmt.Errorf("仕入先数の集計に失敗しました: %w", err)
	}
	return count, nil
}

// Ping checks database connectivity
// データベース接続を確認
func (s *PostgreSQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
// データベース接続を閉じる
func (s *PostgreSQLStorage) Close() error {
	return s.db.Close()
}

// postgresTx is a unit of work on one database transaction
type postgresTx struct {
	tx *sqlx.Tx
}

// GetProductForUpdate reads the product row and locks it until commit or rollback
func (t *postgresTx) GetProductForUpdate(ctx context.Context, productID int64) (*inventory.Product, error) {
	var p inventory.Product
	query := `SELECT` + productColumns + productFrom + ` WHERE p.id = $1 FOR UPDATE OF p`
	if err := t.tx.GetContext(ctx, &p, query, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrProductNotFound
		}
		return nil, fmt.Errorf("商品取得に失敗しました: %w", err)
	}
	return &p, nil
}

func (t *postgresTx) UpdateProduct(ctx context.Context, p *inventory.Product) error {
	query := `
		UPDATE products
		SET name = :name, description = :description, quantity = :quantity, price = :price,
			min_stock_level = :min_stock_level, is_active = :is_active,
			category_id = :category_id, supplier_id = :supplier_id,
			modified_by = :modified_by, updated_at = :updated_at
		WHERE id = :id`

	result, err := t.tx.NamedExecContext(ctx, query, p)
	if err != nil {
		return mapProductWriteError(err, "商品更新に失敗しました")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rows == 0 {
		return inventory.ErrProductNotFound
	}
	return nil
}

func (t *postgresTx) AppendMovement(ctx context.Context, m *inventory.StockMovement) error {
	query := `
		INSERT INTO stock_movements (product_id, action, quantity_change, previous_quantity, new_quantity,
			reason, reference_number, unit_cost, user_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := t.tx.QueryRowxContext(ctx, query,
		m.ProductID,
		string(m.Action),
		m.QuantityChange,
		m.PreviousQuantity,
		m.NewQuantity,
		m.Reason,
		m.ReferenceNumber,
		m.UnitCost,
		m.UserID,
		m.Timestamp,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("台帳記録に失敗しました: %w", err)
	}
	return nil
}

func (t *postgresTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return inventory.ErrTxDone
		}
		return fmt.Errorf("コミットに失敗しました: %w", err)
	}
	return nil
}

// Rollback is a no-op once the transaction has finished
func (t *postgresTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("ロールバックに失敗しました: %w", err)
	}
	return nil
}

// reportConditions builds the WHERE clause for report filters using ? placeholders
func reportConditions(filter inventory.ReportFilter, activeOnly bool) (string, []interface{}) {
	conditions := []string{"TRUE"}
	args := []interface{}{}
	if activeOnly {
		conditions = append(conditions, "p.is_active")
	}
	if filter.Category != "" {
		conditions = append(conditions, `c.name ILIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(filter.Category))
	}
	if filter.Supplier != "" {
		conditions = append(conditions, `s.name ILIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(filter.Supplier))
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// mapProductWriteError translates constraint violations on products into domain errors
func mapProductWriteError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return inventory.ErrDuplicateSKU
		case "23503":
			if strings.Contains(pqErr.Constraint, "supplier") {
				return inventory.ErrSupplierNotFound
			}
			return inventory.ErrCategoryNotFound
		case "23514":
			return inventory.NewValidationError(pqErr.Column, "制約違反です", pqErr.Constraint)
		}
	}
	return fmt.Errorf("%s: %w", message, err)
}

var _ inventory.Catalog = (*PostgreSQLStorage)(nil)
