package inventory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Manager implements the StockLedger interface
// StockLedgerインターフェースの実装
type Manager struct {
	storage   Storage          // ストレージ層
	publisher EventPublisher   // イベント発行者
	logger    *zap.Logger      // ログ
	config    *Config          // 設定
	locks     *ProductLocks    // 商品単位のロック
	metrics   *Metrics         // メトリクス（nil可）
	now       func() time.Time // 時刻取得
}

var _ StockLedger = (*Manager)(nil)

// Config holds configuration for the ledger engine
// 在庫台帳エンジンの設定を保持
type Config struct {
	DefaultMinStockLevel  int64         `yaml:"default_min_stock_level"` // 既定の最低在庫数
	ReportRecentWindow    time.Duration `yaml:"report_recent_window"`    // レポートの直近期間
	DashboardRecentWindow time.Duration `yaml:"dashboard_recent_window"` // ダッシュボードの直近期間
	TopCategoriesLimit    int           `yaml:"top_categories_limit"`    // 上位カテゴリ件数
	PublishEvents         bool          `yaml:"publish_events"`          // イベント発行有効
}

// DefaultConfig returns the configuration used when none is supplied
// デフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		DefaultMinStockLevel:  DefaultMinStockLevel,
		ReportRecentWindow:    7 * 24 * time.Hour,
		DashboardRecentWindow: 24 * time.Hour,
		TopCategoriesLimit:    5,
		PublishEvents:         true,
	}
}

// Option customizes a Manager, Reporter or Auditor
type Option func(*options)

type options struct {
	metrics *Metrics
	now     func() time.Time
	locks   *ProductLocks
}

// WithMetrics records Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithProductLocks shares a lock table between managers in the same process
func WithProductLocks(l *ProductLocks) Option {
	return func(o *options) { o.locks = l }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locks == nil {
		o.locks = NewProductLocks()
	}
	return o
}

// NewManager creates a new ledger manager
// 新しい在庫台帳マネージャーを作成
func NewManager(storage Storage, publisher EventPublisher, logger *zap.Logger, config *Config, opts ...Option) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := buildOptions(opts)

	return &Manager{
		storage:   storage,
		publisher: publisher,
		logger:    logger,
		config:    config,
		locks:     o.locks,
		metrics:   o.metrics,
		now:       o.now,
	}
}

// ApplyMovement atomically changes a product's quantity and appends the matching ledger entry
// 商品の在庫数を変更し、対応する台帳レコードを同一トランザクションで追加
func (m *Manager) ApplyMovement(ctx context.Context, req MovementRequest) (result *MovementResult, err error) {
	started := time.Now()
	defer func() {
		m.metrics.observeMovement(req.Action, req.QuantityChange, started, err)
	}()

	if err := ValidateMovementRequest(req); err != nil {
		return nil, err
	}
	if req.Actor == nil {
		req.Actor = ActorFromContext(ctx)
	}

	unlock, err := m.locks.Lock(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := m.storage.Begin(ctx)
	if err != nil {
		return nil, wrapStorage("begin", "トランザクション開始に失敗しました", err)
	}
	defer m.rollback(tx, req.ProductID)

	product, err := tx.GetProductForUpdate(ctx, req.ProductID)
	if err != nil {
		return nil, wrapStorage("get_product", "商品取得に失敗しました", err)
	}
	if !product.IsActive {
		return nil, ErrProductNotFound
	}

	previous := product.Quantity
	newQuantity := previous + req.QuantityChange
	if (req.QuantityChange > 0) != (newQuantity > previous) {
		return nil, NewValidationError("quantity_change", "在庫数量が上限を超えます", fmt.Sprintf("%d", req.QuantityChange))
	}
	if newQuantity < 0 {
		return nil, &InsufficientStockError{
			ProductID: product.ID,
			Current:   previous,
			Requested: req.QuantityChange,
		}
	}

	now := m.now()
	product.Quantity = newQuantity
	product.ModifiedBy = req.Actor.userID()
	product.UpdatedAt = now

	if err := tx.UpdateProduct(ctx, product); err != nil {
		return nil, wrapStorage("update_product", "在庫更新に失敗しました", err)
	}

	movement := &StockMovement{
		ProductID:        product.ID,
		Action:           req.Action,
		QuantityChange:   req.QuantityChange,
		PreviousQuantity: previous,
		NewQuantity:      newQuantity,
		Reason:           req.Reason,
		ReferenceNumber:  req.ReferenceNumber,
		UnitCost:         req.UnitCost,
		UserID:           req.Actor.userID(),
		Timestamp:        now,
	}
	if err := tx.AppendMovement(ctx, movement); err != nil {
		return nil, wrapStorage("append_movement", "台帳記録に失敗しました", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapStorage("commit", "トランザクションのコミットに失敗しました", err)
	}

	m.logger.Info("在庫変動完了",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.String("action", string(req.Action)),
		zap.Int64("quantity_change", req.QuantityChange),
		zap.Int64("previous_quantity", previous),
		zap.Int64("new_quantity", newQuantity),
		zap.Int64("movement_id", movement.ID),
		zap.String("reference_number", req.ReferenceNumber),
	)

	m.publishMovement(ctx, product, movement)

	return &MovementResult{Product: *product, Movement: *movement}, nil
}

// UpdateProduct changes non-quantity product fields under the product lock
// 在庫数以外の商品フィールドを更新
func (m *Manager) UpdateProduct(ctx context.Context, productID int64, update ProductUpdate, actor *Actor) (*Product, error) {
	if productID <= 0 {
		return nil, ErrProductNotFound
	}
	if err := ValidateProductUpdate(update); err != nil {
		return nil, err
	}
	if actor == nil {
		actor = ActorFromContext(ctx)
	}

	unlock, err := m.locks.Lock(ctx, productID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := m.storage.Begin(ctx)
	if err != nil {
		return nil, wrapStorage("begin", "トランザクション開始に失敗しました", err)
	}
	defer m.rollback(tx, productID)

	product, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		return nil, wrapStorage("get_product", "商品取得に失敗しました", err)
	}

	update.Apply(product)
	product.ModifiedBy = actor.userID()
	product.UpdatedAt = m.now()

	if err := tx.UpdateProduct(ctx, product); err != nil {
		return nil, wrapStorage("update_product", "商品更新に失敗しました", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapStorage("commit", "トランザクションのコミットに失敗しました", err)
	}

	m.logger.Info("商品更新完了",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.Bool("is_active", product.IsActive),
	)

	// カテゴリ名・仕入先名を再取得
	fresh, err := m.storage.GetProduct(ctx, productID)
	if err != nil {
		m.logger.Warn("更新後の商品再取得に失敗しました", zap.Int64("product_id", productID), zap.Error(err))
		return product, nil
	}
	return fresh, nil
}

// GetProduct gets a product by id
// 商品を取得
func (m *Manager) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	if productID <= 0 {
		return nil, ErrProductNotFound
	}
	product, err := m.storage.GetProduct(ctx, productID)
	if err != nil {
		return nil, wrapStorage("get_product", "商品取得に失敗しました", err)
	}
	return product, nil
}

// ExecuteBatch applies each request as its own atomic movement
// バッチで在庫変動を実行（各リクエストは独立したトランザクション）
func (m *Manager) ExecuteBatch(ctx context.Context, requests []MovementRequest) (*BatchResult, error) {
	batch := &BatchResult{
		ID:        NewBatchID(),
		Results:   make([]MovementResult, 0, len(requests)),
		Errors:    make([]BatchOperationError, 0),
		CreatedAt: m.now(),
	}

	for i, req := range requests {
		var (
			res *MovementResult
			err error
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else {
			res, err = m.ApplyMovement(ctx, req)
		}

		if err != nil {
			batch.Errors = append(batch.Errors, BatchOperationError{
				OperationIndex: i,
				Error:          err.Error(),
			})
			batch.FailureCount++
			continue
		}
		batch.Results = append(batch.Results, *res)
		batch.SuccessCount++
	}

	batch.CompletedAt = m.now()

	m.logger.Info("バッチ処理完了",
		zap.String("batch_id", batch.ID),
		zap.Int("success_count", batch.SuccessCount),
		zap.Int("failure_count", batch.FailureCount),
	)

	return batch, nil
}

// rollback ends an unfinished unit of work; it is a no-op after Commit
func (m *Manager) rollback(tx Tx, productID int64) {
	if err := tx.Rollback(); err != nil {
		m.logger.Error("ロールバックに失敗しました", zap.Int64("product_id", productID), zap.Error(err))
	}
}

// publishMovement sends post-commit events; failures are logged only
// コミット後のイベント発行（失敗はログのみ）
func (m *Manager) publishMovement(ctx context.Context, product *Product, movement *StockMovement) {
	if m.publisher == nil || !m.config.PublishEvents {
		return
	}

	event := StockChangedEvent{
		ProductID:       product.ID,
		SKU:             product.SKU,
		MovementID:      movement.ID,
		Action:          movement.Action,
		OldQuantity:     movement.PreviousQuantity,
		NewQuantity:     movement.NewQuantity,
		ReferenceNumber: movement.ReferenceNumber,
		UserID:          movement.UserID,
		Timestamp:       movement.Timestamp,
	}
	if err := m.publisher.PublishStockChanged(ctx, event); err != nil {
		m.logger.Error("イベント発行に失敗しました", zap.Int64("product_id", product.ID), zap.Error(err))
	}

	// 閾値を下回った時点でのみ低在庫アラート
	if movement.PreviousQuantity > product.MinStockLevel && movement.NewQuantity <= product.MinStockLevel {
		alert := LowStockAlertEvent{
			ProductID:     product.ID,
			SKU:           product.SKU,
			CurrentQty:    movement.NewQuantity,
			MinStockLevel: product.MinStockLevel,
			Timestamp:     movement.Timestamp,
		}
		if err := m.publisher.PublishLowStockAlert(ctx, alert); err != nil {
			m.logger.Error("低在庫アラートイベント発行に失敗しました", zap.Int64("product_id", product.ID), zap.Error(err))
		}
	}
}
