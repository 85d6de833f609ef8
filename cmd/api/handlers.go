package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

// Pinger reports storage health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handlers for the stock ledger API
// 在庫台帳API用のHTTPハンドラーを保持
type Handlers struct {
	ledger   inventory.StockLedger
	reporter inventory.InventoryReporter
	auditor  inventory.LedgerAuditor
	catalog  inventory.Catalog
	health   Pinger
	logger   *zap.Logger
	config   *inventory.Config
}

// NewHandlers creates new HTTP handlers
// 新しいHTTPハンドラーを作成
func NewHandlers(
	ledger inventory.StockLedger,
	reporter inventory.InventoryReporter,
	auditor inventory.LedgerAuditor,
	catalog inventory.Catalog,
	health Pinger,
	logger *zap.Logger,
	config *inventory.Config,
) *Handlers {
	if config == nil {
		config = inventory.DefaultConfig()
	}
	return &Handlers{
		ledger:   ledger,
		reporter: reporter,
		auditor:  auditor,
		catalog:  catalog,
		health:   health,
		logger:   logger,
		config:   config,
	}
}

// APIResponse represents standard API response format
// 標準的なAPIレスポンス形式を表現
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// StockUpdateRequest represents a stock movement request body
// 在庫変動リクエストを表現
type StockUpdateRequest struct {
	Action          inventory.MovementAction `json:"action"`
	QuantityChange  int64                    `json:"quantity_change"`
	Reason          string                   `json:"reason"`
	ReferenceNumber string                   `json:"reference_number"`
	UnitCost        *decimal.Decimal         `json:"unit_cost"`
}

// BatchStockUpdateRequest represents a batch of stock movements
// バッチ在庫変動リクエストを表現
type BatchStockUpdateRequest struct {
	Operations []struct {
		ProductID int64 `json:"product_id"`
		StockUpdateRequest
	} `json:"operations"`
}

// CreateProductRequest represents a product registration body
// 商品登録リクエストを表現
type CreateProductRequest struct {
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	MinStockLevel *int64          `json:"min_stock_level"`
	CategoryID    *int64          `json:"category_id"`
	SupplierID    *int64          `json:"supplier_id"`
}

// HealthCheck handles health check requests
// ヘルスチェックリクエストを処理
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.Error("ヘルスチェックに失敗しました", zap.Error(err))
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, APIResponse{
		Success: code == http.StatusOK,
		Data: map[string]interface{}{
			"status":    status,
			"timestamp": time.Now(),
			"service":   "zaiStockLedger",
		},
	})
}

// UpdateStock applies one stock movement to a product
// 在庫変動リクエストを処理
func (h *Handlers) UpdateStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req StockUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	result, err := h.ledger.ApplyMovement(r.Context(), inventory.MovementRequest{
		ProductID:       productID,
		Action:          req.Action,
		QuantityChange:  req.QuantityChange,
		Reason:          req.Reason,
		ReferenceNumber: req.ReferenceNumber,
		UnitCost:        req.UnitCost,
	})
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}

	h.sendSuccess(w, result)
}

// BatchUpdateStock applies several movements, each atomically
// バッチ在庫変動リクエストを処理
func (h *Handlers) BatchUpdateStock(w http.ResponseWriter, r *http.Request) {
	var req BatchStockUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}
	if len(req.Operations) == 0 {
		h.sendError(w, http.StatusBadRequest, "操作が指定されていません")
		return
	}

	requests := make([]inventory.MovementRequest, 0, len(req.Operations))
	for _, op := range req.Operations {
		requests = append(requests, inventory.MovementRequest{
			ProductID:       op.ProductID,
			Action:          op.Action,
			QuantityChange:  op.QuantityChange,
			Reason:          op.Reason,
			ReferenceNumber: op.ReferenceNumber,
			UnitCost:        op.UnitCost,
		})
	}

	batch, err := h.ledger.ExecuteBatch(r.Context(), requests)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, batch)
}

// CreateProduct registers a product with its opening quantity
// 商品登録リクエストを処理
func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	product := inventory.NewProduct(req.SKU, req.Name, req.Price, req.Quantity)
	product.Description = req.Description
	product.MinStockLevel = h.config.DefaultMinStockLevel
	if req.MinStockLevel != nil {
		product.MinStockLevel = *req.MinStockLevel
	}
	product.CategoryID = req.CategoryID
	product.SupplierID = req.SupplierID
	if actor := inventory.ActorFromContext(r.Context()); actor != nil {
		id := actor.ID
		product.CreatedBy = &id
	}

	if err := h.catalog.CreateProduct(r.Context(), product); err != nil {
		h.sendDomainError(w, r, err)
		return
	}

	created, err := h.ledger.GetProduct(r.Context(), product.ID)
	if err != nil {
		created = product
	}
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: created})
}

// GetProduct handles get product requests
// 商品取得リクエストを処理
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	product, err := h.ledger.GetProduct(r.Context(), productID)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, product)
}

// UpdateProduct updates non-quantity product fields
// 商品更新リクエストを処理
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	var update inventory.ProductUpdate
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&update); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	product, err := h.ledger.UpdateProduct(r.Context(), productID, update, nil)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, product)
}

// CreateCategory handles create category requests
// カテゴリ作成リクエストを処理
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var category inventory.Category
	if err := json.NewDecoder(r.Body).Decode(&category); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}
	if err := h.catalog.CreateCategory(r.Context(), &category); err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: category})
}

// CreateSupplier handles create supplier requests
// 仕入先作成リクエストを処理
func (h *Handlers) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var supplier inventory.Supplier
	if err := json.NewDecoder(r.Body).Decode(&supplier); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}
	if err := h.catalog.CreateSupplier(r.Context(), &supplier); err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: supplier})
}

// GetProductStockLogs lists one product's ledger, newest first
// 商品の台帳履歴リクエストを処理
func (h *Handlers) GetProductStockLogs(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	if _, err := h.ledger.GetProduct(r.Context(), productID); err != nil {
		h.sendDomainError(w, r, err)
		return
	}

	filter, err := parseMovementFilter(r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.ProductID = &productID

	movements, err := h.auditor.MovementHistory(r.Context(), filter)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, movements)
}

// ListStockLogs searches the whole ledger
// 台帳検索リクエストを処理
func (h *Handlers) ListStockLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMovementFilter(r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	movements, err := h.auditor.MovementHistory(r.Context(), filter)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, movements)
}

// ReplayLedger verifies a product's ledger against its quantity
// 台帳検証リクエストを処理
func (h *Handlers) ReplayLedger(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	report, err := h.auditor.Replay(r.Context(), productID)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, report)
}

// GetAverageCost returns the weighted average restock cost
// 平均原価リクエストを処理
func (h *Handlers) GetAverageCost(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	cost, err := h.auditor.AverageRestockCost(r.Context(), productID)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, map[string]interface{}{
		"product_id":   productID,
		"average_cost": cost,
	})
}

// LowStockProducts handles low stock report requests
// 低在庫商品リクエストを処理
func (h *Handlers) LowStockProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.reporter.LowStockProducts(r.Context(), parseReportFilter(r))
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, products)
}

// InventoryReport handles inventory report requests
// 在庫レポートリクエストを処理
func (h *Handlers) InventoryReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.InventoryReport(r.Context(), parseReportFilter(r))
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, report)
}

// DashboardStats handles dashboard requests
// ダッシュボードリクエストを処理
func (h *Handlers) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reporter.DashboardStats(r.Context())
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, stats)
}

// StockHealth handles stock health requests
// 在庫状況リクエストを処理
func (h *Handlers) StockHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.reporter.StockHealth(r.Context(), parseReportFilter(r))
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, health)
}

// TopCategories handles top category requests
// 上位カテゴリリクエストを処理
func (h *Handlers) TopCategories(w http.ResponseWriter, r *http.Request) {
	limit := h.config.TopCategoriesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "無効な件数です")
			return
		}
		limit = parsed
	}

	categories, err := h.reporter.TopCategoriesByActiveProductCount(r.Context(), limit)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, categories)
}

// ヘルパーメソッド

// productID parses {productId}; malformed ids are reported as not found
func (h *Handlers) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["productId"], 10, 64)
	if err != nil || id <= 0 {
		h.sendError(w, http.StatusNotFound, inventory.ErrProductNotFound.Error())
		return 0, false
	}
	return id, true
}

func parseReportFilter(r *http.Request) inventory.ReportFilter {
	q := r.URL.Query()
	return inventory.ReportFilter{
		Category: q.Get("category"),
		Supplier: q.Get("supplier"),
	}
}

func parseMovementFilter(r *http.Request) (inventory.MovementFilter, error) {
	q := r.URL.Query()
	filter := inventory.MovementFilter{
		ProductSKU: q.Get("sku"),
		Action:     inventory.MovementAction(q.Get("action")),
	}

	if raw := q.Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("無効なユーザーIDです: %s", raw)
		}
		filter.UserID = &id
	}
	if raw := q.Get("date_from"); raw != "" {
		from, _, err := parseTimeParam(raw)
		if err != nil {
			return filter, fmt.Errorf("無効な開始日です: %s", raw)
		}
		filter.From = &from
	}
	if raw := q.Get("date_to"); raw != "" {
		to, dateOnly, err := parseTimeParam(raw)
		if err != nil {
			return filter, fmt.Errorf("無効な終了日です: %s", raw)
		}
		if dateOnly {
			// 日付のみの場合はその日の終わりまで含める
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.To = &to
	}
	raw := q.Get("increase")
	if raw == "" {
		raw = q.Get("quantity_change_positive")
	}
	if raw != "" {
		increase, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("無効な増減指定です: %s", raw)
		}
		filter.Increase = &increase
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, fmt.Errorf("無効な件数です: %s", raw)
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return filter, fmt.Errorf("無効なオフセットです: %s", raw)
		}
		filter.Offset = offset
	}
	return filter, nil
}

// parseTimeParam accepts RFC 3339 or YYYY-MM-DD (UTC)
func parseTimeParam(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	return t, true, err
}

// statusFor maps engine errors to HTTP status codes
// エラーをHTTPステータスに変換
func statusFor(err error) int {
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrDuplicateSKU), errors.Is(err, inventory.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, inventory.ErrCategoryNotFound),
		errors.Is(err, inventory.ErrSupplierNotFound),
		errors.Is(err, inventory.ErrNoCostData):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrInvalidDelta),
		errors.Is(err, inventory.ErrInvalidAction),
		errors.Is(err, inventory.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		var ruleErr *inventory.BusinessRuleError
		if errors.As(err, &ruleErr) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
}

// sendDomainError writes err with its mapped status; storage details are not exposed
func (h *Handlers) sendDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	response := APIResponse{Success: false, Error: err.Error()}

	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		response.Details = stockErr
	}
	var validationErr *inventory.ValidationError
	if errors.As(err, &validationErr) {
		response.Details = validationErr
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("リクエスト処理に失敗しました",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("url", r.URL.Path),
			zap.Error(err),
		)
		response.Error = "内部エラーが発生しました"
		response.Details = nil
	}

	writeJSON(w, status, response)
}

// sendSuccess sends a successful API response
// 成功APIレスポンスを送信
func (h *Handlers) sendSuccess(w http.ResponseWriter, data interface{}) {
	if err := writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("レスポンス送信に失敗しました", zap.Error(err))
	}
}

// sendError sends an error API response
// エラーAPIレスポンスを送信
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string) {
	if err := writeJSON(w, statusCode, APIResponse{Success: false, Error: message}); err != nil {
		h.logger.Error("エラーレスポンス送信に失敗しました", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, response APIResponse) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(response)
}
