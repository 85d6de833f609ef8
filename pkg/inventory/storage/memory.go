package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

// MemoryStorage is an in-process Storage. Writes made inside a unit of work
// are buffered and applied under the store lock on commit, so readers see
// either none or all of them.
// メモリ上のStorage実装（テスト・デモ用）
type MemoryStorage struct {
	mu sync.RWMutex

	products   map[int64]*inventory.Product
	categories map[int64]*inventory.Category
	suppliers  map[int64]*inventory.Supplier
	movements  []inventory.StockMovement

	nextProductID  int64
	nextCategoryID int64
	nextSupplierID int64
	nextMovementID int64

	rowLocks *inventory.ProductLocks
	failures map[string]error
	now      func() time.Time
}

var _ inventory.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty memory store
// 新しいメモリストレージを作成
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		products:   make(map[int64]*inventory.Product),
		categories: make(map[int64]*inventory.Category),
		suppliers:  make(map[int64]*inventory.Supplier),
		movements:  make([]inventory.StockMovement, 0),
		rowLocks:   inventory.NewProductLocks(),
		failures:   make(map[string]error),
		now:        time.Now,
	}
}

// Memory backend operations that FailOn can target
const (
	OpUpdateProduct  = "update_product"
	OpAppendMovement = "append_movement"
	OpCommit         = "commit"
)

// FailOn makes the next call of op inside a unit of work return err.
// Used to exercise rollback paths.
func (s *MemoryStorage) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *MemoryStorage) takeFailure(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err, ok := s.failures[op]
	if ok {
		delete(s.failures, op)
	}
	return err
}

// CreateCategory adds a category and sets its id
func (s *MemoryStorage) CreateCategory(_ context.Context, c *inventory.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return inventory.NewValidationError("name", "カテゴリ名が空です", c.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if existing.Name == c.Name {
			return inventory.ErrDuplicateName
		}
	}
	s.nextCategoryID++
	c.ID = s.nextCategoryID
	c.CreatedAt = s.now()
	stored := *c
	s.categories[c.ID] = &stored
	return nil
}

// CreateSupplier adds a supplier and sets its id
func (s *MemoryStorage) CreateSupplier(_ context.Context, sup *inventory.Supplier) error {
	if strings.TrimSpace(sup.Name) == "" {
		return inventory.NewValidationError("name", "仕入先名が空です", sup.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.suppliers {
		if existing.Name == sup.Name {
			return inventory.ErrDuplicateName
		}
	}
	s.nextSupplierID++
	sup.ID = s.nextSupplierID
	sup.CreatedAt = s.now()
	stored := *sup
	s.suppliers[sup.ID] = &stored
	return nil
}

// CreateProduct adds a product and sets its id
// 商品を作成
func (s *MemoryStorage) CreateProduct(_ context.Context, p *inventory.Product) error {
	p.SKU = inventory.NormalizeSKU(p.SKU)
	if err := inventory.ValidateProduct(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.SKU == p.SKU {
			return inventory.ErrDuplicateSKU
		}
	}
	if err := s.checkReferences(p); err != nil {
		return err
	}

	now := s.now()
	s.nextProductID++
	p.ID = s.nextProductID
	p.CreatedAt, p.UpdatedAt = now, now
	p.ModifiedBy = p.CreatedBy
	s.decorate(p)

	stored := *p
	s.products[p.ID] = &stored
	return nil
}

// GetProduct gets a copy of the product
func (s *MemoryStorage) GetProduct(_ context.Context, productID int64) (*inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productCopy(productID)
}

// GetProductBySKU gets a product by SKU (case-insensitive)
func (s *MemoryStorage) GetProductBySKU(_ context.Context, sku string) (*inventory.Product, error) {
	sku = inventory.NormalizeSKU(sku)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, p := range s.products {
		if p.SKU == sku {
			return s.productCopy(id)
		}
	}
	return nil, inventory.ErrProductNotFound
}

// Begin starts a unit of work
func (s *MemoryStorage) Begin(ctx context.Context) (inventory.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryTx{
		store:   s,
		unlocks: make(map[int64]func()),
		updates: make(map[int64]inventory.Product),
	}, nil
}

// ListMovements lists ledger entries matching filter, newest first
func (s *MemoryStorage) ListMovements(_ context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]inventory.StockMovement, 0)
	for _, mv := range s.movements {
		if s.movementMatches(mv, filter) {
			result = append(result, copyMovement(mv))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].ID > result[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []inventory.StockMovement{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// ListProductMovements lists a product's ledger in id order
func (s *MemoryStorage) ListProductMovements(_ context.Context, productID int64) ([]inventory.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]inventory.StockMovement, 0)
	for _, mv := range s.movements {
		if mv.ProductID == productID {
			result = append(result, copyMovement(mv))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// CountProducts counts total, active and inactive products
func (s *MemoryStorage) CountProducts(_ context.Context, filter inventory.ReportFilter) (inventory.ProductCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts inventory.ProductCounts
	for _, p := range s.products {
		if !s.productMatches(p, filter) {
			continue
		}
		counts.Total++
		if p.IsActive {
			counts.Active++
		} else {
			counts.Inactive++
		}
	}
	return counts, nil
}

// StockHealth counts low-stock and out-of-stock active products
func (s *MemoryStorage) StockHealth(_ context.Context, filter inventory.ReportFilter) (inventory.StockHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var health inventory.StockHealth
	for _, p := range s.products {
		if !p.IsActive || !s.productMatches(p, filter) {
			continue
		}
		if p.IsLowStock() {
			health.LowStockCount++
		}
		if p.Quantity == 0 {
			health.OutOfStockCount++
		}
	}
	return health, nil
}

// StockValuation sums value and quantity over active products
func (s *MemoryStorage) StockValuation(_ context.Context, filter inventory.ReportFilter) (inventory.StockValuation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	valuation := inventory.StockValuation{TotalValue: decimal.Zero}
	for _, p := range s.products {
		if !p.IsActive || !s.productMatches(p, filter) {
			continue
		}
		valuation.TotalValue = valuation.TotalValue.Add(p.StockValue())
		valuation.TotalQuantity += p.Quantity
	}
	return valuation, nil
}

// CountMovementsBetween counts ledger entries with from <= timestamp <= to
func (s *MemoryStorage) CountMovementsBetween(_ context.Context, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, mv := range s.movements {
		if !mv.Timestamp.Before(from) && !mv.Timestamp.After(to) {
			count++
		}
	}
	return count, nil
}

// TopCategories ranks every category by active product count
func (s *MemoryStorage) TopCategories(_ context.Context, limit int) ([]inventory.CategoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int64]int64, len(s.categories))
	for _, p := range s.products {
		if p.IsActive && p.CategoryID != nil {
			counts[*p.CategoryID]++
		}
	}

	result := make([]inventory.CategoryCount, 0, len(s.categories))
	for id, c := range s.categories {
		result = append(result, inventory.CategoryCount{Name: c.Name, ProductCount: counts[id]})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ProductCount != result[j].ProductCount {
			return result[i].ProductCount > result[j].ProductCount
		}
		return result[i].Name < result[j].Name
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListLowStockProducts lists active products at or below their threshold
func (s *MemoryStorage) ListLowStockProducts(_ context.Context, filter inventory.ReportFilter) ([]inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]inventory.Product, 0)
	for id, p := range s.products {
		if p.IsActive && p.IsLowStock() && s.productMatches(p, filter) {
			cp, _ := s.productCopy(id)
			result = append(result, *cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Quantity != result[j].Quantity {
			return result[i].Quantity < result[j].Quantity
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// CountCategories counts categories
func (s *MemoryStorage) CountCategories(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.categories)), nil
}

// CountSuppliers counts suppliers
func (s *MemoryStorage) CountSuppliers(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.suppliers)), nil
}

// Ping always succeeds
func (s *MemoryStorage) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStorage) Close() error {
	return nil
}

// productCopy must be called with s.mu held
func (s *MemoryStorage) productCopy(productID int64) (*inventory.Product, error) {
	p, ok := s.products[productID]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	cp := *p
	s.decorate(&cp)
	return &cp, nil
}

// decorate resolves category and supplier names; s.mu must be held
func (s *MemoryStorage) decorate(p *inventory.Product) {
	p.CategoryName, p.SupplierName = nil, nil
	if p.CategoryID != nil {
		if c, ok := s.categories[*p.CategoryID]; ok {
			name := c.Name
			p.CategoryName = &name
		}
	}
	if p.SupplierID != nil {
		if sup, ok := s.suppliers[*p.SupplierID]; ok {
			name := sup.Name
			p.SupplierName = &name
		}
	}
}

// checkReferences must be called with s.mu held
func (s *MemoryStorage) checkReferences(p *inventory.Product) error {
	if p.CategoryID != nil {
		if _, ok := s.categories[*p.CategoryID]; !ok {
			return inventory.ErrCategoryNotFound
		}
	}
	if p.SupplierID != nil {
		if _, ok := s.suppliers[*p.SupplierID]; !ok {
			return inventory.ErrSupplierNotFound
		}
	}
	return nil
}

func (s *MemoryStorage) productMatches(p *inventory.Product, filter inventory.ReportFilter) bool {
	if filter.Category != "" {
		if p.CategoryID == nil {
			return false
		}
		c, ok := s.categories[*p.CategoryID]
		if !ok || !containsFold(c.Name, filter.Category) {
			return false
		}
	}
	if filter.Supplier != "" {
		if p.SupplierID == nil {
			return false
		}
		sup, ok := s.suppliers[*p.SupplierID]
		if !ok || !containsFold(sup.Name, filter.Supplier) {
			return false
		}
	}
	return true
}

func (s *MemoryStorage) movementMatches(mv inventory.StockMovement, f inventory.MovementFilter) bool {
	if f.ProductID != nil && mv.ProductID != *f.ProductID {
		return false
	}
	if f.ProductSKU != "" {
		p, ok := s.products[mv.ProductID]
		if !ok || !strings.EqualFold(p.SKU, f.ProductSKU) {
			return false
		}
	}
	if f.Action != "" && mv.Action != f.Action {
		return false
	}
	if f.UserID != nil && (mv.UserID == nil || *mv.UserID != *f.UserID) {
		return false
	}
	if f.From != nil && mv.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && mv.Timestamp.After(*f.To) {
		return false
	}
	if f.Increase != nil && (mv.QuantityChange > 0) != *f.Increase {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func copyMovement(mv inventory.StockMovement) inventory.StockMovement {
	if mv.UnitCost != nil {
		cost := *mv.UnitCost
		mv.UnitCost = &cost
	}
	if mv.UserID != nil {
		id := *mv.UserID
		mv.UserID = &id
	}
	return mv
}

// memoryTx buffers writes until Commit. Products read with
// GetProductForUpdate stay locked until the unit of work ends.
// Movement ids are assigned on commit so the ledger stays in id order.
type memoryTx struct {
	store     *MemoryStorage
	unlocks   map[int64]func()
	updates   map[int64]inventory.Product
	movements []*inventory.StockMovement
	done      bool
}

func (t *memoryTx) GetProductForUpdate(ctx context.Context, productID int64) (*inventory.Product, error) {
	if t.done {
		return nil, inventory.ErrTxDone
	}
	if _, held := t.unlocks[productID]; !held {
		unlock, err := t.store.rowLocks.Lock(ctx, productID)
		if err != nil {
			return nil, err
		}
		t.unlocks[productID] = unlock
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p, ok := t.updates[productID]; ok {
		cp := p
		return &cp, nil
	}
	return t.store.GetProduct(ctx, productID)
}

func (t *memoryTx) UpdateProduct(_ context.Context, p *inventory.Product) error {
	if t.done {
		return inventory.ErrTxDone
	}
	if err := t.store.takeFailure(OpUpdateProduct); err != nil {
		return err
	}

	t.store.mu.RLock()
	_, exists := t.store.products[p.ID]
	refErr := t.store.checkReferences(p)
	t.store.mu.RUnlock()
	if !exists {
		return inventory.ErrProductNotFound
	}
	if refErr != nil {
		return refErr
	}
	if p.Quantity < 0 {
		return inventory.NewValidationError("quantity", "在庫数量は0以上である必要があります", "")
	}

	t.updates[p.ID] = *p
	return nil
}

func (t *memoryTx) AppendMovement(_ context.Context, m *inventory.StockMovement) error {
	if t.done {
		return inventory.ErrTxDone
	}
	if err := t.store.takeFailure(OpAppendMovement); err != nil {
		return err
	}
	if err := inventory.ValidateMovement(m); err != nil {
		return err
	}

	t.movements = append(t.movements, m)
	return nil
}

func (t *memoryTx) Commit() error {
	if t.done {
		return inventory.ErrTxDone
	}
	defer t.finish()

	if err := t.store.takeFailure(OpCommit); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range t.updates {
		if _, ok := s.products[id]; !ok {
			return inventory.ErrProductNotFound
		}
	}
	for id, p := range t.updates {
		stored := s.products[id]
		updated := p
		updated.CreatedAt = stored.CreatedAt
		updated.CreatedBy = stored.CreatedBy
		updated.SKU = stored.SKU
		s.products[id] = &updated
	}
	for _, m := range t.movements {
		s.nextMovementID++
		m.ID = s.nextMovementID
		s.movements = append(s.movements, copyMovement(*m))
	}
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *memoryTx) finish() {
	t.done = true
	for _, unlock := range t.unlocks {
		unlock()
	}
	t.unlocks = nil
	t.updates = nil
	t.movements = nil
}

var _ inventory.Catalog = (*MemoryStorage)(nil)
