package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockStorage はテスト用のStorageモック
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Begin(ctx context.Context) (Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Tx), args.Error(1)
}

func (m *MockStorage) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Product), args.Error(1)
}

func (m *MockStorage) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StockMovement), args.Error(1)
}

func (m *MockStorage) ListProductMovements(ctx context.Context, productID int64) ([]StockMovement, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StockMovement), args.Error(1)
}

func (m *MockStorage) CountProducts(ctx context.Context, filter ReportFilter) (ProductCounts, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(ProductCounts), args.Error(1)
}

func (m *MockStorage) StockHealth(ctx context.Context, filter ReportFilter) (StockHealth, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(StockHealth), args.Error(1)
}

func (m *MockStorage) StockValuation(ctx context.Context, filter ReportFilter) (StockValuation, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(StockValuation), args.Error(1)
}

func (m *MockStorage) CountMovementsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) TopCategories(ctx context.Context, limit int) ([]CategoryCount, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CategoryCount), args.Error(1)
}

func (m *MockStorage) ListLowStockProducts(ctx context.Context, filter ReportFilter) ([]Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Product), args.Error(1)
}

func (m *MockStorage) CountCategories(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) CountSuppliers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockTx はテスト用のTxモック
type MockTx struct {
	mock.Mock
}

func (m *MockTx) GetProductForUpdate(ctx context.Context, productID int64) (*Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Product), args.Error(1)
}

func (m *MockTx) UpdateProduct(ctx context.Context, product *Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockTx) AppendMovement(ctx context.Context, movement *StockMovement) error {
	args := m.Called(ctx, movement)
	return args.Error(0)
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockPublisher はテスト用のEventPublisherモック
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishStockChanged(ctx context.Context, event StockChangedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishLowStockAlert(ctx context.Context, event LowStockAlertEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestProduct(quantity int64) *Product {
	return &Product{
		ID:            1,
		SKU:           "ITEM-A",
		Name:          "テスト商品",
		Quantity:      quantity,
		Price:         decimal.RequireFromString("29.99"),
		MinStockLevel: 10,
		IsActive:      true,
	}
}

func newTestManager(store Storage, publisher EventPublisher, opts ...Option) *Manager {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewManager(store, publisher, zap.NewNop(), nil, opts...)
}

// expectMovement はコミットまで成功するトランザクションを設定
func expectMovement(store *MockStorage, tx *MockTx, product *Product) {
	store.On("Begin", mock.Anything).Return(tx, nil)
	tx.On("GetProductForUpdate", mock.Anything, product.ID).Return(product, nil)
	tx.On("UpdateProduct", mock.Anything, mock.AnythingOfType("*inventory.Product")).Return(nil)
	tx.On("AppendMovement", mock.Anything, mock.AnythingOfType("*inventory.StockMovement")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*StockMovement).ID = 101
		}).Return(nil)
	tx.On("Commit").Return(nil)
	tx.On("Rollback").Return(nil)
}

func TestManager_ApplyMovement(t *testing.T) {
	store := new(MockStorage)
	tx := new(MockTx)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	product := newTestProduct(50)
	expectMovement(store, tx, product)

	actor := &Actor{ID: 7, Username: "staff"}
	result, err := manager.ApplyMovement(ctx, MovementRequest{
		ProductID:       1,
		Action:          ActionSale,
		QuantityChange:  -10,
		Reason:          "店頭販売",
		ReferenceNumber: "SO-001",
		Actor:           actor,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(40), result.Product.Quantity)
	assert.Equal(t, int64(101), result.Movement.ID)
	assert.Equal(t, int64(50), result.Movement.PreviousQuantity)
	assert.Equal(t, int64(40), result.Movement.NewQuantity)
	assert.Equal(t, int64(-10), result.Movement.QuantityChange)
	assert.Equal(t, result.Product.Quantity, result.Movement.NewQuantity)
	assert.Equal(t, ActionSale, result.Movement.Action)
	assert.Equal(t, "SO-001", result.Movement.ReferenceNumber)
	assert.Equal(t, fixedNow, result.Movement.Timestamp)
	require.NotNil(t, result.Movement.UserID)
	assert.Equal(t, int64(7), *result.Movement.UserID)
	require.NotNil(t, result.Product.ModifiedBy)
	assert.Equal(t, int64(7), *result.Product.ModifiedBy)

	store.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestManager_ApplyMovement_ActorFromContext(t *testing.T) {
	store := new(MockStorage)
	tx := new(MockTx)
	manager := newTestManager(store, nil)

	product := newTestProduct(5)
	expectMovement(store, tx, product)

	ctx := WithActor(context.Background(), &Actor{ID: 42})
	result, err := manager.ApplyMovement(ctx, MovementRequest{
		ProductID:      1,
		Action:         ActionRestock,
		QuantityChange: 20,
	})

	require.NoError(t, err)
	require.NotNil(t, result.Movement.UserID)
	assert.Equal(t, int64(42), *result.Movement.UserID)
	assert.Equal(t, int64(25), result.Product.Quantity)
}

func TestManager_ApplyMovement_NoActor(t *testing.T) {
	store := new(MockStorage)
	tx := new(MockTx)
	manager := newTestManager(store, nil)

	product := newTestProduct(5)
	expectMovement(store, tx, product)

	result, err := manager.ApplyMovement(context.Background(), MovementRequest{
		ProductID:      1,
		Action:         ActionAdjustment,
		QuantityChange: 3,
	})

	require.NoError(t, err)
	assert.Nil(t, result.Movement.UserID)
	assert.Nil(t, result.Product.ModifiedBy)
}

func TestManager_ApplyMovement_InsufficientStock(t *testing.T) {
	store := new(MockStorage)
	tx := new(MockTx)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	product := newTestProduct(40)
	store.On("Begin", ctx).Return(tx, nil)
	tx.On("GetProductForUpdate", ctx, int64(1)).Return(product, nil)
	tx.On("Rollback").Return(nil)

	result, err := manager.ApplyMovement(ctx, MovementRequest{
		ProductID:      1,
		Action:         ActionSale,
		QuantityChange: -45,
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(40), stockErr.Current)
	assert.Equal(t, int64(-45), stockErr.Requested)
	assert.Equal(t, int64(1), stockErr.ProductID)

	tx.AssertCalled(t, "Rollback")
	tx.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything)
	tx.AssertNotCalled(t, "AppendMovement", mock.Anything, mock.Anything)
	tx.AssertNotCalled(t, "Commit")
}

func TestManager_ApplyMovement_ExactDepletion(t *testing.T) {
	store := new(MockStorage)
	tx := new(MockTx)
	manager := newTestManager(store, nil)

	product := newTestProduct(40)
	expectMovement(store, tx, product)

	result, err := manager.ApplyMovement(context.Background(), MovementRequest{
		ProductID:      1,
		Action:         ActionSale,
		QuantityChange: -40,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Product.Quantity)
}

func TestManager_ApplyMovement_ValidationFailsBeforeStorage(t *testing.T) {
	tests := []struct {
		name    string
		req     MovementRequest
		wantErr error
	}{
		{
			name:    "増減数0",
			req:     MovementRequest{ProductID: 1, Action: ActionSale, QuantityChange: 0},
			wantErr: ErrInvalidDelta,
		},
		{
			name:    "無効な種別",
			req:     MovementRequest{ProductID: 1, Action: "steal", QuantityChange: -1},
			wantErr: ErrInvalidAction,
		},
		{
			name:    "不正な商品ID",
			req:     MovementRequest{ProductID: 0, Action: ActionSale, QuantityChange: -1},
			wantErr: ErrProductNotFound,
		},
		{
			name: "負の単価",
			req: MovementRequest{
				ProductID:      1,
				Action:         ActionRestock,
				QuantityChange: 5,
				UnitCost:       decimalPtr("-1"),
			},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStorage)
			manager := newTestManager(store, nil)

			result, err := manager.ApplyMovement(context.Background(), tt.req)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
			store.AssertNotCalled(t, "Begin", mock.Anything)
		})
	}
}

func TestManager_ApplyMovement_InactiveProduct(t *testing.T) {
	store := new(MockStorage)
	tx := new(MockTx)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	product := newTestProduct(50)
	product.IsActive = false
	store.On("Begin", ctx).Return(tx, nil)
	tx.On("GetProductForUpdate", ctx, int64(1)).Return(product, nil)
	tx.On("Rollback").Return(nil)

	_, err := manager.ApplyMovement(ctx, MovementRequest{ProductID: 1, Action: ActionRestock, QuantityChange: 5})

	assert.ErrorIs(t, err, ErrProductNotFound)
	tx.AssertNotCalled(t, "Commit")
}

func TestManager_ApplyMovement_UnknownProduct(t *testing.T) {
	store := new(MockStorage)
	tx := new(MockTx)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	store.On("Begin", ctx).Return(tx, nil)
	tx.On("GetProductForUpdate", ctx, int64(99)).Return(nil, ErrProductNotFound)
	tx.On("Rollback").Return(nil)

	_, err := manager.ApplyMovement(ctx, MovementRequest{ProductID: 99, Action: ActionRestock, QuantityChange: 5})

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.NotErrorIs(t, err, ErrStorageFailure)
}

func TestManager_ApplyMovement_StorageFailures(t *testing.T) {
	dbErr := errors.New("connection reset")

	t.Run("Begin失敗", func(t *testing.T) {
		store := new(MockStorage)
		manager := newTestManager(store, nil)
		store.On("Begin", mock.Anything).Return(nil, dbErr)

		_, err := manager.ApplyMovement(context.Background(), MovementRequest{ProductID: 1, Action: ActionSale, QuantityChange: -1})

		assert.ErrorIs(t, err, ErrStorageFailure)
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("台帳追加失敗", func(t *testing.T) {
		store := new(MockStorage)
		tx := new(MockTx)
		manager := newTestManager(store, nil)

		store.On("Begin", mock.Anything).Return(tx, nil)
		tx.On("GetProductForUpdate", mock.Anything, int64(1)).Return(newTestProduct(50), nil)
		tx.On("UpdateProduct", mock.Anything, mock.Anything).Return(nil)
		tx.On("AppendMovement", mock.Anything, mock.Anything).Return(dbErr)
		tx.On("Rollback").Return(nil)

		_, err := manager.ApplyMovement(context.Background(), MovementRequest{ProductID: 1, Action: ActionSale, QuantityChange: -1})

		assert.ErrorIs(t, err, ErrStorageFailure)
		var storageErr *StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "append_movement", storageErr.Operation)
		tx.AssertCalled(t, "Rollback")
		tx.AssertNotCalled(t, "Commit")
	})

	t.Run("コミット失敗", func(t *testing.T) {
		store := new(MockStorage)
		tx := new(MockTx)
		publisher := new(MockPublisher)
		manager := newTestManager(store, publisher)

		store.On("Begin", mock.Anything).Return(tx, nil)
		tx.On("GetProductForUpdate", mock.Anything, int64(1)).Return(newTestProduct(50), nil)
		tx.On("UpdateProduct", mock.Anything, mock.Anything).Return(nil)
		tx.On("AppendMovement", mock.Anything, mock.Anything).Return(nil)
		tx.On("Commit").Return(dbErr)
		tx.On("Rollback").Return(nil)

		result, err := manager.ApplyMovement(context.Background(), MovementRequest{ProductID: 1, Action: ActionSale, QuantityChange: -1})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrStorageFailure)
		publisher.AssertNotCalled(t, "PublishStockChanged", mock.Anything, mock.Anything)
	})
}

func TestManager_ApplyMovement_Events(t *testing.T) {
	tests := []struct {
		name      string
		start     int64
		change    int64
		wantAlert bool
	}{
		{name: "閾値を下回る", start: 15, change: -5, wantAlert: true},
		{name: "既に低在庫", start: 8, change: -1, wantAlert: false},
		{name: "閾値より上のまま", start: 50, change: -10, wantAlert: false},
		{name: "入荷", start: 5, change: 20, wantAlert: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStorage)
			tx := new(MockTx)
			publisher := new(MockPublisher)
			manager := newTestManager(store, publisher)

			expectMovement(store, tx, newTestProduct(tt.start))
			publisher.On("PublishStockChanged", mock.Anything, mock.AnythingOfType("inventory.StockChangedEvent")).Return(nil)
			publisher.On("PublishLowStockAlert", mock.Anything, mock.AnythingOfType("inventory.LowStockAlertEvent")).Return(nil)

			_, err := manager.ApplyMovement(context.Background(), MovementRequest{
				ProductID:      1,
				Action:         ActionAdjustment,
				QuantityChange: tt.change,
			})
			require.NoError(t, err)

			publisher.AssertCalled(t, "PublishStockChanged", mock.Anything, StockChangedEvent{
				ProductID:   1,
				SKU:         "ITEM-A",
				MovementID:  101,
				Action:      ActionAdjustment,
				OldQuantity: tt.start,
				NewQuantity: tt.start + tt.change,
				Timestamp:   fixedNow,
			})
			if tt.wantAlert {
				publisher.AssertNumberOfCalls(t, "PublishLowStockAlert", 1)
			} else {
				publisher.AssertNotCalled(t, "PublishLowStockAlert", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestManager_ApplyMovement_PublishFailureDoesNotFail(t *testing.T) {
	store := new(MockStorage)
	tx := new(MockTx)
	publisher := new(MockPublisher)
	manager := newTestManager(store, publisher)

	expectMovement(store, tx, newTestProduct(50))
	publisher.On("PublishStockChanged", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	result, err := manager.ApplyMovement(context.Background(), MovementRequest{ProductID: 1, Action: ActionSale, QuantityChange: -1})

	require.NoError(t, err)
	assert.Equal(t, int64(49), result.Product.Quantity)
}

func TestManager_ApplyMovement_Metrics(t *testing.T) {
	store := new(MockStorage)
	tx := new(MockTx)
	metrics := NewMetrics(prometheus.NewRegistry())
	manager := newTestManager(store, nil, WithMetrics(metrics))

	expectMovement(store, tx, newTestProduct(50))

	_, err := manager.ApplyMovement(context.Background(), MovementRequest{ProductID: 1, Action: ActionSale, QuantityChange: -10})
	require.NoError(t, err)
	_, err = manager.ApplyMovement(context.Background(), MovementRequest{ProductID: 1, Action: ActionSale})
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.movements.WithLabelValues("sale", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.movements.WithLabelValues("sale", "invalid")))
	assert.Equal(t, float64(10), testutil.ToFloat64(metrics.unitsMoved.WithLabelValues("sale")))
}

func TestManager_UpdateProduct(t *testing.T) {
	store := new(MockStorage)
	tx := new(MockTx)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	product := newTestProduct(50)
	store.On("Begin", ctx).Return(tx, nil)
	tx.On("GetProductForUpdate", ctx, int64(1)).Return(product, nil)
	tx.On("UpdateProduct", ctx, mock.AnythingOfType("*inventory.Product")).Return(nil)
	tx.On("Commit").Return(nil)
	tx.On("Rollback").Return(nil)

	name := "新しい商品名"
	level := int64(25)
	refreshed := *product
	refreshed.Name = name
	refreshed.MinStockLevel = level
	store.On("GetProduct", ctx, int64(1)).Return(&refreshed, nil)

	updated, err := manager.UpdateProduct(ctx, 1, ProductUpdate{Name: &name, MinStockLevel: &level}, &Actor{ID: 3})

	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, level, updated.MinStockLevel)
	assert.Equal(t, int64(50), updated.Quantity)

	// トランザクション内で更新された値
	assert.Equal(t, name, product.Name)
	require.NotNil(t, product.ModifiedBy)
	assert.Equal(t, int64(3), *product.ModifiedBy)
	tx.AssertExpectations(t)
}

func TestManager_UpdateProduct_Invalid(t *testing.T) {
	store := new(MockStorage)
	manager := newTestManager(store, nil)

	price := decimal.Zero
	_, err := manager.UpdateProduct(context.Background(), 1, ProductUpdate{Price: &price}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = manager.UpdateProduct(context.Background(), 0, ProductUpdate{}, nil)
	assert.ErrorIs(t, err, ErrProductNotFound)

	store.AssertNotCalled(t, "Begin", mock.Anything)
}

func TestManager_GetProduct(t *testing.T) {
	store := new(MockStorage)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	store.On("GetProduct", ctx, int64(1)).Return(newTestProduct(50), nil)
	store.On("GetProduct", ctx, int64(2)).Return(nil, ErrProductNotFound)

	product, err := manager.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ITEM-A", product.SKU)

	_, err = manager.GetProduct(ctx, 2)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestManager_ExecuteBatch(t *testing.T) {
	store := new(MockStorage)
	tx := new(MockTx)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	expectMovement(store, tx, newTestProduct(50))

	requests := []MovementRequest{
		{ProductID: 1, Action: ActionSale, QuantityChange: -10},
		{ProductID: 1, Action: ActionSale, QuantityChange: 0},
		{ProductID: 1, Action: ActionRestock, QuantityChange: 5},
	}

	batch, err := manager.ExecuteBatch(ctx, requests)

	require.NoError(t, err)
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, 2, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailureCount)
	require.Len(t, batch.Errors, 1)
	assert.Equal(t, 1, batch.Errors[0].OperationIndex)
	require.Len(t, batch.Results, 2)
	assert.Equal(t, int64(40), batch.Results[0].Movement.NewQuantity)
	assert.Equal(t, int64(45), batch.Results[1].Movement.NewQuantity)
	tx.AssertNumberOfCalls(t, "Commit", 2)
}

func TestManager_ExecuteBatch_CanceledContext(t *testing.T) {
	store := new(MockStorage)
	manager := newTestManager(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := manager.ExecuteBatch(ctx, []MovementRequest{
		{ProductID: 1, Action: ActionSale, QuantityChange: -1},
		{ProductID: 1, Action: ActionSale, QuantityChange: -1},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, batch.SuccessCount)
	assert.Equal(t, 2, batch.FailureCount)
	store.AssertNotCalled(t, "Begin", mock.Anything)
}

func TestManager_ApplyMovement_LockWaitBoundedByContext(t *testing.T) {
	store := new(MockStorage)
	locks := NewProductLocks()
	manager := newTestManager(store, nil, WithProductLocks(locks))

	held, err := locks.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer held()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = manager.ApplyMovement(ctx, MovementRequest{ProductID: 1, Action: ActionSale, QuantityChange: -1})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	store.AssertNotCalled(t, "Begin", mock.Anything)
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// ベンチマークテスト
func BenchmarkManager_ApplyMovement(b *testing.B) {
	store := new(MockStorage)
	tx := new(MockTx)
	manager := NewManager(store, nil, zap.NewNop(), nil)
	ctx := context.Background()

	expectMovement(store, tx, newTestProduct(0))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = manager.ApplyMovement(ctx, MovementRequest{
			ProductID:      1,
			Action:         ActionRestock,
			QuantityChange: 1,
			Reason:         "BENCH-TEST",
		})
	}
}
