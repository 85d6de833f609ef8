package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	publisher := NewLogPublisher(zap.New(core))
	ctx := context.Background()

	userID := int64(7)
	require.NoError(t, publisher.PublishStockChanged(ctx, StockChangedEvent{
		ProductID:   1,
		SKU:         "ITEM-A",
		MovementID:  3,
		Action:      ActionSale,
		OldQuantity: 15,
		NewQuantity: 10,
		UserID:      &userID,
		Timestamp:   fixedNow,
	}))
	require.NoError(t, publisher.PublishLowStockAlert(ctx, LowStockAlertEvent{
		ProductID:     1,
		SKU:           "ITEM-A",
		CurrentQty:    10,
		MinStockLevel: 10,
		Timestamp:     fixedNow,
	}))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "events", entries[0].LoggerName)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(7), entries[0].ContextMap()["user_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(10), entries[1].ContextMap()["current_qty"])
}

func TestManager_LowStockAlertThroughLogPublisher(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := new(MockStorage)
	tx := new(MockTx)
	manager := newTestManager(store, NewLogPublisher(zap.New(core)))

	expectMovement(store, tx, newTestProduct(11))
	_, err := manager.ApplyMovement(context.Background(), MovementRequest{ProductID: 1, Action: ActionSale, QuantityChange: -2})
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("低在庫アラート").Len())
}
