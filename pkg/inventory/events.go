package inventory

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher is an EventPublisher that writes events to a zap logger
// イベントをログに出力するEventPublisher
type LogPublisher struct {
	logger *zap.Logger
}

var _ EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher creates a publisher writing to logger
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("events")}
}

// PublishStockChanged logs a stock change event
func (p *LogPublisher) PublishStockChanged(ctx context.Context, event StockChangedEvent) error {
	fields := []zap.Field{
		zap.Int64("product_id", event.ProductID),
		zap.String("sku", event.SKU),
		zap.Int64("movement_id", event.MovementID),
		zap.String("action", string(event.Action)),
		zap.Int64("old_quantity", event.OldQuantity),
		zap.Int64("new_quantity", event.NewQuantity),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.UserID != nil {
		fields = append(fields, zap.Int64("user_id", *event.UserID))
	}
	p.logger.Info("在庫変更イベント", fields...)
	return nil
}

// PublishLowStockAlert logs a low stock alert event
func (p *LogPublisher) PublishLowStockAlert(ctx context.Context, event LowStockAlertEvent) error {
	p.logger.Warn("低在庫アラート",
		zap.Int64("product_id", event.ProductID),
		zap.String("sku", event.SKU),
		zap.Int64("current_qty", event.CurrentQty),
		zap.Int64("min_stock_level", event.MinStockLevel),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}
