package inventory

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MovementValue returns |change| × unit cost, using the product's current
// price when the entry carries no unit cost
// 台帳レコードの取引金額を計算
func (a *Auditor) MovementValue(ctx context.Context, movement StockMovement) (decimal.Decimal, error) {
	if movement.UnitCost != nil {
		return movement.TotalValue(decimal.Zero), nil
	}

	product, err := a.storage.GetProduct(ctx, movement.ProductID)
	if err != nil {
		return decimal.Zero, wrapStorage("get_product", "商品取得に失敗しました", err)
	}
	return movement.TotalValue(product.Price), nil
}

// AverageRestockCost computes the quantity-weighted average unit cost over
// restock entries that carry a unit cost
// 入荷レコードから加重平均原価を計算
func (a *Auditor) AverageRestockCost(ctx context.Context, productID int64) (decimal.Decimal, error) {
	if productID <= 0 {
		return decimal.Zero, ErrProductNotFound
	}

	movements, err := a.storage.ListProductMovements(ctx, productID)
	if err != nil {
		return decimal.Zero, wrapStorage("list_product_movements", "台帳履歴取得に失敗しました", err)
	}

	average, ok := weightedRestockCost(movements)
	if !ok {
		return decimal.Zero, ErrNoCostData
	}

	a.logger.Debug("平均原価計算完了",
		zap.Int64("product_id", productID),
		zap.String("average_cost", average.String()),
	)
	return average, nil
}

func weightedRestockCost(movements []StockMovement) (decimal.Decimal, bool) {
	totalCost := decimal.Zero
	totalQuantity := int64(0)

	for _, mv := range movements {
		if mv.Action != ActionRestock || mv.UnitCost == nil || mv.QuantityChange <= 0 {
			continue
		}
		totalCost = totalCost.Add(mv.UnitCost.Mul(decimal.NewFromInt(mv.QuantityChange)))
		totalQuantity += mv.QuantityChange
	}

	if totalQuantity == 0 {
		return decimal.Zero, false
	}
	return totalCost.Div(decimal.NewFromInt(totalQuantity)).Round(2), true
}
