package repository

import (
	"context"

	"onlinestore/internal/domain/model"
)

// 在庫の原子的な増減を約束
type StockRepository interface {
	Create(ctx context.Context, s model.Stock) (model.Stock, error)
	FindByProductID(ctx context.Context, productID int64) (model.Stock, error)
	// 行ロックして取得
	FindByProductIDForUpdate(ctx context.Context, productID int64) (model.Stock, error)

	// 在庫が足りるときだけ減らす。足りなければfalse
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)
	// 在庫を戻す。行が無ければErrNotFound
	IncreaseStock(ctx context.Context, productID int64, qty int64) error
}
