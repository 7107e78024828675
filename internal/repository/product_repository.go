package repository

import (
	"context"

	"onlinestore/internal/domain/model"
)

// 商品の取得だけを約束（カタログ管理は対象外）
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	Create(ctx context.Context, p model.Product) (model.Product, error)
}
