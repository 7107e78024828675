package repository

import (
	"context"

	"onlinestore/internal/domain/model"
)

type OrderItemRepository interface {
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	Create(ctx context.Context, item model.OrderItem) (model.OrderItem, error)
	// versionが一致したときだけ数量を更新
	Update(ctx context.Context, item *model.OrderItem) error
	Delete(ctx context.Context, itemID int64) error
	DeleteByOrderID(ctx context.Context, orderID int64) error
}
