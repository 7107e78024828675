package repository

import (
	"context"

	"onlinestore/internal/domain/model"
)

type OrderRepository interface {
	// 明細込みで取得
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)

	// CREATED -> PENDING の順で、行ロックして取得
	FindActiveByUserIDForUpdate(ctx context.Context, userID int64) (model.Order, error)
	FindByUserAndStatus(ctx context.Context, userID int64, status model.OrderStatus) (model.Order, error)
	// CREATED/PENDINGの一覧
	ListOpenByUserID(ctx context.Context, userID int64) ([]model.Order, error)

	Create(ctx context.Context, order model.Order) (model.Order, error)
	// versionが一致したときだけ更新。明細は更新しない
	Update(ctx context.Context, order *model.Order) error
	Delete(ctx context.Context, orderID int64) error
}
