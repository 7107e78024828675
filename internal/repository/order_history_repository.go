package repository

import (
	"context"

	"onlinestore/internal/domain/model"
)

type OrderHistoryRepository interface {
	// 支払い済み注文込みで取得
	FindByUserID(ctx context.Context, userID int64) (model.OrderHistory, error)
	// user_idは一意。競合したらErrUniqueViolation
	Create(ctx context.Context, h model.OrderHistory) (model.OrderHistory, error)
	// versionが一致したときだけ合計を更新
	Update(ctx context.Context, h *model.OrderHistory) error
}
