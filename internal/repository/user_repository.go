package repository

import (
	"context"

	"onlinestore/internal/domain/model"
)

// ユーザーは外部で管理。参照だけ
type UserRepository interface {
	FindByID(ctx context.Context, userID int64) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
}
