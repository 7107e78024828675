package repository

import (
	"context"
	"time"

	"onlinestore/internal/domain/model"
	repo "onlinestore/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderHistoryGormRepository struct {
	db *gorm.DB
}

func NewOrderHistoryGormRepository(db *gorm.DB) *OrderHistoryGormRepository {
	return &OrderHistoryGormRepository{db: db}
}

func (r *OrderHistoryGormRepository) FindByUserID(ctx context.Context, userID int64) (model.OrderHistory, error) {
	var h model.OrderHistory
	err := r.db.WithContext(ctx).
		Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Orders.Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Where("user_id = ?", userID).
		First(&h).Error
	if err != nil {
		return model.OrderHistory{}, translateError(err)
	}
	return h, nil
}

// 同時作成はuser_idの一意制約で片方がErrUniqueViolationになる
func (r *OrderHistoryGormRepository) Create(ctx context.Context, h model.OrderHistory) (model.OrderHistory, error) {
	h.Version = 0
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&h).Error; err != nil {
		return model.OrderHistory{}, translateError(err)
	}
	h.Orders = []model.Order{}
	return h, nil
}

func (r *OrderHistoryGormRepository) Update(ctx context.Context, h *model.OrderHistory) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.OrderHistory{}).
		Where("id = ? AND version = ?", h.ID, h.Version).
		Updates(map[string]interface{}{
			"total_amount": h.TotalAmount,
			"payed_at":     h.PayedAt,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   now,
		})

	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrVersionConflict
	}
	h.Version++
	h.UpdatedAt = now
	return nil
}
