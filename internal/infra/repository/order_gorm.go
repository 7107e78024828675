package repository

import (
	"context"
	"errors"
	"time"

	"onlinestore/internal/domain/model"
	repo "onlinestore/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	})
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := preloadItems(r.db.WithContext(ctx)).Where("id = ?", orderID).First(&o).Error
	if err != nil {
		return model.Order{}, translateError(err)
	}
	return o, nil
}

func (r *OrderGormRepository) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := preloadItems(r.db.WithContext(ctx)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&o).Error
	if err != nil {
		return model.Order{}, translateError(err)
	}
	return o, nil
}

// CREATEDを優先、無ければPENDING
func (r *OrderGormRepository) FindActiveByUserIDForUpdate(ctx context.Context, userID int64) (model.Order, error) {
	for _, status := range []model.OrderStatus{model.OrderStatusCreated, model.OrderStatusPending} {
		var o model.Order
		err := preloadItems(r.db.WithContext(ctx)).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND status = ?", userID, status).
			Order("id desc").
			First(&o).Error
		if err == nil {
			return o, nil
		}
		if err = translateError(err); !errors.Is(err, repo.ErrNotFound) {
			return model.Order{}, err
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (r *OrderGormRepository) FindByUserAndStatus(ctx context.Context, userID int64, status model.OrderStatus) (model.Order, error) {
	var o model.Order
	err := preloadItems(r.db.WithContext(ctx)).
		Where("user_id = ? AND status = ?", userID, status).
		Order("id desc").
		First(&o).Error
	if err != nil {
		return model.Order{}, translateError(err)
	}
	return o, nil
}

func (r *OrderGormRepository) ListOpenByUserID(ctx context.Context, userID int64) ([]model.Order, error) {
	var orders []model.Order
	err := preloadItems(r.db.WithContext(ctx)).
		Where("user_id = ? AND status IN ?", userID, []model.OrderStatus{model.OrderStatusCreated, model.OrderStatusPending}).
		Order("id asc").
		Find(&orders).Error
	if err != nil {
		return []model.Order{}, translateError(err)
	}
	return orders, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (model.Order, error) {
	order.Version = 0
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&order).Error; err != nil {
		return model.Order{}, translateError(err)
	}
	if order.Items == nil {
		order.Items = []model.OrderItem{}
	}
	return order, nil
}

// versionが一致したときだけ更新
func (r *OrderGormRepository) Update(ctx context.Context, o *model.Order) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND version = ?", o.ID, o.Version).
		Updates(map[string]interface{}{
			"status":           o.Status,
			"total_price":      o.TotalPrice,
			"submitted_at":     o.SubmittedAt,
			"payed_at":         o.PayedAt,
			"payment_url":      o.PaymentURL,
			"order_history_id": o.OrderHistoryID,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       now,
		})

	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrVersionConflict
	}
	o.Version++
	o.UpdatedAt = now
	return nil
}

func (r *OrderGormRepository) Delete(ctx context.Context, orderID int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", orderID).Delete(&model.Order{})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
