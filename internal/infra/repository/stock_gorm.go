package repository

import (
	"context"

	"onlinestore/internal/domain/model"
	repo "onlinestore/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockGormRepository struct {
	db *gorm.DB
}

func NewStockGormRepository(db *gorm.DB) *StockGormRepository {
	return &StockGormRepository{db: db}
}

func (r *StockGormRepository) Create(ctx context.Context, s model.Stock) (model.Stock, error) {
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return model.Stock{}, translateError(err)
	}
	return s, nil
}

func (r *StockGormRepository) FindByProductID(ctx context.Context, productID int64) (model.Stock, error) {
	var s model.Stock
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&s).Error; err != nil {
		return model.Stock{}, translateError(err)
	}
	return s, nil
}

// 行ロックして取得
func (r *StockGormRepository) FindByProductIDForUpdate(ctx context.Context, productID int64) (model.Stock, error) {
	var s model.Stock
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&s).Error
	if err != nil {
		return model.Stock{}, translateError(err)
	}
	return s, nil
}

// 在庫が足りるときだけ減らす
func (r *StockGormRepository) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Stock{}).
		Where("product_id = ? AND quantity >= ?", productID, qty).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity - ?", qty),
			"version":  gorm.Expr("version + 1"),
		})

	if res.Error != nil {
		return false, translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

// 在庫戻し
func (r *StockGormRepository) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Stock{}).
		Where("product_id = ?", productID).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity + ?", qty),
			"version":  gorm.Expr("version + 1"),
		})

	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
