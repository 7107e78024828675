package repository

import (
	"context"

	repo "onlinestore/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	histories  repo.OrderHistoryRepository
	stocks     repo.StockRepository
	products   repo.ProductRepository
	users      repo.UserRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *txReposGorm) OrderHistories() repo.OrderHistoryRepository { return r.histories }
func (r *txReposGorm) Stocks() repo.StockRepository { return r.stocks }
func (r *txReposGorm) Products() repo.ProductRepository { return r.products }
func (r *txReposGorm) Users() repo.UserRepository { return r.users }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			orders:     NewOrderGormRepository(tx),
			orderItems: NewOrderItemGormRepository(tx),
			histories:  NewOrderHistoryGormRepository(tx),
			stocks:     NewStockGormRepository(tx),
			products:   NewProductGormRepository(tx),
			users:      NewUserGormRepository(tx),
		}
		return fn(r)
	})
	// commit時のシリアライズ失敗も衝突として扱う
	return translateError(err)
}
