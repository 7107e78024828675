package usecase

import (
	"context"
	"errors"

	"onlinestore/internal/domain/model"
	repo "onlinestore/internal/repository"

	"github.com/labstack/gommon/log"
)

// 在庫の増減。減算は条件付きUPDATE一発で行い、売り越しを起こさない
type InventoryUsecase struct {
	tx   repo.TransactionManager
	deps Deps
}

func NewInventoryUsecase(tx repo.TransactionManager, deps Deps) *InventoryUsecase {
	return &InventoryUsecase{tx: tx, deps: deps.withDefaults()}
}

// Increase は在庫をamountだけ増やして、更新後の在庫を返す。
func (u *InventoryUsecase) Increase(ctx context.Context, productID int64, amount int64) (model.Stock, error) {
	if amount <= 0 {
		return model.Stock{}, illegalArgument("amount must be positive")
	}

	var out model.Stock
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		st, err := u.increase(ctx, r.Stocks(), productID, amount)
		if err != nil {
			return err
		}
		out = st
		return nil
	})
	if err != nil {
		return model.Stock{}, err
	}

	u.deps.Logger.Infoj(log.JSON{"msg": "stock increased", "product_id": productID, "amount": amount, "quantity": out.Quantity})
	return out, nil
}

// Decrease は在庫が足りるときだけ減らす。
func (u *InventoryUsecase) Decrease(ctx context.Context, productID int64, amount int64) (model.Stock, error) {
	if amount <= 0 {
		return model.Stock{}, illegalArgument("amount must be positive")
	}

	var out model.Stock
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		st, err := u.decrease(ctx, r.Stocks(), productID, amount)
		if err != nil {
			return err
		}
		out = st
		return nil
	})
	if err != nil {
		return model.Stock{}, err
	}
	return out, nil
}

// CreateInitial は商品の在庫行を作る（1商品1回）。
func (u *InventoryUsecase) CreateInitial(ctx context.Context, productID int64, quantity int64) (model.Stock, error) {
	if quantity < 0 {
		return model.Stock{}, illegalArgument("quantity must not be negative")
	}

	var out model.Stock
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Products().FindByID(ctx, productID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return notFound(ResourceProduct, productID)
			}
			return err
		}

		st, err := r.Stocks().Create(ctx, model.Stock{ProductID: productID, Quantity: quantity})
		if err != nil {
			return err
		}
		out = st
		return nil
	})
	if err != nil {
		return model.Stock{}, err
	}

	u.deps.Logger.Infoj(log.JSON{"msg": "stock created", "product_id": productID, "quantity": quantity})
	return out, nil
}

func (u *InventoryUsecase) Get(ctx context.Context, productID int64) (model.Stock, error) {
	var out model.Stock
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		st, err := r.Stocks().FindByProductID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound(ResourceStock, productID)
		}
		if err != nil {
			return err
		}
		out = st
		return nil
	})
	return out, err
}

// 呼び出し元のTx内で在庫を戻す
func (u *InventoryUsecase) increase(ctx context.Context, stocks repo.StockRepository, productID int64, amount int64) (model.Stock, error) {
	if err := stocks.IncreaseStock(ctx, productID, amount); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Stock{}, notFound(ResourceStock, productID)
		}
		return model.Stock{}, err
	}

	st, err := stocks.FindByProductIDForUpdate(ctx, productID)
	if err != nil {
		return model.Stock{}, err
	}
	return st, nil
}

// 呼び出し元のTx内で在庫を確保する
func (u *InventoryUsecase) decrease(ctx context.Context, stocks repo.StockRepository, productID int64, amount int64) (model.Stock, error) {
	ok, err := stocks.DecreaseStockIfEnough(ctx, productID, amount)
	if err != nil {
		return model.Stock{}, err
	}

	if !ok {
		// 行が無いのか、足りないのかを読み直して判定
		st, err := stocks.FindByProductID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.Stock{}, notFound(ResourceStock, productID)
		}
		if err != nil {
			return model.Stock{}, err
		}
		u.deps.Metrics.StockRejected()
		return model.Stock{}, &InsufficientStockError{ProductID: productID, Available: st.Quantity, Requested: amount}
	}

	st, err := stocks.FindByProductIDForUpdate(ctx, productID)
	if err != nil {
		return model.Stock{}, err
	}
	return st, nil
}
