package usecase

import (
	"context"
	"errors"

	"onlinestore/internal/domain/model"
	repo "onlinestore/internal/repository"

	"github.com/labstack/gommon/log"
)

// CartUsecase はCREATED注文の明細を操作する。
// 明細・在庫・合計は1つのTxでまとめて変更する。
type CartUsecase struct {
	tx        repo.TransactionManager
	orders    *OrderUsecase
	inventory *InventoryUsecase
	deps      Deps
}

func NewCartUsecase(tx repo.TransactionManager, orders *OrderUsecase, inventory *InventoryUsecase, deps Deps) *CartUsecase {
	return &CartUsecase{
		tx:        tx,
		orders:    orders,
		inventory: inventory,
		deps:      deps.withDefaults(),
	}
}

// AddItem は商品を追加する（同じ商品なら数量を加算）。
func (u *CartUsecase) AddItem(ctx context.Context, userID int64, productID int64, quantity int64) (OrderItemOutput, error) {
	if quantity <= 0 {
		return OrderItemOutput{}, illegalArgument("quantity must be positive")
	}

	unlock := u.orders.lockUser(userID)
	defer unlock()

	item, err := txValue(ctx, u.tx, u.deps.retryFor("cart.add"), func(r repo.TxRepos) (model.OrderItem, error) {
		o, _, err := u.orders.getOrCreateActive(ctx, r, userID)
		if err != nil {
			return model.OrderItem{}, err
		}

		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.OrderItem{}, notFound(ResourceProduct, productID)
		}
		if err != nil {
			return model.OrderItem{}, err
		}

		// 先にメモリ上の明細を変更
		idx, exists := o.FindItem(productID)
		var prevQty int64
		if exists {
			prevQty = o.Items[idx].Quantity
			o.Items[idx].Quantity += quantity
		} else {
			o.Items = append(o.Items, p.NewItem(o.ID, quantity))
			idx = len(o.Items) - 1
		}

		if _, err := u.inventory.decrease(ctx, r.Stocks(), productID, quantity); err != nil {
			// 在庫が取れなければ明細を元に戻す
			if exists {
				o.Items[idx].Quantity = prevQty
			} else {
				o.Items = o.Items[:idx]
			}
			return model.OrderItem{}, err
		}

		item := o.Items[idx]
		if exists {
			err = r.OrderItems().Update(ctx, &item)
		} else {
			item, err = r.OrderItems().Create(ctx, item)
		}
		if err != nil {
			return model.OrderItem{}, err
		}

		if _, err := u.orders.recomputeTotal(ctx, r, o.ID); err != nil {
			return model.OrderItem{}, err
		}
		return item, nil
	})
	if err != nil {
		return OrderItemOutput{}, err
	}

	u.deps.evict(ctx, repo.OrdersCacheKey(userID))
	u.deps.Logger.Infoj(log.JSON{"msg": "cart item added", "user_id": userID, "product_id": productID, "quantity": quantity})
	return toItemOutput(item), nil
}

// RemoveItem は明細を丸ごと消して在庫を戻す。
func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, productID int64) (OrderOutput, error) {
	unlock := u.orders.lockUser(userID)
	defer unlock()

	o, err := txValue(ctx, u.tx, u.deps.retryFor("cart.remove"), func(r repo.TxRepos) (model.Order, error) {
		o, item, err := u.findLine(ctx, r, userID, productID)
		if err != nil {
			return model.Order{}, err
		}

		if _, err := u.inventory.increase(ctx, r.Stocks(), productID, item.Quantity); err != nil {
			return model.Order{}, err
		}
		if err := r.OrderItems().Delete(ctx, item.ID); err != nil {
			return model.Order{}, err
		}
		return u.orders.recomputeTotal(ctx, r, o.ID)
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.deps.evict(ctx, repo.OrdersCacheKey(userID))
	u.deps.Logger.Infoj(log.JSON{"msg": "cart item removed", "user_id": userID, "product_id": productID})
	return toOrderOutput(o), nil
}

// RemoveQuantity は明細の数量をamountだけ減らす。0になったら明細を消す。
func (u *CartUsecase) RemoveQuantity(ctx context.Context, userID int64, productID int64, amount int64) (OrderOutput, error) {
	if amount <= 0 {
		return OrderOutput{}, illegalArgument("amount must be positive")
	}

	unlock := u.orders.lockUser(userID)
	defer unlock()

	o, err := txValue(ctx, u.tx, u.deps.retryFor("cart.decrease"), func(r repo.TxRepos) (model.Order, error) {
		o, item, err := u.findLine(ctx, r, userID, productID)
		if err != nil {
			return model.Order{}, err
		}
		if amount > item.Quantity {
			return model.Order{}, &InsufficientStockError{ProductID: productID, Available: item.Quantity, Requested: amount}
		}

		item.Quantity -= amount
		if _, err := u.inventory.increase(ctx, r.Stocks(), productID, amount); err != nil {
			return model.Order{}, err
		}

		if item.Quantity == 0 {
			err = r.OrderItems().Delete(ctx, item.ID)
		} else {
			err = r.OrderItems().Update(ctx, &item)
		}
		if err != nil {
			return model.Order{}, err
		}
		return u.orders.recomputeTotal(ctx, r, o.ID)
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.deps.evict(ctx, repo.OrdersCacheKey(userID))
	u.deps.Logger.Infoj(log.JSON{"msg": "cart item decreased", "user_id": userID, "product_id": productID, "amount": amount})
	return toOrderOutput(o), nil
}

// CREATED注文とその明細を探す
func (u *CartUsecase) findLine(ctx context.Context, r repo.TxRepos, userID int64, productID int64) (model.Order, model.OrderItem, error) {
	o, err := r.Orders().FindByUserAndStatus(ctx, userID, model.OrderStatusCreated)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, model.OrderItem{}, notFound(ResourceUsersOrder, userID)
	}
	if err != nil {
		return model.Order{}, model.OrderItem{}, err
	}
	if !o.Editable() {
		return model.Order{}, model.OrderItem{}, &ModificationNotAllowedError{OrderID: o.ID, Status: o.Status}
	}

	idx, ok := o.FindItem(productID)
	if !ok {
		return model.Order{}, model.OrderItem{}, notFound(ResourceProduct, productID)
	}
	return o, o.Items[idx], nil
}
