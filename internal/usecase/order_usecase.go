package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"onlinestore/internal/domain/model"
	repo "onlinestore/internal/repository"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

type OrderUsecase struct {
	tx        repo.TransactionManager
	inventory *InventoryUsecase
	gateway   PaymentGateway
	deps      Deps

	users *keyedMutex
	group singleflight.Group
}

func NewOrderUsecase(tx repo.TransactionManager, inventory *InventoryUsecase, gateway PaymentGateway, deps Deps) *OrderUsecase {
	return &OrderUsecase{
		tx:        tx,
		inventory: inventory,
		gateway:   gateway,
		deps:      deps.withDefaults(),
		users:     newKeyedMutex(),
	}
}

type OrderItemOutput struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int64           `json:"quantity"`
}

type OrderOutput struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Status      model.OrderStatus `json:"status"`
	TotalPrice  decimal.Decimal   `json:"total_price"`
	CreatedAt   time.Time         `json:"created_at"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
	PaymentURL  string            `json:"payment_url,omitempty"`
	Items       []OrderItemOutput `json:"items"`
}

type SubmitOutput struct {
	ID         int64             `json:"id"`
	UserID     int64             `json:"user_id"`
	Price      decimal.Decimal   `json:"price"`
	Status     model.OrderStatus `json:"status"`
	PaymentURL string            `json:"payment_url"`
}

func toItemOutput(it model.OrderItem) OrderItemOutput {
	return OrderItemOutput{
		ID:          it.ID,
		OrderID:     it.OrderID,
		ProductID:   it.ProductID,
		Name:        it.Name,
		Description: it.Description,
		UnitPrice:   it.UnitPrice,
		Quantity:    it.Quantity,
	}
}

func toOrderOutput(o model.Order) OrderOutput {
	items := make([]OrderItemOutput, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, toItemOutput(it))
	}
	return OrderOutput{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		TotalPrice:  o.TotalPrice,
		CreatedAt:   o.CreatedAt,
		SubmittedAt: o.SubmittedAt,
		PaymentURL:  o.PaymentURL,
		Items:       items,
	}
}

// ユーザーのカート操作を直列化する
func (u *OrderUsecase) lockUser(userID int64) func() {
	return u.users.Lock(userID)
}

// GetOrCreateActiveOrder はCREATED注文を返す。無ければ（PENDINGしか無くても）新しく作る。
func (u *OrderUsecase) GetOrCreateActiveOrder(ctx context.Context, userID int64) (OrderOutput, error) {
	unlock := u.lockUser(userID)
	defer unlock()

	var created bool
	o, err := txValue(ctx, u.tx, u.deps.retryFor("order.active"), func(r repo.TxRepos) (model.Order, error) {
		o, c, err := u.getOrCreateActive(ctx, r, userID)
		created = c
		return o, err
	})
	if err != nil {
		return OrderOutput{}, err
	}
	// 新しく作ったときだけ一覧キャッシュが古くなる
	if created {
		u.deps.evict(ctx, repo.OrdersCacheKey(userID))
	}
	return toOrderOutput(o), nil
}

// 2つ目の戻り値は新しく作ったかどうか
func (u *OrderUsecase) getOrCreateActive(ctx context.Context, r repo.TxRepos, userID int64) (model.Order, bool, error) {
	o, err := r.Orders().FindActiveByUserIDForUpdate(ctx, userID)
	if err == nil && o.Status == model.OrderStatusCreated {
		return o, false, nil
	}
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, false, err
	}

	// 無い or PENDINGしか無い
	created, err := r.Orders().Create(ctx, model.NewOrder(userID, u.deps.Clock.Now()))
	if err != nil {
		return model.Order{}, false, err
	}
	u.deps.Logger.Infoj(log.JSON{"msg": "order created", "order_id": created.ID, "user_id": userID})
	return created, true, nil
}

// RecomputeTotal は明細から合計を計算し直して保存する。
func (u *OrderUsecase) RecomputeTotal(ctx context.Context, orderID int64) (OrderOutput, error) {
	o, err := txValue(ctx, u.tx, u.deps.retryFor("order.recompute"), func(r repo.TxRepos) (model.Order, error) {
		return u.recomputeTotal(ctx, r, orderID)
	})
	if err != nil {
		return OrderOutput{}, err
	}
	u.deps.evict(ctx, repo.OrdersCacheKey(o.UserID))
	return toOrderOutput(o), nil
}

func (u *OrderUsecase) recomputeTotal(ctx context.Context, r repo.TxRepos, orderID int64) (model.Order, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, notFound(ResourceOrder, orderID)
	}
	if err != nil {
		return model.Order{}, err
	}
	if !o.Editable() {
		return model.Order{}, &ModificationNotAllowedError{OrderID: o.ID, Status: o.Status}
	}

	o.RecalculateTotal()
	if err := r.Orders().Update(ctx, &o); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// Submit はPENDINGにして決済URLを発行する。決済側の呼び出し中はロックを持たない。
func (u *OrderUsecase) Submit(ctx context.Context, userID int64, orderID int64) (SubmitOutput, error) {
	type submitted struct {
		order model.Order
		prev  model.Order
		email string
	}

	// 1. PENDINGにする
	s, err := txValue(ctx, u.tx, u.deps.retryFor("order.submit"), func(r repo.TxRepos) (submitted, error) {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return submitted{}, notFound(ResourceOrder, orderID)
		}
		if err != nil {
			return submitted{}, err
		}
		if o.UserID != userID {
			return submitted{}, notFound(ResourceOrder, orderID)
		}
		if o.Status == model.OrderStatusPaid {
			return submitted{}, &ModificationNotAllowedError{OrderID: o.ID, Status: o.Status}
		}

		user, err := r.Users().FindByID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return submitted{}, notFound(ResourceUser, userID)
		}
		if err != nil {
			return submitted{}, err
		}

		prev := o
		if err := o.MarkSubmitted(u.deps.Clock.Now()); err != nil {
			return submitted{}, err
		}
		if err := r.Orders().Update(ctx, &o); err != nil {
			return submitted{}, err
		}
		return submitted{order: o, prev: prev, email: user.Email}, nil
	})
	if err != nil {
		return SubmitOutput{}, err
	}

	// 2. 決済セッション作成（ロック無し）
	key := fmt.Sprintf("%d_%d", orderID, u.deps.Clock.Now().UnixNano())
	url, err := u.gateway.CreateCheckoutSession(ctx, CheckoutSessionInput{
		OrderID:        orderID,
		Amount:         s.order.TotalPrice,
		CustomerEmail:  s.email,
		IdempotencyKey: key,
	})
	if err != nil {
		u.restoreAfterFailedSubmit(ctx, s.prev)
		u.deps.Logger.Errorj(log.JSON{"msg": "checkout session failed", "order_id": orderID, "error": err.Error()})
		return SubmitOutput{}, &PaymentProcessingError{OrderID: orderID, Err: err}
	}

	// 3. URLを保存
	o, err := txValue(ctx, u.tx, u.deps.retryFor("order.submit"), func(r repo.TxRepos) (model.Order, error) {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return model.Order{}, err
		}
		// webhookが先に来ていたら上書きしない
		if o.Status != model.OrderStatusPending {
			return o, nil
		}
		o.PaymentURL = url
		if err := r.Orders().Update(ctx, &o); err != nil {
			return model.Order{}, err
		}
		return o, nil
	})
	if err != nil {
		return SubmitOutput{}, err
	}

	u.deps.Metrics.Transition(string(s.prev.Status), string(model.OrderStatusPending))
	u.deps.evict(ctx, repo.OrdersCacheKey(userID))
	u.deps.publish(ctx, model.EventOrderSubmitted, o)
	u.deps.Logger.Infoj(log.JSON{"msg": "order submitted", "order_id": orderID, "user_id": userID})

	return SubmitOutput{
		ID:         o.ID,
		UserID:     o.UserID,
		Price:      o.TotalPrice,
		Status:     o.Status,
		PaymentURL: o.PaymentURL,
	}, nil
}

// submit前の状態に戻す
func (u *OrderUsecase) restoreAfterFailedSubmit(ctx context.Context, prev model.Order) {
	err := retryTx(ctx, u.tx, u.deps.retryFor("order.submit.restore"), func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, prev.ID)
		if err != nil {
			return err
		}
		if o.Status != model.OrderStatusPending {
			return nil
		}
		o.Status = prev.Status
		o.SubmittedAt = prev.SubmittedAt
		o.PaymentURL = prev.PaymentURL
		return r.Orders().Update(ctx, &o)
	})
	if err != nil {
		u.deps.Logger.Errorj(log.JSON{"msg": "restore after failed submit", "order_id": prev.ID, "error": err.Error()})
	}
	// 決済呼び出し中にPENDINGの一覧がキャッシュされている場合がある
	u.deps.evict(ctx, repo.OrdersCacheKey(prev.UserID))
}

// Delete は未決済の注文を消して、確保していた在庫を戻す。
func (u *OrderUsecase) Delete(ctx context.Context, orderID int64, userID int64) error {
	unlock := u.lockUser(userID)
	defer unlock()

	o, err := txValue(ctx, u.tx, u.deps.retryFor("order.delete"), func(r repo.TxRepos) (model.Order, error) {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.Order{}, notFound(ResourceOrder, orderID)
		}
		if err != nil {
			return model.Order{}, err
		}
		if o.UserID != userID {
			return model.Order{}, notFound(ResourceOrder, orderID)
		}
		if o.Status == model.OrderStatusPending || o.Status == model.OrderStatusPaid {
			return model.Order{}, &ModificationNotAllowedError{OrderID: o.ID, Status: o.Status}
		}

		for _, it := range o.Items {
			if _, err := u.inventory.increase(ctx, r.Stocks(), it.ProductID, it.Quantity); err != nil {
				return model.Order{}, err
			}
		}
		if err := r.OrderItems().DeleteByOrderID(ctx, o.ID); err != nil {
			return model.Order{}, err
		}
		if err := r.Orders().Delete(ctx, o.ID); err != nil {
			return model.Order{}, err
		}
		return o, nil
	})
	if err != nil {
		return err
	}

	u.deps.evict(ctx, repo.OrdersCacheKey(userID))
	u.deps.publish(ctx, model.EventOrderDeleted, o)
	u.deps.Logger.Infoj(log.JSON{"msg": "order deleted", "order_id": orderID, "user_id": userID})
	return nil
}

// ListForUser はCREATED/PENDINGの注文を返す（キャッシュ優先）。
func (u *OrderUsecase) ListForUser(ctx context.Context, userID int64) ([]OrderOutput, error) {
	key := repo.OrdersCacheKey(userID)

	if u.deps.Cache != nil {
		var cached []OrderOutput
		err := u.deps.Cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repo.ErrCacheMiss) {
			u.deps.Logger.Warnj(log.JSON{"msg": "cache get failed", "key": key, "error": err.Error()})
		}
	}

	// 同じユーザーの同時ミスは1回の読み込みにまとめる
	v, err, _ := u.group.Do(key, func() (interface{}, error) {
		var outs []OrderOutput
		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			orders, err := r.Orders().ListOpenByUserID(ctx, userID)
			if err != nil {
				return err
			}
			outs = make([]OrderOutput, 0, len(orders))
			for _, o := range orders {
				o.RecalculateTotal()
				outs = append(outs, toOrderOutput(o))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(outs) == 0 {
			return nil, notFound(ResourceOrders, userID)
		}

		if u.deps.Cache != nil {
			if err := u.deps.Cache.Set(ctx, key, outs, u.deps.CacheTTL); err != nil {
				u.deps.Logger.Warnj(log.JSON{"msg": "cache set failed", "key": key, "error": err.Error()})
			}
		}
		return outs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]OrderOutput), nil
}
