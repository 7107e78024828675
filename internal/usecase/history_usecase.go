package usecase

import (
	"context"
	"errors"
	"time"

	"onlinestore/internal/domain/model"
	repo "onlinestore/internal/repository"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// 支払い済み注文の履歴
type HistoryUsecase struct {
	tx    repo.TransactionManager
	deps  Deps
	group singleflight.Group
}

func NewHistoryUsecase(tx repo.TransactionManager, deps Deps) *HistoryUsecase {
	return &HistoryUsecase{tx: tx, deps: deps.withDefaults()}
}

type HistoryOutput struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PayedAt     *time.Time      `json:"payed_at,omitempty"`
	Orders      []OrderOutput   `json:"orders"`
}

// 呼び出し元のTx内で履歴に積む。履歴が無ければ作る。
// 同時に作ると一意制約で落ちるので、呼び出し元のリトライでやり直す。
func (u *HistoryUsecase) archive(ctx context.Context, r repo.TxRepos, o *model.Order) error {
	h, err := r.OrderHistories().FindByUserID(ctx, o.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		h, err = r.OrderHistories().Create(ctx, model.OrderHistory{UserID: o.UserID, TotalAmount: decimal.Zero})
	}
	if err != nil {
		return err
	}

	o.OrderHistoryID = &h.ID
	h.Append(*o)
	return r.OrderHistories().Update(ctx, &h)
}

// GetHistory はユーザーの履歴を返す（キャッシュ優先）。
func (u *HistoryUsecase) GetHistory(ctx context.Context, userID int64) (HistoryOutput, error) {
	key := repo.HistoryCacheKey(userID)

	if u.deps.Cache != nil {
		var cached HistoryOutput
		err := u.deps.Cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repo.ErrCacheMiss) {
			u.deps.Logger.Warnj(log.JSON{"msg": "cache get failed", "key": key, "error": err.Error()})
		}
	}

	v, err, _ := u.group.Do(key, func() (interface{}, error) {
		var out HistoryOutput
		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			h, err := r.OrderHistories().FindByUserID(ctx, userID)
			if errors.Is(err, repo.ErrNotFound) {
				return notFound(ResourceOrderHistory, userID)
			}
			if err != nil {
				return err
			}

			out = HistoryOutput{
				ID:          h.ID,
				UserID:      h.UserID,
				TotalAmount: h.TotalAmount,
				PayedAt:     h.PayedAt,
				Orders:      make([]OrderOutput, 0, len(h.Orders)),
			}
			for _, o := range h.Orders {
				out.Orders = append(out.Orders, toOrderOutput(o))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		if u.deps.Cache != nil {
			if err := u.deps.Cache.Set(ctx, key, out, u.deps.CacheTTL); err != nil {
				u.deps.Logger.Warnj(log.JSON{"msg": "cache set failed", "key": key, "error": err.Error()})
			}
		}
		return out, nil
	})
	if err != nil {
		return HistoryOutput{}, err
	}
	return v.(HistoryOutput), nil
}
