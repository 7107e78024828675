package usecase

import (
	"context"
	"time"

	"onlinestore/internal/domain/model"
	"onlinestore/internal/metrics"
	repo "onlinestore/internal/repository"
	"onlinestore/internal/retry"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// 各Usecaseで共通の部品
type Deps struct {
	Clock    Clock
	IDs      IDGenerator
	Logger   Logger
	Metrics  *metrics.Metrics
	Retry    retry.Policy
	Cache    repo.ViewCache
	CacheTTL time.Duration
	Events   repo.EventPublisher
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }

// 未設定の部品を埋める
func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = systemClock{}
	}
	if d.IDs == nil {
		d.IDs = uuidGenerator{}
	}
	if d.Logger == nil {
		d.Logger = nopLogger{}
	}
	if d.Retry.MaxAttempts == 0 {
		d.Retry = retry.New(retry.DefaultMaxAttempts, retry.DefaultDelay, repo.IsTransientConflict)
	}
	if d.Retry.Retryable == nil {
		d.Retry.Retryable = repo.IsTransientConflict
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 5 * time.Minute
	}
	return d
}

// op名つきのリトライ（メトリクスとログ）
func (d Deps) retryFor(op string) retry.Policy {
	p := d.Retry
	p.OnRetry = func(attempt int, err error) {
		d.Metrics.ConflictRetry(op)
		d.Logger.Warnj(log.JSON{"msg": "retrying after conflict", "op": op, "attempt": attempt, "error": err.Error()})
	}
	return p
}

// キャッシュ削除は失敗してもログだけ
func (d Deps) evict(ctx context.Context, keys ...string) {
	if d.Cache == nil {
		return
	}
	if err := d.Cache.Evict(ctx, keys...); err != nil {
		d.Logger.Warnj(log.JSON{"msg": "cache evict failed", "keys": keys, "error": err.Error()})
	}
}

// commit後のイベント送信。失敗してもログだけ
func (d Deps) publish(ctx context.Context, t model.OrderEventType, o model.Order) {
	if d.Events == nil {
		return
	}
	ev := model.OrderEvent{
		EventID:    d.IDs.NewID(),
		Type:       t,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		TotalPrice: o.TotalPrice.StringFixed(2),
		OccurredAt: d.Clock.Now().UTC(),
	}
	if err := d.Events.Publish(ctx, ev); err != nil {
		d.Logger.Warnj(log.JSON{"msg": "publish order event failed", "type": string(t), "order_id": o.ID, "error": err.Error()})
	}
}
