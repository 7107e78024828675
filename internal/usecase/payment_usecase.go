package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"onlinestore/internal/domain/model"
	repo "onlinestore/internal/repository"

	"github.com/labstack/gommon/log"
)

// 決済プロバイダのイベント種別
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventCheckoutExpired     = "checkout.session.expired"
	EventAsyncPaymentFailed  = "checkout.session.async_payment_failed"
	EventPaymentIntentFailed = "payment_intent.payment_failed"

	MetadataOrderID = "orderId"
)

// 署名検証済みのイベント
type PaymentEvent struct {
	ID       string
	Type     string
	Metadata map[string]string
}

// PaymentUsecase は決済イベントで注文を確定・差し戻しする。
// 同じイベントが何度来ても結果は変わらない。
type PaymentUsecase struct {
	tx      repo.TransactionManager
	history *HistoryUsecase
	deps    Deps
}

func NewPaymentUsecase(tx repo.TransactionManager, history *HistoryUsecase, deps Deps) *PaymentUsecase {
	return &PaymentUsecase{tx: tx, history: history, deps: deps.withDefaults()}
}

func (u *PaymentUsecase) HandleEvent(ctx context.Context, ev PaymentEvent) error {
	var err error
	switch ev.Type {
	case EventCheckoutCompleted:
		err = u.confirm(ctx, ev)
	case EventCheckoutExpired, EventAsyncPaymentFailed, EventPaymentIntentFailed:
		err = u.fail(ctx, ev)
	default:
		u.deps.Metrics.PaymentEvent(ev.Type, "ignored")
		return nil
	}

	if err != nil {
		u.deps.Metrics.PaymentEvent(ev.Type, "error")
		u.deps.Logger.Errorj(log.JSON{"msg": "payment event failed", "event_id": ev.ID, "type": ev.Type, "error": err.Error()})
		return err
	}
	return nil
}

func orderIDFromMetadata(ev PaymentEvent) (int64, error) {
	raw, ok := ev.Metadata[MetadataOrderID]
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("%w: missing %s in metadata", ErrMalformedPaymentEvent, MetadataOrderID)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrMalformedPaymentEvent, MetadataOrderID, raw)
	}
	return id, nil
}

// 決済完了: PAIDにして履歴に積む
func (u *PaymentUsecase) confirm(ctx context.Context, ev PaymentEvent) error {
	orderID, err := orderIDFromMetadata(ev)
	if err != nil {
		return err
	}

	var prev model.OrderStatus
	o, applied, err := u.apply(ctx, "payment.confirm", orderID, func(r repo.TxRepos, o *model.Order) (bool, error) {
		if o.Status == model.OrderStatusPaid {
			return false, nil
		}
		prev = o.Status
		if err := o.MarkPaid(u.deps.Clock.Now()); err != nil {
			return false, err
		}
		if err := u.history.archive(ctx, r, o); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if !applied {
		u.deps.Metrics.PaymentEvent(ev.Type, "duplicate")
		return nil
	}

	u.deps.Metrics.PaymentEvent(ev.Type, "applied")
	u.deps.Metrics.Transition(string(prev), string(model.OrderStatusPaid))
	u.deps.evict(ctx, repo.OrdersCacheKey(o.UserID), repo.HistoryCacheKey(o.UserID))
	u.deps.publish(ctx, model.EventOrderPaid, o)
	u.deps.Logger.Infoj(log.JSON{"msg": "order paid", "order_id": o.ID, "user_id": o.UserID, "event_id": ev.ID})
	return nil
}

// 決済失敗: PENDINGのときだけCREATEDへ戻す
func (u *PaymentUsecase) fail(ctx context.Context, ev PaymentEvent) error {
	orderID, err := orderIDFromMetadata(ev)
	if err != nil {
		return err
	}

	o, applied, err := u.apply(ctx, "payment.fail", orderID, func(r repo.TxRepos, o *model.Order) (bool, error) {
		if o.Status != model.OrderStatusPending {
			return false, nil
		}
		if err := o.RevertToCreated(); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if !applied {
		u.deps.Metrics.PaymentEvent(ev.Type, "skipped")
		return nil
	}

	u.deps.Metrics.PaymentEvent(ev.Type, "applied")
	u.deps.Metrics.Transition(string(model.OrderStatusPending), string(model.OrderStatusCreated))
	u.deps.evict(ctx, repo.OrdersCacheKey(o.UserID))
	u.deps.publish(ctx, model.EventOrderPaymentRevoked, o)
	u.deps.Logger.Infoj(log.JSON{"msg": "order payment reverted", "order_id": o.ID, "user_id": o.UserID, "event_id": ev.ID})
	return nil
}

// 注文を行ロックで読み、mutateがtrueを返したときだけ保存する
func (u *PaymentUsecase) apply(ctx context.Context, op string, orderID int64, mutate func(r repo.TxRepos, o *model.Order) (bool, error)) (model.Order, bool, error) {
	var applied bool
	o, err := txValue(ctx, u.tx, u.deps.retryFor(op), func(r repo.TxRepos) (model.Order, error) {
		applied = false

		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.Order{}, notFound(ResourceOrder, orderID)
		}
		if err != nil {
			return model.Order{}, err
		}

		ok, err := mutate(r, &o)
		if err != nil || !ok {
			return o, err
		}
		if err := r.Orders().Update(ctx, &o); err != nil {
			return model.Order{}, err
		}
		applied = true
		return o, nil
	})
	if err != nil {
		return model.Order{}, false, err
	}
	return o, applied, nil
}
