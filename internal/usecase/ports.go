package usecase

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
)

type CheckoutSessionInput struct {
	OrderID        int64
	Amount         decimal.Decimal
	CustomerEmail  string
	IdempotencyKey string
}

// 決済プロバイダ。checkoutのURLを返す
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (string, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

// echo.Logger（gommon）がそのまま満たす
type Logger interface {
	Infoj(j log.JSON)
	Warnj(j log.JSON)
	Errorj(j log.JSON)
}

type nopLogger struct{}

func (nopLogger) Infoj(log.JSON)  {}
func (nopLogger) Warnj(log.JSON)  {}
func (nopLogger) Errorj(log.JSON) {}
