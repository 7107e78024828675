// Package payment はStripeのcheckoutとwebhookの窓口。
package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"onlinestore/internal/usecase"

	"github.com/eapache/go-resiliency/breaker"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrMissingEmail  = errors.New("customer email is required")
	ErrUnavailable   = errors.New("payment provider unavailable")
)

type StripeConfig struct {
	APIKey    string
	Currency  string
	AppDomain string
}

type sessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripeGateway はcheckout sessionを作ってURLを返す。
// 連続で失敗したらbreakerが開き、しばらくStripeを呼ばない。
type StripeGateway struct {
	cfg     StripeConfig
	create  sessionCreator
	breaker *breaker.Breaker
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	sc := &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.APIKey}
	return newStripeGateway(cfg, sc.New)
}

func newStripeGateway(cfg StripeConfig, create sessionCreator) *StripeGateway {
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	return &StripeGateway{
		cfg:     cfg,
		create:  create,
		breaker: breaker.New(5, 1, 30*time.Second),
	}
}

// 金額をセント単位に
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, in usecase.CheckoutSessionInput) (string, error) {
	if !in.Amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	if strings.TrimSpace(in.CustomerEmail) == "" {
		return "", ErrMissingEmail
	}

	orderID := strconv.FormatInt(in.OrderID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(in.CustomerEmail),
		SuccessURL:    stripe.String(g.cfg.AppDomain + "/payment/success?orderId=" + orderID),
		CancelURL:     stripe.String(g.cfg.AppDomain + "/payment/cancel?orderId=" + orderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(g.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Order #" + orderID),
					},
					UnitAmount: stripe.Int64(toMinorUnits(in.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		// payment_intent側の失敗イベントにもorderIdを載せる
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{usecase.MetadataOrderID: orderID},
		},
	}
	params.Context = ctx
	params.AddMetadata(usecase.MetadataOrderID, orderID)
	params.AddMetadata("sessionKey", in.IdempotencyKey)
	params.SetIdempotencyKey(fmt.Sprintf("order_%d_%s", in.OrderID, in.IdempotencyKey))

	var url string
	err := g.breaker.Run(func() error {
		s, err := g.create(params)
		if err != nil {
			return err
		}
		url = s.URL
		return nil
	})
	if errors.Is(err, breaker.ErrBreakerOpen) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return url, nil
}
