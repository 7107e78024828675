package handler

import (
	"io"
	"net/http"

	"onlinestore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// Stripeの推奨上限
const maxWebhookBody = 65536

// 署名検証してイベントにする（payment.ParseWebhookを束ねたもの）
type EventParser func(payload []byte, sigHeader string) (usecase.PaymentEvent, error)

type WebhookHandler struct {
	uc    *usecase.PaymentUsecase
	parse EventParser
}

func NewWebhookHandler(uc *usecase.PaymentUsecase, parse EventParser) *WebhookHandler {
	return &WebhookHandler{uc: uc, parse: parse}
}

// 認証はStripe-Signatureで行う
func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/stripe", h.stripe)
}

func (h *WebhookHandler) stripe(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "cannot read body"})
	}

	ev, err := h.parse(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		c.Logger().Warnf("webhook rejected: %v", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid signature"})
	}

	// 失敗したら非2xxを返してStripeに再送させる
	if err := h.uc.HandleEvent(c.Request().Context(), ev); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "received"})
}
