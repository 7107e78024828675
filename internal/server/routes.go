package server

import (
	"net/http"

	"onlinestore/internal/config"
	"onlinestore/internal/handler"
	"onlinestore/internal/metrics"
	"onlinestore/internal/middleware"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
	Webhook *handler.WebhookHandler
	Admin   *handler.AdminHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, users middleware.UserSyncer, m *metrics.Metrics, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, handler.SuccessResponse{Message: "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	h.Cart.RegisterRoutes(e, cfg, users)
	h.Order.RegisterRoutes(e, cfg, users)
	h.Webhook.RegisterRoutes(e)
	h.Admin.RegisterRoutes(e, cfg)
}
