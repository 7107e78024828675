package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

type UserSyncer interface {
	Sync(ctx context.Context, userID int64, email string, role string) error
}

// JWTのユーザーをDBへ写す（checkoutのメール用）。AuthJWTの後に置く
func UserSync(s UserSyncer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get(CtxUserIDKey).(int64)
			if !ok || userID <= 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			email, _ := c.Get(CtxUserEmailKey).(string)
			role, _ := c.Get(CtxUserRoleKey).(string)

			if err := s.Sync(c.Request().Context(), userID, email, role); err != nil {
				c.Logger().Errorf("user sync failed: user_id=%d err=%v", userID, err)
				return c.JSON(http.StatusInternalServerError, errorJSON("internal error"))
			}

			return next(c)
		}
	}
}
