package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"onlinestore/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey    = "user_id"    // int64
	CtxUserRoleKey  = "user_role"  // string
	CtxUserEmailKey = "user_email" // string（無ければ空）
)

var errInvalidIdentity = errors.New("token has no usable identity")

// subは数値でも文字列でも受ける
type subject int64

func (s *subject) UnmarshalJSON(b []byte) error {
	id, err := strconv.ParseInt(strings.Trim(string(b), `"`), 10, 64)
	if err != nil {
		return err
	}
	*s = subject(id)
	return nil
}

// 認証基盤が発行するトークンのうち、注文処理で使う分だけ
type identityClaims struct {
	jwt.RegisteredClaims
	UserID subject `json:"sub"`
	Role   string  `json:"role"`
	Email  string  `json:"email,omitempty"`
}

// exp/nbfに加えて、ユーザーとロールが入っていること
func (c *identityClaims) Valid() error {
	if err := c.RegisteredClaims.Valid(); err != nil {
		return err
	}
	if c.UserID <= 0 || c.Role == "" {
		return errInvalidIdentity
	}
	return nil
}

func bearerToken(authz string) (string, bool) {
	scheme, raw, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// AuthJWT はHS256のBearerトークンを検証して、ユーザー情報をcontextに載せる。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			var claims identityClaims
			if _, err := jwt.ParseWithClaims(raw, &claims, keyFunc); err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			c.Set(CtxUserIDKey, int64(claims.UserID))
			c.Set(CtxUserRoleKey, claims.Role)
			c.Set(CtxUserEmailKey, claims.Email)

			return next(c)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}
