package handler

import (
	"errors"
	"net/http"

	"onlinestore/internal/middleware"
	"onlinestore/internal/repository"
	"onlinestore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// usecaseのエラーをステータスへ
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, usecase.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrInsufficientStock),
		errors.Is(err, usecase.ErrModificationNotAllowed),
		errors.Is(err, usecase.ErrIllegalArgument),
		errors.Is(err, usecase.ErrMalformedPaymentEvent):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case repository.IsTransientConflict(err):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict, please retry"})
	case errors.Is(err, usecase.ErrPaymentProcessing):
		return c.JSON(http.StatusExpectationFailed, ErrorResponse{Error: err.Error()})
	}

	//500
	c.Logger().Errorf("unhandled error: %v", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// middleware.AuthJWT が c.Set("user_id", int64) した値を取り出す
func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get(middleware.CtxUserIDKey)
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}

var (
	errInvalidProductID = errors.New("invalid productId")
	errInvalidBody      = errors.New("invalid body")
)
