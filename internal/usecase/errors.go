package usecase

import (
	"errors"
	"fmt"

	"onlinestore/internal/domain/model"
)

// handlerはerrors.Isでこれらを見てステータスを決める
var (
	ErrNotFound               = errors.New("not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrModificationNotAllowed = errors.New("modification not allowed")
	ErrIllegalArgument        = errors.New("illegal argument")
	ErrPaymentProcessing      = errors.New("payment processing failed")
	ErrMalformedPaymentEvent  = errors.New("malformed payment event")
)

const (
	ResourceProduct      = "product"
	ResourceStock        = "stock"
	ResourceOrder        = "order"
	ResourceUsersOrder   = "users order"
	ResourceOrders       = "orders"
	ResourceOrderHistory = "order history"
	ResourceUser         = "user"
)

type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	if e.Resource == ResourceUsersOrder || e.Resource == ResourceOrders || e.Resource == ResourceOrderHistory {
		return fmt.Sprintf("%s not found for user %d", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(resource string, id int64) error {
	return &NotFoundError{Resource: resource, ID: id}
}

type InsufficientStockError struct {
	ProductID int64
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type ModificationNotAllowedError struct {
	OrderID int64
	Status  model.OrderStatus
}

func (e *ModificationNotAllowedError) Error() string {
	return fmt.Sprintf("order %d cannot be modified in status %s", e.OrderID, e.Status)
}

func (e *ModificationNotAllowedError) Is(target error) bool {
	return target == ErrModificationNotAllowed
}

type IllegalArgumentError struct {
	Message string
}

func (e *IllegalArgumentError) Error() string { return e.Message }

func (e *IllegalArgumentError) Is(target error) bool { return target == ErrIllegalArgument }

func illegalArgument(format string, args ...any) error {
	return &IllegalArgumentError{Message: fmt.Sprintf(format, args...)}
}

type PaymentProcessingError struct {
	OrderID int64
	Err     error
}

func (e *PaymentProcessingError) Error() string {
	return fmt.Sprintf("payment processing failed for order %d: %v", e.OrderID, e.Err)
}

func (e *PaymentProcessingError) Unwrap() error { return e.Err }

func (e *PaymentProcessingError) Is(target error) bool { return target == ErrPaymentProcessing }
