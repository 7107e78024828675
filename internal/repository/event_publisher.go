package repository

import (
	"context"

	"onlinestore/internal/domain/model"
)

// commit後に注文イベントを流す
type EventPublisher interface {
	Publish(ctx context.Context, ev model.OrderEvent) error
}
