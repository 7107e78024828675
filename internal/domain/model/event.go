package model

import "time"

type OrderEventType string

const (
	EventOrderSubmitted      OrderEventType = "order.submitted"
	EventOrderPaid           OrderEventType = "order.paid"
	EventOrderPaymentRevoked OrderEventType = "order.payment_reverted"
	EventOrderDeleted        OrderEventType = "order.deleted"
)

// 注文ライフサイクルのイベント（Kafkaへ流す）
type OrderEvent struct {
	EventID    string         `json:"event_id"`
	Type       OrderEventType `json:"type"`
	OrderID    int64          `json:"order_id"`
	UserID     int64          `json:"user_id"`
	Status     OrderStatus    `json:"status"`
	TotalPrice string         `json:"total_price"`
	OccurredAt time.Time      `json:"occurred_at"`
}
