package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "CREATED"
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
)

var (
	ErrOrderAlreadyPaid = errors.New("order already paid")
	ErrOrderNotPending  = errors.New("order is not pending")
	ErrOrderNotEditable = errors.New("order is not editable")
)

type Order struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64           `gorm:"not null;index" json:"user_id"`
	Status         OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_price"`
	SubmittedAt    *time.Time      `json:"submitted_at,omitempty"`
	PayedAt        *time.Time      `json:"payed_at,omitempty"`
	PaymentURL     string          `gorm:"type:text;not null;default:''" json:"payment_url,omitempty"`
	OrderHistoryID *int64          `gorm:"index" json:"order_history_id,omitempty"`
	Version        int64           `gorm:"not null;default:0" json:"-"`
	Items          []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt      time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 新しいCREATED注文
func NewOrder(userID int64, now time.Time) Order {
	return Order{
		UserID:     userID,
		Status:     OrderStatusCreated,
		TotalPrice: decimal.Zero,
		Items:      []OrderItem{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// カート操作できるのはCREATEDだけ
func (o *Order) Editable() bool {
	return o.Status == OrderStatusCreated
}

// 明細から合計を計算し直す
func (o *Order) RecalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	o.TotalPrice = total
	return total
}

// CREATED/PENDING -> PENDING
func (o *Order) MarkSubmitted(now time.Time) error {
	if o.Status == OrderStatusPaid {
		return ErrOrderAlreadyPaid
	}
	o.Status = OrderStatusPending
	o.SubmittedAt = &now
	return nil
}

// 決済完了
func (o *Order) MarkPaid(now time.Time) error {
	if o.Status == OrderStatusPaid {
		return ErrOrderAlreadyPaid
	}
	o.Status = OrderStatusPaid
	o.PayedAt = &now
	o.PaymentURL = ""
	return nil
}

// 決済失敗でPENDINGからCREATEDへ戻す
func (o *Order) RevertToCreated() error {
	if o.Status != OrderStatusPending {
		return ErrOrderNotPending
	}
	o.Status = OrderStatusCreated
	o.SubmittedAt = nil
	o.PaymentURL = ""
	return nil
}

// productIDの明細を探す
func (o *Order) FindItem(productID int64) (int, bool) {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return i, true
		}
	}
	return -1, false
}
