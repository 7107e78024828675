package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ユーザーごとの支払い済み注文の履歴（追記のみ）
type OrderHistory struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64           `gorm:"not null;uniqueIndex" json:"user_id"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_amount"`
	PayedAt     *time.Time      `json:"payed_at,omitempty"`
	Orders      []Order         `gorm:"foreignKey:OrderHistoryID" json:"orders"`
	Version     int64           `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 支払い済み注文を履歴に積む
func (h *OrderHistory) Append(o Order) {
	h.TotalAmount = h.TotalAmount.Add(o.TotalPrice)
	h.PayedAt = o.PayedAt
	h.Orders = append(h.Orders, o)
}
