package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細。価格・名前は追加時点のスナップショット
type OrderItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64           `gorm:"not null;uniqueIndex:ux_order_items_order_product" json:"order_id"`
	ProductID   int64           `gorm:"not null;uniqueIndex:ux_order_items_order_product" json:"product_id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	Version     int64           `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
}
