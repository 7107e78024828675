package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

// 明細のスナップショットを作る
func (p Product) NewItem(orderID int64, quantity int64) OrderItem {
	return OrderItem{
		OrderID:     orderID,
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		UnitPrice:   p.Price,
		Quantity:    quantity,
	}
}
