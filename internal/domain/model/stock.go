package model

import "time"

// 商品ごとの在庫。quantityは常に0以上
type Stock struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64     `gorm:"not null;uniqueIndex" json:"product_id"`
	Quantity  int64     `gorm:"not null;check:quantity >= 0" json:"quantity"`
	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
