package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// 認証は外部。ここではcheckout用のメールとロールだけ持つ
type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Email     string `gorm:"uniqueIndex;not null"`
	Role      Role   `gorm:"type:varchar(20);not null;default:'USER'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
