package models

import "time"

// Account 认证身份，Profile.ID 与 Account.ID 一致
type Account struct {
	ID int64 `gorm:"primaryKey;autoIncrement:false" json:"id"`

	Email          string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash   string `gorm:"not null" json:"-"`
	EmailConfirmed bool   `gorm:"not null;default:false" json:"email_confirmed"`
	ConfirmToken   string `gorm:"index" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}
