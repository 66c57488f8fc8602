package models

import "time"

type Comment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ItemID    int64     `gorm:"not null;index" json:"item_id"`
	CreatedBy int64     `gorm:"not null" json:"created_by"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	UserName string `gorm:"-" json:"username"`
}

func (Comment) TableName() string {
	return "comments"
}
