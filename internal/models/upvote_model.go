package models

import "time"

// Upvote 即 RSVP，(item_id, user_id) 唯一
type Upvote struct {
	ItemID    int64     `gorm:"primaryKey;autoIncrement:false" json:"item_id"`
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Upvote) TableName() string {
	return "upvotes"
}
