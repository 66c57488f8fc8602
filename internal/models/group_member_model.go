package models

import "time"

// GroupMember 群组成员关系，联合主键保证同一用户只出现一次
type GroupMember struct {
	GroupID   int64     `gorm:"primaryKey;autoIncrement:false" json:"group_id"`
	UserID    int64     `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
