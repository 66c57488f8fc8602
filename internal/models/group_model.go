package models

import "time"

// Group 群组，Code 为 6 位大写字母数字邀请码
type Group struct {
	ID int64 `gorm:"primaryKey;autoIncrement:false" json:"id"`

	Name      string `gorm:"not null" json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	CreatedBy int64  `gorm:"not null;index" json:"created_by"`
	Code      string `gorm:"uniqueIndex;size:6;not null" json:"code"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Group) TableName() string {
	return "groups"
}

// GroupUpdatableFields 允许客户端修改的列
var GroupUpdatableFields = []string{"name", "image_url"}
