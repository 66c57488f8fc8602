package models

import "time"

type ItemStatus string

const (
	StatusIdea     ItemStatus = "idea"
	StatusPlanning ItemStatus = "planning"
	StatusDone     ItemStatus = "done"
)

// Valid 是否为三种合法状态之一
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusIdea, StatusPlanning, StatusDone:
		return true
	}
	return false
}

// Normalize 未知或缺失的状态按 idea 处理
func (s ItemStatus) Normalize() ItemStatus {
	if s.Valid() {
		return s
	}
	return StatusIdea
}

// BucketListItem 群组内的待办活动
type BucketListItem struct {
	ID      int64 `gorm:"primaryKey;autoIncrement:false" json:"id"`
	GroupID int64 `gorm:"not null;index" json:"group_id"`

	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Date        string     `gorm:"size:10" json:"date,omitempty"` // YYYY-MM-DD
	Time        string     `gorm:"size:5" json:"time,omitempty"`  // HH:MM
	Status      ItemStatus `gorm:"size:16;not null;default:idea" json:"status"`
	ImageURL    string     `json:"image_url,omitempty"`
	CreatedBy   int64      `gorm:"not null" json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 读取时派生
	Upvotes      []int64 `gorm:"-" json:"upvotes"`
	CommentCount int64   `gorm:"-" json:"comment_count"`
}

func (BucketListItem) TableName() string {
	return "bucket_list_items"
}

// ItemUpdatableFields 允许客户端修改的列
var ItemUpdatableFields = []string{"title", "description", "location", "date", "time", "status", "image_url"}
