package models

import "time"

// DateSuggestion 成员为某个活动提议的日期
type DateSuggestion struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ItemID      int64     `gorm:"not null;index" json:"item_id"`
	Date        string    `gorm:"size:10;not null" json:"date"`
	SuggestedBy int64     `gorm:"not null" json:"suggested_by"`
	CreatedAt   time.Time `json:"created_at"`

	Votes []int64 `gorm:"-" json:"votes"`
}

func (DateSuggestion) TableName() string {
	return "date_suggestions"
}

type DateVote struct {
	SuggestionID int64     `gorm:"primaryKey;autoIncrement:false" json:"suggestion_id"`
	UserID       int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (DateVote) TableName() string {
	return "date_votes"
}
