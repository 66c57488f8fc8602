package models

// Profile 用户公开信息
type Profile struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserName  string `gorm:"column:username;uniqueIndex;not null" json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (Profile) TableName() string {
	return "profiles"
}
