package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/Rally/internal/models"
)

// RsvpRepository 对应 upvotes 表
type RsvpRepository struct {
	db *gorm.DB
}

func NewRsvpRepository(db *gorm.DB) *RsvpRepository {
	return &RsvpRepository{db: db}
}

// Add 重复 RSVP 不报错
func (r *RsvpRepository) Add(ctx context.Context, itemID, userID int64) error {
	row := models.Upvote{ItemID: itemID, UserID: userID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (r *RsvpRepository) Remove(ctx context.Context, itemID, userID int64) error {
	return r.db.WithContext(ctx).
		Where("item_id = ? AND user_id = ?", itemID, userID).
		Delete(&models.Upvote{}).Error
}

// ByItems 一次查询返回 item_id -> 用户列表
func (r *RsvpRepository) ByItems(ctx context.Context, itemIDs []int64) (map[int64][]int64, error) {
	result := make(map[int64][]int64, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}
	var rows []models.Upvote
	err := r.db.WithContext(ctx).Where("item_id IN ?", itemIDs).
		Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, u := range rows {
		result[u.ItemID] = append(result[u.ItemID], u.UserID)
	}
	return result, nil
}
