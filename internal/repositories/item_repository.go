package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/Rally/internal/models"
)

type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Create(ctx context.Context, item *models.BucketListItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*models.BucketListItem, error) {
	var item models.BucketListItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByGroup 最新创建的在前
func (r *ItemRepository) ListByGroup(ctx context.Context, groupID int64) ([]models.BucketListItem, error) {
	var items []models.BucketListItem
	err := r.db.WithContext(ctx).Where("group_id = ?", groupID).
		Order("created_at DESC").Order("id DESC").Find(&items).Error
	return items, err
}

// ListByGroups 多个群组的活动一次取回
func (r *ItemRepository) ListByGroups(ctx context.Context, groupIDs []int64) ([]models.BucketListItem, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var items []models.BucketListItem
	err := r.db.WithContext(ctx).Where("group_id IN ?", groupIDs).
		Order("created_at DESC").Order("id DESC").Find(&items).Error
	return items, err
}

// Update fields 的键必须已经过白名单过滤
func (r *ItemRepository) Update(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.BucketListItem{}).Where("id = ?", id).Updates(fields).Error
}

// DeleteCascade 单个事务内删除活动及其 RSVP、评论、日期提议
func (r *ItemRepository) DeleteCascade(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteItemChildren(tx, []int64{id}); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.BucketListItem{}).Error
	})
}
