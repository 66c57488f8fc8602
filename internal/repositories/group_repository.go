package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/Rally/internal/models"
)

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// CreateWithCreator 开启事务，创建群组并把创建者写入成员表
func (r *GroupRepository) CreateWithCreator(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		member := models.GroupMember{GroupID: group.ID, UserID: group.CreatedBy}
		return tx.Create(&member).Error
	})
}

func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	var g models.Group
	if err := r.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// GetByCode code 需已规范化为大写
func (r *GroupRepository) GetByCode(ctx context.Context, code string) (*models.Group, error) {
	var g models.Group
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GroupRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Group{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID int64) error {
	member := models.GroupMember{GroupID: groupID, UserID: userID}
	return r.db.WithContext(ctx).Create(&member).Error
}

func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListForUser 用户所在的全部群组，按创建时间倒序
func (r *GroupRepository) ListForUser(ctx context.Context, userID int64) ([]models.Group, error) {
	db := r.db.WithContext(ctx)
	memberOf := db.Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", userID)

	var groups []models.Group
	err := db.Where("id IN (?)", memberOf).Order("created_at DESC").Order("id DESC").Find(&groups).Error
	return groups, err
}

func (r *GroupRepository) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("user_id = ?", userID).Pluck("group_id", &ids).Error
	return ids, err
}

// MemberIDs 一次查询拿到多个群组的成员列表
func (r *GroupRepository) MemberIDs(ctx context.Context, groupIDs []int64) (map[int64][]int64, error) {
	result := make(map[int64][]int64, len(groupIDs))
	if len(groupIDs) == 0 {
		return result, nil
	}
	var rows []models.GroupMember
	err := r.db.WithContext(ctx).Where("group_id IN ?", groupIDs).
		Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, m := range rows {
		result[m.GroupID] = append(result[m.GroupID], m.UserID)
	}
	return result, nil
}

// Update fields 的键必须已经过白名单过滤
func (r *GroupRepository) Update(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).Updates(fields).Error
}

// DeleteCascade 单个事务内删除群组及其下所有数据
func (r *GroupRepository) DeleteCascade(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var itemIDs []int64
		if err := tx.Model(&models.BucketListItem{}).Where("group_id = ?", id).Pluck("id", &itemIDs).Error; err != nil {
			return err
		}
		if err := deleteItemChildren(tx, itemIDs); err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.BucketListItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Group{}).Error
	})
}

// deleteItemChildren 删除活动下的 RSVP、评论、日期提议及其投票
func deleteItemChildren(tx *gorm.DB, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	if err := tx.Where("item_id IN ?", itemIDs).Delete(&models.Upvote{}).Error; err != nil {
		return err
	}
	if err := tx.Where("item_id IN ?", itemIDs).Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	suggestions := tx.Model(&models.DateSuggestion{}).Select("id").Where("item_id IN ?", itemIDs)
	if err := tx.Where("suggestion_id IN (?)", suggestions).Delete(&models.DateVote{}).Error; err != nil {
		return err
	}
	return tx.Where("item_id IN ?", itemIDs).Delete(&models.DateSuggestion{}).Error
}
