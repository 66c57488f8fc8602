package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/Rally/internal/models"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, c *models.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CommentRepository) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	var c models.Comment
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByItem 按创建时间升序
func (r *CommentRepository) ListByItem(ctx context.Context, itemID int64) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).Where("item_id = ?", itemID).
		Order("created_at ASC").Order("id ASC").Find(&comments).Error
	return comments, err
}

func (r *CommentRepository) CountByItem(ctx context.Context, itemID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("item_id = ?", itemID).Count(&count).Error
	return count, err
}

// CountByItems GROUP BY 一次拿到多个活动的评论数
func (r *CommentRepository) CountByItems(ctx context.Context, itemIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}
	var rows []struct {
		ItemID int64
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("item_id, COUNT(*) AS total").
		Where("item_id IN ?", itemIDs).
		Group("item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ItemID] = row.Total
	}
	return result, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Comment{}).Error
}
