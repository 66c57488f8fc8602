package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/Rally/internal/models"
)

type DateSuggestionRepository struct {
	db *gorm.DB
}

func NewDateSuggestionRepository(db *gorm.DB) *DateSuggestionRepository {
	return &DateSuggestionRepository{db: db}
}

func (r *DateSuggestionRepository) Create(ctx context.Context, s *models.DateSuggestion) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// GetByID 附带投票用户
func (r *DateSuggestionRepository) GetByID(ctx context.Context, id int64) (*models.DateSuggestion, error) {
	db := r.db.WithContext(ctx)
	var s models.DateSuggestion
	if err := db.First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	one := []models.DateSuggestion{s}
	if err := attachVotes(db, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// ListByItem 按提议时间升序，并附带投票用户
func (r *DateSuggestionRepository) ListByItem(ctx context.Context, itemID int64) ([]models.DateSuggestion, error) {
	db := r.db.WithContext(ctx)

	var suggestions []models.DateSuggestion
	if err := db.Where("item_id = ?", itemID).Order("created_at ASC").Order("id ASC").Find(&suggestions).Error; err != nil {
		return nil, err
	}
	if len(suggestions) == 0 {
		return suggestions, nil
	}
	if err := attachVotes(db, suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

// attachVotes 一次 IN 查询填充 Votes，没有投票时为空切片而不是 nil
func attachVotes(db *gorm.DB, suggestions []models.DateSuggestion) error {
	ids := make([]int64, len(suggestions))
	for i, s := range suggestions {
		ids[i] = s.ID
	}
	var votes []models.DateVote
	if err := db.Where("suggestion_id IN ?", ids).Order("created_at ASC").Find(&votes).Error; err != nil {
		return err
	}
	byID := make(map[int64][]int64, len(ids))
	for _, v := range votes {
		byID[v.SuggestionID] = append(byID[v.SuggestionID], v.UserID)
	}
	for i := range suggestions {
		suggestions[i].Votes = byID[suggestions[i].ID]
		if suggestions[i].Votes == nil {
			suggestions[i].Votes = []int64{}
		}
	}
	return nil
}

func (r *DateSuggestionRepository) UpdateDate(ctx context.Context, id int64, date string) error {
	return r.db.WithContext(ctx).Model(&models.DateSuggestion{}).Where("id = ?", id).Update("date", date).Error
}

func (r *DateSuggestionRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("suggestion_id = ?", id).Delete(&models.DateVote{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.DateSuggestion{}).Error
	})
}

// ToggleVote 已投则撤销，未投则投票；返回操作后是否处于已投状态
func (r *DateSuggestionRepository) ToggleVote(ctx context.Context, suggestionID, userID int64) (bool, error) {
	voted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("suggestion_id = ? AND user_id = ?", suggestionID, userID).Delete(&models.DateVote{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		voted = true
		return tx.Create(&models.DateVote{SuggestionID: suggestionID, UserID: userID}).Error
	})
	return voted, err
}
