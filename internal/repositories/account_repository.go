package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/Rally/internal/models"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateWithProfile 在同一事务中写入账号与公开资料
func (r *AccountRepository) CreateWithProfile(ctx context.Context, account *models.Account, profile *models.Profile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		return tx.Create(profile).Error
	})
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	var a models.Account
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *AccountRepository) GetByConfirmToken(ctx context.Context, token string) (*models.Account, error) {
	var a models.Account
	if err := r.db.WithContext(ctx).Where("confirm_token = ? AND confirm_token <> ''", token).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkConfirmed 标记邮箱已确认，并作废确认令牌
func (r *AccountRepository) MarkConfirmed(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).
		Updates(map[string]any{"email_confirmed": true, "confirm_token": ""}).Error
}
