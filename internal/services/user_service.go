package services

import (
	"context"

	"github.com/Gopher0727/Rally/internal/models"
	"github.com/Gopher0727/Rally/internal/repositories"
)

const maxBatchUsers = 200

type UserService struct {
	profiles *repositories.ProfileRepository
}

func NewUserService(profiles *repositories.ProfileRepository) *UserService {
	return &UserService{profiles: profiles}
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*models.Profile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, readErr("get user", err)
	}
	return p, nil
}

// GetUsersByIDs 按请求顺序返回去重后的资料，不存在的 ID 被跳过
func (s *UserService) GetUsersByIDs(ctx context.Context, ids []int64) ([]models.Profile, error) {
	if len(ids) > maxBatchUsers {
		return nil, invalid("ids", "too many ids")
	}
	byID, err := s.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, readErr("get users", err)
	}

	out := make([]models.Profile, 0, len(byID))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}
