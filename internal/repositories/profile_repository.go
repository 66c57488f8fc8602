package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Gopher0727/Rally/internal/models"
)

const (
	profileCacheKeyPrefix = "rally:profile:" // Redis String，值是 profile JSON
	profileCacheTTL       = 1 * time.Hour
)

type ProfileRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewProfileRepository redis 可为 nil，此时不走缓存
func NewProfileRepository(db *gorm.DB, redis *redis.Client) *ProfileRepository {
	return &ProfileRepository{db: db, redis: redis}
}

func profileKey(id int64) string {
	return fmt.Sprintf("%s%d", profileCacheKeyPrefix, id)
}

func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return err
	}
	r.evict(ctx, p.ID)
	return nil
}

// GetByID 先查缓存，未命中再查库并回填
func (r *ProfileRepository) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	if r.redis != nil {
		if val, err := r.redis.Get(ctx, profileKey(id)).Bytes(); err == nil {
			var p models.Profile
			if json.Unmarshal(val, &p) == nil {
				return &p, nil
			}
		}
	}

	var p models.Profile
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(&p); err == nil {
			r.redis.Set(ctx, profileKey(id), data, profileCacheTTL)
		}
	}
	return &p, nil
}

func (r *ProfileRepository) ExistsByUserName(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Profile{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// UpdateAvatar 更新头像并清除缓存
func (r *ProfileRepository) UpdateAvatar(ctx context.Context, id int64, url string) error {
	res := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Update("avatar_url", url)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.evict(ctx, id)
	return nil
}

// GetByIDs 批量获取，ids 去重后一次 MGet，缺失部分一次 IN 查询并用 pipeline 回填
func (r *ProfileRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Profile, error) {
	ids = uniqueIDs(ids)
	result := make(map[int64]*models.Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	missing := ids
	if r.redis != nil {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = profileKey(id)
		}
		if vals, err := r.redis.MGet(ctx, keys...).Result(); err == nil {
			missing = missing[:0:0]
			for i, val := range vals {
				s, ok := val.(string)
				if ok {
					var p models.Profile
					if json.Unmarshal([]byte(s), &p) == nil {
						result[ids[i]] = &p
						continue
					}
				}
				missing = append(missing, ids[i])
			}
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	var profiles []models.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", missing).Find(&profiles).Error; err != nil {
		return result, err
	}

	var pipe redis.Pipeliner
	if r.redis != nil {
		pipe = r.redis.Pipeline()
	}
	for i := range profiles {
		p := &profiles[i]
		result[p.ID] = p
		if pipe != nil {
			if data, err := json.Marshal(p); err == nil {
				pipe.Set(ctx, profileKey(p.ID), data, profileCacheTTL)
			}
		}
	}
	if pipe != nil && len(profiles) > 0 {
		_, _ = pipe.Exec(ctx)
	}
	return result, nil
}

func (r *ProfileRepository) evict(ctx context.Context, id int64) {
	if r.redis != nil {
		r.redis.Del(ctx, profileKey(id))
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
