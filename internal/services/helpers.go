package services

import (
	"context"
	"strings"

	"github.com/Gopher0727/Rally/internal/models"
	"github.com/Gopher0727/Rally/internal/repositories"
	"github.com/Gopher0727/Rally/internal/utils"
)

// filterFields 只保留白名单内的键，其余静默丢弃
func filterFields(fields map[string]any, allowed []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, k := range allowed {
		if v, ok := fields[k]; ok {
			out[k] = v
		}
	}
	return out
}

// stringFields 校验过滤后的值都是字符串，并去掉首尾空白
func stringFields(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			return nil, invalid(k, "must be a string")
		}
		out[k] = strings.TrimSpace(s)
	}
	return out, nil
}

// validateItemFields 对活动字段逐一校验，status 会转为 ItemStatus
func validateItemFields(fields map[string]any) error {
	for k, v := range fields {
		s := v.(string)
		switch k {
		case "title":
			if s == "" {
				return invalid("title", "must not be empty")
			}
			if len(s) > 200 {
				return invalid("title", "too long")
			}
		case "status":
			st := models.ItemStatus(s)
			if !st.Valid() {
				return invalid("status", "must be idea, planning or done")
			}
			fields[k] = st
		case "date":
			if !utils.ValidDate(s) {
				return invalid("date", "must be YYYY-MM-DD")
			}
		case "time":
			if !utils.ValidClock(s) {
				return invalid("time", "must be HH:MM")
			}
		}
	}
	return nil
}

// membership 群组成员校验；非成员与群组不存在一样返回 ErrNotFound
type membership struct {
	groups *repositories.GroupRepository
}

func (m membership) require(ctx context.Context, groupID, userID int64) error {
	ok, err := m.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return readErr("check membership", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// itemInGroup 取活动并校验调用者是其群组成员
func itemInGroup(ctx context.Context, items *repositories.ItemRepository, m membership, itemID, userID int64) (*models.BucketListItem, error) {
	item, err := items.GetByID(ctx, itemID)
	if err != nil {
		return nil, readErr("get item", err)
	}
	if err := m.require(ctx, item.GroupID, userID); err != nil {
		return nil, err
	}
	item.Status = item.Status.Normalize()
	return item, nil
}
