package services

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/internal/models"
	"github.com/Gopher0727/Rally/internal/repositories"
	"github.com/Gopher0727/Rally/internal/utils"
	"github.com/Gopher0727/Rally/utils/snowflake"
)

const (
	maxCodeAttempts  = 5
	overviewPreviews = 2
)

type GroupService struct {
	groups   *repositories.GroupRepository
	items    *repositories.ItemRepository
	profiles *repositories.ProfileRepository
	ids      *snowflake.Generator
	member   membership
	events   emitter
	log      *zap.Logger
}

func NewGroupService(
	groups *repositories.GroupRepository,
	items *repositories.ItemRepository,
	profiles *repositories.ProfileRepository,
	ids *snowflake.Generator,
	pub EventPublisher,
	log *zap.Logger,
) *GroupService {
	return &GroupService{
		groups:   groups,
		items:    items,
		profiles: profiles,
		ids:      ids,
		member:   membership{groups: groups},
		events:   emitter{pub: pub, log: log},
		log:      log,
	}
}

type CreateGroupRequest struct {
	Name     string `json:"name" binding:"required"`
	ImageURL string `json:"image_url"`
}

type JoinGroupRequest struct {
	Code string `json:"code" binding:"required"`
}

// GroupSummary 群组及其成员
type GroupSummary struct {
	models.Group
	MemberCount int              `json:"member_count"`
	Members     []models.Profile `json:"members"`
}

// GroupOverview 首页卡片：群组、成员与最近的两个活动
type GroupOverview struct {
	GroupSummary
	Preview []models.BucketListItem `json:"preview"`
}

// CreateGroup 生成唯一邀请码，创建群组并把创建者加入成员
func (s *GroupService) CreateGroup(ctx context.Context, userID int64, req *CreateGroupRequest) (*models.Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("name", "must not be empty")
	}
	if len(name) > 100 {
		return nil, invalid("name", "too long")
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, writeErr("create group", err)
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := utils.GenerateGroupCode()
		if err != nil {
			return nil, writeErr("create group", err)
		}
		taken, err := s.groups.CodeExists(ctx, code)
		if err != nil {
			return nil, readErr("create group", err)
		}
		if taken {
			continue
		}

		group := &models.Group{
			ID:        id,
			Name:      name,
			ImageURL:  strings.TrimSpace(req.ImageURL),
			CreatedBy: userID,
			Code:      code,
		}
		if err := s.groups.CreateWithCreator(ctx, group); err != nil {
			// 并发下可能撞上唯一索引，换一个码重试
			if taken, cerr := s.groups.CodeExists(ctx, code); cerr == nil && taken {
				continue
			}
			return nil, writeErr("create group", err)
		}
		s.log.Info("group created", zap.Int64("group_id", group.ID), zap.Int64("user_id", userID))
		return group, nil
	}
	return nil, ErrCodeExhausted
}

// JoinGroupByCode 邀请码忽略大小写；不存在返回 ErrNotFound，已是成员返回 ErrAlreadyMember
func (s *GroupService) JoinGroupByCode(ctx context.Context, userID int64, code string) (*models.Group, error) {
	code = utils.NormalizeGroupCode(code)
	if code == "" {
		return nil, invalid("code", "must not be empty")
	}

	group, err := s.groups.GetByCode(ctx, code)
	if err != nil {
		return nil, readErr("join group", err)
	}

	isMember, err := s.groups.IsMember(ctx, group.ID, userID)
	if err != nil {
		return nil, readErr("join group", err)
	}
	if isMember {
		return nil, ErrAlreadyMember
	}

	if err := s.groups.AddMember(ctx, group.ID, userID); err != nil {
		if again, cerr := s.groups.IsMember(ctx, group.ID, userID); cerr == nil && again {
			return nil, ErrAlreadyMember
		}
		return nil, writeErr("join group", err)
	}

	s.events.emit(ctx, models.EventMemberJoined, group.ID, 0, userID, nil)
	return group, nil
}

// GetGroups 用户所在群组，成员资料一次批量获取
func (s *GroupService) GetGroups(ctx context.Context, userID int64) ([]GroupSummary, error) {
	groups, err := s.groups.ListForUser(ctx, userID)
	if err != nil {
		return nil, readErr("list groups", err)
	}
	return s.summarize(ctx, groups)
}

func (s *GroupService) GetGroup(ctx context.Context, userID, groupID int64) (*GroupSummary, error) {
	if err := s.member.require(ctx, groupID, userID); err != nil {
		return nil, err
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, readErr("get group", err)
	}
	out, err := s.summarize(ctx, []models.Group{*group})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *GroupService) summarize(ctx context.Context, groups []models.Group) ([]GroupSummary, error) {
	out := make([]GroupSummary, len(groups))
	if len(groups) == 0 {
		return out, nil
	}

	groupIDs := make([]int64, len(groups))
	for i, g := range groups {
		groupIDs[i] = g.ID
	}
	memberIDs, err := s.groups.MemberIDs(ctx, groupIDs)
	if err != nil {
		return nil, readErr("list members", err)
	}

	var all []int64
	for _, ids := range memberIDs {
		all = append(all, ids...)
	}
	profiles, err := s.profiles.GetByIDs(ctx, all)
	if err != nil {
		return nil, readErr("list members", err)
	}

	for i, g := range groups {
		ids := memberIDs[g.ID]
		members := make([]models.Profile, 0, len(ids))
		for _, id := range ids {
			if p, ok := profiles[id]; ok {
				members = append(members, *p)
			}
		}
		out[i] = GroupSummary{Group: g, MemberCount: len(ids), Members: members}
	}
	return out, nil
}

// GetGroupOverview 每个群组附带日期最近的两个活动，无日期的排在最后
func (s *GroupService) GetGroupOverview(ctx context.Context, userID int64) ([]GroupOverview, error) {
	summaries, err := s.GetGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	groupIDs := make([]int64, len(summaries))
	for i, g := range summaries {
		groupIDs[i] = g.ID
	}
	items, err := s.items.ListByGroups(ctx, groupIDs)
	if err != nil {
		return nil, readErr("group overview", err)
	}

	byGroup := make(map[int64][]models.BucketListItem, len(groupIDs))
	for _, it := range items {
		it.Status = it.Status.Normalize()
		byGroup[it.GroupID] = append(byGroup[it.GroupID], it)
	}

	out := make([]GroupOverview, len(summaries))
	for i, g := range summaries {
		preview := byGroup[g.ID]
		SortByDate(preview)
		if len(preview) > overviewPreviews {
			preview = preview[:overviewPreviews]
		}
		if preview == nil {
			preview = []models.BucketListItem{}
		}
		out[i] = GroupOverview{GroupSummary: g, Preview: preview}
	}
	return out, nil
}

// SortByDate 按日期升序稳定排序，无日期的排在最后
func SortByDate(items []models.BucketListItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Date, items[j].Date
		switch {
		case a == "" && b == "":
			return false
		case a == "":
			return false
		case b == "":
			return true
		}
		if a != b {
			return a < b
		}
		return items[i].Time < items[j].Time
	})
}

// UpdateGroup 只允许修改 name 与 image_url，其它字段静默忽略
func (s *GroupService) UpdateGroup(ctx context.Context, userID, groupID int64, fields map[string]any) (*models.Group, error) {
	if err := s.member.require(ctx, groupID, userID); err != nil {
		return nil, err
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, readErr("update group", err)
	}

	updates, err := stringFields(filterFields(fields, models.GroupUpdatableFields))
	if err != nil {
		return nil, err
	}
	if name, ok := updates["name"]; ok && name == "" {
		return nil, invalid("name", "must not be empty")
	}
	if len(updates) == 0 {
		return group, nil
	}

	if err := s.groups.Update(ctx, groupID, updates); err != nil {
		return nil, writeErr("update group", err)
	}
	group, err = s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, readErr("update group", err)
	}
	s.events.emit(ctx, models.EventGroupUpdated, groupID, 0, userID, group)
	return group, nil
}

// DeleteGroup 仅创建者可删除，连同所有活动、评论、RSVP 一并删除
func (s *GroupService) DeleteGroup(ctx context.Context, userID, groupID int64) error {
	if err := s.member.require(ctx, groupID, userID); err != nil {
		return err
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return readErr("delete group", err)
	}
	if group.CreatedBy != userID {
		return ErrForbidden
	}
	if err := s.groups.DeleteCascade(ctx, groupID); err != nil {
		return writeErr("delete group", err)
	}
	s.log.Info("group deleted", zap.Int64("group_id", groupID), zap.Int64("user_id", userID))
	s.events.emit(ctx, models.EventGroupDeleted, groupID, 0, userID, nil)
	return nil
}

// GroupIDsForUser 供 WebSocket 订阅使用
func (s *GroupService) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := s.groups.GroupIDsForUser(ctx, userID)
	if err != nil {
		return nil, readErr("list group ids", err)
	}
	return ids, nil
}

// IsMember 供 WebSocket 动态订阅校验
func (s *GroupService) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	ok, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return false, readErr("check membership", err)
	}
	return ok, nil
}
