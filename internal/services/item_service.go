package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/internal/models"
	"github.com/Gopher0727/Rally/internal/repositories"
	"github.com/Gopher0727/Rally/utils/snowflake"
)

type ItemService struct {
	items    *repositories.ItemRepository
	rsvps    *repositories.RsvpRepository
	comments *repositories.CommentRepository
	groups   *repositories.GroupRepository
	profiles *repositories.ProfileRepository
	ids      *snowflake.Generator
	member   membership
	events   emitter
	log      *zap.Logger
}

func NewItemService(
	items *repositories.ItemRepository,
	rsvps *repositories.RsvpRepository,
	comments *repositories.CommentRepository,
	groups *repositories.GroupRepository,
	profiles *repositories.ProfileRepository,
	ids *snowflake.Generator,
	pub EventPublisher,
	log *zap.Logger,
) *ItemService {
	return &ItemService{
		items:    items,
		rsvps:    rsvps,
		comments: comments,
		groups:   groups,
		profiles: profiles,
		ids:      ids,
		member:   membership{groups: groups},
		events:   emitter{pub: pub, log: log},
		log:      log,
	}
}

type CreateItemRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Status      string `json:"status"`
	ImageURL    string `json:"image_url"`
}

// Board 活动列表加上按 ID 索引的用户资料，前端无需再逐个查询
type Board struct {
	GroupID   int64                     `json:"group_id"`
	GroupName string                    `json:"group_name"`
	Items     []models.BucketListItem   `json:"items"`
	Creators  map[int64]*models.Profile `json:"creators"`
	Upvoters  map[int64]*models.Profile `json:"upvoters"`
}

func (s *ItemService) CreateBucketListItem(ctx context.Context, userID, groupID int64, req *CreateItemRequest) (*models.BucketListItem, error) {
	if err := s.member.require(ctx, groupID, userID); err != nil {
		return nil, err
	}

	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = string(models.StatusIdea)
	}
	fields := map[string]any{
		"title":       req.Title,
		"description": req.Description,
		"location":    req.Location,
		"date":        req.Date,
		"time":        req.Time,
		"status":      status,
		"image_url":   req.ImageURL,
	}
	fields, _ = stringFields(fields)
	if err := validateItemFields(fields); err != nil {
		return nil, err
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, writeErr("create item", err)
	}
	item := &models.BucketListItem{
		ID:          id,
		GroupID:     groupID,
		Title:       fields["title"].(string),
		Description: fields["description"].(string),
		Location:    fields["location"].(string),
		Date:        fields["date"].(string),
		Time:        fields["time"].(string),
		Status:      fields["status"].(models.ItemStatus),
		ImageURL:    fields["image_url"].(string),
		CreatedBy:   userID,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, writeErr("create item", err)
	}
	item.Upvotes = []int64{}

	s.events.emit(ctx, models.EventItemCreated, groupID, item.ID, userID, item)
	return item, nil
}

// GetBucketListItems 最新的在前，附带 RSVP 用户与评论数
func (s *ItemService) GetBucketListItems(ctx context.Context, userID, groupID int64) ([]models.BucketListItem, error) {
	if err := s.member.require(ctx, groupID, userID); err != nil {
		return nil, err
	}
	items, err := s.items.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, readErr("list items", err)
	}
	if err := s.decorate(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// decorate 两次批量查询补齐 upvotes 与 comment_count
func (s *ItemService) decorate(ctx context.Context, items []models.BucketListItem) error {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	upvotes, err := s.rsvps.ByItems(ctx, ids)
	if err != nil {
		return readErr("list rsvps", err)
	}
	counts, err := s.comments.CountByItems(ctx, ids)
	if err != nil {
		return readErr("count comments", err)
	}
	for i := range items {
		items[i].Status = items[i].Status.Normalize()
		items[i].Upvotes = upvotes[items[i].ID]
		if items[i].Upvotes == nil {
			items[i].Upvotes = []int64{}
		}
		items[i].CommentCount = counts[items[i].ID]
	}
	return nil
}

// GetBucketListBoard 活动加上创建者与 RSVP 用户的查找表，资料按去重后的 ID 一次取回
func (s *ItemService) GetBucketListBoard(ctx context.Context, userID, groupID int64) (*Board, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, readErr("get board", err)
	}
	items, err := s.GetBucketListItems(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, it := range items {
		ids = append(ids, it.CreatedBy)
		ids = append(ids, it.Upvotes...)
	}
	profiles, err := s.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, readErr("get board", err)
	}

	board := &Board{
		GroupID:   group.ID,
		GroupName: group.Name,
		Items:     items,
		Creators:  make(map[int64]*models.Profile),
		Upvoters:  make(map[int64]*models.Profile),
	}
	for _, it := range items {
		if p, ok := profiles[it.CreatedBy]; ok {
			board.Creators[it.CreatedBy] = p
		}
		for _, uid := range it.Upvotes {
			if p, ok := profiles[uid]; ok {
				board.Upvoters[uid] = p
			}
		}
	}
	return board, nil
}

// UpdateBucketListItem 白名单外的字段静默忽略；过滤后为空视为成功的空操作
func (s *ItemService) UpdateBucketListItem(ctx context.Context, userID, itemID int64, fields map[string]any) (*models.BucketListItem, error) {
	item, err := itemInGroup(ctx, s.items, s.member, itemID, userID)
	if err != nil {
		return nil, err
	}

	updates, err := stringFields(filterFields(fields, models.ItemUpdatableFields))
	if err != nil {
		return nil, err
	}
	if err := validateItemFields(updates); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return item, nil
	}

	if err := s.items.Update(ctx, itemID, updates); err != nil {
		return nil, writeErr("update item", err)
	}
	item, err = s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, readErr("update item", err)
	}
	item.Status = item.Status.Normalize()

	s.events.emit(ctx, models.EventItemUpdated, item.GroupID, item.ID, userID, updates)
	return item, nil
}

// DeleteBucketListItem 仅创建者可删除
func (s *ItemService) DeleteBucketListItem(ctx context.Context, userID, itemID int64) error {
	item, err := itemInGroup(ctx, s.items, s.member, itemID, userID)
	if err != nil {
		return err
	}
	if item.CreatedBy != userID {
		return ErrForbidden
	}
	if err := s.items.DeleteCascade(ctx, itemID); err != nil {
		return writeErr("delete item", err)
	}
	s.events.emit(ctx, models.EventItemDeleted, item.GroupID, item.ID, userID, nil)
	return nil
}

// Rsvp 重复调用是幂等的
func (s *ItemService) Rsvp(ctx context.Context, userID, itemID int64) error {
	item, err := itemInGroup(ctx, s.items, s.member, itemID, userID)
	if err != nil {
		return err
	}
	if err := s.rsvps.Add(ctx, itemID, userID); err != nil {
		return writeErr("rsvp", err)
	}
	s.events.emit(ctx, models.EventRsvpAdded, item.GroupID, itemID, userID, nil)
	return nil
}

func (s *ItemService) RemoveRsvp(ctx context.Context, userID, itemID int64) error {
	item, err := itemInGroup(ctx, s.items, s.member, itemID, userID)
	if err != nil {
		return err
	}
	if err := s.rsvps.Remove(ctx, itemID, userID); err != nil {
		return writeErr("remove rsvp", err)
	}
	s.events.emit(ctx, models.EventRsvpRemoved, item.GroupID, itemID, userID, nil)
	return nil
}
