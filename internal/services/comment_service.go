package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/internal/models"
	"github.com/Gopher0727/Rally/internal/repositories"
	"github.com/Gopher0727/Rally/utils/snowflake"
)

const (
	maxCommentRunes = 2000
	unknownUserName = "Unknown"
)

type CommentService struct {
	comments *repositories.CommentRepository
	items    *repositories.ItemRepository
	profiles *repositories.ProfileRepository
	ids      *snowflake.Generator
	member   membership
	events   emitter
	log      *zap.Logger
}

func NewCommentService(
	comments *repositories.CommentRepository,
	items *repositories.ItemRepository,
	groups *repositories.GroupRepository,
	profiles *repositories.ProfileRepository,
	ids *snowflake.Generator,
	pub EventPublisher,
	log *zap.Logger,
) *CommentService {
	return &CommentService{
		comments: comments,
		items:    items,
		profiles: profiles,
		ids:      ids,
		member:   membership{groups: groups},
		events:   emitter{pub: pub, log: log},
		log:      log,
	}
}

type AddCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// GetComments 按时间升序，作者资料缺失时显示 Unknown
func (s *CommentService) GetComments(ctx context.Context, userID, itemID int64) ([]models.Comment, error) {
	if _, err := itemInGroup(ctx, s.items, s.member, itemID, userID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByItem(ctx, itemID)
	if err != nil {
		return nil, readErr("list comments", err)
	}
	if err := s.attachNames(ctx, comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *CommentService) attachNames(ctx context.Context, comments []models.Comment) error {
	ids := make([]int64, len(comments))
	for i, c := range comments {
		ids[i] = c.CreatedBy
	}
	profiles, err := s.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return readErr("list comment authors", err)
	}
	for i := range comments {
		if p, ok := profiles[comments[i].CreatedBy]; ok {
			comments[i].UserName = p.UserName
		} else {
			comments[i].UserName = unknownUserName
		}
	}
	return nil
}

func (s *CommentService) AddComment(ctx context.Context, userID, itemID int64, req *AddCommentRequest) (*models.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, invalid("content", "must not be empty")
	}
	if utf8.RuneCountInString(content) > maxCommentRunes {
		return nil, invalid("content", "too long")
	}

	item, err := itemInGroup(ctx, s.items, s.member, itemID, userID)
	if err != nil {
		return nil, err
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, writeErr("add comment", err)
	}
	comment := &models.Comment{
		ID:        id,
		ItemID:    itemID,
		CreatedBy: userID,
		Content:   content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, writeErr("add comment", err)
	}
	comment.UserName = s.nameOf(ctx, userID)

	s.events.emit(ctx, models.EventCommentAdded, item.GroupID, itemID, userID, comment)
	return comment, nil
}

func (s *CommentService) nameOf(ctx context.Context, userID int64) string {
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return unknownUserName
	}
	return p.UserName
}

// DeleteComment 评论作者或活动创建者可删除
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID int64) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return readErr("get comment", err)
	}
	item, err := itemInGroup(ctx, s.items, s.member, comment.ItemID, userID)
	if err != nil {
		return err
	}
	if comment.CreatedBy != userID && item.CreatedBy != userID {
		return ErrForbidden
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		return writeErr("delete comment", err)
	}
	s.events.emit(ctx, models.EventCommentDeleted, item.GroupID, item.ID, userID, map[string]int64{"comment_id": commentID})
	return nil
}

func (s *CommentService) GetCommentCount(ctx context.Context, userID, itemID int64) (int64, error) {
	if _, err := itemInGroup(ctx, s.items, s.member, itemID, userID); err != nil {
		return 0, err
	}
	n, err := s.comments.CountByItem(ctx, itemID)
	if err != nil {
		return 0, readErr("count comments", err)
	}
	return n, nil
}
