package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/internal/models"
	"github.com/Gopher0727/Rally/internal/repositories"
	"github.com/Gopher0727/Rally/internal/utils"
	"github.com/Gopher0727/Rally/utils/snowflake"
)

type DateService struct {
	dates  *repositories.DateSuggestionRepository
	items  *repositories.ItemRepository
	ids    *snowflake.Generator
	member membership
	events emitter
	log    *zap.Logger
}

func NewDateService(
	dates *repositories.DateSuggestionRepository,
	items *repositories.ItemRepository,
	groups *repositories.GroupRepository,
	ids *snowflake.Generator,
	pub EventPublisher,
	log *zap.Logger,
) *DateService {
	return &DateService{
		dates:  dates,
		items:  items,
		ids:    ids,
		member: membership{groups: groups},
		events: emitter{pub: pub, log: log},
		log:    log,
	}
}

type DateRequest struct {
	Date string `json:"date" binding:"required"`
}

// VoteResult 切换投票后的状态
type VoteResult struct {
	SuggestionID int64 `json:"suggestion_id"`
	Voted        bool  `json:"voted"`
}

func parseDate(raw string) (string, error) {
	date := strings.TrimSpace(raw)
	if date == "" || !utils.ValidDate(date) {
		return "", invalid("date", "must be YYYY-MM-DD")
	}
	return date, nil
}

func (s *DateService) ListDateSuggestions(ctx context.Context, userID, itemID int64) ([]models.DateSuggestion, error) {
	if _, err := itemInGroup(ctx, s.items, s.member, itemID, userID); err != nil {
		return nil, err
	}
	list, err := s.dates.ListByItem(ctx, itemID)
	if err != nil {
		return nil, readErr("list date suggestions", err)
	}
	return list, nil
}

// SuggestDate 每次提议都是独立的一行，不会覆盖他人的提议
func (s *DateService) SuggestDate(ctx context.Context, userID, itemID int64, req *DateRequest) (*models.DateSuggestion, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	item, err := itemInGroup(ctx, s.items, s.member, itemID, userID)
	if err != nil {
		return nil, err
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, writeErr("suggest date", err)
	}
	suggestion := &models.DateSuggestion{
		ID:          id,
		ItemID:      itemID,
		Date:        date,
		SuggestedBy: userID,
		Votes:       []int64{},
	}
	if err := s.dates.Create(ctx, suggestion); err != nil {
		return nil, writeErr("suggest date", err)
	}
	s.events.emit(ctx, models.EventDateSuggested, item.GroupID, itemID, userID, suggestion)
	return suggestion, nil
}

// suggestionInGroup 取提议及其活动，并校验成员身份
func (s *DateService) suggestionInGroup(ctx context.Context, userID, suggestionID int64) (*models.DateSuggestion, *models.BucketListItem, error) {
	suggestion, err := s.dates.GetByID(ctx, suggestionID)
	if err != nil {
		return nil, nil, readErr("get date suggestion", err)
	}
	item, err := itemInGroup(ctx, s.items, s.member, suggestion.ItemID, userID)
	if err != nil {
		return nil, nil, err
	}
	return suggestion, item, nil
}

func (s *DateService) VoteForDate(ctx context.Context, userID, suggestionID int64) (*VoteResult, error) {
	suggestion, item, err := s.suggestionInGroup(ctx, userID, suggestionID)
	if err != nil {
		return nil, err
	}
	voted, err := s.dates.ToggleVote(ctx, suggestion.ID, userID)
	if err != nil {
		return nil, writeErr("vote for date", err)
	}
	res := &VoteResult{SuggestionID: suggestion.ID, Voted: voted}
	s.events.emit(ctx, models.EventDateUpdated, item.GroupID, item.ID, userID, res)
	return res, nil
}

// EditDateSuggestion 仅提议者可修改
func (s *DateService) EditDateSuggestion(ctx context.Context, userID, suggestionID int64, req *DateRequest) (*models.DateSuggestion, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	suggestion, item, err := s.suggestionInGroup(ctx, userID, suggestionID)
	if err != nil {
		return nil, err
	}
	if suggestion.SuggestedBy != userID {
		return nil, ErrForbidden
	}
	if err := s.dates.UpdateDate(ctx, suggestionID, date); err != nil {
		return nil, writeErr("edit date suggestion", err)
	}
	suggestion.Date = date
	s.events.emit(ctx, models.EventDateUpdated, item.GroupID, item.ID, userID, suggestion)
	return suggestion, nil
}

func (s *DateService) DeleteDateSuggestion(ctx context.Context, userID, suggestionID int64) error {
	suggestion, item, err := s.suggestionInGroup(ctx, userID, suggestionID)
	if err != nil {
		return err
	}
	if suggestion.SuggestedBy != userID {
		return ErrForbidden
	}
	if err := s.dates.Delete(ctx, suggestionID); err != nil {
		return writeErr("delete date suggestion", err)
	}
	s.events.emit(ctx, models.EventDateUpdated, item.GroupID, item.ID, userID, map[string]int64{"deleted": suggestionID})
	return nil
}
