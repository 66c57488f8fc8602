package viewmodel

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/pkg/client"
	"github.com/Gopher0727/Rally/pkg/optimistic"
)

// ItemsAPI *client.Client 实现了该接口
type ItemsAPI interface {
	GetBucketListItems(ctx context.Context, groupID int64) ([]client.Item, error)
	CreateBucketListItem(ctx context.Context, groupID int64, item client.NewItem) (*client.Item, error)
	UpdateBucketListItem(ctx context.Context, itemID int64, fields map[string]any) (*client.Item, error)
	DeleteBucketListItem(ctx context.Context, itemID int64) error
	Rsvp(ctx context.Context, itemID int64) error
	RemoveRsvp(ctx context.Context, itemID int64) error
	AddComment(ctx context.Context, itemID int64, content string) (*client.Comment, error)
	ListDateSuggestions(ctx context.Context, itemID int64) ([]client.DateSuggestion, error)
	SuggestDate(ctx context.Context, itemID int64, date string) (*client.DateSuggestion, error)
	VoteForDate(ctx context.Context, suggestionID int64) (*client.VoteResult, error)
}

// BucketList 单个群组的活动列表
type BucketList struct {
	status
	api     ItemsAPI
	groupID int64
	userID  int64
	items   *optimistic.Collection[client.Item]
	dates   *optimistic.Collection[client.DateSuggestion]
}

func NewBucketList(api ItemsAPI, groupID, userID int64, log *zap.Logger) *BucketList {
	return &BucketList{
		status:  status{log: log.With(zap.Int64("group_id", groupID))},
		api:     api,
		groupID: groupID,
		userID:  userID,
		items:   optimistic.NewCollection[client.Item](nil),
		dates:   optimistic.NewCollection[client.DateSuggestion](nil),
	}
}

func (b *BucketList) Items() []client.Item {
	return b.items.Items()
}

// Dates 某个活动已加载的日期提议
func (b *BucketList) Dates(itemID int64) []client.DateSuggestion {
	var out []client.DateSuggestion
	for _, d := range b.dates.Items() {
		if d.ItemID == itemID {
			out = append(out, d)
		}
	}
	return out
}

// Load 整体重新拉取，是唯一的全量刷新路径
func (b *BucketList) Load(ctx context.Context) error {
	b.clear()
	items, err := b.api.GetBucketListItems(ctx, b.groupID)
	if err != nil {
		return b.report("load", MsgLoadItems, err)
	}
	b.items.Reload(items)
	return nil
}

func itemID(id int64) func(client.Item) bool {
	return func(it client.Item) bool { return it.ID == id }
}

func itemKey(it client.Item) int64 { return it.ID }

func (b *BucketList) find(id int64) (int, client.Item, bool) {
	items := b.items.Items()
	i := indexOf(items, itemID(id))
	if i < 0 {
		return -1, client.Item{}, false
	}
	return i, items[i], true
}

// AddItem 先插入占位项，成功后替换为服务端返回的活动
func (b *BucketList) AddItem(ctx context.Context, req client.NewItem) (*client.Item, error) {
	b.clear()
	tmp := client.Item{
		ID:          placeholderID(),
		GroupID:     b.groupID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Date:        req.Date,
		Time:        req.Time,
		Status:      req.Status,
		ImageURL:    req.ImageURL,
		CreatedBy:   b.userID,
	}
	if tmp.Status == "" {
		tmp.Status = client.StatusIdea
	}

	var created *client.Item
	err := b.items.Do(ctx, keyFor("item", tmp.ID), optimistic.Mutation[client.Item]{
		Name:     "add item",
		Apply:    optimistic.Prepend(tmp),
		Rollback: optimistic.RemoveWhere(itemID(tmp.ID)),
	}, func(ctx context.Context) error {
		var err error
		created, err = b.api.CreateBucketListItem(ctx, b.groupID, req)
		return err
	})
	if err != nil {
		return nil, b.report("add item", MsgCreateItem, err)
	}
	b.items.Update(optimistic.MapWhere(itemID(tmp.ID), func(client.Item) client.Item { return *created }))
	return created, nil
}

var editable = []string{"title", "description", "location", "date", "time", "status", "image_url"}

// applyFields 只处理可编辑字段中的字符串值，其余忽略
func applyFields(it client.Item, fields map[string]any) client.Item {
	for _, k := range editable {
		v, ok := fields[k].(string)
		if !ok {
			continue
		}
		switch k {
		case "title":
			it.Title = v
		case "description":
			it.Description = v
		case "location":
			it.Location = v
		case "date":
			it.Date = v
		case "time":
			it.Time = v
		case "status":
			it.Status = client.Status(v)
		case "image_url":
			it.ImageURL = v
		}
	}
	return it
}

// fieldsOf 取出 it 上与 fields 同名的旧值
func fieldsOf(it client.Item, fields map[string]any) map[string]any {
	all := map[string]any{
		"title":       it.Title,
		"description": it.Description,
		"location":    it.Location,
		"date":        it.Date,
		"time":        it.Time,
		"status":      string(it.Status),
		"image_url":   it.ImageURL,
	}
	out := make(map[string]any, len(fields))
	for k := range fields {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (b *BucketList) EditItem(ctx context.Context, id int64, fields map[string]any) error {
	b.clear()
	_, prev, ok := b.find(id)
	if !ok {
		return ErrUnknownID
	}
	old := fieldsOf(prev, fields)

	var updated *client.Item
	err := b.items.Do(ctx, keyFor("item", id), optimistic.Mutation[client.Item]{
		Name:     "edit item",
		Apply:    optimistic.MapWhere(itemID(id), func(it client.Item) client.Item { return applyFields(it, fields) }),
		Rollback: optimistic.MapWhere(itemID(id), func(it client.Item) client.Item { return applyFields(it, old) }),
	}, func(ctx context.Context) error {
		var err error
		updated, err = b.api.UpdateBucketListItem(ctx, id, fields)
		return err
	})
	if err != nil {
		return b.report("edit item", MsgUpdateItem, err)
	}
	// 派生字段以本地为准
	b.items.Update(optimistic.MapWhere(itemID(id), func(it client.Item) client.Item {
		next := *updated
		next.Upvotes, next.CommentCount = it.Upvotes, it.CommentCount
		return next
	}))
	return nil
}

func (b *BucketList) DeleteItem(ctx context.Context, id int64) error {
	b.clear()
	items := b.items.Items()
	i := indexOf(items, itemID(id))
	if i < 0 {
		return ErrUnknownID
	}
	err := b.items.Do(ctx, keyFor("item", id), optimistic.Mutation[client.Item]{
		Name:     "delete item",
		Apply:    optimistic.RemoveWhere(itemID(id)),
		Rollback: optimistic.Reinsert(items, i, itemKey),
	}, func(ctx context.Context) error {
		return b.api.DeleteBucketListItem(ctx, id)
	})
	return b.report("delete item", MsgDeleteItem, err)
}

func (b *BucketList) addUpvote(id int64) func([]client.Item) []client.Item {
	return optimistic.MapWhere(itemID(id), func(it client.Item) client.Item {
		it.Upvotes = withID(it.Upvotes, b.userID)
		return it
	})
}

func (b *BucketList) dropUpvote(id int64) func([]client.Item) []client.Item {
	return optimistic.MapWhere(itemID(id), func(it client.Item) client.Item {
		it.Upvotes = withoutID(it.Upvotes, b.userID)
		return it
	})
}

// setUpvotes 回滚时原样放回报名列表
func setUpvotes(id int64, ids []int64) func([]client.Item) []client.Item {
	return optimistic.MapWhere(itemID(id), func(it client.Item) client.Item {
		it.Upvotes = slices.Clone(ids)
		return it
	})
}

// Rsvp 已报名时不发请求；同一活动的切换在完成前会返回 ErrPending
func (b *BucketList) Rsvp(ctx context.Context, id int64) error {
	b.clear()
	_, it, ok := b.find(id)
	if !ok {
		return ErrUnknownID
	}
	if it.HasUpvote(b.userID) {
		return nil
	}
	err := b.items.Do(ctx, keyFor("rsvp", id), optimistic.Mutation[client.Item]{
		Name:     "rsvp",
		Apply:    b.addUpvote(id),
		Rollback: setUpvotes(id, it.Upvotes),
	}, func(ctx context.Context) error {
		return b.api.Rsvp(ctx, id)
	})
	return b.report("rsvp", MsgRsvp, err)
}

func (b *BucketList) RemoveRsvp(ctx context.Context, id int64) error {
	b.clear()
	_, it, ok := b.find(id)
	if !ok {
		return ErrUnknownID
	}
	if !it.HasUpvote(b.userID) {
		return nil
	}
	err := b.items.Do(ctx, keyFor("rsvp", id), optimistic.Mutation[client.Item]{
		Name:     "remove rsvp",
		Apply:    b.dropUpvote(id),
		Rollback: setUpvotes(id, it.Upvotes),
	}, func(ctx context.Context) error {
		return b.api.RemoveRsvp(ctx, id)
	})
	return b.report("remove rsvp", MsgRsvp, err)
}

func bumpComments(id, delta int64) func([]client.Item) []client.Item {
	return optimistic.MapWhere(itemID(id), func(it client.Item) client.Item {
		it.CommentCount += delta
		return it
	})
}

// AddComment 评论数先加一，失败时减回
func (b *BucketList) AddComment(ctx context.Context, id int64, content string) (*client.Comment, error) {
	b.clear()
	if _, _, ok := b.find(id); !ok {
		return nil, ErrUnknownID
	}
	var comment *client.Comment
	err := b.items.Do(ctx, keyFor("comment", id), optimistic.Mutation[client.Item]{
		Name:     "add comment",
		Apply:    bumpComments(id, 1),
		Rollback: bumpComments(id, -1),
	}, func(ctx context.Context) error {
		var err error
		comment, err = b.api.AddComment(ctx, id, content)
		return err
	})
	if err != nil {
		return nil, b.report("add comment", MsgAddComment, err)
	}
	return comment, nil
}

// LoadDates 替换某个活动的日期提议
func (b *BucketList) LoadDates(ctx context.Context, id int64) error {
	b.clear()
	list, err := b.api.ListDateSuggestions(ctx, id)
	if err != nil {
		return b.report("load dates", MsgSuggestDate, err)
	}
	b.dates.Update(func(all []client.DateSuggestion) []client.DateSuggestion {
		out := optimistic.RemoveWhere(func(d client.DateSuggestion) bool { return d.ItemID == id })(all)
		return append(out, list...)
	})
	return nil
}

func suggestionID(id int64) func(client.DateSuggestion) bool {
	return func(d client.DateSuggestion) bool { return d.ID == id }
}

func (b *BucketList) SuggestDate(ctx context.Context, id int64, date string) (*client.DateSuggestion, error) {
	b.clear()
	tmp := client.DateSuggestion{ID: placeholderID(), ItemID: id, Date: date, SuggestedBy: b.userID}

	var created *client.DateSuggestion
	err := b.dates.Do(ctx, keyFor("date", tmp.ID), optimistic.Mutation[client.DateSuggestion]{
		Name:     "suggest date",
		Apply:    optimistic.Prepend(tmp),
		Rollback: optimistic.RemoveWhere(suggestionID(tmp.ID)),
	}, func(ctx context.Context) error {
		var err error
		created, err = b.api.SuggestDate(ctx, id, date)
		return err
	})
	if err != nil {
		return nil, b.report("suggest date", MsgSuggestDate, err)
	}
	b.dates.Update(optimistic.MapWhere(suggestionID(tmp.ID), func(client.DateSuggestion) client.DateSuggestion { return *created }))
	return created, nil
}

func (b *BucketList) setVote(id int64, voted bool) func([]client.DateSuggestion) []client.DateSuggestion {
	return optimistic.MapWhere(suggestionID(id), func(d client.DateSuggestion) client.DateSuggestion {
		if voted {
			d.Votes = withID(d.Votes, b.userID)
		} else {
			d.Votes = withoutID(d.Votes, b.userID)
		}
		return d
	})
}

func setVotes(id int64, ids []int64) func([]client.DateSuggestion) []client.DateSuggestion {
	return optimistic.MapWhere(suggestionID(id), func(d client.DateSuggestion) client.DateSuggestion {
		d.Votes = slices.Clone(ids)
		return d
	})
}

// VoteForDate 先本地切换投票；成功后以服务端返回的结果为准
func (b *BucketList) VoteForDate(ctx context.Context, suggestion int64) error {
	b.clear()
	dates := b.dates.Items()
	i := indexOf(dates, suggestionID(suggestion))
	if i < 0 {
		return ErrUnknownID
	}
	prev := dates[i].Votes

	var res *client.VoteResult
	err := b.dates.Do(ctx, keyFor("vote", suggestion), optimistic.Mutation[client.DateSuggestion]{
		Name:     "vote",
		Apply:    b.setVote(suggestion, !slices.Contains(prev, b.userID)),
		Rollback: setVotes(suggestion, prev),
	}, func(ctx context.Context) error {
		var err error
		res, err = b.api.VoteForDate(ctx, suggestion)
		return err
	})
	if err != nil {
		return b.report("vote", MsgVoteDate, err)
	}
	b.dates.Update(b.setVote(suggestion, res.Voted))
	return nil
}
