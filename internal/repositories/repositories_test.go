package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Gopher0727/Rally/internal/models"
	"github.com/Gopher0727/Rally/internal/testutil"
	"github.com/Gopher0727/Rally/utils/snowflake"
)

type fixture struct {
	db       *gorm.DB
	ids      *snowflake.Generator
	groups   *GroupRepository
	items    *ItemRepository
	rsvps    *RsvpRepository
	comments *CommentRepository
	dates    *DateSuggestionRepository
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewDB(t)
	return &fixture{
		db:       db,
		ids:      testutil.NewIDs(t),
		groups:   NewGroupRepository(db),
		items:    NewItemRepository(db),
		rsvps:    NewRsvpRepository(db),
		comments: NewCommentRepository(db),
		dates:    NewDateSuggestionRepository(db),
	}
}

func (f *fixture) group(t *testing.T, creator int64, code string) *models.Group {
	g := &models.Group{ID: f.ids.MustNextID(), Name: "Trip", CreatedBy: creator, Code: code}
	require.NoError(t, f.groups.CreateWithCreator(context.Background(), g))
	return g
}

func (f *fixture) item(t *testing.T, groupID, creator int64) *models.BucketListItem {
	it := &models.BucketListItem{ID: f.ids.MustNextID(), GroupID: groupID, Title: "Hike", Status: models.StatusIdea, CreatedBy: creator}
	require.NoError(t, f.items.Create(context.Background(), it))
	return it
}

func count(t *testing.T, db *gorm.DB, model any, where string, args ...any) int64 {
	var n int64
	require.NoError(t, db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func TestGroupRepository_CreateWithCreator(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, 100, "AB12CD")

	assert.Equal(t, int64(1), count(t, f.db, &models.GroupMember{}, "group_id = ? AND user_id = ?", g.ID, 100))

	found, err := f.groups.GetByCode(context.Background(), "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, g.ID, found.ID)
}

func TestGroupRepository_DuplicateCodeRejected(t *testing.T) {
	f := newFixture(t)
	f.group(t, 100, "AAAAAA")

	dup := &models.Group{ID: f.ids.MustNextID(), Name: "Other", CreatedBy: 200, Code: "AAAAAA"}
	assert.Error(t, f.groups.CreateWithCreator(context.Background(), dup))
	assert.Equal(t, int64(0), count(t, f.db, &models.GroupMember{}, "user_id = ?", 200), "failed create must not leave a membership")
}

func TestGroupRepository_ListForUserAndMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g1 := f.group(t, 1, "AAAAA1")
	g2 := f.group(t, 2, "AAAAA2")
	f.group(t, 3, "AAAAA3")
	require.NoError(t, f.groups.AddMember(ctx, g2.ID, 1))

	groups, err := f.groups.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	members, err := f.groups.MemberIDs(ctx, []int64{g1.ID, g2.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, members[g1.ID])
	assert.ElementsMatch(t, []int64{1, 2}, members[g2.ID])

	ok, err := f.groups.IsMember(ctx, g1.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroupRepository_DeleteCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, 1, "DELETE")
	keep := f.group(t, 1, "KEEPME")
	it := f.item(t, g.ID, 1)
	kept := f.item(t, keep.ID, 1)

	require.NoError(t, f.rsvps.Add(ctx, it.ID, 1))
	require.NoError(t, f.rsvps.Add(ctx, kept.ID, 1))
	require.NoError(t, f.comments.Create(ctx, &models.Comment{ID: f.ids.MustNextID(), ItemID: it.ID, CreatedBy: 1, Content: "hi"}))
	s := &models.DateSuggestion{ID: f.ids.MustNextID(), ItemID: it.ID, Date: "2025-08-01", SuggestedBy: 1}
	require.NoError(t, f.dates.Create(ctx, s))
	_, err := f.dates.ToggleVote(ctx, s.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.groups.DeleteCascade(ctx, g.ID))

	assert.Equal(t, int64(0), count(t, f.db, &models.Group{}, "id = ?", g.ID))
	assert.Equal(t, int64(0), count(t, f.db, &models.GroupMember{}, "group_id = ?", g.ID))
	assert.Equal(t, int64(0), count(t, f.db, &models.BucketListItem{}, "group_id = ?", g.ID))
	assert.Equal(t, int64(0), count(t, f.db, &models.Upvote{}, "item_id = ?", it.ID))
	assert.Equal(t, int64(0), count(t, f.db, &models.Comment{}, "item_id = ?", it.ID))
	assert.Equal(t, int64(0), count(t, f.db, &models.DateSuggestion{}, "item_id = ?", it.ID))
	assert.Equal(t, int64(0), count(t, f.db, &models.DateVote{}, "suggestion_id = ?", s.ID))

	assert.Equal(t, int64(1), count(t, f.db, &models.BucketListItem{}, "id = ?", kept.ID))
	assert.Equal(t, int64(1), count(t, f.db, &models.Upvote{}, "item_id = ?", kept.ID))
}

func TestItemRepository_UpdateAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, 1, "ORDER1")
	first := f.item(t, g.ID, 1)
	second := f.item(t, g.ID, 1)

	items, err := f.items.ListByGroup(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)

	require.NoError(t, f.items.Update(ctx, first.ID, map[string]any{"title": "Swim", "status": models.StatusDone}))
	got, err := f.items.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Swim", got.Title)
	assert.Equal(t, models.StatusDone, got.Status)

	require.NoError(t, f.items.Update(ctx, first.ID, nil))
}

func TestRsvpRepository_AddIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, 1, "RSVP01")
	it := f.item(t, g.ID, 1)

	require.NoError(t, f.rsvps.Add(ctx, it.ID, 5))
	require.NoError(t, f.rsvps.Add(ctx, it.ID, 5))
	require.NoError(t, f.rsvps.Add(ctx, it.ID, 6))

	byItem, err := f.rsvps.ByItems(ctx, []int64{it.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{5, 6}, byItem[it.ID])

	require.NoError(t, f.rsvps.Remove(ctx, it.ID, 5))
	require.NoError(t, f.rsvps.Remove(ctx, it.ID, 6))
	assert.Equal(t, int64(0), count(t, f.db, &models.Upvote{}, "item_id = ?", it.ID))
}

func TestCommentRepository_CountByItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, 1, "CMNT01")
	a := f.item(t, g.ID, 1)
	b := f.item(t, g.ID, 1)
	c := f.item(t, g.ID, 1)

	for range 3 {
		require.NoError(t, f.comments.Create(ctx, &models.Comment{ID: f.ids.MustNextID(), ItemID: a.ID, CreatedBy: 1, Content: "x"}))
	}
	require.NoError(t, f.comments.Create(ctx, &models.Comment{ID: f.ids.MustNextID(), ItemID: b.ID, CreatedBy: 1, Content: "y"}))

	counts, err := f.comments.CountByItems(ctx, []int64{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[a.ID])
	assert.Equal(t, int64(1), counts[b.ID])
	assert.Equal(t, int64(0), counts[c.ID])

	list, err := f.comments.ListByItem(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].ID < list[2].ID)
}

func TestDateSuggestionRepository_ToggleVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, 1, "DATE01")
	it := f.item(t, g.ID, 1)
	s := &models.DateSuggestion{ID: f.ids.MustNextID(), ItemID: it.ID, Date: "2025-09-09", SuggestedBy: 1}
	require.NoError(t, f.dates.Create(ctx, s))

	voted, err := f.dates.ToggleVote(ctx, s.ID, 2)
	require.NoError(t, err)
	assert.True(t, voted)

	list, err := f.dates.ListByItem(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []int64{2}, list[0].Votes)

	voted, err = f.dates.ToggleVote(ctx, s.ID, 2)
	require.NoError(t, err)
	assert.False(t, voted)

	list, err = f.dates.ListByItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Empty(t, list[0].Votes)
}

func TestProfileRepository_GetByIDsUsesCache(t *testing.T) {
	db := testutil.NewDB(t)
	rdb, mr := testutil.NewRedis(t)
	repo := NewProfileRepository(db, rdb)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Profile{ID: 1, UserName: "alice"}))
	require.NoError(t, repo.Create(ctx, &models.Profile{ID: 2, UserName: "bob"}))

	got, err := repo.GetByIDs(ctx, []int64{1, 2, 2, 3})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "bob", got[2].UserName)
	assert.True(t, mr.Exists(profileKey(1)))

	// 删除数据库行后仍能从缓存读到
	require.NoError(t, db.Where("id = ?", 1).Delete(&models.Profile{}).Error)
	cached, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", cached.UserName)

	require.NoError(t, repo.UpdateAvatar(ctx, 2, "http://img/b.png"))
	assert.False(t, mr.Exists(profileKey(2)))
}

func TestProfileRepository_WithoutRedis(t *testing.T) {
	repo := NewProfileRepository(testutil.NewDB(t), nil)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.Profile{ID: 9, UserName: "nine"}))

	got, err := repo.GetByIDs(ctx, []int64{9})
	require.NoError(t, err)
	assert.Equal(t, "nine", got[9].UserName)

	_, err = repo.GetByID(ctx, 10)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	exists, err := repo.ExistsByUserName(ctx, "nine")
	require.NoError(t, err)
	assert.True(t, exists)
}
