package viewmodel

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/pkg/client"
	"github.com/Gopher0727/Rally/pkg/optimistic"
)

type GroupsAPI interface {
	GetGroups(ctx context.Context) ([]client.GroupSummary, error)
	GetGroup(ctx context.Context, groupID int64) (*client.GroupSummary, error)
	CreateGroup(ctx context.Context, name, imageURL string) (*client.Group, error)
	JoinGroupByCode(ctx context.Context, code string) (int64, error)
	UpdateGroup(ctx context.Context, groupID int64, fields map[string]any) (*client.Group, error)
	DeleteGroup(ctx context.Context, groupID int64) error
}

// Groups 当前用户所在的群组
type Groups struct {
	status
	api    GroupsAPI
	me     client.Profile
	groups *optimistic.Collection[client.GroupSummary]
}

func NewGroups(api GroupsAPI, me client.Profile, log *zap.Logger) *Groups {
	return &Groups{
		status: status{log: log},
		api:    api,
		me:     me,
		groups: optimistic.NewCollection[client.GroupSummary](nil),
	}
}

func (g *Groups) Items() []client.GroupSummary {
	return g.groups.Items()
}

func groupID(id int64) func(client.GroupSummary) bool {
	return func(s client.GroupSummary) bool { return s.ID == id }
}

func (g *Groups) Load(ctx context.Context) error {
	g.clear()
	list, err := g.api.GetGroups(ctx)
	if err != nil {
		return g.report("load groups", MsgLoadGroups, err)
	}
	g.groups.Reload(list)
	return nil
}

// Create 占位群组只含创建者本人
func (g *Groups) Create(ctx context.Context, name, imageURL string) (*client.Group, error) {
	g.clear()
	tmp := client.GroupSummary{
		Group:       client.Group{ID: placeholderID(), Name: name, ImageURL: imageURL, CreatedBy: g.me.ID},
		MemberCount: 1,
		Members:     []client.Profile{g.me},
	}
	var created *client.Group
	err := g.groups.Do(ctx, keyFor("group", tmp.ID), optimistic.Mutation[client.GroupSummary]{
		Name:     "create group",
		Apply:    optimistic.Prepend(tmp),
		Rollback: optimistic.RemoveWhere(groupID(tmp.ID)),
	}, func(ctx context.Context) error {
		var err error
		created, err = g.api.CreateGroup(ctx, name, imageURL)
		return err
	})
	if err != nil {
		return nil, g.report("create group", MsgCreateGroup, err)
	}
	g.groups.Update(optimistic.MapWhere(groupID(tmp.ID), func(s client.GroupSummary) client.GroupSummary {
		s.Group = *created
		return s
	}))
	return created, nil
}

// Join 需要服务端返回的群组信息，不做乐观更新
func (g *Groups) Join(ctx context.Context, code string) (int64, error) {
	g.clear()
	id, err := g.api.JoinGroupByCode(ctx, code)
	switch {
	case errors.Is(err, client.ErrAlreadyMember):
		return 0, g.report("join group", MsgAlreadyMember, err)
	case errors.Is(err, client.ErrNotFound):
		return 0, g.report("join group", MsgBadCode, err)
	case err != nil:
		return 0, g.report("join group", MsgJoinGroup, err)
	}

	summary, err := g.api.GetGroup(ctx, id)
	if err != nil {
		// 已加入成功，列表留待下次 Load
		g.log.Warn("fetch joined group", zap.Int64("group_id", id), zap.Error(err))
		return id, nil
	}
	g.groups.Update(func(all []client.GroupSummary) []client.GroupSummary {
		return optimistic.Prepend(*summary)(optimistic.RemoveWhere(groupID(id))(all))
	})
	return id, nil
}

func rename(id int64, name string) func([]client.GroupSummary) []client.GroupSummary {
	return optimistic.MapWhere(groupID(id), func(s client.GroupSummary) client.GroupSummary {
		s.Name = name
		return s
	})
}

func (g *Groups) Rename(ctx context.Context, id int64, name string) error {
	g.clear()
	items := g.groups.Items()
	i := indexOf(items, groupID(id))
	if i < 0 {
		return ErrUnknownID
	}
	old := items[i].Name
	err := g.groups.Do(ctx, keyFor("group", id), optimistic.Mutation[client.GroupSummary]{
		Name:     "rename group",
		Apply:    rename(id, name),
		Rollback: rename(id, old),
	}, func(ctx context.Context) error {
		_, err := g.api.UpdateGroup(ctx, id, map[string]any{"name": name})
		return err
	})
	return g.report("rename group", MsgRenameGroup, err)
}

func (g *Groups) Delete(ctx context.Context, id int64) error {
	g.clear()
	items := g.groups.Items()
	i := indexOf(items, groupID(id))
	if i < 0 {
		return ErrUnknownID
	}
	err := g.groups.Do(ctx, keyFor("group", id), optimistic.Mutation[client.GroupSummary]{
		Name:     "delete group",
		Apply:    optimistic.RemoveWhere(groupID(id)),
		Rollback: optimistic.Reinsert(items, i, func(s client.GroupSummary) int64 { return s.ID }),
	}, func(ctx context.Context) error {
		return g.api.DeleteGroup(ctx, id)
	})
	return g.report("delete group", MsgDeleteGroup, err)
}
