package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type entry struct {
	ID    int
	Votes int
}

var errRemote = errors.New("remote failed")

func failing(context.Context) error { return errRemote }
func succeeding(context.Context) error { return nil }

func byID(id int) func(entry) bool {
	return func(e entry) bool { return e.ID == id }
}

// drawMutation 从当前集合随机生成一个可逆的变更
func drawMutation(t *rapid.T, items []entry) Mutation[entry] {
	kind := 0
	if len(items) > 0 {
		kind = rapid.IntRange(0, 2).Draw(t, "kind")
	}
	switch kind {
	case 1:
		i := rapid.IntRange(0, len(items)-1).Draw(t, "remove")
		return Mutation[entry]{
			Name:     "remove",
			Apply:    RemoveWhere(byID(items[i].ID)),
			Rollback: Reinsert(items, i, func(e entry) int { return e.ID }),
		}
	case 2:
		id := items[rapid.IntRange(0, len(items)-1).Draw(t, "bump")].ID
		return Mutation[entry]{
			Name:     "bump",
			Apply:    MapWhere(byID(id), func(e entry) entry { e.Votes++; return e }),
			Rollback: MapWhere(byID(id), func(e entry) entry { e.Votes--; return e }),
		}
	default:
		next := 1
		for _, e := range items {
			next = max(next, e.ID+1)
		}
		added := entry{ID: next}
		return Mutation[entry]{
			Name:     "add",
			Apply:    Prepend(added),
			Rollback: RemoveWhere(byID(next)),
		}
	}
}

func drawEntries(t *rapid.T) []entry {
	ids := rapid.SliceOfDistinct(rapid.IntRange(1, 500), rapid.ID[int]).Draw(t, "ids")
	items := make([]entry, len(ids))
	for i, id := range ids {
		items[i] = entry{ID: id, Votes: rapid.IntRange(0, 10).Draw(t, "votes")}
	}
	return items
}

func TestDo_RollbackRestoresState(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		before := drawEntries(t)
		c := NewCollection(before)
		m := drawMutation(t, before)

		err := c.Do(context.Background(), "k", m, failing)

		if !errors.Is(err, errRemote) {
			t.Fatalf("expected remote error, got %v", err)
		}
		after := c.Items()
		if len(after) != len(before) {
			t.Fatalf("%s: len %d, want %d", m.Name, len(after), len(before))
		}
		for i := range before {
			if after[i] != before[i] {
				t.Fatalf("%s: item %d = %+v, want %+v", m.Name, i, after[i], before[i])
			}
		}
	})
}

func TestDo_SuccessKeepsForwardState(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		before := drawEntries(t)
		c := NewCollection(before)
		m := drawMutation(t, before)
		want := m.Apply(before)

		if err := c.Do(context.Background(), "k", m, succeeding); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := c.Items()
		if len(got) != len(want) {
			t.Fatalf("%s: len %d, want %d", m.Name, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: item %d = %+v, want %+v", m.Name, i, got[i], want[i])
			}
		}
	})
}

func TestDo_TransformsDoNotTouchInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		before := drawEntries(t)
		snapshot := append([]entry(nil), before...)
		m := drawMutation(t, before)

		m.Rollback(m.Apply(before))

		for i := range snapshot {
			if before[i] != snapshot[i] {
				t.Fatalf("%s modified its input", m.Name)
			}
		}
	})
}

func TestDo_RejectsSameKeyWhilePending(t *testing.T) {
	c := NewCollection([]entry{{ID: 1}})
	bump := Mutation[entry]{
		Name:     "bump",
		Apply:    MapWhere(byID(1), func(e entry) entry { e.Votes++; return e }),
		Rollback: MapWhere(byID(1), func(e entry) entry { e.Votes--; return e }),
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Do(context.Background(), "rsvp:1", bump, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.True(t, c.Pending("rsvp:1"))
	err := c.Do(context.Background(), "rsvp:1", bump, succeeding)
	assert.ErrorIs(t, err, ErrPending)

	require.NoError(t, c.Do(context.Background(), "comment:1", bump, succeeding))

	close(release)
	wg.Wait()
	assert.False(t, c.Pending("rsvp:1"))
	assert.Equal(t, 2, c.Items()[0].Votes)
}

func TestDo_ConcurrentFailuresLeaveOtherChanges(t *testing.T) {
	c := NewCollection([]entry{{ID: 1}, {ID: 2}})
	inc := func(id int) Mutation[entry] {
		return Mutation[entry]{
			Apply:    MapWhere(byID(id), func(e entry) entry { e.Votes++; return e }),
			Rollback: MapWhere(byID(id), func(e entry) entry { e.Votes--; return e }),
		}
	}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- c.Do(context.Background(), "a", inc(1), func(context.Context) error {
			close(started)
			<-release
			return errRemote
		})
	}()
	<-started
	require.NoError(t, c.Do(context.Background(), "b", inc(2), succeeding))
	close(release)
	require.ErrorIs(t, <-done, errRemote)

	assert.Equal(t, []entry{{ID: 1, Votes: 0}, {ID: 2, Votes: 1}}, c.Items())
}

func TestReloadAndItemsCopy(t *testing.T) {
	c := NewCollection([]entry{{ID: 1}})
	items := c.Items()
	items[0].Votes = 99
	assert.Equal(t, 0, c.Items()[0].Votes)

	c.Reload([]entry{{ID: 5}, {ID: 6}})
	assert.Equal(t, []entry{{ID: 5}, {ID: 6}}, c.Items())
}

func TestInsertAtClamps(t *testing.T) {
	assert.Equal(t, []int{1, 2, 9}, InsertAt(10, 9)([]int{1, 2}))
	assert.Equal(t, []int{9, 1, 2}, InsertAt(-1, 9)([]int{1, 2}))
}

func TestReinsertFollowsNeighbours(t *testing.T) {
	id := func(e entry) int { return e.ID }
	snapshot := []entry{{ID: 1}, {ID: 2}, {ID: 3}}
	undo := Reinsert(snapshot, 1, id)

	// 删除期间前面插入了新条目
	assert.Equal(t, []entry{{ID: 9}, {ID: 1}, {ID: 2}, {ID: 3}}, undo([]entry{{ID: 9}, {ID: 1}, {ID: 3}}))
	// 后继已删除，退回到前驱之后
	assert.Equal(t, []entry{{ID: 9}, {ID: 1}, {ID: 2}}, undo([]entry{{ID: 9}, {ID: 1}}))
	// 两侧都不在了
	assert.Equal(t, []entry{{ID: 9}, {ID: 2}}, undo([]entry{{ID: 9}}))
}

func TestDoRollbackAfterConcurrentPrepend(t *testing.T) {
	c := NewCollection([]entry{{ID: 1}, {ID: 2}, {ID: 3}})
	snapshot := c.Items()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- c.Do(context.Background(), "remove-2", Mutation[entry]{
			Apply:    RemoveWhere(byID(2)),
			Rollback: Reinsert(snapshot, 1, func(e entry) int { return e.ID }),
		}, func(context.Context) error {
			close(started)
			<-release
			return errRemote
		})
	}()
	<-started

	require.NoError(t, c.Do(context.Background(), "add-4", Mutation[entry]{Apply: Prepend(entry{ID: 4})}, succeeding))
	close(release)
	require.ErrorIs(t, <-done, errRemote)
	assert.Equal(t, []entry{{ID: 4}, {ID: 1}, {ID: 2}, {ID: 3}}, c.Items())
}
