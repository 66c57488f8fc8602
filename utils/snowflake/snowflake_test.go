package snowflake

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator_NodeRange(t *testing.T) {
	_, err := NewGenerator(-1)
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, err = NewGenerator(MaxNode + 1)
	assert.ErrorIs(t, err, ErrInvalidNode)

	g, err := NewGenerator(MaxNode)
	require.NoError(t, err)
	id, err := g.NextID()
	require.NoError(t, err)
	assert.Equal(t, int64(MaxNode), Node(id))
}

func TestNextID_EncodesTime(t *testing.T) {
	g, err := NewGenerator(3)
	require.NoError(t, err)

	before := time.Now().Add(-time.Millisecond)
	id, err := g.NextID()
	require.NoError(t, err)

	assert.True(t, id > 0)
	assert.WithinDuration(t, before, Time(id), time.Second)
}

func TestNextID_SmallClockStepIsWaitedOut(t *testing.T) {
	g, err := NewGenerator(1)
	require.NoError(t, err)

	clock := int64(Epoch + 10_000)
	g.now = func() int64 { return clock }

	first, err := g.NextID()
	require.NoError(t, err)

	// 时钟回拨 2ms，随后恢复
	calls := 0
	g.now = func() int64 {
		calls++
		if calls == 1 {
			return clock - 2
		}
		return clock + 1
	}
	second, err := g.NextID()
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestNextID_LargeClockStepFails(t *testing.T) {
	g, err := NewGenerator(1)
	require.NoError(t, err)

	clock := int64(Epoch + 10_000)
	g.now = func() int64 { return clock }
	_, err = g.NextID()
	require.NoError(t, err)

	g.now = func() int64 { return clock - 1000 }
	_, err = g.NextID()
	assert.ErrorIs(t, err, ErrClockMovedBackwards)
}

func TestNextID_Concurrent(t *testing.T) {
	g, err := NewGenerator(7)
	require.NoError(t, err)

	const workers, perWorker = 8, 500
	ids := make(chan int64, workers*perWorker)

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for range perWorker {
				ids <- g.MustNextID()
			}
		})
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
}
