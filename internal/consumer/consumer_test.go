package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/internal/models"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingSink) Publish(_ context.Context, ev models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string { return "test" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	ch chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "rally.events" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func TestConsumeClaim_ForwardsEventsAndMarksAll(t *testing.T) {
	sink := &recordingSink{}
	consumer := NewEventConsumer(sink, zap.NewNop())

	good, err := json.Marshal(models.Event{Type: models.EventItemUpdated, GroupID: 9, ItemID: 4})
	require.NoError(t, err)

	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 2)}
	claim.ch <- &sarama.ConsumerMessage{Offset: 1, Value: []byte("{broken")}
	claim.ch <- &sarama.ConsumerMessage{Offset: 2, Value: good}
	close(claim.ch)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, consumer.ConsumeClaim(session, claim))

	assert.Equal(t, []int64{1, 2}, session.marked, "malformed messages are skipped, not retried")
	require.Len(t, sink.events, 1)
	assert.Equal(t, int64(9), sink.events[0].GroupID)
	assert.Equal(t, models.EventItemUpdated, sink.events[0].Type)
}

func TestConsumeClaim_StopsOnSessionEnd(t *testing.T) {
	consumer := NewEventConsumer(&recordingSink{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage)}
	assert.NoError(t, consumer.ConsumeClaim(&fakeSession{ctx: ctx}, claim))
}
