package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/internal/models"
	"github.com/Gopher0727/Rally/internal/utils"
)

// EventPublisher 把群组内的变更广播给在线客户端
type EventPublisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.Event) error { return nil }

// NopPublisher 不做任何事
var NopPublisher EventPublisher = nopPublisher{}

// AsyncPublisher 在独立协程池中发送事件，发送失败只记录日志
type AsyncPublisher struct {
	next EventPublisher
	pool *utils.WorkerPool
	log  *zap.Logger
}

func NewAsyncPublisher(next EventPublisher, pool *utils.WorkerPool, log *zap.Logger) *AsyncPublisher {
	return &AsyncPublisher{next: next, pool: pool, log: log}
}

func (p *AsyncPublisher) Publish(ctx context.Context, ev models.Event) error {
	// 请求结束后 ctx 会被取消，事件发送不应受其影响
	detached := context.WithoutCancel(ctx)
	ok := p.pool.Submit(func() {
		if err := p.next.Publish(detached, ev); err != nil {
			p.log.Warn("publish event failed",
				zap.String("type", string(ev.Type)),
				zap.Int64("group_id", ev.GroupID),
				zap.Error(err),
			)
		}
	})
	if !ok {
		p.log.Warn("event pool stopped, event dropped", zap.String("type", string(ev.Type)))
	}
	return nil
}

// emitter 供各 service 复用的事件构造
type emitter struct {
	pub EventPublisher
	log *zap.Logger
}

func (e emitter) emit(ctx context.Context, typ models.EventType, groupID, itemID, actorID int64, payload any) {
	if e.pub == nil {
		return
	}
	ev := models.Event{
		Type:    typ,
		GroupID: groupID,
		ItemID:  itemID,
		ActorID: actorID,
		At:      time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			e.log.Warn("marshal event payload", zap.String("type", string(typ)), zap.Error(err))
			return
		}
		ev.Payload = data
	}
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.log.Warn("publish event", zap.String("type", string(typ)), zap.Error(err))
	}
}
