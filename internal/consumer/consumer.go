package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/internal/models"
)

// Sink 消费到的事件交给 WebSocket Hub 扇出
type Sink interface {
	Publish(ctx context.Context, ev models.Event) error
}

type EventConsumer struct {
	sink Sink
	log  *zap.Logger
}

func NewEventConsumer(sink Sink, log *zap.Logger) *EventConsumer {
	return &EventConsumer{sink: sink, log: log}
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (consumer *EventConsumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (consumer *EventConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (consumer *EventConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			consumer.handle(session.Context(), message)
			// 事件只用于实时刷新，失败不重试，客户端下次加载会拿到最新数据
			session.MarkMessage(message, "")
		}
	}
}

func (consumer *EventConsumer) handle(ctx context.Context, message *sarama.ConsumerMessage) {
	var ev models.Event
	if err := json.Unmarshal(message.Value, &ev); err != nil {
		consumer.log.Warn("反序列化事件失败",
			zap.String("topic", message.Topic),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.Error(err),
		)
		return
	}
	if err := consumer.sink.Publish(ctx, ev); err != nil {
		consumer.log.Warn("事件扇出失败", zap.String("type", string(ev.Type)), zap.Int64("group_id", ev.GroupID), zap.Error(err))
	}
}

// StartConsumer 在后台循环消费，ctx 取消后退出；返回的 ConsumerGroup 由调用方关闭
func StartConsumer(ctx context.Context, brokers []string, groupID, topic string, consumer *EventConsumer, log *zap.Logger) (sarama.ConsumerGroup, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			if err := client.Consume(ctx, []string{topic}, consumer); err != nil {
				log.Warn("消费者错误", zap.Error(err))
				time.Sleep(time.Second)
			}
			// check if context was cancelled, signaling that the consumer should stop
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return client, nil
}
