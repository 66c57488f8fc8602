package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/internal/models"
)

type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

func NewKafkaProducer(brokers []string, topic string, log *zap.Logger) (*KafkaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("启动 Sarama 生产者失败: %w", err)
	}
	return NewKafkaProducerWith(producer, topic, log), nil
}

// NewKafkaProducerWith 使用已有的 SyncProducer，测试时传入 mocks
func NewKafkaProducerWith(producer sarama.SyncProducer, topic string, log *zap.Logger) *KafkaProducer {
	return &KafkaProducer{producer: producer, topic: topic, log: log}
}

func (k *KafkaProducer) SendMessage(key string, message any) error {
	bytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(bytes),
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("发送消息到 kafka 失败: %w", err)
	}

	k.log.Debug("消息已写入 kafka",
		zap.String("topic", k.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Publish 以群组 ID 为 key，保证同一群组的事件落在同一分区并保持顺序
func (k *KafkaProducer) Publish(ctx context.Context, ev models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.SendMessage(strconv.FormatInt(ev.GroupID, 10), ev)
}

func (k *KafkaProducer) Close() error {
	return k.producer.Close()
}
