package mq

import (
	"context"
	"fmt"

	"atmservice/internal/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Producer publishes outbox messages to Kafka synchronously.
type Producer struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
}

// NewProducer waits for all in-sync replicas on every send.
func NewProducer(cfg *config.KafkaConfig, logger *zap.Logger) (*Producer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Net.MaxOpenRequests = 1
	kafkaConfig.Version = sarama.V2_1_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	logger.Info("kafka producer created", zap.Strings("brokers", cfg.Brokers))
	return NewProducerWith(producer, logger), nil
}

// NewProducerWith wraps an existing sarama producer.
func NewProducerWith(producer sarama.SyncProducer, logger *zap.Logger) *Producer {
	return &Producer{producer: producer, logger: logger}
}

// Publish sends one message. Messages with the same key land on the same
// partition, which keeps one customer's events in order.
func (p *Producer) Publish(ctx context.Context, topic, key, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", topic, err)
	}
	p.logger.Debug("message published",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
