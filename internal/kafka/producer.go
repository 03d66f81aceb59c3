package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/commissions-backend/internal/logger"
)

type Producer interface {
	SendMessage(ctx context.Context, topic string, key []byte, value []byte) error
	Close() error
}

// WriterProducer пишет сообщения в Kafka через kafka-go Writer.
type WriterProducer struct {
	writer *kafka.Writer
}

func NewWriterProducer(brokers []string) *WriterProducer {
	return &WriterProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (p *WriterProducer) SendMessage(ctx context.Context, topic string, key []byte, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("kafka producer: write to %s: %w", topic, err)
	}
	return nil
}

func (p *WriterProducer) Close() error {
	return p.writer.Close()
}

// LogProducer пишет события в лог. Используется, когда брокеры не настроены.
type LogProducer struct{}

func NewLogProducer() *LogProducer {
	logger.Log.Info("kafka: брокеры не заданы, события пишутся в лог")
	return &LogProducer{}
}

func (p *LogProducer) SendMessage(ctx context.Context, topic string, key []byte, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Log.WithFields(logrus.Fields{
		"topic": topic,
		"key":   string(key),
		"value": string(value),
	}).Info("kafka: событие")
	return nil
}

func (p *LogProducer) Close() error {
	return nil
}

// NewProducer выбирает реализацию по списку брокеров.
func NewProducer(brokers []string) Producer {
	if len(brokers) == 0 {
		return NewLogProducer()
	}
	return NewWriterProducer(brokers)
}
