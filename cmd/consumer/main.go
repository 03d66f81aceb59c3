package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/commissions-backend/internal/config"
	"github.com/ignatzorin/commissions-backend/internal/kafka"
	"github.com/ignatzorin/commissions-backend/internal/logger"
)

// Читает топик событий жизненного цикла и пишет их в лог.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("consumer: ошибка загрузки конфигурации: %v", err)
	}
	logger.Setup(cfg.Env, cfg.LogLevel)

	if len(cfg.Kafka.Brokers) == 0 {
		logger.Log.Fatal("consumer: KAFKA_BROKERS не задан")
	}

	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		Topic:          cfg.Kafka.Topic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        3 * time.Second,
	})
	defer func() {
		if err := r.Close(); err != nil {
			logger.Log.WithError(err).Warn("consumer: ошибка закрытия reader")
		}
	}()

	logger.Log.WithFields(logrus.Fields{
		"topic":   cfg.Kafka.Topic,
		"brokers": cfg.Kafka.Brokers,
		"group":   cfg.Kafka.GroupID,
	}).Info("consumer: запущен")

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Log.Info("consumer: остановлен")
				return
			}
			logger.Log.WithError(err).Error("consumer: ошибка чтения сообщения")
			time.Sleep(5 * time.Second)
			continue
		}

		event, err := kafka.UnmarshalLifecycleEvent(m.Value)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{
				"partition": m.Partition,
				"offset":    m.Offset,
			}).WithError(err).Warn("consumer: некорректное событие")
			continue
		}

		logger.Log.WithFields(logrus.Fields{
			"partition":       m.Partition,
			"offset":          m.Offset,
			"event":           event.Event,
			"work_request_id": event.WorkRequestID,
			"from":            event.FromStatus,
			"to":              event.ToStatus,
			"actor_id":        event.ActorID,
			"occurred_at":     event.OccurredAt.Format(time.RFC3339),
		}).Info("consumer: событие заявки")
	}
}
