package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/commissions-backend/internal/config"
	"github.com/ignatzorin/commissions-backend/internal/db"
	"github.com/ignatzorin/commissions-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/commissions-backend/internal/kafka"
	"github.com/ignatzorin/commissions-backend/internal/logger"
	"github.com/ignatzorin/commissions-backend/internal/repository"
	"github.com/ignatzorin/commissions-backend/internal/repository/common"
	"github.com/ignatzorin/commissions-backend/internal/scheduler"
	"github.com/ignatzorin/commissions-backend/internal/service"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
)

// Один проход одобрения просроченных запросов на отмену. Запускается по cron.
func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("sweeper: ошибка загрузки конфигурации: %v", err)
		return 1
	}
	logger.Setup(cfg.Env, cfg.LogLevel)

	dbConn, err := db.NewPostgres(ctx, cfg.Database.DSN(), db.PoolConfig{MaxOpenConns: 5, MaxIdleConns: 2})
	if err != nil {
		logger.Log.WithError(err).Error("sweeper: ошибка подключения к базе")
		return 1
	}
	defer dbConn.Close()

	store := lifecycle.Store{
		Tx:            common.NewTxManager(dbConn),
		WorkRequests:  persistence.NewWorkRequestRepositoryAdapter(dbConn),
		Applications:  persistence.NewApplicationRepositoryAdapter(dbConn),
		Deliveries:    persistence.NewDeliveryRepositoryAdapter(dbConn),
		Cancellations: persistence.NewCancellationRepositoryAdapter(dbConn),
		History:       persistence.NewHistoryRepositoryAdapter(dbConn),
		Effects:       persistence.NewEffectQueueAdapter(dbConn),
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	// Без websocket: уведомления сохраняются, клиенты заберут их списком.
	notifications := service.NewNotificationService(repository.NewNotificationRepository(dbConn), nil)
	dispatcher := service.NewEffectDispatcher(
		repository.NewSideEffectRepository(dbConn),
		notifications,
		service.NewPaymentService(repository.NewPaymentRepository(dbConn)),
		producer,
		service.DispatcherConfig{MaxAttempts: cfg.Lifecycle.OutboxMaxAttempts, Topic: cfg.Kafka.Topic},
	)

	var locker scheduler.Locker = scheduler.NewLocalLocker()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		locker = scheduler.NewRedisLocker(client)
	}

	sweep := lifecycle.NewSweepExpiredCancellationsUseCase(store, dispatcher, cfg.Lifecycle.CancellationTimeout, cfg.Lifecycle.SweepBatchSize)
	sweeper := scheduler.NewSweeper(sweep, locker, cfg.Lifecycle.SweepInterval, cfg.Lifecycle.SweepLockTTL)

	result, locked, err := sweeper.RunOnce(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("sweeper: проход не выполнен")
		return 1
	}
	if !locked {
		fmt.Println("sweeper: проход уже выполняет другой экземпляр")
		return 0
	}

	fmt.Printf("approved=%d skipped=%d failed=%d\n", result.Approved, result.Skipped, len(result.Failed))
	for _, f := range result.Failed {
		fmt.Printf("  cancellation=%s work_request=%s committed=%t error=%v\n", f.CancellationID, f.WorkRequestID, f.Committed, f.Err)
	}
	if len(result.Failed) > 0 {
		return 1
	}
	return 0
}
