package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/commissions-backend/internal/config"
	"github.com/ignatzorin/commissions-backend/internal/db"
	httpHandlers "github.com/ignatzorin/commissions-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/commissions-backend/internal/http/router"
	"github.com/ignatzorin/commissions-backend/internal/infrastructure/persistence"
	lifecycleHandler "github.com/ignatzorin/commissions-backend/internal/interface/http/handler"
	"github.com/ignatzorin/commissions-backend/internal/kafka"
	"github.com/ignatzorin/commissions-backend/internal/logger"
	"github.com/ignatzorin/commissions-backend/internal/repository"
	"github.com/ignatzorin/commissions-backend/internal/repository/common"
	"github.com/ignatzorin/commissions-backend/internal/scheduler"
	"github.com/ignatzorin/commissions-backend/internal/service"
	"github.com/ignatzorin/commissions-backend/internal/storage"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
	"github.com/ignatzorin/commissions-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}
	logger.Setup(cfg.Env, cfg.LogLevel)

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.Database.DSN(), db.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(dbConn); err != nil {
		logger.Log.Fatalf("main: ошибка миграций: %v", err)
	}

	deliverables, err := storage.NewDeliverableStorage(cfg.DeliveryStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		logger.Log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	reviewRepo := repository.NewReviewRepository(dbConn)
	sideEffectRepo := repository.NewSideEffectRepository(dbConn)

	workRequests := persistence.NewWorkRequestRepositoryAdapter(dbConn)
	store := lifecycle.Store{
		Tx:            common.NewTxManager(dbConn),
		WorkRequests:  workRequests,
		Applications:  persistence.NewApplicationRepositoryAdapter(dbConn),
		Deliveries:    persistence.NewDeliveryRepositoryAdapter(dbConn),
		Cancellations: persistence.NewCancellationRepositoryAdapter(dbConn),
		History:       persistence.NewHistoryRepositoryAdapter(dbConn),
		Effects:       persistence.NewEffectQueueAdapter(dbConn),
	}

	// Сервисы.
	hub := ws.NewHub()
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(userRepo, tokenManager)
	notificationService := service.NewNotificationService(notificationRepo, hub)
	paymentService := service.NewPaymentService(paymentRepo)
	cacheService := service.NewCacheService()
	reviewService := service.NewReviewService(reviewRepo, workRequests, cacheService)

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Log.WithError(err).Warn("main: ошибка закрытия kafka producer")
		}
	}()

	dispatcher := service.NewEffectDispatcher(sideEffectRepo, notificationService, paymentService, producer, service.DispatcherConfig{
		PollInterval: cfg.Lifecycle.OutboxPollInterval,
		BatchSize:    cfg.Lifecycle.OutboxBatchSize,
		MaxAttempts:  cfg.Lifecycle.OutboxMaxAttempts,
		Topic:        cfg.Kafka.Topic,
	})

	// Сценарии жизненного цикла заявки.
	related := lifecycle.NewListRelatedUseCase(store)
	sweep := lifecycle.NewSweepExpiredCancellationsUseCase(store, dispatcher, cfg.Lifecycle.CancellationTimeout, cfg.Lifecycle.SweepBatchSize)
	sweeper := scheduler.NewSweeper(sweep, newLocker(cfg.RedisAddr), cfg.Lifecycle.SweepInterval, cfg.Lifecycle.SweepLockTTL)

	// HTTP хэндлеры.
	handlers := httpRouter.Handlers{
		Auth:         httpHandlers.NewAuthHandler(authService),
		Payment:      httpHandlers.NewPaymentHandler(paymentService),
		Review:       httpHandlers.NewReviewHandler(reviewService),
		Notification: httpHandlers.NewNotificationHandler(notificationService),
		Health:       httpHandlers.NewHealthHandler(dbConn, sideEffectRepo),
		WS:           httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),

		WorkRequest: lifecycleHandler.NewWorkRequestHandler(
			lifecycle.NewCreateWorkRequestUseCase(store),
			lifecycle.NewGetWorkRequestUseCase(store),
			lifecycle.NewListWorkRequestsUseCase(store),
			related,
			lifecycle.NewPayUseCase(store, paymentService, dispatcher),
		),
		Application: lifecycleHandler.NewApplicationHandler(
			lifecycle.NewSubmitApplicationUseCase(store, dispatcher),
			lifecycle.NewAcceptApplicationUseCase(store, dispatcher),
			related,
		),
		Delivery: lifecycleHandler.NewDeliveryHandler(
			lifecycle.NewSubmitDeliveryUseCase(store, dispatcher),
			lifecycle.NewReviewDeliveryUseCase(store, dispatcher),
			related,
			deliverables,
		),
		Cancellation: lifecycleHandler.NewCancellationHandler(
			lifecycle.NewProposeCancellationUseCase(store, dispatcher),
			lifecycle.NewRespondCancellationUseCase(store, dispatcher),
			related,
		),
	}

	engine := httpRouter.SetupRouter(cfg, handlers, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Log.Infof("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Завершаем сервер при получении сигнала или падении фонового процесса.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		cacheService.RunCleanup(gctx, 5*time.Minute)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.WithError(err).Error("main: сервис завершился с ошибкой")
	}
	logger.Log.Info("main: сервис остановлен")
}

// newLocker возвращает распределённую блокировку, если задан Redis.
func newLocker(addr string) scheduler.Locker {
	if addr == "" {
		return scheduler.NewLocalLocker()
	}
	return scheduler.NewRedisLocker(redis.NewClient(&redis.Options{Addr: addr}))
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
