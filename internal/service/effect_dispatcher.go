package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/kafka"
	"github.com/ignatzorin/commissions-backend/internal/logger"
	"github.com/ignatzorin/commissions-backend/internal/metrics"
	"github.com/ignatzorin/commissions-backend/internal/models"
	"github.com/ignatzorin/commissions-backend/internal/repository"
)

// SideEffectStore - сторона очереди side_effects, нужная диспетчеру.
type SideEffectStore interface {
	ClaimByIDs(ctx context.Context, ids []uuid.UUID, lease time.Duration) ([]models.SideEffect, error)
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]models.SideEffect, error)
	MarkDone(ctx context.Context, id uuid.UUID, attempts int) error
	MarkRetry(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAttemptAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error
}

type Notifier interface {
	Notify(ctx context.Context, id, recipientID uuid.UUID, payload models.NotificationPayload) error
}

// Settlement закрывает удержанную оплату. Оба метода идемпотентны.
type Settlement interface {
	Refund(ctx context.Context, reference string) error
	Release(ctx context.Context, reference string) error
}

type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Lease        time.Duration
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	Topic        string
}

func (c *DispatcherConfig) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 5 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Minute
	}
	if c.Topic == "" {
		c.Topic = "work-request-events"
	}
}

// permanentError - повтор не поможет, эффект сразу уходит в failed.
type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// EffectDispatcher исполняет эффекты из очереди side_effects.
// DispatchNow вызывается сразу после коммита перехода, Run подбирает всё, что не удалось исполнить,
// включая возвраты средств по отменённым заявкам.
type EffectDispatcher struct {
	store    SideEffectStore
	notifier Notifier
	payments Settlement
	producer kafka.Producer
	cfg      DispatcherConfig
	now      func() time.Time
}

func NewEffectDispatcher(store SideEffectStore, notifier Notifier, payments Settlement, producer kafka.Producer, cfg DispatcherConfig) *EffectDispatcher {
	cfg.setDefaults()
	return &EffectDispatcher{
		store:    store,
		notifier: notifier,
		payments: payments,
		producer: producer,
		cfg:      cfg,
		now:      time.Now,
	}
}

// DispatchNow захватывает и исполняет только что поставленные эффекты.
// Возвращает те, что не удалось исполнить: они остаются в очереди на повтор.
func (d *EffectDispatcher) DispatchNow(ctx context.Context, effects []entity.Effect) []entity.EffectFailure {
	if len(effects) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(effects))
	for _, e := range effects {
		ids = append(ids, e.ID)
	}

	claimed, err := d.store.ClaimByIDs(ctx, ids, d.cfg.Lease)
	if err != nil {
		logger.Log.WithError(err).Warn("effect dispatcher: не удалось захватить эффекты, исполнит фоновый цикл")
		failures := make([]entity.EffectFailure, 0, len(effects))
		for _, e := range effects {
			failures = append(failures, entity.EffectFailure{EffectID: e.ID, Kind: e.Kind, Err: err})
		}
		return failures
	}

	var failures []entity.EffectFailure
	for i := range claimed {
		if err := d.process(ctx, &claimed[i]); err != nil {
			failures = append(failures, entity.EffectFailure{
				EffectID: claimed[i].ID,
				Kind:     entity.EffectKind(claimed[i].Kind),
				Err:      err,
			})
		}
	}
	return failures
}

// Run опрашивает очередь до отмены ctx.
func (d *EffectDispatcher) Run(ctx context.Context) error {
	logger.Log.WithFields(logrus.Fields{
		"poll_interval": d.cfg.PollInterval.String(),
		"batch_size":    d.cfg.BatchSize,
		"max_attempts":  d.cfg.MaxAttempts,
	}).Info("effect dispatcher: запущен")

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("effect dispatcher: остановлен")
			return nil
		case <-ticker.C:
			if _, err := d.ProcessDue(ctx); err != nil && ctx.Err() == nil {
				logger.Log.WithError(err).Error("effect dispatcher: ошибка обработки пачки")
			}
		}
	}
}

// ProcessDue обрабатывает одну пачку эффектов, время которых наступило.
func (d *EffectDispatcher) ProcessDue(ctx context.Context) (int, error) {
	claimed, err := d.store.ClaimDue(ctx, d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return 0, err
	}

	for i := range claimed {
		if ctx.Err() != nil {
			// Незавершённые вернутся в работу после истечения lease
			return i, ctx.Err()
		}
		_ = d.process(ctx, &claimed[i])
	}
	return len(claimed), nil
}

// process исполняет захваченный эффект и фиксирует результат в очереди.
func (d *EffectDispatcher) process(ctx context.Context, row *models.SideEffect) error {
	execErr := d.execute(ctx, row)
	attempts := row.Attempts + 1

	fields := logrus.Fields{
		"effect_id":       row.ID,
		"kind":            row.Kind,
		"work_request_id": row.WorkRequestID,
		"attempt":         attempts,
	}

	if execErr == nil {
		metrics.EffectsProcessedTotal.WithLabelValues(row.Kind, "done").Inc()
		if err := d.store.MarkDone(ctx, row.ID, attempts); err != nil {
			logger.Log.WithFields(fields).WithError(err).Error("effect dispatcher: не удалось отметить эффект выполненным")
		}
		return nil
	}

	var permanent permanentError
	if errors.As(execErr, &permanent) || attempts >= d.cfg.MaxAttempts {
		metrics.EffectsDeadTotal.WithLabelValues(row.Kind).Inc()
		logger.Log.WithFields(fields).WithError(execErr).Error("effect dispatcher: эффект не исполнен окончательно")
		if err := d.store.MarkFailed(ctx, row.ID, attempts, execErr.Error()); err != nil {
			logger.Log.WithFields(fields).WithError(err).Error("effect dispatcher: не удалось отметить эффект проваленным")
		}
		return execErr
	}

	metrics.EffectsProcessedTotal.WithLabelValues(row.Kind, "retry").Inc()
	next := d.now().Add(d.backoff(attempts))
	logger.Log.WithFields(fields).WithError(execErr).Warn("effect dispatcher: эффект будет повторён")
	if err := d.store.MarkRetry(ctx, row.ID, attempts, execErr.Error(), next); err != nil {
		logger.Log.WithFields(fields).WithError(err).Error("effect dispatcher: не удалось запланировать повтор")
	}
	return execErr
}

func (d *EffectDispatcher) execute(ctx context.Context, row *models.SideEffect) error {
	var payload entity.EffectPayload
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		return permanentError{fmt.Errorf("некорректный payload: %w", err)}
	}

	switch entity.EffectKind(row.Kind) {
	case entity.EffectNotify:
		return d.notifier.Notify(ctx, row.ID, payload.RecipientID, models.NotificationPayload{
			Kind:          payload.NotificationKind,
			Title:         payload.Title,
			Body:          payload.Body,
			Link:          payload.Link,
			WorkRequestID: row.WorkRequestID,
		})

	case entity.EffectRefund:
		return settlementError(d.payments.Refund(ctx, payload.PaymentReference))

	case entity.EffectRelease:
		return settlementError(d.payments.Release(ctx, payload.PaymentReference))

	case entity.EffectPublish:
		event := kafka.LifecycleEvent{
			ID:            row.ID,
			Event:         payload.Event,
			WorkRequestID: row.WorkRequestID,
			FromStatus:    payload.FromStatus,
			ToStatus:      payload.ToStatus,
			ActorID:       payload.ActorID,
			OccurredAt:    row.CreatedAt.UTC(),
		}
		value, err := event.Marshal()
		if err != nil {
			return permanentError{err}
		}
		return d.producer.SendMessage(ctx, d.cfg.Topic, event.Key(), value)
	}

	return permanentError{fmt.Errorf("неизвестный тип эффекта %q", row.Kind)}
}

// settlementError: escrow, закрытый в другую сторону, или отсутствующий escrow не исправятся повтором.
func settlementError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrEscrowSettled) || errors.Is(err, repository.ErrEscrowNotFound) {
		return permanentError{err}
	}
	return err
}

// backoff: base * 2^(attempts-1), не больше MaxBackoff.
func (d *EffectDispatcher) backoff(attempts int) time.Duration {
	delay := d.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return delay
}
