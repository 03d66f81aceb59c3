package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/commissions-backend/internal/logger"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
)

const sweepLockKey = "commissions:sweep:cancellations"

type SweepExecutor interface {
	Execute(ctx context.Context, now time.Time) (*lifecycle.SweepResult, error)
}

// Sweeper периодически одобряет просроченные запросы на отмену.
// Одновременно проход выполняет только один экземпляр сервиса.
type Sweeper struct {
	sweep    SweepExecutor
	locker   Locker
	interval time.Duration
	lockTTL  time.Duration
	now      func() time.Time
}

func NewSweeper(sweep SweepExecutor, locker Locker, interval, lockTTL time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &Sweeper{
		sweep:    sweep,
		locker:   locker,
		interval: interval,
		lockTTL:  lockTTL,
		now:      time.Now,
	}
}

// RunOnce выполняет один проход. Если блокировку держит другой экземпляр, возвращает nil, false.
func (s *Sweeper) RunOnce(ctx context.Context) (*lifecycle.SweepResult, bool, error) {
	release, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.lockTTL)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		logger.WithComponent("sweeper").Debug("проход уже выполняет другой экземпляр")
		return nil, false, nil
	}
	defer func() {
		// Блокировку снимаем даже при отменённом ctx
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			logger.WithComponent("sweeper").WithError(err).Warn("не удалось снять блокировку")
		}
	}()

	started := s.now()
	result, err := s.sweep.Execute(ctx, started)
	if err != nil {
		return result, true, err
	}

	log := logger.WithComponent("sweeper")
	for _, failure := range result.Failed {
		log.WithFields(logrus.Fields{
			"cancellation_id": failure.CancellationID,
			"work_request_id": failure.WorkRequestID,
			"committed":       failure.Committed,
		}).WithError(failure.Err).Warn("запрос на отмену не обработан")
	}

	entry := log.WithFields(logrus.Fields{
		"approved": result.Approved,
		"skipped":  result.Skipped,
		"failed":   len(result.Failed),
		"duration": s.now().Sub(started).String(),
	})
	if len(result.Failed) > 0 {
		entry.Warn("проход завершён с ошибками")
	} else if result.Approved > 0 {
		entry.Info("проход завершён")
	}
	return result, true, nil
}

// Run выполняет проходы с интервалом до отмены ctx. Первый проход сразу после старта.
func (s *Sweeper) Run(ctx context.Context) error {
	logger.WithComponent("sweeper").WithField("interval", s.interval.String()).Info("запущен")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logger.WithComponent("sweeper").WithError(err).Error("проход не выполнен")
		}

		select {
		case <-ctx.Done():
			logger.WithComponent("sweeper").Info("остановлен")
			return nil
		case <-ticker.C:
		}
	}
}
