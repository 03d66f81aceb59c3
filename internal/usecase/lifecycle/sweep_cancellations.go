package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/repository"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/logger"
	"github.com/ignatzorin/commissions-backend/internal/metrics"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
)

const defaultSweepBatchSize = 100

// errAlreadyResolved - запрос решён раньше, чем до него дошёл обход.
var errAlreadyResolved = errors.New("cancellation already resolved")

// SweepFailure - запрос, который обход не смог обработать полностью.
// Committed означает, что отмена зафиксирована, а сбой случился при исполнении эффектов.
type SweepFailure struct {
	CancellationID uuid.UUID
	WorkRequestID  uuid.UUID
	Err            error
	Committed      bool
}

type SweepResult struct {
	Approved int
	Skipped  int
	Failed   []SweepFailure
}

type SweepExpiredCancellationsUseCase struct {
	store      Store
	dispatcher EffectDispatcher
	timeout    time.Duration
	batchSize  int
}

func NewSweepExpiredCancellationsUseCase(store Store, dispatcher EffectDispatcher, timeout time.Duration, batchSize int) *SweepExpiredCancellationsUseCase {
	if timeout <= 0 {
		timeout = entity.CancellationTimeout
	}
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &SweepExpiredCancellationsUseCase{
		store:      store,
		dispatcher: dispatcher,
		timeout:    timeout,
		batchSize:  batchSize,
	}
}

// Execute одобряет все pending запросы старше таймаута, читая их страницами по batchSize.
// Каждый запрос обрабатывается в своей транзакции: сбой одного не останавливает остальные
// и попадает в Failed. Курсор идёт только вперёд, поэтому неудачный запрос за проход
// обрабатывается один раз.
func (uc *SweepExpiredCancellationsUseCase) Execute(ctx context.Context, now time.Time) (*SweepResult, error) {
	result := &SweepResult{}
	cutoff := now.Add(-uc.timeout)
	var cursor *repository.ExpiredCursor

	for {
		page, err := uc.store.Cancellations.ListExpired(ctx, cutoff, cursor, uc.batchSize)
		if err != nil {
			return result, asDependency(err, "не удалось получить просроченные запросы на отмену")
		}

		for _, c := range page {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			uc.sweepOne(ctx, c, now, result)
		}

		if len(page) < uc.batchSize {
			break
		}
		last := page[len(page)-1]
		cursor = &repository.ExpiredCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	metrics.SweepFailuresTotal.Add(float64(len(result.Failed)))
	return result, nil
}

func (uc *SweepExpiredCancellationsUseCase) sweepOne(ctx context.Context, c *entity.CancellationRequest, now time.Time, result *SweepResult) {
	failures, err := uc.approveOne(ctx, c.ID, now)
	switch {
	case errors.Is(err, errAlreadyResolved) || apperror.IsConflict(err) || (err != nil && uc.resolvedElsewhere(ctx, c.ID)):
		result.Skipped++
		return
	case err != nil:
		result.Failed = append(result.Failed, SweepFailure{
			CancellationID: c.ID,
			WorkRequestID:  c.WorkRequestID,
			Err:            err,
		})
		uc.logFailure(c, err, false)
		return
	}

	result.Approved++
	metrics.CancellationsAutoApprovedTotal.Inc()
	for _, f := range failures {
		result.Failed = append(result.Failed, SweepFailure{
			CancellationID: c.ID,
			WorkRequestID:  c.WorkRequestID,
			Err:            f.Err,
			Committed:      true,
		})
		uc.logFailure(c, f.Err, true)
	}
}

func (uc *SweepExpiredCancellationsUseCase) approveOne(ctx context.Context, id uuid.UUID, now time.Time) ([]entity.EffectFailure, error) {
	return uc.store.commit(ctx, uc.dispatcher, func(ctx context.Context) ([]entity.Effect, error) {
		c, wr, err := loadCancellation(ctx, uc.store, id)
		if err != nil {
			return nil, err
		}
		if c.Status != valueobject.CancellationStatusPending || !c.IsExpired(now, uc.timeout) {
			return nil, errAlreadyResolved
		}
		return approveCancellation(ctx, uc.store, c, wr, nil, entity.AutoApproveNote, now)
	})
}

// resolvedElsewhere проверяет, не решили ли запрос параллельно, пока обход с ним работал.
func (uc *SweepExpiredCancellationsUseCase) resolvedElsewhere(ctx context.Context, id uuid.UUID) bool {
	c, err := uc.store.Cancellations.FindByID(ctx, id)
	return err == nil && c != nil && c.Status != valueobject.CancellationStatusPending
}

func (uc *SweepExpiredCancellationsUseCase) logFailure(c *entity.CancellationRequest, err error, committed bool) {
	if logger.Log == nil {
		return
	}
	logger.Log.WithFields(map[string]interface{}{
		"cancellation_id": c.ID.String(),
		"work_request_id": c.WorkRequestID.String(),
		"committed":       committed,
		"error":           err.Error(),
	}).Error("sweep: не удалось автоматически одобрить отмену")
}
