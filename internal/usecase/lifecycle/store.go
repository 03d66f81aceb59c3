package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/repository"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/logger"
	"github.com/ignatzorin/commissions-backend/internal/metrics"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/validation"
)

// Store объединяет репозитории, с которыми работают переходы заявки.
type Store struct {
	Tx            repository.TxManager
	WorkRequests  repository.WorkRequestRepository
	Applications  repository.ApplicationRepository
	Deliveries    repository.DeliveryRepository
	Cancellations repository.CancellationRepository
	History       repository.HistoryRepository
	Effects       repository.EffectQueue
}

// EffectDispatcher сразу после коммита пытается исполнить эффекты перехода.
// Неисполненные остаются в очереди и повторяются фоновым циклом.
type EffectDispatcher interface {
	DispatchNow(ctx context.Context, effects []entity.Effect) []entity.EffectFailure
}

// Warning - побочный эффект, который не удалось выполнить сразу.
// Сам переход при этом уже зафиксирован.
type Warning struct {
	EffectID uuid.UUID `json:"effect_id"`
	Kind     string    `json:"kind"`
	Message  string    `json:"message"`
}

// commit выполняет fn в транзакции, ставит возвращённые эффекты в очередь в той же
// транзакции и после коммита отдаёт их диспетчеру.
func (s Store) commit(ctx context.Context, dispatcher EffectDispatcher, fn func(ctx context.Context) ([]entity.Effect, error)) ([]entity.EffectFailure, error) {
	var queued []entity.Effect

	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		effects, err := fn(ctx)
		if err != nil {
			return err
		}
		if len(effects) == 0 {
			return nil
		}
		if err := s.Effects.Enqueue(ctx, effects); err != nil {
			return asDependency(err, "не удалось поставить побочные эффекты в очередь")
		}
		queued = effects
		return nil
	})
	if err != nil {
		return nil, err
	}

	if dispatcher == nil || len(queued) == 0 {
		return nil, nil
	}
	return dispatcher.DispatchNow(ctx, queued), nil
}

// saveTransition пишет новый статус через CAS и добавляет запись в журнал.
func (s Store) saveTransition(ctx context.Context, wr *entity.WorkRequest, from valueobject.WorkRequestStatus, actorID *uuid.UUID, note string, now time.Time) (entity.Effect, error) {
	if err := s.WorkRequests.Transition(ctx, wr, from); err != nil {
		return entity.Effect{}, err
	}

	change := entity.NewStatusChange(wr.ID, from, wr.Status, actorID, note, now)
	if err := s.History.Record(ctx, change); err != nil {
		return entity.Effect{}, asDependency(err, "не удалось записать историю статусов")
	}
	return entity.NewPublishEffect(change), nil
}

func toWarnings(failures []entity.EffectFailure) []Warning {
	if len(failures) == 0 {
		return nil
	}
	warnings := make([]Warning, 0, len(failures))
	for _, f := range failures {
		warnings = append(warnings, Warning{
			EffectID: f.EffectID,
			Kind:     string(f.Kind),
			Message:  f.Err.Error(),
		})
	}
	return warnings
}

// checkLength проверяет верхнюю границу длины текстовых полей.
func checkLength(fields ...textField) error {
	for _, f := range fields {
		if err := validation.ValidateMaxLength(f.name, strings.TrimSpace(f.value), f.max); err != nil {
			return apperror.Validation(err.Error())
		}
	}
	return nil
}

type textField struct {
	name  string
	value string
	max   int
}

// asDependency оборачивает неизвестную ошибку коллаборатора; ошибки приложения не трогает.
func asDependency(err error, message string) error {
	if err == nil {
		return nil
	}
	if apperror.CodeOf(err) != apperror.ErrCodeInternal {
		return err
	}
	return apperror.Dependency(err, message)
}

// observe считает успешные переходы и отказы по коду ошибки.
func observe(operation string, err error, to valueobject.WorkRequestStatus) {
	if err != nil {
		metrics.LifecycleErrorsTotal.WithLabelValues(operation, string(apperror.CodeOf(err))).Inc()
		if logger.Log != nil && apperror.IsDependency(err) {
			logger.Log.WithFields(map[string]interface{}{
				"operation": operation,
				"error":     err.Error(),
			}).Error("lifecycle: сбой зависимости")
		}
		return
	}
	if to != "" {
		metrics.WorkRequestTransitionsTotal.WithLabelValues(string(to)).Inc()
	}
}

func logWarnings(operation string, workRequestID uuid.UUID, failures []entity.EffectFailure) {
	if logger.Log == nil {
		return
	}
	for _, f := range failures {
		logger.Log.WithFields(map[string]interface{}{
			"operation":       operation,
			"work_request_id": workRequestID.String(),
			"effect_id":       f.EffectID.String(),
			"kind":            string(f.Kind),
			"error":           f.Err.Error(),
		}).Warn("lifecycle: эффект не выполнен сразу, остаётся в очереди")
	}
}

func loadWorkRequest(ctx context.Context, repo repository.WorkRequestRepository, id uuid.UUID, forUpdate bool) (*entity.WorkRequest, error) {
	var (
		wr  *entity.WorkRequest
		err error
	)
	if forUpdate {
		wr, err = repo.FindByIDForUpdate(ctx, id)
	} else {
		wr, err = repo.FindByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if wr == nil {
		return nil, apperror.ErrWorkRequestNotFound
	}
	return wr, nil
}

func workRequestLink(id uuid.UUID) string {
	return "/work-requests/" + id.String()
}
