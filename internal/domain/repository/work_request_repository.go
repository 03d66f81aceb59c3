package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
)

// TxManager выполняет fn в одной транзакции, передавая её через контекст.
// Вложенный вызов присоединяется к внешней транзакции.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type WorkRequestRepository interface {
	Create(ctx context.Context, wr *entity.WorkRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.WorkRequest, error)
	// FindByIDForUpdate блокирует строку заявки до конца транзакции.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.WorkRequest, error)
	// Transition записывает новое состояние, только если в БД всё ещё статус from.
	// Если строку уже изменили, возвращает ConflictError.
	Transition(ctx context.Context, wr *entity.WorkRequest, from valueobject.WorkRequestStatus) error
	List(ctx context.Context, filter WorkRequestFilter) ([]*entity.WorkRequest, int, error)
}

type WorkRequestFilter struct {
	ParticipantID *uuid.UUID
	Status        *valueobject.WorkRequestStatus
	OnlyOpen      bool
	Limit         int
	Offset        int
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *entity.Application) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Application, error)
	// Accept переводит pending отклик в accepted, иначе ConflictError.
	Accept(ctx context.Context, app *entity.Application) error
	// RejectOtherPending отклоняет все остальные pending отклики заявки.
	RejectOtherPending(ctx context.Context, workRequestID, acceptedID uuid.UUID) (int64, error)
	ListByWorkRequest(ctx context.Context, workRequestID uuid.UUID) ([]*entity.Application, error)
	ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]*entity.Application, error)
}

type DeliveryRepository interface {
	Create(ctx context.Context, d *entity.Delivery) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Delivery, error)
	// Resolve сохраняет решение по сдаче, если она всё ещё pending.
	Resolve(ctx context.Context, d *entity.Delivery) error
	ListByWorkRequest(ctx context.Context, workRequestID uuid.UUID) ([]*entity.Delivery, error)
}

// ExpiredCursor - позиция постраничного обхода просроченных запросов на отмену.
type ExpiredCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

type CancellationRepository interface {
	// Create возвращает ConflictError, если по заявке уже есть pending запрос.
	Create(ctx context.Context, c *entity.CancellationRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.CancellationRequest, error)
	FindPending(ctx context.Context, workRequestID uuid.UUID) (*entity.CancellationRequest, error)
	// Resolve сохраняет решение, если запрос всё ещё pending, иначе ConflictError.
	Resolve(ctx context.Context, c *entity.CancellationRequest) error
	// ListExpired отдаёт страницу pending запросов в порядке (created_at, id) строго после after.
	ListExpired(ctx context.Context, createdBefore time.Time, after *ExpiredCursor, limit int) ([]*entity.CancellationRequest, error)
	ListByWorkRequest(ctx context.Context, workRequestID uuid.UUID) ([]*entity.CancellationRequest, error)
}

type HistoryRepository interface {
	Record(ctx context.Context, change *entity.StatusChange) error
	ListByWorkRequest(ctx context.Context, workRequestID uuid.UUID) ([]*entity.StatusChange, error)
}

// EffectQueue - очередь побочных эффектов, запись идёт в транзакции перехода.
type EffectQueue interface {
	Enqueue(ctx context.Context, effects []entity.Effect) error
}
