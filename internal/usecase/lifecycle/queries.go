package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/repository"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
)

// WorkRequestView - заявка глазами конкретного профиля.
type WorkRequestView struct {
	WorkRequest *entity.WorkRequest
	Role        valueobject.Role
	IsOverdue   bool
}

type GetWorkRequestUseCase struct {
	store Store
}

func NewGetWorkRequestUseCase(store Store) *GetWorkRequestUseCase {
	return &GetWorkRequestUseCase{store: store}
}

// Execute отдаёт открытую заявку любому, остальные только участникам.
func (uc *GetWorkRequestUseCase) Execute(ctx context.Context, id, viewerID uuid.UUID) (*WorkRequestView, error) {
	wr, err := loadWorkRequest(ctx, uc.store.WorkRequests, id, false)
	if err != nil {
		return nil, err
	}

	role := wr.RoleOf(viewerID)
	if wr.Status != valueobject.WorkRequestStatusOpen && !role.IsParty() {
		return nil, apperror.Forbidden("заявка доступна только участникам сделки")
	}

	return &WorkRequestView{
		WorkRequest: wr,
		Role:        role,
		IsOverdue:   wr.IsOverdue(time.Now().UTC()),
	}, nil
}

type ListWorkRequestsUseCase struct {
	store Store
}

func NewListWorkRequestsUseCase(store Store) *ListWorkRequestsUseCase {
	return &ListWorkRequestsUseCase{store: store}
}

func (uc *ListWorkRequestsUseCase) Execute(ctx context.Context, filter repository.WorkRequestFilter) ([]*entity.WorkRequest, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return uc.store.WorkRequests.List(ctx, filter)
}

// ListRelatedUseCase отдаёт участникам сделки связанные с заявкой записи.
type ListRelatedUseCase struct {
	store Store
}

func NewListRelatedUseCase(store Store) *ListRelatedUseCase {
	return &ListRelatedUseCase{store: store}
}

func (uc *ListRelatedUseCase) authorize(ctx context.Context, workRequestID, viewerID uuid.UUID) (*entity.WorkRequest, error) {
	wr, err := loadWorkRequest(ctx, uc.store.WorkRequests, workRequestID, false)
	if err != nil {
		return nil, err
	}
	if !wr.RoleOf(viewerID).IsParty() {
		return nil, apperror.Forbidden("данные доступны только участникам сделки")
	}
	return wr, nil
}

// Applications видит только заказчик.
func (uc *ListRelatedUseCase) Applications(ctx context.Context, workRequestID, viewerID uuid.UUID) ([]*entity.Application, error) {
	wr, err := uc.authorize(ctx, workRequestID, viewerID)
	if err != nil {
		return nil, err
	}
	if wr.RoleOf(viewerID) != valueobject.RoleRequester {
		return nil, apperror.Forbidden("отклики видит только заказчик")
	}
	return uc.store.Applications.ListByWorkRequest(ctx, workRequestID)
}

func (uc *ListRelatedUseCase) MyApplications(ctx context.Context, applicantID uuid.UUID) ([]*entity.Application, error) {
	return uc.store.Applications.ListByApplicant(ctx, applicantID)
}

func (uc *ListRelatedUseCase) Deliveries(ctx context.Context, workRequestID, viewerID uuid.UUID) ([]*entity.Delivery, error) {
	if _, err := uc.authorize(ctx, workRequestID, viewerID); err != nil {
		return nil, err
	}
	return uc.store.Deliveries.ListByWorkRequest(ctx, workRequestID)
}

func (uc *ListRelatedUseCase) Cancellations(ctx context.Context, workRequestID, viewerID uuid.UUID) ([]*entity.CancellationRequest, error) {
	if _, err := uc.authorize(ctx, workRequestID, viewerID); err != nil {
		return nil, err
	}
	return uc.store.Cancellations.ListByWorkRequest(ctx, workRequestID)
}

func (uc *ListRelatedUseCase) History(ctx context.Context, workRequestID, viewerID uuid.UUID) ([]*entity.StatusChange, error) {
	if _, err := uc.authorize(ctx, workRequestID, viewerID); err != nil {
		return nil, err
	}
	return uc.store.History.ListByWorkRequest(ctx, workRequestID)
}
