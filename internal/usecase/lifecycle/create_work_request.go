package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/validation"
)

type CreateWorkRequestInput struct {
	RequesterID uuid.UUID
	Title       string
	Description string
	Budget      int64
	Deadline    *time.Time
}

type CreateWorkRequestUseCase struct {
	store Store
}

func NewCreateWorkRequestUseCase(store Store) *CreateWorkRequestUseCase {
	return &CreateWorkRequestUseCase{store: store}
}

func (uc *CreateWorkRequestUseCase) Execute(ctx context.Context, input CreateWorkRequestInput) (*entity.WorkRequest, error) {
	if err := validation.ValidateWorkRequest(input.Title, input.Description); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	wr, err := entity.NewWorkRequest(input.RequesterID, input.Title, input.Description, input.Budget, input.Deadline)
	if err != nil {
		return nil, err
	}

	err = uc.store.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := uc.store.WorkRequests.Create(ctx, wr); err != nil {
			return asDependency(err, "не удалось создать заявку")
		}
		change := entity.NewStatusChange(wr.ID, "", valueobject.WorkRequestStatusOpen, &input.RequesterID, "", wr.CreatedAt)
		return asDependency(uc.store.History.Record(ctx, change), "не удалось записать историю статусов")
	})
	observe("create_work_request", err, valueobject.WorkRequestStatusOpen)
	if err != nil {
		return nil, err
	}
	return wr, nil
}
