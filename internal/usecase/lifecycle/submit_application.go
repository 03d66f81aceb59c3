package lifecycle

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/validation"
)

type SubmitApplicationInput struct {
	WorkRequestID uuid.UUID
	ApplicantID   uuid.UUID
	Message       string
	ProposedPrice int64
}

type ApplicationResult struct {
	Application *entity.Application
	Warnings    []Warning
}

type SubmitApplicationUseCase struct {
	store      Store
	dispatcher EffectDispatcher
}

func NewSubmitApplicationUseCase(store Store, dispatcher EffectDispatcher) *SubmitApplicationUseCase {
	return &SubmitApplicationUseCase{store: store, dispatcher: dispatcher}
}

func (uc *SubmitApplicationUseCase) Execute(ctx context.Context, input SubmitApplicationInput) (*ApplicationResult, error) {
	if err := checkLength(textField{"сообщение отклика", input.Message, validation.MaxApplicationLength}); err != nil {
		return nil, err
	}

	var app *entity.Application

	failures, err := uc.store.commit(ctx, uc.dispatcher, func(ctx context.Context) ([]entity.Effect, error) {
		wr, err := loadWorkRequest(ctx, uc.store.WorkRequests, input.WorkRequestID, false)
		if err != nil {
			return nil, err
		}

		app, err = entity.NewApplication(wr, input.ApplicantID, input.Message, input.ProposedPrice)
		if err != nil {
			return nil, err
		}
		if err := uc.store.Applications.Create(ctx, app); err != nil {
			return nil, asDependency(err, "не удалось сохранить отклик")
		}
		return []entity.Effect{notifyApplicationReceived(wr, app)}, nil
	})
	observe("submit_application", err, "")
	if err != nil {
		return nil, err
	}

	logWarnings("submit_application", input.WorkRequestID, failures)
	return &ApplicationResult{Application: app, Warnings: toWarnings(failures)}, nil
}
