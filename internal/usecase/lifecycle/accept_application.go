package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
)

type AcceptApplicationInput struct {
	WorkRequestID uuid.UUID
	ApplicationID uuid.UUID
	RequesterID   uuid.UUID
	ApplicantID   uuid.UUID
	// Price - итоговая цена; 0 означает цену из отклика.
	Price    int64
	Deadline *time.Time
}

// ContractResult - заявка после заключения контракта.
type ContractResult struct {
	WorkRequest          *entity.WorkRequest
	Application          *entity.Application
	RejectedApplications int64
	Warnings             []Warning
}

type AcceptApplicationUseCase struct {
	store      Store
	dispatcher EffectDispatcher
}

func NewAcceptApplicationUseCase(store Store, dispatcher EffectDispatcher) *AcceptApplicationUseCase {
	return &AcceptApplicationUseCase{store: store, dispatcher: dispatcher}
}

// Execute принимает отклик. Принятие, отклонение остальных откликов и закрытие
// приёма выполняются одной транзакцией.
func (uc *AcceptApplicationUseCase) Execute(ctx context.Context, input AcceptApplicationInput) (*ContractResult, error) {
	result := &ContractResult{}

	failures, err := uc.store.commit(ctx, uc.dispatcher, func(ctx context.Context) ([]entity.Effect, error) {
		wr, err := loadWorkRequest(ctx, uc.store.WorkRequests, input.WorkRequestID, false)
		if err != nil {
			return nil, err
		}
		if !wr.Status.CanTransitionTo(valueobject.WorkRequestStatusContracted) {
			return nil, apperror.InvalidState("принять отклик можно только по открытой заявке")
		}
		if wr.RoleOf(input.RequesterID) != valueobject.RoleRequester {
			return nil, apperror.Forbidden("принять отклик может только заказчик")
		}

		app, err := uc.store.Applications.FindByID(ctx, input.ApplicationID)
		if err != nil {
			return nil, err
		}
		if app == nil || app.WorkRequestID != wr.ID {
			return nil, apperror.ErrApplicationNotFound
		}
		if input.ApplicantID != uuid.Nil && app.ApplicantID != input.ApplicantID {
			return nil, apperror.Validation("отклик принадлежит другому исполнителю")
		}

		now := time.Now().UTC()
		if err := app.Accept(now); err != nil {
			return nil, err
		}

		price := input.Price
		if price == 0 {
			price = app.ProposedPrice.Minor()
		}

		from := wr.Status
		if err := wr.Contract(app.ApplicantID, price, input.Deadline, now); err != nil {
			return nil, err
		}

		publish, err := uc.store.saveTransition(ctx, wr, from, &input.RequesterID, "", now)
		if err != nil {
			return nil, err
		}
		if err := uc.store.Applications.Accept(ctx, app); err != nil {
			return nil, err
		}
		// Позиция у заявки одна, поэтому остальные отклики закрываются сразу.
		rejected, err := uc.store.Applications.RejectOtherPending(ctx, wr.ID, app.ID)
		if err != nil {
			return nil, asDependency(err, "не удалось закрыть остальные отклики")
		}

		result.WorkRequest = wr
		result.Application = app
		result.RejectedApplications = rejected
		return []entity.Effect{notifyContractCreated(wr), publish}, nil
	})
	observe("accept_application", err, valueobject.WorkRequestStatusContracted)
	if err != nil {
		return nil, err
	}

	logWarnings("accept_application", input.WorkRequestID, failures)
	result.Warnings = toWarnings(failures)
	return result, nil
}
