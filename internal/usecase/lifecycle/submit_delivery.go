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

type SubmitDeliveryInput struct {
	WorkRequestID uuid.UUID
	ContractorID  uuid.UUID
	Message       string
	Locator       *string
}

type DeliveryResult struct {
	Delivery    *entity.Delivery
	WorkRequest *entity.WorkRequest
	Warnings    []Warning
}

type SubmitDeliveryUseCase struct {
	store      Store
	dispatcher EffectDispatcher
}

func NewSubmitDeliveryUseCase(store Store, dispatcher EffectDispatcher) *SubmitDeliveryUseCase {
	return &SubmitDeliveryUseCase{store: store, dispatcher: dispatcher}
}

func (uc *SubmitDeliveryUseCase) Execute(ctx context.Context, input SubmitDeliveryInput) (*DeliveryResult, error) {
	locator := ""
	if input.Locator != nil {
		locator = *input.Locator
	}
	if err := checkLength(
		textField{"сообщение к сдаче работы", input.Message, validation.MaxDeliveryMessageLength},
		textField{"ссылка на результат", locator, validation.MaxLocatorLength},
	); err != nil {
		return nil, err
	}

	result := &DeliveryResult{}

	failures, err := uc.store.commit(ctx, uc.dispatcher, func(ctx context.Context) ([]entity.Effect, error) {
		// Строка блокируется, чтобы не разойтись с параллельным запросом на отмену.
		wr, err := loadWorkRequest(ctx, uc.store.WorkRequests, input.WorkRequestID, true)
		if err != nil {
			return nil, err
		}
		if err := wr.CanAcceptDelivery(); err != nil {
			return nil, err
		}
		if wr.RoleOf(input.ContractorID) != valueobject.RoleContractor {
			return nil, apperror.Forbidden("сдать работу может только исполнитель")
		}

		pending, err := uc.store.Cancellations.FindPending(ctx, wr.ID)
		if err != nil {
			return nil, err
		}
		if pending != nil {
			return nil, apperror.InvalidState("по заявке открыт запрос на отмену, сначала нужно ответить на него")
		}

		now := time.Now().UTC()
		delivery, err := entity.NewDelivery(wr.ID, input.ContractorID, input.Message, input.Locator, now)
		if err != nil {
			return nil, err
		}

		from := wr.Status
		if err := wr.MarkDelivered(now); err != nil {
			return nil, err
		}
		publish, err := uc.store.saveTransition(ctx, wr, from, &input.ContractorID, "", now)
		if err != nil {
			return nil, err
		}
		if err := uc.store.Deliveries.Create(ctx, delivery); err != nil {
			return nil, asDependency(err, "не удалось сохранить сдачу работы")
		}

		result.Delivery = delivery
		result.WorkRequest = wr
		return []entity.Effect{notifyDeliverySubmitted(wr), publish}, nil
	})
	observe("submit_delivery", err, valueobject.WorkRequestStatusDelivered)
	if err != nil {
		return nil, err
	}

	logWarnings("submit_delivery", input.WorkRequestID, failures)
	result.Warnings = toWarnings(failures)
	return result, nil
}
