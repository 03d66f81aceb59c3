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

type ReviewDeliveryInput struct {
	DeliveryID  uuid.UUID
	RequesterID uuid.UUID
	Decision    valueobject.Decision
	Feedback    string
}

type ReviewDeliveryUseCase struct {
	store      Store
	dispatcher EffectDispatcher
}

func NewReviewDeliveryUseCase(store Store, dispatcher EffectDispatcher) *ReviewDeliveryUseCase {
	return &ReviewDeliveryUseCase{store: store, dispatcher: dispatcher}
}

// Execute принимает или возвращает сдачу. Принятие - единственный путь в completed.
func (uc *ReviewDeliveryUseCase) Execute(ctx context.Context, input ReviewDeliveryInput) (*DeliveryResult, error) {
	if _, err := valueobject.NewDecision(string(input.Decision)); err != nil {
		return nil, err
	}

	if err := checkLength(textField{"комментарий к работе", input.Feedback, validation.MaxFeedbackLength}); err != nil {
		return nil, err
	}

	result := &DeliveryResult{}
	to := valueobject.WorkRequestStatusCompleted
	if input.Decision == valueobject.DecisionReject {
		to = valueobject.WorkRequestStatusPaid
	}

	failures, err := uc.store.commit(ctx, uc.dispatcher, func(ctx context.Context) ([]entity.Effect, error) {
		delivery, err := uc.store.Deliveries.FindByID(ctx, input.DeliveryID)
		if err != nil {
			return nil, err
		}
		if delivery == nil {
			return nil, apperror.ErrDeliveryNotFound
		}

		wr, err := loadWorkRequest(ctx, uc.store.WorkRequests, delivery.WorkRequestID, false)
		if err != nil {
			return nil, err
		}
		if wr.Status != valueobject.WorkRequestStatusDelivered {
			return nil, apperror.InvalidState("проверить можно только сданную работу")
		}
		if delivery.Status != valueobject.DeliveryStatusPending {
			return nil, apperror.InvalidState("эта сдача уже проверена")
		}
		if wr.RoleOf(input.RequesterID) != valueobject.RoleRequester {
			return nil, apperror.Forbidden("проверить работу может только заказчик")
		}

		now := time.Now().UTC()
		from := wr.Status
		var effects []entity.Effect

		switch input.Decision {
		case valueobject.DecisionApprove:
			if err := delivery.Approve(now); err != nil {
				return nil, err
			}
			if err := wr.Complete(now); err != nil {
				return nil, err
			}
			effects = append(effects, notifyDeliveryApproved(wr))
			if wr.IsCaptured() {
				effects = append(effects, entity.NewReleaseEffect(wr.ID, *wr.PaymentReference))
			}
		case valueobject.DecisionReject:
			if err := delivery.Reject(input.Feedback, now); err != nil {
				return nil, err
			}
			if err := wr.ReturnToPaid(now); err != nil {
				return nil, err
			}
			effects = append(effects, notifyDeliveryRejected(wr, input.Feedback))
		}

		if err := uc.store.Deliveries.Resolve(ctx, delivery); err != nil {
			return nil, err
		}
		publish, err := uc.store.saveTransition(ctx, wr, from, &input.RequesterID, string(input.Decision), now)
		if err != nil {
			return nil, err
		}

		result.Delivery = delivery
		result.WorkRequest = wr
		return append(effects, publish), nil
	})
	observe("review_delivery", err, to)
	if err != nil {
		return nil, err
	}

	logWarnings("review_delivery", result.WorkRequest.ID, failures)
	result.Warnings = toWarnings(failures)
	return result, nil
}
