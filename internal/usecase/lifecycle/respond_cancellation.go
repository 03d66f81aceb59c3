package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
)

// ApprovedByCounterpartyNote пишется в запрос, одобренный второй стороной.
const ApprovedByCounterpartyNote = "одобрено второй стороной"

type RespondCancellationInput struct {
	CancellationID uuid.UUID
	ResponderID    uuid.UUID
	Decision       valueobject.Decision
}

type RespondCancellationUseCase struct {
	store      Store
	dispatcher EffectDispatcher
}

func NewRespondCancellationUseCase(store Store, dispatcher EffectDispatcher) *RespondCancellationUseCase {
	return &RespondCancellationUseCase{store: store, dispatcher: dispatcher}
}

func (uc *RespondCancellationUseCase) Execute(ctx context.Context, input RespondCancellationInput) (*CancellationResult, error) {
	if _, err := valueobject.NewDecision(string(input.Decision)); err != nil {
		return nil, err
	}

	result := &CancellationResult{}
	var to valueobject.WorkRequestStatus
	if input.Decision == valueobject.DecisionApprove {
		to = valueobject.WorkRequestStatusCancelled
	}

	failures, err := uc.store.commit(ctx, uc.dispatcher, func(ctx context.Context) ([]entity.Effect, error) {
		c, wr, err := loadCancellation(ctx, uc.store, input.CancellationID)
		if err != nil {
			return nil, err
		}
		// Проигравший гонку с обходом или со вторым ответом получает конфликт.
		if c.Status != valueobject.CancellationStatusPending {
			return nil, apperror.Conflict("запрос на отмену уже рассмотрен")
		}
		if !wr.RoleOf(input.ResponderID).IsParty() {
			return nil, apperror.Forbidden("ответить на запрос может только участник сделки")
		}
		if input.ResponderID == c.InitiatorID {
			return nil, apperror.Forbidden("нельзя ответить на собственный запрос на отмену")
		}

		now := time.Now().UTC()
		result.Cancellation = c
		result.WorkRequest = wr

		if input.Decision == valueobject.DecisionApprove {
			return approveCancellation(ctx, uc.store, c, wr, &input.ResponderID, ApprovedByCounterpartyNote, now)
		}

		if err := c.Reject(input.ResponderID, now); err != nil {
			return nil, err
		}
		if err := uc.store.Cancellations.Resolve(ctx, c); err != nil {
			return nil, err
		}
		return []entity.Effect{notifyCancellationRejected(wr, c)}, nil
	})
	observe("respond_cancellation", err, to)
	if err != nil {
		return nil, err
	}

	logWarnings("respond_cancellation", result.WorkRequest.ID, failures)
	result.Warnings = toWarnings(failures)
	return result, nil
}
