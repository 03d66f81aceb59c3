package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/validation"
)

type ProposeCancellationInput struct {
	WorkRequestID uuid.UUID
	InitiatorID   uuid.UUID
	Reason        string
}

type ProposeCancellationUseCase struct {
	store      Store
	dispatcher EffectDispatcher
}

func NewProposeCancellationUseCase(store Store, dispatcher EffectDispatcher) *ProposeCancellationUseCase {
	return &ProposeCancellationUseCase{store: store, dispatcher: dispatcher}
}

// Execute создаёт pending запрос на отмену. Статус заявки не меняется.
func (uc *ProposeCancellationUseCase) Execute(ctx context.Context, input ProposeCancellationInput) (*CancellationResult, error) {
	if err := checkLength(textField{"причина отмены", input.Reason, validation.MaxReasonLength}); err != nil {
		return nil, err
	}

	result := &CancellationResult{}

	failures, err := uc.store.commit(ctx, uc.dispatcher, func(ctx context.Context) ([]entity.Effect, error) {
		wr, err := loadWorkRequest(ctx, uc.store.WorkRequests, input.WorkRequestID, true)
		if err != nil {
			return nil, err
		}

		c, err := entity.NewCancellationRequest(wr, input.InitiatorID, input.Reason, time.Now().UTC())
		if err != nil {
			return nil, err
		}

		pending, err := uc.store.Cancellations.FindPending(ctx, wr.ID)
		if err != nil {
			return nil, err
		}
		if pending != nil {
			return nil, apperror.ErrPendingCancellation
		}
		// Уникальный индекс по pending запросам закрывает гонку двух одновременных предложений.
		if err := uc.store.Cancellations.Create(ctx, c); err != nil {
			return nil, err
		}

		counterparty, _ := wr.Counterparty(input.InitiatorID)
		result.Cancellation = c
		result.WorkRequest = wr
		return []entity.Effect{notifyCancellationRequested(wr, counterparty, c.Reason)}, nil
	})
	observe("propose_cancellation", err, "")
	if err != nil {
		return nil, err
	}

	logWarnings("propose_cancellation", input.WorkRequestID, failures)
	result.Warnings = toWarnings(failures)
	return result, nil
}
