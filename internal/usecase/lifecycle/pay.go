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

type WorkRequestResult struct {
	WorkRequest *entity.WorkRequest
	Warnings    []Warning
}

type PayUseCase struct {
	store      Store
	payments   repository.PaymentGateway
	dispatcher EffectDispatcher
}

func NewPayUseCase(store Store, payments repository.PaymentGateway, dispatcher EffectDispatcher) *PayUseCase {
	return &PayUseCase{store: store, payments: payments, dispatcher: dispatcher}
}

// Execute удерживает оплату и переводит заявку в paid. Если удержание не прошло,
// статус не меняется.
func (uc *PayUseCase) Execute(ctx context.Context, workRequestID, payerID uuid.UUID) (*WorkRequestResult, error) {
	var wr *entity.WorkRequest

	failures, err := uc.store.commit(ctx, uc.dispatcher, func(ctx context.Context) ([]entity.Effect, error) {
		var err error
		// Строка блокируется до коммита: второй параллельный pay увидит paid.
		wr, err = loadWorkRequest(ctx, uc.store.WorkRequests, workRequestID, true)
		if err != nil {
			return nil, err
		}
		if wr.Status != valueobject.WorkRequestStatusContracted {
			return nil, apperror.InvalidState("оплатить можно только заявку со статусом contracted")
		}
		if wr.RoleOf(payerID) != valueobject.RoleRequester {
			return nil, apperror.Forbidden("оплатить заявку может только заказчик")
		}

		reference, err := uc.payments.Capture(ctx, wr.ID, payerID, wr.FinalPrice.Minor())
		if err != nil {
			return nil, asDependency(err, "платёжный сервис недоступен")
		}

		now := time.Now().UTC()
		from := wr.Status
		if err := wr.MarkPaid(reference, now); err != nil {
			return nil, err
		}
		publish, err := uc.store.saveTransition(ctx, wr, from, &payerID, "", now)
		if err != nil {
			return nil, err
		}
		return []entity.Effect{notifyPaymentReceived(wr), publish}, nil
	})
	observe("pay", err, valueobject.WorkRequestStatusPaid)
	if err != nil {
		return nil, err
	}

	logWarnings("pay", workRequestID, failures)
	return &WorkRequestResult{WorkRequest: wr, Warnings: toWarnings(failures)}, nil
}
