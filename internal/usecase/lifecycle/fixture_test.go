package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
)

type fixture struct {
	t          *testing.T
	ctx        context.Context
	db         *memoryDB
	payments   *fakePayments
	dispatcher *recordingDispatcher

	requester  uuid.UUID
	contractor uuid.UUID
	stranger   uuid.UUID

	create    *lifecycle.CreateWorkRequestUseCase
	apply     *lifecycle.SubmitApplicationUseCase
	accept    *lifecycle.AcceptApplicationUseCase
	pay       *lifecycle.PayUseCase
	deliver   *lifecycle.SubmitDeliveryUseCase
	review    *lifecycle.ReviewDeliveryUseCase
	propose   *lifecycle.ProposeCancellationUseCase
	respond   *lifecycle.RespondCancellationUseCase
	sweep     *lifecycle.SweepExpiredCancellationsUseCase
	get       *lifecycle.GetWorkRequestUseCase
	related   *lifecycle.ListRelatedUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemoryDB()
	store := db.store()
	payments := &fakePayments{}
	dispatcher := newRecordingDispatcher()

	return &fixture{
		t:          t,
		ctx:        context.Background(),
		db:         db,
		payments:   payments,
		dispatcher: dispatcher,
		requester:  uuid.New(),
		contractor: uuid.New(),
		stranger:   uuid.New(),
		create:     lifecycle.NewCreateWorkRequestUseCase(store),
		apply:      lifecycle.NewSubmitApplicationUseCase(store, dispatcher),
		accept:     lifecycle.NewAcceptApplicationUseCase(store, dispatcher),
		pay:        lifecycle.NewPayUseCase(store, payments, dispatcher),
		deliver:    lifecycle.NewSubmitDeliveryUseCase(store, dispatcher),
		review:     lifecycle.NewReviewDeliveryUseCase(store, dispatcher),
		propose:    lifecycle.NewProposeCancellationUseCase(store, dispatcher),
		respond:    lifecycle.NewRespondCancellationUseCase(store, dispatcher),
		sweep:      lifecycle.NewSweepExpiredCancellationsUseCase(store, dispatcher, entity.CancellationTimeout, 10),
		get:        lifecycle.NewGetWorkRequestUseCase(store),
		related:    lifecycle.NewListRelatedUseCase(store),
	}
}

func (f *fixture) openRequest() *entity.WorkRequest {
	f.t.Helper()
	wr, err := f.create.Execute(f.ctx, lifecycle.CreateWorkRequestInput{
		RequesterID: f.requester,
		Title:       "Иллюстрация к обложке",
		Description: "Обложка для книги, формат A4",
		Budget:      12000,
	})
	require.NoError(f.t, err)
	return wr
}

func (f *fixture) applyAs(wr *entity.WorkRequest, applicant uuid.UUID, price int64) *entity.Application {
	f.t.Helper()
	res, err := f.apply.Execute(f.ctx, lifecycle.SubmitApplicationInput{
		WorkRequestID: wr.ID,
		ApplicantID:   applicant,
		Message:       "Готов взяться",
		ProposedPrice: price,
	})
	require.NoError(f.t, err)
	return res.Application
}

func (f *fixture) contracted() *entity.WorkRequest {
	f.t.Helper()
	wr := f.openRequest()
	app := f.applyAs(wr, f.contractor, 10000)
	res, err := f.accept.Execute(f.ctx, lifecycle.AcceptApplicationInput{
		WorkRequestID: wr.ID,
		ApplicationID: app.ID,
		RequesterID:   f.requester,
		ApplicantID:   f.contractor,
		Price:         10000,
	})
	require.NoError(f.t, err)
	return res.WorkRequest
}

func (f *fixture) paid() *entity.WorkRequest {
	f.t.Helper()
	wr := f.contracted()
	res, err := f.pay.Execute(f.ctx, wr.ID, f.requester)
	require.NoError(f.t, err)
	return res.WorkRequest
}

func (f *fixture) delivered() (*entity.WorkRequest, *entity.Delivery) {
	f.t.Helper()
	wr := f.paid()
	res, err := f.deliver.Execute(f.ctx, lifecycle.SubmitDeliveryInput{
		WorkRequestID: wr.ID,
		ContractorID:  f.contractor,
		Message:       "готово",
	})
	require.NoError(f.t, err)
	return res.WorkRequest, res.Delivery
}

func (f *fixture) completed() *entity.WorkRequest {
	f.t.Helper()
	wr, d := f.delivered()
	_, err := f.review.Execute(f.ctx, lifecycle.ReviewDeliveryInput{
		DeliveryID:  d.ID,
		RequesterID: f.requester,
		Decision:    valueobject.DecisionApprove,
	})
	require.NoError(f.t, err)
	return wr
}

func (f *fixture) cancelled() *entity.WorkRequest {
	f.t.Helper()
	wr := f.contracted()
	c, err := f.propose.Execute(f.ctx, lifecycle.ProposeCancellationInput{
		WorkRequestID: wr.ID,
		InitiatorID:   f.requester,
		Reason:        "передумал",
	})
	require.NoError(f.t, err)
	_, err = f.respond.Execute(f.ctx, lifecycle.RespondCancellationInput{
		CancellationID: c.Cancellation.ID,
		ResponderID:    f.contractor,
		Decision:       valueobject.DecisionApprove,
	})
	require.NoError(f.t, err)
	return wr
}

// inStatus создаёт заявку в нужном статусе.
func (f *fixture) inStatus(status valueobject.WorkRequestStatus) *entity.WorkRequest {
	f.t.Helper()
	switch status {
	case valueobject.WorkRequestStatusOpen:
		return f.openRequest()
	case valueobject.WorkRequestStatusContracted:
		return f.contracted()
	case valueobject.WorkRequestStatusPaid:
		return f.paid()
	case valueobject.WorkRequestStatusDelivered:
		wr, _ := f.delivered()
		return wr
	case valueobject.WorkRequestStatusCompleted:
		return f.completed()
	case valueobject.WorkRequestStatusCancelled:
		return f.cancelled()
	}
	f.t.Fatalf("unknown status %s", status)
	return nil
}

func (f *fixture) expire(cancellationID uuid.UUID) time.Time {
	created := time.Now().UTC().Add(-8 * 24 * time.Hour)
	f.db.setCancellationCreatedAt(cancellationID, created)
	return time.Now().UTC()
}
