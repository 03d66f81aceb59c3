package lifecycle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
)

func TestAcceptApplication_ContractsAndRejectsOthers(t *testing.T) {
	f := newFixture(t)
	wr := f.openRequest()
	chosen := f.applyAs(wr, f.contractor, 9000)
	other := f.applyAs(wr, uuid.New(), 8000)

	deadline := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	res, err := f.accept.Execute(f.ctx, lifecycle.AcceptApplicationInput{
		WorkRequestID: wr.ID,
		ApplicationID: chosen.ID,
		RequesterID:   f.requester,
		ApplicantID:   f.contractor,
		Price:         10000,
		Deadline:      &deadline,
	})
	require.NoError(t, err)

	stored := f.db.workRequest(wr.ID)
	assert.Equal(t, valueobject.WorkRequestStatusContracted, stored.Status)
	assert.Equal(t, valueobject.Amount(10000), *stored.FinalPrice)
	assert.Equal(t, f.contractor, *stored.ContractorID)
	assert.Equal(t, deadline, *stored.Deadline)
	assert.False(t, stored.ApplicationsOpen)
	assert.NotNil(t, stored.ContractedAt)
	assert.Equal(t, int64(1), res.RejectedApplications)

	apps, err := f.related.Applications(f.ctx, wr.ID, f.requester)
	require.NoError(t, err)
	statuses := map[uuid.UUID]valueobject.ApplicationStatus{}
	for _, a := range apps {
		statuses[a.ID] = a.Status
	}
	assert.Equal(t, valueobject.ApplicationStatusAccepted, statuses[chosen.ID])
	assert.Equal(t, valueobject.ApplicationStatusRejected, statuses[other.ID])

	notes := f.dispatcher.notificationsTo(f.contractor)
	require.Len(t, notes, 1)
	assert.Equal(t, lifecycle.NotifyContractCreated, notes[0].Payload.NotificationKind)
}

func TestAcceptApplication_FailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	wr := f.openRequest()
	chosen := f.applyAs(wr, f.contractor, 9000)
	f.applyAs(wr, uuid.New(), 8000)
	effectsBefore := f.db.effectCount()
	f.db.rejectOthers = errors.New("connection reset")

	_, err := f.accept.Execute(f.ctx, lifecycle.AcceptApplicationInput{
		WorkRequestID: wr.ID,
		ApplicationID: chosen.ID,
		RequesterID:   f.requester,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsDependency(err))

	stored := f.db.workRequest(wr.ID)
	assert.Equal(t, valueobject.WorkRequestStatusOpen, stored.Status)
	assert.Nil(t, stored.ContractorID)
	assert.Nil(t, stored.FinalPrice)
	assert.True(t, stored.ApplicationsOpen)
	assert.Len(t, f.db.historyOf(wr.ID), 1)
	assert.Equal(t, effectsBefore, f.db.effectCount())
	assert.Empty(t, f.dispatcher.notificationsTo(f.contractor))

	apps, err := f.related.Applications(f.ctx, wr.ID, f.requester)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	for _, a := range apps {
		assert.Equal(t, valueobject.ApplicationStatusPending, a.Status)
	}

	// После сбоя та же операция проходит целиком.
	f.db.rejectOthers = nil
	_, err = f.accept.Execute(f.ctx, lifecycle.AcceptApplicationInput{
		WorkRequestID: wr.ID,
		ApplicationID: chosen.ID,
		RequesterID:   f.requester,
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.WorkRequestStatusContracted, f.db.workRequest(wr.ID).Status)
}

func TestAcceptApplication_UsesProposedPriceByDefault(t *testing.T) {
	f := newFixture(t)
	wr := f.openRequest()
	app := f.applyAs(wr, f.contractor, 7500)

	res, err := f.accept.Execute(f.ctx, lifecycle.AcceptApplicationInput{
		WorkRequestID: wr.ID,
		ApplicationID: app.ID,
		RequesterID:   f.requester,
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.Amount(7500), *res.WorkRequest.FinalPrice)
}

func TestAcceptApplication_ApplicantMismatch(t *testing.T) {
	f := newFixture(t)
	wr := f.openRequest()
	app := f.applyAs(wr, f.contractor, 7500)

	_, err := f.accept.Execute(f.ctx, lifecycle.AcceptApplicationInput{
		WorkRequestID: wr.ID,
		ApplicationID: app.ID,
		RequesterID:   f.requester,
		ApplicantID:   uuid.New(),
	})
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, valueobject.WorkRequestStatusOpen, f.db.workRequest(wr.ID).Status)
}

func TestSubmitApplication_Rules(t *testing.T) {
	f := newFixture(t)
	wr := f.openRequest()

	_, err := f.apply.Execute(f.ctx, lifecycle.SubmitApplicationInput{
		WorkRequestID: wr.ID, ApplicantID: f.requester, Message: "сам себе", ProposedPrice: 100,
	})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.apply.Execute(f.ctx, lifecycle.SubmitApplicationInput{
		WorkRequestID: wr.ID, ApplicantID: f.contractor, Message: "", ProposedPrice: 100,
	})
	assert.True(t, apperror.IsValidation(err))

	contracted := f.contracted()
	_, err = f.apply.Execute(f.ctx, lifecycle.SubmitApplicationInput{
		WorkRequestID: contracted.ID, ApplicantID: uuid.New(), Message: "поздно", ProposedPrice: 100,
	})
	assert.True(t, apperror.IsInvalidState(err))
}

func TestPay_CapturesAndMarksPaid(t *testing.T) {
	f := newFixture(t)
	wr := f.contracted()

	res, err := f.pay.Execute(f.ctx, wr.ID, f.requester)
	require.NoError(t, err)
	assert.Equal(t, valueobject.WorkRequestStatusPaid, res.WorkRequest.Status)

	stored := f.db.workRequest(wr.ID)
	assert.Equal(t, valueobject.WorkRequestStatusPaid, stored.Status)
	assert.NotNil(t, stored.PaidAt)
	assert.True(t, stored.IsCaptured())
	assert.Equal(t, 1, f.payments.captures)
}

func TestPay_LocksRowAndSecondPayIsInvalidState(t *testing.T) {
	f := newFixture(t)
	wr := f.contracted()
	locksBefore := f.db.lockedLoadsOf(wr.ID)

	_, err := f.pay.Execute(f.ctx, wr.ID, f.requester)
	require.NoError(t, err)
	assert.Greater(t, f.db.lockedLoadsOf(wr.ID), locksBefore)

	_, err = f.pay.Execute(f.ctx, wr.ID, f.requester)
	assert.True(t, apperror.IsInvalidState(err))
	assert.Equal(t, 1, f.payments.captures)
}

func TestPay_DeclinedKeepsStatus(t *testing.T) {
	f := newFixture(t)
	wr := f.contracted()
	f.payments.declineAll = true

	_, err := f.pay.Execute(f.ctx, wr.ID, f.requester)
	require.Error(t, err)
	assert.Equal(t, apperror.ErrCodePaymentDeclined, apperror.CodeOf(err))
	assert.Equal(t, valueobject.WorkRequestStatusContracted, f.db.workRequest(wr.ID).Status)
}

func TestDeliveryCycle_RejectThenApprove(t *testing.T) {
	f := newFixture(t)
	wr, d1 := f.delivered()
	assert.Equal(t, valueobject.WorkRequestStatusDelivered, f.db.workRequest(wr.ID).Status)
	assert.Equal(t, valueobject.DeliveryStatusPending, d1.Status)

	_, err := f.review.Execute(f.ctx, lifecycle.ReviewDeliveryInput{
		DeliveryID: d1.ID, RequesterID: f.requester, Decision: valueobject.DecisionReject, Feedback: "нужна доработка",
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.DeliveryStatusRejected, f.db.delivery(d1.ID).Status)
	assert.Equal(t, valueobject.WorkRequestStatusPaid, f.db.workRequest(wr.ID).Status)

	rejected := f.dispatcher.notificationsTo(f.contractor)
	assert.Equal(t, "нужна доработка", rejected[len(rejected)-1].Payload.Body)

	res, err := f.deliver.Execute(f.ctx, lifecycle.SubmitDeliveryInput{
		WorkRequestID: wr.ID, ContractorID: f.contractor, Message: "исправил",
	})
	require.NoError(t, err)
	d2 := res.Delivery

	_, err = f.review.Execute(f.ctx, lifecycle.ReviewDeliveryInput{
		DeliveryID: d2.ID, RequesterID: f.requester, Decision: valueobject.DecisionApprove,
	})
	require.NoError(t, err)

	stored := f.db.workRequest(wr.ID)
	assert.Equal(t, valueobject.WorkRequestStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, valueobject.DeliveryStatusApproved, f.db.delivery(d2.ID).Status)

	deliveries, err := f.related.Deliveries(f.ctx, wr.ID, f.contractor)
	require.NoError(t, err)
	assert.Len(t, deliveries, 2, "отклонённые сдачи сохраняются")

	assert.Len(t, f.db.effectsOf(entity.EffectRelease), 1)
}

func TestReviewDelivery_RejectWithoutFeedback(t *testing.T) {
	f := newFixture(t)
	wr, d := f.delivered()

	_, err := f.review.Execute(f.ctx, lifecycle.ReviewDeliveryInput{
		DeliveryID: d.ID, RequesterID: f.requester, Decision: valueobject.DecisionReject,
	})
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, valueobject.WorkRequestStatusDelivered, f.db.workRequest(wr.ID).Status)
	assert.Equal(t, valueobject.DeliveryStatusPending, f.db.delivery(d.ID).Status)
}

func TestReviewDelivery_UnknownDecision(t *testing.T) {
	f := newFixture(t)
	_, d := f.delivered()

	_, err := f.review.Execute(f.ctx, lifecycle.ReviewDeliveryInput{
		DeliveryID: d.ID, RequesterID: f.requester, Decision: "maybe",
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestReviewDelivery_StaleDelivery(t *testing.T) {
	f := newFixture(t)
	wr, d1 := f.delivered()
	_, err := f.review.Execute(f.ctx, lifecycle.ReviewDeliveryInput{
		DeliveryID: d1.ID, RequesterID: f.requester, Decision: valueobject.DecisionReject, Feedback: "ещё раз",
	})
	require.NoError(t, err)
	_, err = f.deliver.Execute(f.ctx, lifecycle.SubmitDeliveryInput{
		WorkRequestID: wr.ID, ContractorID: f.contractor, Message: "вторая версия",
	})
	require.NoError(t, err)

	_, err = f.review.Execute(f.ctx, lifecycle.ReviewDeliveryInput{
		DeliveryID: d1.ID, RequesterID: f.requester, Decision: valueobject.DecisionApprove,
	})
	assert.True(t, apperror.IsInvalidState(err))
	assert.Equal(t, valueobject.WorkRequestStatusDelivered, f.db.workRequest(wr.ID).Status)
}

// Недопустимый переход всегда даёт InvalidState и не меняет статус.
func TestIllegalTransitions(t *testing.T) {
	type operation struct {
		allowed []valueobject.WorkRequestStatus
		run     func(f *fixture, wr *entity.WorkRequest) error
	}

	ops := map[string]operation{
		"accept": {
			allowed: []valueobject.WorkRequestStatus{valueobject.WorkRequestStatusOpen},
			run: func(f *fixture, wr *entity.WorkRequest) error {
				_, err := f.accept.Execute(f.ctx, lifecycle.AcceptApplicationInput{
					WorkRequestID: wr.ID, ApplicationID: uuid.New(), RequesterID: f.requester, Price: 500,
				})
				return err
			},
		},
		"pay": {
			allowed: []valueobject.WorkRequestStatus{valueobject.WorkRequestStatusContracted},
			run: func(f *fixture, wr *entity.WorkRequest) error {
				_, err := f.pay.Execute(f.ctx, wr.ID, f.requester)
				return err
			},
		},
		"deliver": {
			allowed: []valueobject.WorkRequestStatus{valueobject.WorkRequestStatusPaid},
			run: func(f *fixture, wr *entity.WorkRequest) error {
				_, err := f.deliver.Execute(f.ctx, lifecycle.SubmitDeliveryInput{
					WorkRequestID: wr.ID, ContractorID: f.contractor, Message: "готово",
				})
				return err
			},
		},
		"propose_cancellation": {
			allowed: []valueobject.WorkRequestStatus{valueobject.WorkRequestStatusContracted, valueobject.WorkRequestStatusPaid},
			run: func(f *fixture, wr *entity.WorkRequest) error {
				_, err := f.propose.Execute(f.ctx, lifecycle.ProposeCancellationInput{
					WorkRequestID: wr.ID, InitiatorID: f.requester, Reason: "причина",
				})
				return err
			},
		},
	}

	for name, op := range ops {
		for _, status := range valueobject.AllWorkRequestStatuses() {
			allowed := false
			for _, s := range op.allowed {
				if s == status {
					allowed = true
				}
			}
			if allowed {
				continue
			}

			t.Run(name+"_from_"+string(status), func(t *testing.T) {
				f := newFixture(t)
				wr := f.inStatus(status)

				err := op.run(f, wr)
				assert.True(t, apperror.IsInvalidState(err), "got %v", err)
				assert.Equal(t, status, f.db.workRequest(wr.ID).Status)
			})
		}
	}
}

func TestRoleEnforcement(t *testing.T) {
	t.Run("accept by non-requester", func(t *testing.T) {
		f := newFixture(t)
		wr := f.openRequest()
		app := f.applyAs(wr, f.contractor, 100)
		for _, actor := range []uuid.UUID{f.stranger, f.contractor} {
			_, err := f.accept.Execute(f.ctx, lifecycle.AcceptApplicationInput{
				WorkRequestID: wr.ID, ApplicationID: app.ID, RequesterID: actor,
			})
			assert.True(t, apperror.IsForbidden(err))
		}
		assert.Equal(t, valueobject.WorkRequestStatusOpen, f.db.workRequest(wr.ID).Status)
	})

	t.Run("pay by contractor or stranger", func(t *testing.T) {
		f := newFixture(t)
		wr := f.contracted()
		for _, actor := range []uuid.UUID{f.stranger, f.contractor} {
			_, err := f.pay.Execute(f.ctx, wr.ID, actor)
			assert.True(t, apperror.IsForbidden(err))
		}
		assert.Equal(t, 0, f.payments.captures)
	})

	t.Run("deliver by requester or stranger", func(t *testing.T) {
		f := newFixture(t)
		wr := f.paid()
		for _, actor := range []uuid.UUID{f.stranger, f.requester} {
			_, err := f.deliver.Execute(f.ctx, lifecycle.SubmitDeliveryInput{
				WorkRequestID: wr.ID, ContractorID: actor, Message: "готово",
			})
			assert.True(t, apperror.IsForbidden(err))
		}
		assert.Equal(t, valueobject.WorkRequestStatusPaid, f.db.workRequest(wr.ID).Status)
	})

	t.Run("review by contractor or stranger", func(t *testing.T) {
		f := newFixture(t)
		wr, d := f.delivered()
		for _, actor := range []uuid.UUID{f.stranger, f.contractor} {
			_, err := f.review.Execute(f.ctx, lifecycle.ReviewDeliveryInput{
				DeliveryID: d.ID, RequesterID: actor, Decision: valueobject.DecisionApprove,
			})
			assert.True(t, apperror.IsForbidden(err))
		}
		assert.Equal(t, valueobject.WorkRequestStatusDelivered, f.db.workRequest(wr.ID).Status)
	})

	t.Run("cancellation by stranger", func(t *testing.T) {
		f := newFixture(t)
		wr := f.paid()
		_, err := f.propose.Execute(f.ctx, lifecycle.ProposeCancellationInput{
			WorkRequestID: wr.ID, InitiatorID: f.stranger, Reason: "хочу",
		})
		assert.True(t, apperror.IsForbidden(err))
	})

	t.Run("read access", func(t *testing.T) {
		f := newFixture(t)
		wr := f.paid()
		_, err := f.get.Execute(f.ctx, wr.ID, f.stranger)
		assert.True(t, apperror.IsForbidden(err))

		view, err := f.get.Execute(f.ctx, wr.ID, f.contractor)
		require.NoError(t, err)
		assert.Equal(t, valueobject.RoleContractor, view.Role)

		_, err = f.related.History(f.ctx, wr.ID, f.stranger)
		assert.True(t, apperror.IsForbidden(err))
	})
}

func TestFinalPriceNeverChanges(t *testing.T) {
	f := newFixture(t)
	wr := f.completed()

	stored := f.db.workRequest(wr.ID)
	assert.Equal(t, valueobject.Amount(10000), *stored.FinalPrice)

	_, err := f.accept.Execute(f.ctx, lifecycle.AcceptApplicationInput{
		WorkRequestID: wr.ID, ApplicationID: uuid.New(), RequesterID: f.requester, Price: 99999,
	})
	assert.True(t, apperror.IsInvalidState(err))
	assert.Equal(t, valueobject.Amount(10000), *f.db.workRequest(wr.ID).FinalPrice)
}

func TestCompletedOnlyThroughSingleApprovedDelivery(t *testing.T) {
	f := newFixture(t)
	wr := f.completed()

	_, err := f.deliver.Execute(f.ctx, lifecycle.SubmitDeliveryInput{
		WorkRequestID: wr.ID, ContractorID: f.contractor, Message: "ещё одна",
	})
	assert.True(t, apperror.IsInvalidState(err))

	deliveries, err := f.related.Deliveries(f.ctx, wr.ID, f.requester)
	require.NoError(t, err)
	approved := 0
	for _, d := range deliveries {
		if d.Status == valueobject.DeliveryStatusApproved {
			approved++
		}
	}
	assert.Equal(t, 1, approved)
}

func TestEveryTransitionNotifiesCounterpartyOnce(t *testing.T) {
	f := newFixture(t)
	f.completed()

	kinds := map[string]int{}
	for _, e := range f.dispatcher.notificationsTo(f.contractor) {
		kinds[e.Payload.NotificationKind]++
	}
	assert.Equal(t, map[string]int{
		lifecycle.NotifyContractCreated:  1,
		lifecycle.NotifyPaymentReceived:  1,
		lifecycle.NotifyDeliveryApproved: 1,
	}, kinds)

	kinds = map[string]int{}
	for _, e := range f.dispatcher.notificationsTo(f.requester) {
		kinds[e.Payload.NotificationKind]++
	}
	assert.Equal(t, map[string]int{
		lifecycle.NotifyApplicationReceived: 1,
		lifecycle.NotifyDeliverySubmitted:   1,
	}, kinds)
}

func TestWarningsDoNotFailTransition(t *testing.T) {
	f := newFixture(t)
	wr := f.contracted()
	f.dispatcher.failKinds[entity.EffectNotify] = true

	res, err := f.pay.Execute(f.ctx, wr.ID, f.requester)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, string(entity.EffectNotify), res.Warnings[0].Kind)
	assert.Equal(t, valueobject.WorkRequestStatusPaid, f.db.workRequest(wr.ID).Status)
}

func TestCreateWorkRequest_ValidatesText(t *testing.T) {
	f := newFixture(t)

	_, err := f.create.Execute(f.ctx, lifecycle.CreateWorkRequestInput{
		RequesterID: f.requester,
		Title:       "Лого",
		Description: "коротко",
		Budget:      5000,
	})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.create.Execute(f.ctx, lifecycle.CreateWorkRequestInput{
		RequesterID: f.requester,
		Title:       "  ",
		Description: "Логотип для студии звукозаписи",
		Budget:      5000,
	})
	assert.True(t, apperror.IsValidation(err))
}
