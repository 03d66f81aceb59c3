package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
)

// OverdueGrace - сколько ждём после дедлайна, прежде чем считать заявку просроченной.
const OverdueGrace = 7 * 24 * time.Hour

type WorkRequest struct {
	ID               uuid.UUID
	RequesterID      uuid.UUID
	ContractorID     *uuid.UUID
	Title            string
	Description      string
	Budget           valueobject.Amount
	Status           valueobject.WorkRequestStatus
	FinalPrice       *valueobject.Amount
	Deadline         *time.Time
	Positions        int
	ApplicationsOpen bool
	PaymentReference *string
	ContractedAt     *time.Time
	PaidAt           *time.Time
	DeliveredAt      *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewWorkRequest(requesterID uuid.UUID, title, description string, budget int64, deadline *time.Time) (*WorkRequest, error) {
	if title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название заявки обязательно")
	}
	if description == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "описание заявки обязательно")
	}

	amount, err := valueobject.NewAmount(budget)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if deadline != nil && deadline.Before(now) {
		return nil, apperror.New(apperror.ErrCodeValidation, "дедлайн не может быть в прошлом")
	}

	return &WorkRequest{
		ID:               uuid.New(),
		RequesterID:      requesterID,
		Title:            title,
		Description:      description,
		Budget:           amount,
		Status:           valueobject.WorkRequestStatusOpen,
		Deadline:         deadline,
		Positions:        1,
		ApplicationsOpen: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// RoleOf - единственное место, где определяется роль профиля в заявке.
func (w *WorkRequest) RoleOf(profileID uuid.UUID) valueobject.Role {
	switch {
	case profileID == uuid.Nil:
		return valueobject.RoleNone
	case profileID == w.RequesterID:
		return valueobject.RoleRequester
	case w.ContractorID != nil && *w.ContractorID == profileID:
		return valueobject.RoleContractor
	}
	return valueobject.RoleNone
}

// Counterparty возвращает вторую сторону сделки для участника.
func (w *WorkRequest) Counterparty(profileID uuid.UUID) (uuid.UUID, bool) {
	switch w.RoleOf(profileID) {
	case valueobject.RoleRequester:
		if w.ContractorID == nil {
			return uuid.Nil, false
		}
		return *w.ContractorID, true
	case valueobject.RoleContractor:
		return w.RequesterID, true
	}
	return uuid.Nil, false
}

// IsOverdue: now > deadline + 7 дней. Статус не меняет.
func (w *WorkRequest) IsOverdue(now time.Time) bool {
	if w.Deadline == nil {
		return false
	}
	return now.After(w.Deadline.Add(OverdueGrace))
}

func (w *WorkRequest) transition(to valueobject.WorkRequestStatus, message string) error {
	if !w.Status.CanTransitionTo(to) {
		return apperror.InvalidState(message)
	}
	w.Status = to
	return nil
}

// Contract фиксирует исполнителя, итоговую цену и закрывает приём откликов.
func (w *WorkRequest) Contract(contractorID uuid.UUID, price int64, deadline *time.Time, now time.Time) error {
	if err := w.transition(valueobject.WorkRequestStatusContracted, "заключить контракт можно только по открытой заявке"); err != nil {
		return err
	}
	if w.FinalPrice != nil {
		return apperror.InvalidState("итоговая цена уже зафиксирована")
	}
	if contractorID == w.RequesterID {
		return apperror.Validation("нельзя назначить исполнителем автора заявки")
	}

	amount, err := valueobject.NewAmount(price)
	if err != nil {
		return err
	}

	w.ContractorID = &contractorID
	w.FinalPrice = &amount
	if deadline != nil {
		w.Deadline = deadline
	}
	w.ApplicationsOpen = false
	w.ContractedAt = &now
	w.UpdatedAt = now
	return nil
}

func (w *WorkRequest) MarkPaid(paymentReference string, now time.Time) error {
	if err := w.transition(valueobject.WorkRequestStatusPaid, "оплатить можно только заявку со статусом contracted"); err != nil {
		return err
	}
	w.PaymentReference = &paymentReference
	w.PaidAt = &now
	w.UpdatedAt = now
	return nil
}

// CanAcceptDelivery проверяет, что заявка ждёт сдачи работы.
func (w *WorkRequest) CanAcceptDelivery() error {
	if w.Status != valueobject.WorkRequestStatusPaid {
		return apperror.InvalidState("сдать работу можно только по оплаченной заявке")
	}
	return nil
}

func (w *WorkRequest) MarkDelivered(now time.Time) error {
	if err := w.transition(valueobject.WorkRequestStatusDelivered, "сдать работу можно только по оплаченной заявке"); err != nil {
		return err
	}
	w.DeliveredAt = &now
	w.UpdatedAt = now
	return nil
}

func (w *WorkRequest) Complete(now time.Time) error {
	if err := w.transition(valueobject.WorkRequestStatusCompleted, "завершить можно только заявку со сданной работой"); err != nil {
		return err
	}
	w.CompletedAt = &now
	w.UpdatedAt = now
	return nil
}

// ReturnToPaid возвращает заявку в работу после отклонения сдачи.
func (w *WorkRequest) ReturnToPaid(now time.Time) error {
	if w.Status != valueobject.WorkRequestStatusDelivered {
		return apperror.InvalidState("вернуть на доработку можно только сданную работу")
	}
	w.Status = valueobject.WorkRequestStatusPaid
	w.UpdatedAt = now
	return nil
}

func (w *WorkRequest) Cancel(now time.Time) error {
	if err := w.transition(valueobject.WorkRequestStatusCancelled, "отменить можно только действующий контракт"); err != nil {
		return err
	}
	w.CancelledAt = &now
	w.UpdatedAt = now
	return nil
}

// IsCaptured - по заявке удержаны средства, при отмене их нужно вернуть.
func (w *WorkRequest) IsCaptured() bool {
	return w.PaymentReference != nil && *w.PaymentReference != ""
}
