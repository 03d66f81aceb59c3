package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
)

// Application - отклик исполнителя на открытую заявку.
type Application struct {
	ID            uuid.UUID
	WorkRequestID uuid.UUID
	ApplicantID   uuid.UUID
	Message       string
	ProposedPrice valueobject.Amount
	Status        valueobject.ApplicationStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewApplication(workRequest *WorkRequest, applicantID uuid.UUID, message string, proposedPrice int64) (*Application, error) {
	if workRequest.RoleOf(applicantID) == valueobject.RoleRequester {
		return nil, apperror.Forbidden("нельзя откликнуться на собственную заявку")
	}
	if workRequest.Status != valueobject.WorkRequestStatusOpen || !workRequest.ApplicationsOpen {
		return nil, apperror.InvalidState("приём откликов по заявке закрыт")
	}
	if message == "" {
		return nil, apperror.Validation("текст отклика обязателен")
	}

	price, err := valueobject.NewAmount(proposedPrice)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Application{
		ID:            uuid.New(),
		WorkRequestID: workRequest.ID,
		ApplicantID:   applicantID,
		Message:       message,
		ProposedPrice: price,
		Status:        valueobject.ApplicationStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (a *Application) Accept(now time.Time) error {
	if a.Status != valueobject.ApplicationStatusPending {
		return apperror.InvalidState("принять можно только отклик на рассмотрении")
	}
	a.Status = valueobject.ApplicationStatusAccepted
	a.UpdatedAt = now
	return nil
}
