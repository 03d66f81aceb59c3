package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
)

// Delivery - одна сдача результата по заявке. Отклонённые сдачи не удаляются.
type Delivery struct {
	ID            uuid.UUID
	WorkRequestID uuid.UUID
	ContractorID  uuid.UUID
	Message       string
	Locator       *string
	Feedback      *string
	Status        valueobject.DeliveryStatus
	ReviewedAt    *time.Time
	CreatedAt     time.Time
}

func NewDelivery(workRequestID, contractorID uuid.UUID, message string, locator *string, now time.Time) (*Delivery, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperror.Validation("сообщение к сдаче работы обязательно")
	}
	if locator != nil && strings.TrimSpace(*locator) == "" {
		locator = nil
	}

	return &Delivery{
		ID:            uuid.New(),
		WorkRequestID: workRequestID,
		ContractorID:  contractorID,
		Message:       message,
		Locator:       locator,
		Status:        valueobject.DeliveryStatusPending,
		CreatedAt:     now,
	}, nil
}

func (d *Delivery) Approve(now time.Time) error {
	if d.Status != valueobject.DeliveryStatusPending {
		return apperror.InvalidState("работа уже проверена")
	}
	d.Status = valueobject.DeliveryStatusApproved
	d.ReviewedAt = &now
	return nil
}

// Reject требует непустой комментарий для исполнителя.
func (d *Delivery) Reject(feedback string, now time.Time) error {
	if strings.TrimSpace(feedback) == "" {
		return apperror.Validation("при отклонении работы нужен комментарий")
	}
	if d.Status != valueobject.DeliveryStatusPending {
		return apperror.InvalidState("работа уже проверена")
	}
	d.Status = valueobject.DeliveryStatusRejected
	d.Feedback = &feedback
	d.ReviewedAt = &now
	return nil
}
