package valueobject

import "github.com/ignatzorin/commissions-backend/internal/pkg/apperror"

type WorkRequestStatus string

const (
	WorkRequestStatusOpen       WorkRequestStatus = "open"
	WorkRequestStatusContracted WorkRequestStatus = "contracted"
	WorkRequestStatusPaid       WorkRequestStatus = "paid"
	WorkRequestStatusDelivered  WorkRequestStatus = "delivered"
	WorkRequestStatusCompleted  WorkRequestStatus = "completed"
	WorkRequestStatusCancelled  WorkRequestStatus = "cancelled"
)

// workRequestTransitions - полная таблица допустимых переходов заявки.
// delivered -> paid это возврат работы на доработку.
var workRequestTransitions = map[WorkRequestStatus][]WorkRequestStatus{
	WorkRequestStatusOpen:       {WorkRequestStatusContracted},
	WorkRequestStatusContracted: {WorkRequestStatusPaid, WorkRequestStatusCancelled},
	WorkRequestStatusPaid:       {WorkRequestStatusDelivered, WorkRequestStatusCancelled},
	WorkRequestStatusDelivered:  {WorkRequestStatusCompleted, WorkRequestStatusPaid},
	WorkRequestStatusCompleted:  {},
	WorkRequestStatusCancelled:  {},
}

func (s WorkRequestStatus) IsValid() bool {
	_, ok := workRequestTransitions[s]
	return ok
}

func (s WorkRequestStatus) CanTransitionTo(newStatus WorkRequestStatus) bool {
	for _, status := range workRequestTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal - из completed и cancelled переходов нет.
func (s WorkRequestStatus) IsTerminal() bool {
	return s.IsValid() && len(workRequestTransitions[s]) == 0
}

// AllowsCancellation - запрос на отмену можно создать только по действующему контракту.
func (s WorkRequestStatus) AllowsCancellation() bool {
	return s == WorkRequestStatusContracted || s == WorkRequestStatusPaid
}

// AllWorkRequestStatuses возвращает статусы в порядке жизненного цикла.
func AllWorkRequestStatuses() []WorkRequestStatus {
	return []WorkRequestStatus{
		WorkRequestStatusOpen,
		WorkRequestStatusContracted,
		WorkRequestStatusPaid,
		WorkRequestStatusDelivered,
		WorkRequestStatusCompleted,
		WorkRequestStatusCancelled,
	}
}

func NewWorkRequestStatus(status string) (WorkRequestStatus, error) {
	s := WorkRequestStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заявки")
	}
	return s, nil
}

type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusAccepted ApplicationStatus = "accepted"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusAccepted, ApplicationStatusRejected:
		return true
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryStatusPending  DeliveryStatus = "pending"
	DeliveryStatusApproved DeliveryStatus = "approved"
	DeliveryStatusRejected DeliveryStatus = "rejected"
)

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusApproved, DeliveryStatusRejected:
		return true
	}
	return false
}

type CancellationStatus string

const (
	CancellationStatusPending  CancellationStatus = "pending"
	CancellationStatusApproved CancellationStatus = "approved"
	CancellationStatusRejected CancellationStatus = "rejected"
)

func (s CancellationStatus) IsValid() bool {
	switch s {
	case CancellationStatusPending, CancellationStatusApproved, CancellationStatusRejected:
		return true
	}
	return false
}

// Decision - ответ стороны на сдачу работы или запрос на отмену.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func NewDecision(decision string) (Decision, error) {
	d := Decision(decision)
	switch d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "решение должно быть approve или reject")
}
