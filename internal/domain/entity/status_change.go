package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
)

// StatusChange - запись журнала переходов заявки.
type StatusChange struct {
	ID            uuid.UUID
	WorkRequestID uuid.UUID
	FromStatus    valueobject.WorkRequestStatus
	ToStatus      valueobject.WorkRequestStatus
	ActorID       *uuid.UUID
	Note          string
	CreatedAt     time.Time
}

func NewStatusChange(workRequestID uuid.UUID, from, to valueobject.WorkRequestStatus, actorID *uuid.UUID, note string, now time.Time) *StatusChange {
	return &StatusChange{
		ID:            uuid.New(),
		WorkRequestID: workRequestID,
		FromStatus:    from,
		ToStatus:      to,
		ActorID:       actorID,
		Note:          note,
		CreatedAt:     now,
	}
}
