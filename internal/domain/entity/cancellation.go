package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
)

// CancellationTimeout - через сколько без ответа запрос на отмену одобряется автоматически.
const CancellationTimeout = 7 * 24 * time.Hour

// AutoApproveNote пишется в запрос, одобренный фоновым обходом.
const AutoApproveNote = "нет ответа в течение 7 дней"

type CancellationRequest struct {
	ID             uuid.UUID
	WorkRequestID  uuid.UUID
	InitiatorID    uuid.UUID
	Reason         string
	Status         valueobject.CancellationStatus
	ResolvedBy     *uuid.UUID
	ResolutionNote *string
	ResolvedAt     *time.Time
	CreatedAt      time.Time
}

func NewCancellationRequest(workRequest *WorkRequest, initiatorID uuid.UUID, reason string, now time.Time) (*CancellationRequest, error) {
	if !workRequest.Status.AllowsCancellation() {
		return nil, apperror.InvalidState("запросить отмену можно только по действующему контракту")
	}
	if !workRequest.RoleOf(initiatorID).IsParty() {
		return nil, apperror.Forbidden("запросить отмену может только участник сделки")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.Validation("причина отмены обязательна")
	}

	return &CancellationRequest{
		ID:            uuid.New(),
		WorkRequestID: workRequest.ID,
		InitiatorID:   initiatorID,
		Reason:        reason,
		Status:        valueobject.CancellationStatusPending,
		CreatedAt:     now,
	}, nil
}

// IsExpired - запрос висит без ответа не меньше таймаута.
func (c *CancellationRequest) IsExpired(now time.Time, timeout time.Duration) bool {
	return c.Status == valueobject.CancellationStatusPending && !now.Before(c.CreatedAt.Add(timeout))
}

// Approve одобряет отмену. resolvedBy == nil означает автоматическое решение.
func (c *CancellationRequest) Approve(resolvedBy *uuid.UUID, note string, now time.Time) error {
	return c.resolve(valueobject.CancellationStatusApproved, resolvedBy, note, now)
}

func (c *CancellationRequest) Reject(resolvedBy uuid.UUID, now time.Time) error {
	return c.resolve(valueobject.CancellationStatusRejected, &resolvedBy, "", now)
}

func (c *CancellationRequest) resolve(status valueobject.CancellationStatus, resolvedBy *uuid.UUID, note string, now time.Time) error {
	if c.Status != valueobject.CancellationStatusPending {
		return apperror.InvalidState("запрос на отмену уже рассмотрен")
	}
	c.Status = status
	c.ResolvedBy = resolvedBy
	if note != "" {
		c.ResolutionNote = &note
	}
	c.ResolvedAt = &now
	return nil
}
