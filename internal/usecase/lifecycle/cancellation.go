package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
)

type CancellationResult struct {
	Cancellation *entity.CancellationRequest
	WorkRequest  *entity.WorkRequest
	Warnings     []Warning
}

// approveCancellation применяет одобрение отмены: CAS по запросу, затем по заявке.
// Используется и ответом второй стороны, и автоматическим обходом, поэтому проигравший
// в гонке получает ConflictError до постановки эффектов в очередь.
func approveCancellation(ctx context.Context, store Store, c *entity.CancellationRequest, wr *entity.WorkRequest, resolvedBy *uuid.UUID, note string, now time.Time) ([]entity.Effect, error) {
	if !wr.Status.AllowsCancellation() {
		return nil, apperror.InvalidState("заявка уже не в статусе, допускающем отмену")
	}
	if err := c.Approve(resolvedBy, note, now); err != nil {
		return nil, err
	}
	if err := store.Cancellations.Resolve(ctx, c); err != nil {
		return nil, err
	}

	from := wr.Status
	if err := wr.Cancel(now); err != nil {
		return nil, err
	}
	publish, err := store.saveTransition(ctx, wr, from, resolvedBy, note, now)
	if err != nil {
		return nil, err
	}

	effects := []entity.Effect{notifyCancellationApproved(wr, c), publish}
	if wr.IsCaptured() {
		effects = append(effects, entity.NewRefundEffect(wr.ID, *wr.PaymentReference, c.Reason))
	}
	return effects, nil
}

// loadCancellation читает запрос на отмену вместе с его заявкой.
func loadCancellation(ctx context.Context, store Store, id uuid.UUID) (*entity.CancellationRequest, *entity.WorkRequest, error) {
	c, err := store.Cancellations.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		return nil, nil, apperror.ErrCancellationNotFound
	}
	wr, err := loadWorkRequest(ctx, store.WorkRequests, c.WorkRequestID, false)
	if err != nil {
		return nil, nil, err
	}
	return c, wr, nil
}
