package handler

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/repository"
	"github.com/ignatzorin/commissions-backend/internal/storage"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
)

// Хэндлеры зависят от узких интерфейсов сценариев, реализации живут в usecase/lifecycle.

type WorkRequestCreator interface {
	Execute(ctx context.Context, input lifecycle.CreateWorkRequestInput) (*entity.WorkRequest, error)
}

type WorkRequestGetter interface {
	Execute(ctx context.Context, id, viewerID uuid.UUID) (*lifecycle.WorkRequestView, error)
}

type WorkRequestLister interface {
	Execute(ctx context.Context, filter repository.WorkRequestFilter) ([]*entity.WorkRequest, int, error)
}

type RelatedLister interface {
	Applications(ctx context.Context, workRequestID, viewerID uuid.UUID) ([]*entity.Application, error)
	MyApplications(ctx context.Context, applicantID uuid.UUID) ([]*entity.Application, error)
	Deliveries(ctx context.Context, workRequestID, viewerID uuid.UUID) ([]*entity.Delivery, error)
	Cancellations(ctx context.Context, workRequestID, viewerID uuid.UUID) ([]*entity.CancellationRequest, error)
	History(ctx context.Context, workRequestID, viewerID uuid.UUID) ([]*entity.StatusChange, error)
}

type Payer interface {
	Execute(ctx context.Context, workRequestID, payerID uuid.UUID) (*lifecycle.WorkRequestResult, error)
}

type ApplicationSubmitter interface {
	Execute(ctx context.Context, input lifecycle.SubmitApplicationInput) (*lifecycle.ApplicationResult, error)
}

type ApplicationAcceptor interface {
	Execute(ctx context.Context, input lifecycle.AcceptApplicationInput) (*lifecycle.ContractResult, error)
}

type DeliverySubmitter interface {
	Execute(ctx context.Context, input lifecycle.SubmitDeliveryInput) (*lifecycle.DeliveryResult, error)
}

type DeliveryReviewer interface {
	Execute(ctx context.Context, input lifecycle.ReviewDeliveryInput) (*lifecycle.DeliveryResult, error)
}

type CancellationProposer interface {
	Execute(ctx context.Context, input lifecycle.ProposeCancellationInput) (*lifecycle.CancellationResult, error)
}

type CancellationResponder interface {
	Execute(ctx context.Context, input lifecycle.RespondCancellationInput) (*lifecycle.CancellationResult, error)
}

// DeliverableStore - хранилище файлов результата работы.
type DeliverableStore interface {
	Save(ctx context.Context, workRequestID uuid.UUID, originalName string, r io.Reader) (*storage.StoredFile, error)
	Delete(ctx context.Context, locator string) error
}
