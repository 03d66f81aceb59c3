package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/repository"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/repository/common"
)

const applicationColumns = `id, work_request_id, applicant_id, message, proposed_price, status, created_at, updated_at`

type applicationRow struct {
	ID            uuid.UUID `db:"id"`
	WorkRequestID uuid.UUID `db:"work_request_id"`
	ApplicantID   uuid.UUID `db:"applicant_id"`
	Message       string    `db:"message"`
	ProposedPrice int64     `db:"proposed_price"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r applicationRow) toEntity() *entity.Application {
	return &entity.Application{
		ID:            r.ID,
		WorkRequestID: r.WorkRequestID,
		ApplicantID:   r.ApplicantID,
		Message:       r.Message,
		ProposedPrice: valueobject.Amount(r.ProposedPrice),
		Status:        valueobject.ApplicationStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type ApplicationRepositoryAdapter struct {
	db *sqlx.DB
}

func NewApplicationRepositoryAdapter(db *sqlx.DB) *ApplicationRepositoryAdapter {
	return &ApplicationRepositoryAdapter{db: db}
}

var _ repository.ApplicationRepository = (*ApplicationRepositoryAdapter)(nil)

func (r *ApplicationRepositoryAdapter) Create(ctx context.Context, app *entity.Application) error {
	query := `
		INSERT INTO applications (id, work_request_id, applicant_id, message, proposed_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := common.Conn(ctx, r.db).ExecContext(ctx, query,
		app.ID,
		app.WorkRequestID,
		app.ApplicantID,
		app.Message,
		app.ProposedPrice.Minor(),
		string(app.Status),
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		if common.IsUniqueViolation(err, "uq_applications_applicant") {
			return apperror.Conflict("вы уже откликнулись на эту заявку")
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить отклик")
	}
	return nil
}

func (r *ApplicationRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.Application, error) {
	var row applicationRow
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	if err := common.Conn(ctx, r.db).GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrApplicationNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить отклик")
	}
	return row.toEntity(), nil
}

func (r *ApplicationRepositoryAdapter) Accept(ctx context.Context, app *entity.Application) error {
	query := `UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'pending'`
	result, err := common.Conn(ctx, r.db).ExecContext(ctx, query, app.ID, string(app.Status), app.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err, "uq_applications_accepted") {
			return apperror.ErrConcurrentUpdate
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось принять отклик")
	}
	return expectOneRow(result)
}

func (r *ApplicationRepositoryAdapter) RejectOtherPending(ctx context.Context, workRequestID, acceptedID uuid.UUID) (int64, error) {
	query := `
		UPDATE applications SET status = 'rejected', updated_at = NOW()
		WHERE work_request_id = $1 AND id <> $2 AND status = 'pending'
	`
	result, err := common.Conn(ctx, r.db).ExecContext(ctx, query, workRequestID, acceptedID)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отклонить остальные отклики")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить результат обновления")
	}
	return rows, nil
}

func (r *ApplicationRepositoryAdapter) ListByWorkRequest(ctx context.Context, workRequestID uuid.UUID) ([]*entity.Application, error) {
	return r.list(ctx, `SELECT `+applicationColumns+` FROM applications WHERE work_request_id = $1 ORDER BY created_at`, workRequestID)
}

func (r *ApplicationRepositoryAdapter) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]*entity.Application, error) {
	return r.list(ctx, `SELECT `+applicationColumns+` FROM applications WHERE applicant_id = $1 ORDER BY created_at DESC`, applicantID)
}

func (r *ApplicationRepositoryAdapter) list(ctx context.Context, query string, id uuid.UUID) ([]*entity.Application, error) {
	var rows []applicationRow
	if err := common.Conn(ctx, r.db).SelectContext(ctx, &rows, query, id); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить отклики")
	}
	items := make([]*entity.Application, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}
