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

const cancellationColumns = `id, work_request_id, initiator_id, reason, status, resolved_by, resolution_note, resolved_at, created_at`

type cancellationRow struct {
	ID             uuid.UUID      `db:"id"`
	WorkRequestID  uuid.UUID      `db:"work_request_id"`
	InitiatorID    uuid.UUID      `db:"initiator_id"`
	Reason         string         `db:"reason"`
	Status         string         `db:"status"`
	ResolvedBy     uuid.NullUUID  `db:"resolved_by"`
	ResolutionNote sql.NullString `db:"resolution_note"`
	ResolvedAt     sql.NullTime   `db:"resolved_at"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r cancellationRow) toEntity() *entity.CancellationRequest {
	return &entity.CancellationRequest{
		ID:             r.ID,
		WorkRequestID:  r.WorkRequestID,
		InitiatorID:    r.InitiatorID,
		Reason:         r.Reason,
		Status:         valueobject.CancellationStatus(r.Status),
		ResolvedBy:     nullUUID(r.ResolvedBy),
		ResolutionNote: nullString(r.ResolutionNote),
		ResolvedAt:     nullTime(r.ResolvedAt),
		CreatedAt:      r.CreatedAt,
	}
}

type CancellationRepositoryAdapter struct {
	db *sqlx.DB
}

func NewCancellationRepositoryAdapter(db *sqlx.DB) *CancellationRepositoryAdapter {
	return &CancellationRepositoryAdapter{db: db}
}

var _ repository.CancellationRepository = (*CancellationRepositoryAdapter)(nil)

func (r *CancellationRepositoryAdapter) Create(ctx context.Context, c *entity.CancellationRequest) error {
	query := `
		INSERT INTO cancellation_requests (id, work_request_id, initiator_id, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := common.Conn(ctx, r.db).ExecContext(ctx, query,
		c.ID,
		c.WorkRequestID,
		c.InitiatorID,
		c.Reason,
		string(c.Status),
		c.CreatedAt,
	)
	if err != nil {
		if common.IsUniqueViolation(err, "uq_cancellations_pending") {
			return apperror.ErrPendingCancellation
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить запрос на отмену")
	}
	return nil
}

func (r *CancellationRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.CancellationRequest, error) {
	var row cancellationRow
	query := `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE id = $1`
	if err := common.Conn(ctx, r.db).GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrCancellationNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить запрос на отмену")
	}
	return row.toEntity(), nil
}

// FindPending возвращает nil без ошибки, если открытого запроса нет.
func (r *CancellationRepositoryAdapter) FindPending(ctx context.Context, workRequestID uuid.UUID) (*entity.CancellationRequest, error) {
	var row cancellationRow
	query := `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE work_request_id = $1 AND status = 'pending'`
	if err := common.Conn(ctx, r.db).GetContext(ctx, &row, query, workRequestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить открытые запросы на отмену")
	}
	return row.toEntity(), nil
}

func (r *CancellationRepositoryAdapter) Resolve(ctx context.Context, c *entity.CancellationRequest) error {
	query := `
		UPDATE cancellation_requests
		SET status = $2, resolved_by = $3, resolution_note = $4, resolved_at = $5
		WHERE id = $1 AND status = 'pending'
	`
	result, err := common.Conn(ctx, r.db).ExecContext(ctx, query,
		c.ID,
		string(c.Status),
		c.ResolvedBy,
		c.ResolutionNote,
		c.ResolvedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить решение по отмене")
	}
	return expectOneRow(result)
}

func (r *CancellationRepositoryAdapter) ListExpired(ctx context.Context, createdBefore time.Time, after *repository.ExpiredCursor, limit int) ([]*entity.CancellationRequest, error) {
	if after == nil {
		query := `
			SELECT ` + cancellationColumns + `
			FROM cancellation_requests
			WHERE status = 'pending' AND created_at <= $1
			ORDER BY created_at, id
			LIMIT $2
		`
		return r.list(ctx, query, createdBefore, limit)
	}

	query := `
		SELECT ` + cancellationColumns + `
		FROM cancellation_requests
		WHERE status = 'pending' AND created_at <= $1 AND (created_at, id) > ($2, $3)
		ORDER BY created_at, id
		LIMIT $4
	`
	return r.list(ctx, query, createdBefore, after.CreatedAt, after.ID, limit)
}

func (r *CancellationRepositoryAdapter) ListByWorkRequest(ctx context.Context, workRequestID uuid.UUID) ([]*entity.CancellationRequest, error) {
	query := `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE work_request_id = $1 ORDER BY created_at`
	return r.list(ctx, query, workRequestID)
}

func (r *CancellationRepositoryAdapter) list(ctx context.Context, query string, args ...interface{}) ([]*entity.CancellationRequest, error) {
	var rows []cancellationRow
	if err := common.Conn(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить запросы на отмену")
	}
	items := make([]*entity.CancellationRequest, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}
