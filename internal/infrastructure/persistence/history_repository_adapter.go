package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/repository"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/repository/common"
)

type statusChangeRow struct {
	ID            uuid.UUID      `db:"id"`
	WorkRequestID uuid.UUID      `db:"work_request_id"`
	FromStatus    sql.NullString `db:"from_status"`
	ToStatus      string         `db:"to_status"`
	ActorID       uuid.NullUUID  `db:"actor_id"`
	Note          string         `db:"note"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r statusChangeRow) toEntity() *entity.StatusChange {
	return &entity.StatusChange{
		ID:            r.ID,
		WorkRequestID: r.WorkRequestID,
		FromStatus:    valueobject.WorkRequestStatus(r.FromStatus.String),
		ToStatus:      valueobject.WorkRequestStatus(r.ToStatus),
		ActorID:       nullUUID(r.ActorID),
		Note:          r.Note,
		CreatedAt:     r.CreatedAt,
	}
}

type HistoryRepositoryAdapter struct {
	db *sqlx.DB
}

func NewHistoryRepositoryAdapter(db *sqlx.DB) *HistoryRepositoryAdapter {
	return &HistoryRepositoryAdapter{db: db}
}

var _ repository.HistoryRepository = (*HistoryRepositoryAdapter)(nil)

func (r *HistoryRepositoryAdapter) Record(ctx context.Context, change *entity.StatusChange) error {
	var from *string
	if change.FromStatus != "" {
		s := string(change.FromStatus)
		from = &s
	}

	query := `
		INSERT INTO work_request_history (id, work_request_id, from_status, to_status, actor_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := common.Conn(ctx, r.db).ExecContext(ctx, query,
		change.ID,
		change.WorkRequestID,
		from,
		string(change.ToStatus),
		change.ActorID,
		change.Note,
		change.CreatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось записать историю заявки")
	}
	return nil
}

func (r *HistoryRepositoryAdapter) ListByWorkRequest(ctx context.Context, workRequestID uuid.UUID) ([]*entity.StatusChange, error) {
	var rows []statusChangeRow
	query := `
		SELECT id, work_request_id, from_status, to_status, actor_id, note, created_at
		FROM work_request_history
		WHERE work_request_id = $1
		ORDER BY created_at, id
	`
	if err := common.Conn(ctx, r.db).SelectContext(ctx, &rows, query, workRequestID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить историю заявки")
	}
	items := make([]*entity.StatusChange, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}
