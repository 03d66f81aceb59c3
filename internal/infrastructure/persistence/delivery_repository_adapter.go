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

const deliveryColumns = `id, work_request_id, contractor_id, message, locator, feedback, status, reviewed_at, created_at`

type deliveryRow struct {
	ID            uuid.UUID      `db:"id"`
	WorkRequestID uuid.UUID      `db:"work_request_id"`
	ContractorID  uuid.UUID      `db:"contractor_id"`
	Message       string         `db:"message"`
	Locator       sql.NullString `db:"locator"`
	Feedback      sql.NullString `db:"feedback"`
	Status        string         `db:"status"`
	ReviewedAt    sql.NullTime   `db:"reviewed_at"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r deliveryRow) toEntity() *entity.Delivery {
	return &entity.Delivery{
		ID:            r.ID,
		WorkRequestID: r.WorkRequestID,
		ContractorID:  r.ContractorID,
		Message:       r.Message,
		Locator:       nullString(r.Locator),
		Feedback:      nullString(r.Feedback),
		Status:        valueobject.DeliveryStatus(r.Status),
		ReviewedAt:    nullTime(r.ReviewedAt),
		CreatedAt:     r.CreatedAt,
	}
}

type DeliveryRepositoryAdapter struct {
	db *sqlx.DB
}

func NewDeliveryRepositoryAdapter(db *sqlx.DB) *DeliveryRepositoryAdapter {
	return &DeliveryRepositoryAdapter{db: db}
}

var _ repository.DeliveryRepository = (*DeliveryRepositoryAdapter)(nil)

func (r *DeliveryRepositoryAdapter) Create(ctx context.Context, d *entity.Delivery) error {
	query := `
		INSERT INTO deliveries (id, work_request_id, contractor_id, message, locator, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := common.Conn(ctx, r.db).ExecContext(ctx, query,
		d.ID,
		d.WorkRequestID,
		d.ContractorID,
		d.Message,
		d.Locator,
		string(d.Status),
		d.CreatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить сдачу работы")
	}
	return nil
}

func (r *DeliveryRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.Delivery, error) {
	var row deliveryRow
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`
	if err := common.Conn(ctx, r.db).GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDeliveryNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить сдачу работы")
	}
	return row.toEntity(), nil
}

func (r *DeliveryRepositoryAdapter) Resolve(ctx context.Context, d *entity.Delivery) error {
	query := `
		UPDATE deliveries SET status = $2, feedback = $3, reviewed_at = $4
		WHERE id = $1 AND status = 'pending'
	`
	result, err := common.Conn(ctx, r.db).ExecContext(ctx, query, d.ID, string(d.Status), d.Feedback, d.ReviewedAt)
	if err != nil {
		if common.IsUniqueViolation(err, "uq_deliveries_approved") {
			return apperror.ErrConcurrentUpdate
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить решение по работе")
	}
	return expectOneRow(result)
}

func (r *DeliveryRepositoryAdapter) ListByWorkRequest(ctx context.Context, workRequestID uuid.UUID) ([]*entity.Delivery, error) {
	var rows []deliveryRow
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE work_request_id = $1 ORDER BY created_at`
	if err := common.Conn(ctx, r.db).SelectContext(ctx, &rows, query, workRequestID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить историю сдач")
	}
	items := make([]*entity.Delivery, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}
