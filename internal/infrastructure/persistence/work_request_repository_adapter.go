package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/repository"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/repository/common"
)

const workRequestColumns = `id, requester_id, contractor_id, title, description, budget, status, final_price,
	deadline, positions, applications_open, payment_reference, contracted_at, paid_at, delivered_at,
	completed_at, cancelled_at, created_at, updated_at`

type workRequestRow struct {
	ID               uuid.UUID      `db:"id"`
	RequesterID      uuid.UUID      `db:"requester_id"`
	ContractorID     uuid.NullUUID  `db:"contractor_id"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	Budget           int64          `db:"budget"`
	Status           string         `db:"status"`
	FinalPrice       sql.NullInt64  `db:"final_price"`
	Deadline         sql.NullTime   `db:"deadline"`
	Positions        int            `db:"positions"`
	ApplicationsOpen bool           `db:"applications_open"`
	PaymentReference sql.NullString `db:"payment_reference"`
	ContractedAt     sql.NullTime   `db:"contracted_at"`
	PaidAt           sql.NullTime   `db:"paid_at"`
	DeliveredAt      sql.NullTime   `db:"delivered_at"`
	CompletedAt      sql.NullTime   `db:"completed_at"`
	CancelledAt      sql.NullTime   `db:"cancelled_at"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r workRequestRow) toEntity() *entity.WorkRequest {
	wr := &entity.WorkRequest{
		ID:               r.ID,
		RequesterID:      r.RequesterID,
		ContractorID:     nullUUID(r.ContractorID),
		Title:            r.Title,
		Description:      r.Description,
		Budget:           valueobject.Amount(r.Budget),
		Status:           valueobject.WorkRequestStatus(r.Status),
		Deadline:         nullTime(r.Deadline),
		Positions:        r.Positions,
		ApplicationsOpen: r.ApplicationsOpen,
		PaymentReference: nullString(r.PaymentReference),
		ContractedAt:     nullTime(r.ContractedAt),
		PaidAt:           nullTime(r.PaidAt),
		DeliveredAt:      nullTime(r.DeliveredAt),
		CompletedAt:      nullTime(r.CompletedAt),
		CancelledAt:      nullTime(r.CancelledAt),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.FinalPrice.Valid {
		price := valueobject.Amount(r.FinalPrice.Int64)
		wr.FinalPrice = &price
	}
	return wr
}

type WorkRequestRepositoryAdapter struct {
	db *sqlx.DB
}

func NewWorkRequestRepositoryAdapter(db *sqlx.DB) *WorkRequestRepositoryAdapter {
	return &WorkRequestRepositoryAdapter{db: db}
}

var _ repository.WorkRequestRepository = (*WorkRequestRepositoryAdapter)(nil)

func (r *WorkRequestRepositoryAdapter) Create(ctx context.Context, wr *entity.WorkRequest) error {
	query := `
		INSERT INTO work_requests (id, requester_id, title, description, budget, status, deadline,
			positions, applications_open, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := common.Conn(ctx, r.db).ExecContext(ctx, query,
		wr.ID,
		wr.RequesterID,
		wr.Title,
		wr.Description,
		wr.Budget.Minor(),
		string(wr.Status),
		wr.Deadline,
		wr.Positions,
		wr.ApplicationsOpen,
		wr.CreatedAt,
		wr.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать заявку")
	}
	return nil
}

func (r *WorkRequestRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.WorkRequest, error) {
	return r.find(ctx, `SELECT `+workRequestColumns+` FROM work_requests WHERE id = $1`, id)
}

func (r *WorkRequestRepositoryAdapter) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.WorkRequest, error) {
	return r.find(ctx, `SELECT `+workRequestColumns+` FROM work_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *WorkRequestRepositoryAdapter) find(ctx context.Context, query string, id uuid.UUID) (*entity.WorkRequest, error) {
	var row workRequestRow
	if err := common.Conn(ctx, r.db).GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrWorkRequestNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявку")
	}
	return row.toEntity(), nil
}

// Transition - compare-and-set по статусу. final_price после фиксации не перезаписывается.
func (r *WorkRequestRepositoryAdapter) Transition(ctx context.Context, wr *entity.WorkRequest, from valueobject.WorkRequestStatus) error {
	var finalPrice *int64
	if wr.FinalPrice != nil {
		v := wr.FinalPrice.Minor()
		finalPrice = &v
	}

	query := `
		UPDATE work_requests
		SET status = $3,
		    contractor_id = $4,
		    final_price = COALESCE(final_price, $5),
		    deadline = $6,
		    applications_open = $7,
		    payment_reference = $8,
		    contracted_at = $9,
		    paid_at = $10,
		    delivered_at = $11,
		    completed_at = $12,
		    cancelled_at = $13,
		    updated_at = $14
		WHERE id = $1 AND status = $2
	`
	result, err := common.Conn(ctx, r.db).ExecContext(ctx, query,
		wr.ID,
		string(from),
		string(wr.Status),
		wr.ContractorID,
		finalPrice,
		wr.Deadline,
		wr.ApplicationsOpen,
		wr.PaymentReference,
		wr.ContractedAt,
		wr.PaidAt,
		wr.DeliveredAt,
		wr.CompletedAt,
		wr.CancelledAt,
		wr.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить статус заявки")
	}

	return expectOneRow(result)
}

func (r *WorkRequestRepositoryAdapter) List(ctx context.Context, filter repository.WorkRequestFilter) ([]*entity.WorkRequest, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	addArg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ParticipantID != nil {
		p := addArg(*filter.ParticipantID)
		conditions = append(conditions, fmt.Sprintf("(requester_id = %s OR contractor_id = %s)", p, p))
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = "+addArg(string(*filter.Status)))
	}
	if filter.OnlyOpen {
		conditions = append(conditions, "status = 'open' AND applications_open")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	conn := common.Conn(ctx, r.db)

	var total int
	if err := conn.GetContext(ctx, &total, `SELECT COUNT(*) FROM work_requests`+where, args...); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать заявки")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + workRequestColumns + ` FROM work_requests` + where +
		` ORDER BY created_at DESC LIMIT ` + addArg(limit) + ` OFFSET ` + addArg(filter.Offset)

	var rows []workRequestRow
	if err := conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить список заявок")
	}

	items := make([]*entity.WorkRequest, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, total, nil
}
