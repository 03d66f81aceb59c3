package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/commissions-backend/internal/models"
)

const sideEffectColumns = `id, work_request_id, kind, payload, status, attempts, last_error, next_attempt_at,
	locked_until, created_at, processed_at`

// SideEffectRepository обслуживает очередь side_effects со стороны диспетчера.
// Запись в очередь делает persistence.EffectQueueAdapter в транзакции перехода.
type SideEffectRepository struct {
	db *sqlx.DB
}

func NewSideEffectRepository(db *sqlx.DB) *SideEffectRepository {
	return &SideEffectRepository{db: db}
}

// ClaimByIDs захватывает конкретные эффекты на время lease. Уже захваченные пропускаются.
func (r *SideEffectRepository) ClaimByIDs(ctx context.Context, ids []uuid.UUID, lease time.Duration) ([]models.SideEffect, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	query := `
		UPDATE side_effects SET status = 'processing', locked_until = NOW() + $2 * INTERVAL '1 millisecond'
		WHERE id IN (
			SELECT id FROM side_effects
			WHERE id = ANY($1::uuid[]) AND status = 'pending'
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + sideEffectColumns

	var effects []models.SideEffect
	if err := r.db.SelectContext(ctx, &effects, query, pq.Array(raw), lease.Milliseconds()); err != nil {
		return nil, fmt.Errorf("side effect repository: claim by ids %w", err)
	}
	return effects, nil
}

// ClaimDue захватывает эффекты, время повтора которых наступило, и эффекты с истёкшим lease.
func (r *SideEffectRepository) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]models.SideEffect, error) {
	query := `
		UPDATE side_effects SET status = 'processing', locked_until = NOW() + $2 * INTERVAL '1 millisecond'
		WHERE id IN (
			SELECT id FROM side_effects
			WHERE (status = 'pending' AND next_attempt_at <= NOW())
			   OR (status = 'processing' AND locked_until < NOW())
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + sideEffectColumns

	var effects []models.SideEffect
	if err := r.db.SelectContext(ctx, &effects, query, limit, lease.Milliseconds()); err != nil {
		return nil, fmt.Errorf("side effect repository: claim due %w", err)
	}
	return effects, nil
}

// MarkDone фиксирует успешное исполнение.
func (r *SideEffectRepository) MarkDone(ctx context.Context, id uuid.UUID, attempts int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE side_effects
		SET status = 'done', attempts = $2, last_error = NULL, locked_until = NULL, processed_at = NOW()
		WHERE id = $1
	`, id, attempts)
	if err != nil {
		return fmt.Errorf("side effect repository: mark done %w", err)
	}
	return nil
}

// MarkRetry возвращает эффект в очередь с задержкой.
func (r *SideEffectRepository) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAttemptAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE side_effects
		SET status = 'pending', attempts = $2, last_error = $3, next_attempt_at = $4, locked_until = NULL
		WHERE id = $1
	`, id, attempts, lastError, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("side effect repository: mark retry %w", err)
	}
	return nil
}

// MarkFailed окончательно снимает эффект с повторов.
func (r *SideEffectRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE side_effects
		SET status = 'failed', attempts = $2, last_error = $3, locked_until = NULL, processed_at = NOW()
		WHERE id = $1
	`, id, attempts, lastError)
	if err != nil {
		return fmt.Errorf("side effect repository: mark failed %w", err)
	}
	return nil
}

// CountByStatus используется health-check'ом для отображения глубины очереди.
func (r *SideEffectRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM side_effects GROUP BY status`); err != nil {
		return nil, fmt.Errorf("side effect repository: count %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
