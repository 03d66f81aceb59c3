package persistence

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/repository"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/repository/common"
)

const effectBatchSize = 50

// EffectQueueAdapter пишет побочные эффекты в таблицу side_effects в текущей транзакции.
type EffectQueueAdapter struct {
	db *sqlx.DB
}

func NewEffectQueueAdapter(db *sqlx.DB) *EffectQueueAdapter {
	return &EffectQueueAdapter{db: db}
}

var _ repository.EffectQueue = (*EffectQueueAdapter)(nil)

func (q *EffectQueueAdapter) Enqueue(ctx context.Context, effects []entity.Effect) error {
	if len(effects) == 0 {
		return nil
	}

	inserter := common.NewBatchInserter(common.Conn(ctx, q.db),
		`INSERT INTO side_effects (id, work_request_id, kind, payload)`, 4, effectBatchSize)

	for _, effect := range effects {
		payload, err := json.Marshal(effect.Payload)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать побочный эффект")
		}
		if err := inserter.Add(ctx, effect.ID, effect.WorkRequestID, string(effect.Kind), string(payload)); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось поставить эффекты в очередь")
		}
	}

	if err := inserter.Flush(ctx); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось поставить эффекты в очередь")
	}
	return nil
}
