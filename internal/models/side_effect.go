package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Статусы записи очереди побочных эффектов
const (
	SideEffectStatusPending    = "pending"
	SideEffectStatusProcessing = "processing"
	SideEffectStatusDone       = "done"
	SideEffectStatusFailed     = "failed"
)

// SideEffect - строка таблицы side_effects.
type SideEffect struct {
	ID            uuid.UUID       `db:"id"`
	WorkRequestID uuid.UUID       `db:"work_request_id"`
	Kind          string          `db:"kind"`
	Payload       json.RawMessage `db:"payload"`
	Status        string          `db:"status"`
	Attempts      int             `db:"attempts"`
	LastError     *string         `db:"last_error"`
	NextAttemptAt time.Time       `db:"next_attempt_at"`
	LockedUntil   *time.Time      `db:"locked_until"`
	CreatedAt     time.Time       `db:"created_at"`
	ProcessedAt   *time.Time      `db:"processed_at"`
}
