package persistence

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
)

func nullUUID(v uuid.NullUUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := v.UUID
	return &id
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// expectOneRow превращает 0 затронутых строк в конфликт конкурентного обновления.
func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить результат обновления")
	}
	if rows == 0 {
		return apperror.ErrConcurrentUpdate
	}
	return nil
}
