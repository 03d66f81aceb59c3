package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification описывает событие, отправленное пользователю.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// NotificationPayload - содержимое уведомления о событии по заявке.
type NotificationPayload struct {
	Kind          string    `json:"kind"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	Link          string    `json:"link,omitempty"`
	WorkRequestID uuid.UUID `json:"work_request_id"`
}
