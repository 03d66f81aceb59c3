package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы escrow
const (
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
)

// Типы транзакций
const (
	TransactionTypeDeposit       = "deposit"
	TransactionTypeEscrowHold    = "escrow_hold"
	TransactionTypeEscrowRelease = "escrow_release"
	TransactionTypeEscrowRefund  = "escrow_refund"
)

// Суммы хранятся в копейках.

// UserBalance представляет баланс пользователя.
type UserBalance struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Available int64     `db:"available" json:"available"`
	Frozen    int64     `db:"frozen" json:"frozen"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction представляет движение средств.
type Transaction struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	WorkRequestID *uuid.UUID `db:"work_request_id" json:"work_request_id,omitempty"`
	Type          string     `db:"type" json:"type"`
	Amount        int64      `db:"amount" json:"amount"`
	Description   *string    `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Escrow - средства заказчика, удержанные под оплаченную заявку.
type Escrow struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Reference     string     `db:"reference" json:"reference"`
	WorkRequestID uuid.UUID  `db:"work_request_id" json:"work_request_id"`
	PayerID       uuid.UUID  `db:"payer_id" json:"payer_id"`
	Amount        int64      `db:"amount" json:"amount"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	SettledAt     *time.Time `db:"settled_at" json:"settled_at,omitempty"`
}

// Earnings - сводка полученных исполнителем выплат.
type Earnings struct {
	Total        int64 `db:"total" json:"total"`
	PayoutsCount int   `db:"payouts_count" json:"payouts_count"`
}
