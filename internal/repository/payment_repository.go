package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/commissions-backend/internal/models"
	"github.com/ignatzorin/commissions-backend/internal/repository/common"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrEscrowNotFound    = errors.New("escrow not found")
	// ErrEscrowSettled - escrow уже закрыт в другую сторону (возврат после выплаты или наоборот).
	ErrEscrowSettled = errors.New("escrow already settled")
	// ErrEscrowExists - по заявке уже есть escrow.
	ErrEscrowExists = errors.New("escrow already exists")
)

const escrowColumns = `id, reference, work_request_id, payer_id, amount, status, created_at, settled_at`

// PaymentRepository ведёт внутренний учёт балансов и escrow.
// Методы работают в транзакции из контекста, если она открыта.
type PaymentRepository struct {
	db *sqlx.DB
	tx *common.TxManager
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db, tx: common.NewTxManager(db)}
}

// GetBalance возвращает баланс пользователя, создаёт если не существует.
func (r *PaymentRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	var balance models.UserBalance
	query := `
		INSERT INTO user_balances (user_id, available, frozen)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = user_balances.updated_at
		RETURNING user_id, available, frozen, updated_at
	`
	if err := common.Conn(ctx, r.db).GetContext(ctx, &balance, query, userID); err != nil {
		return nil, fmt.Errorf("payment repository: get balance %w", err)
	}
	return &balance, nil
}

// Deposit пополняет баланс пользователя.
func (r *PaymentRepository) Deposit(ctx context.Context, userID uuid.UUID, amount int64, description string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		conn := common.Conn(ctx, r.db)

		if _, err := conn.ExecContext(ctx, `
			INSERT INTO user_balances (user_id, available, frozen)
			VALUES ($1, $2, 0)
			ON CONFLICT (user_id) DO UPDATE SET available = user_balances.available + $2, updated_at = NOW()
		`, userID, amount); err != nil {
			return fmt.Errorf("payment repository: deposit update balance %w", err)
		}

		if err := conn.GetContext(ctx, &transaction, `
			INSERT INTO transactions (user_id, type, amount, description)
			VALUES ($1, 'deposit', $2, $3)
			RETURNING id, user_id, work_request_id, type, amount, description, created_at
		`, userID, amount, description); err != nil {
			return fmt.Errorf("payment repository: deposit create transaction %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

// HoldEscrow замораживает средства плательщика под заявку.
func (r *PaymentRepository) HoldEscrow(ctx context.Context, workRequestID, payerID uuid.UUID, amount int64) (*models.Escrow, error) {
	var escrow models.Escrow
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		conn := common.Conn(ctx, r.db)

		// Блокируем строку баланса до конца транзакции
		var balance models.UserBalance
		err := conn.GetContext(ctx, &balance, `SELECT user_id, available, frozen, updated_at FROM user_balances WHERE user_id = $1 FOR UPDATE`, payerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInsufficientFunds
			}
			return fmt.Errorf("payment repository: lock balance %w", err)
		}
		if balance.Available < amount {
			return ErrInsufficientFunds
		}

		if _, err := conn.ExecContext(ctx, `
			UPDATE user_balances SET available = available - $2, frozen = frozen + $2, updated_at = NOW()
			WHERE user_id = $1
		`, payerID, amount); err != nil {
			return fmt.Errorf("payment repository: freeze funds %w", err)
		}

		reference := "esc_" + uuid.NewString()
		if err := conn.GetContext(ctx, &escrow, `
			INSERT INTO escrows (reference, work_request_id, payer_id, amount, status)
			VALUES ($1, $2, $3, $4, 'held')
			RETURNING `+escrowColumns, reference, workRequestID, payerID, amount); err != nil {
			if common.IsUniqueViolation(err, "") {
				return ErrEscrowExists
			}
			return fmt.Errorf("payment repository: create escrow %w", err)
		}

		return r.recordTransaction(ctx, payerID, workRequestID, models.TransactionTypeEscrowHold, amount, "Заморозка средств под заявку")
	})
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

// ReleaseEscrow выплачивает удержанные средства исполнителю заявки.
// Повторный вызов для уже выплаченного escrow ничего не делает.
func (r *PaymentRepository) ReleaseEscrow(ctx context.Context, reference string) (*models.Escrow, error) {
	return r.settle(ctx, reference, models.EscrowStatusReleased, func(ctx context.Context, conn common.Executor, escrow *models.Escrow) error {
		var payee uuid.NullUUID
		if err := conn.GetContext(ctx, &payee, `SELECT contractor_id FROM work_requests WHERE id = $1`, escrow.WorkRequestID); err != nil {
			return fmt.Errorf("payment repository: get payee %w", err)
		}
		if !payee.Valid {
			return fmt.Errorf("payment repository: у заявки %s нет исполнителя", escrow.WorkRequestID)
		}

		if _, err := conn.ExecContext(ctx, `
			UPDATE user_balances SET frozen = frozen - $2, updated_at = NOW()
			WHERE user_id = $1
		`, escrow.PayerID, escrow.Amount); err != nil {
			return fmt.Errorf("payment repository: unfreeze %w", err)
		}

		if _, err := conn.ExecContext(ctx, `
			INSERT INTO user_balances (user_id, available, frozen)
			VALUES ($1, $2, 0)
			ON CONFLICT (user_id) DO UPDATE SET available = user_balances.available + $2, updated_at = NOW()
		`, payee.UUID, escrow.Amount); err != nil {
			return fmt.Errorf("payment repository: credit payee %w", err)
		}

		return r.recordTransaction(ctx, payee.UUID, escrow.WorkRequestID, models.TransactionTypeEscrowRelease, escrow.Amount, "Оплата за выполненную заявку")
	})
}

// RefundEscrow возвращает удержанные средства плательщику.
// Повторный вызов для уже возвращённого escrow ничего не делает.
func (r *PaymentRepository) RefundEscrow(ctx context.Context, reference string) (*models.Escrow, error) {
	return r.settle(ctx, reference, models.EscrowStatusRefunded, func(ctx context.Context, conn common.Executor, escrow *models.Escrow) error {
		if _, err := conn.ExecContext(ctx, `
			UPDATE user_balances SET available = available + $2, frozen = frozen - $2, updated_at = NOW()
			WHERE user_id = $1
		`, escrow.PayerID, escrow.Amount); err != nil {
			return fmt.Errorf("payment repository: refund %w", err)
		}

		return r.recordTransaction(ctx, escrow.PayerID, escrow.WorkRequestID, models.TransactionTypeEscrowRefund, escrow.Amount, "Возврат средств за отменённую заявку")
	})
}

type settleFunc func(ctx context.Context, conn common.Executor, escrow *models.Escrow) error

func (r *PaymentRepository) settle(ctx context.Context, reference, status string, move settleFunc) (*models.Escrow, error) {
	var escrow models.Escrow
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		conn := common.Conn(ctx, r.db)

		err := conn.GetContext(ctx, &escrow, `SELECT `+escrowColumns+` FROM escrows WHERE reference = $1 FOR UPDATE`, reference)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrEscrowNotFound
			}
			return fmt.Errorf("payment repository: get escrow %w", err)
		}

		switch escrow.Status {
		case status:
			return nil
		case models.EscrowStatusHeld:
		default:
			return ErrEscrowSettled
		}

		if err := move(ctx, conn, &escrow); err != nil {
			return err
		}

		return conn.GetContext(ctx, &escrow, `
			UPDATE escrows SET status = $2, settled_at = NOW() WHERE id = $1
			RETURNING `+escrowColumns, escrow.ID, status)
	})
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *PaymentRepository) recordTransaction(ctx context.Context, userID, workRequestID uuid.UUID, txType string, amount int64, description string) error {
	_, err := common.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO transactions (user_id, work_request_id, type, amount, description)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, workRequestID, txType, amount, description)
	if err != nil {
		return fmt.Errorf("payment repository: record %s %w", txType, err)
	}
	return nil
}

// GetEscrowByWorkRequest возвращает escrow заявки.
func (r *PaymentRepository) GetEscrowByWorkRequest(ctx context.Context, workRequestID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	err := common.Conn(ctx, r.db).GetContext(ctx, &escrow, `SELECT `+escrowColumns+` FROM escrows WHERE work_request_id = $1`, workRequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("payment repository: get escrow %w", err)
	}
	return &escrow, nil
}

// ListTransactions возвращает историю транзакций пользователя.
func (r *PaymentRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, user_id, work_request_id, type, amount, description, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("payment repository: list transactions %w", err)
	}
	return transactions, nil
}

// Earnings суммирует выплаты исполнителю.
func (r *PaymentRepository) Earnings(ctx context.Context, userID uuid.UUID) (*models.Earnings, error) {
	var earnings models.Earnings
	err := r.db.GetContext(ctx, &earnings, `
		SELECT COALESCE(SUM(amount), 0) AS total, COUNT(*) AS payouts_count
		FROM transactions WHERE user_id = $1 AND type = 'escrow_release'
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("payment repository: earnings %w", err)
	}
	return &earnings, nil
}
