package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/models"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/repository"
)

type PaymentRepository interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount int64, description string) (*models.Transaction, error)
	HoldEscrow(ctx context.Context, workRequestID, payerID uuid.UUID, amount int64) (*models.Escrow, error)
	ReleaseEscrow(ctx context.Context, reference string) (*models.Escrow, error)
	RefundEscrow(ctx context.Context, reference string) (*models.Escrow, error)
	GetEscrowByWorkRequest(ctx context.Context, workRequestID uuid.UUID) (*models.Escrow, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	Earnings(ctx context.Context, userID uuid.UUID) (*models.Earnings, error)
}

// Максимальное пополнение за одну операцию.
const maxDeposit valueobject.Amount = 1_000_000_00

type PaymentService struct {
	repo PaymentRepository
}

func NewPaymentService(repo PaymentRepository) *PaymentService {
	return &PaymentService{repo: repo}
}

// BalanceView - баланс в человекочитаемом виде.
type BalanceView struct {
	UserID    uuid.UUID `json:"user_id"`
	Available string    `json:"available"`
	Frozen    string    `json:"frozen"`
}

// EarningsView - сводка выплат исполнителю.
type EarningsView struct {
	Total        string `json:"total"`
	PayoutsCount int    `json:"payouts_count"`
}

// Capture удерживает оплату заявки с баланса заказчика.
// Вызывается внутри транзакции перехода в paid, поэтому блокировка баланса живёт до коммита.
func (s *PaymentService) Capture(ctx context.Context, workRequestID, payerID uuid.UUID, amount int64) (string, error) {
	if amount <= 0 {
		return "", apperror.Validation("сумма должна быть положительной")
	}

	escrow, err := s.repo.HoldEscrow(ctx, workRequestID, payerID, amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientFunds):
			return "", apperror.ErrInsufficientFunds
		case errors.Is(err, repository.ErrEscrowExists):
			return "", apperror.ErrConcurrentUpdate
		}
		return "", apperror.Dependency(err, "не удалось удержать оплату")
	}
	return escrow.Reference, nil
}

// Refund возвращает удержанные средства заказчику. Повторный вызов ничего не меняет.
func (s *PaymentService) Refund(ctx context.Context, reference string) error {
	if _, err := s.repo.RefundEscrow(ctx, reference); err != nil {
		return fmt.Errorf("payment service: refund %s: %w", reference, err)
	}
	return nil
}

// Release выплачивает удержанные средства исполнителю. Повторный вызов ничего не меняет.
func (s *PaymentService) Release(ctx context.Context, reference string) error {
	if _, err := s.repo.ReleaseEscrow(ctx, reference); err != nil {
		return fmt.Errorf("payment service: release %s: %w", reference, err)
	}
	return nil
}

// GetBalance возвращает баланс пользователя.
func (s *PaymentService) GetBalance(ctx context.Context, userID uuid.UUID) (*BalanceView, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить баланс")
	}
	return &BalanceView{
		UserID:    balance.UserID,
		Available: valueobject.Amount(balance.Available).String(),
		Frozen:    valueobject.Amount(balance.Frozen).String(),
	}, nil
}

// Deposit пополняет баланс.
func (s *PaymentService) Deposit(ctx context.Context, userID uuid.UUID, rawAmount string) (*models.Transaction, error) {
	amount, err := valueobject.ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}
	if amount > maxDeposit {
		return nil, apperror.Validation("превышена максимальная сумма пополнения")
	}

	tx, err := s.repo.Deposit(ctx, userID, amount.Minor(), "Пополнение баланса")
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось пополнить баланс")
	}
	return tx, nil
}

// GetEscrow возвращает escrow по заявке.
func (s *PaymentService) GetEscrow(ctx context.Context, workRequestID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.repo.GetEscrowByWorkRequest(ctx, workRequestID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "оплата по заявке не найдена")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить escrow")
	}
	return escrow, nil
}

// ListTransactions возвращает историю транзакций.
func (s *PaymentService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}

// GetEarnings возвращает сумму выплат исполнителю.
func (s *PaymentService) GetEarnings(ctx context.Context, userID uuid.UUID) (*EarningsView, error) {
	earnings, err := s.repo.Earnings(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить выплаты")
	}
	return &EarningsView{
		Total:        valueobject.Amount(earnings.Total).String(),
		PayoutsCount: earnings.PayoutsCount,
	}, nil
}
