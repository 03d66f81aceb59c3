package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
)

// MaxAmount - верхняя граница цены в минимальных единицах (100 млн).
const MaxAmount Amount = 100_000_000_00

// Amount хранит сумму в минимальных единицах валюты (копейках, центах).
type Amount int64

func NewAmount(minor int64) (Amount, error) {
	if minor <= 0 {
		return 0, apperror.New(apperror.ErrCodeValidation, "сумма должна быть больше нуля")
	}
	if Amount(minor) > MaxAmount {
		return 0, apperror.New(apperror.ErrCodeValidation, "сумма превышает допустимый максимум")
	}
	return Amount(minor), nil
}

// ParseAmount разбирает сумму в основных единицах ("150.50") в минимальные.
func ParseAmount(major string) (Amount, error) {
	d, err := decimal.NewFromString(major)
	if err != nil {
		return 0, apperror.New(apperror.ErrCodeValidation, "некорректный формат суммы")
	}
	if d.Exponent() < -2 {
		return 0, apperror.New(apperror.ErrCodeValidation, "сумма может содержать не более двух знаков после запятой")
	}
	return NewAmount(d.Shift(2).IntPart())
}

func (a Amount) Minor() int64 {
	return int64(a)
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String возвращает сумму в основных единицах с двумя знаками.
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}
