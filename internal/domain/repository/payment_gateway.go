package repository

import (
	"context"

	"github.com/google/uuid"
)

// PaymentGateway удерживает оплату заявки. Возврат и выплата идут через очередь эффектов.
type PaymentGateway interface {
	// Capture удерживает amount с баланса плательщика и возвращает ссылку на платёж.
	Capture(ctx context.Context, workRequestID, payerID uuid.UUID, amount int64) (string, error)
}
