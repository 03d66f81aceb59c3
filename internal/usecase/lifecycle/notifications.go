package lifecycle

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
)

// Виды уведомлений второй стороне.
const (
	NotifyApplicationReceived   = "application_received"
	NotifyContractCreated       = "contract_created"
	NotifyPaymentReceived       = "payment_received"
	NotifyDeliverySubmitted     = "delivery_submitted"
	NotifyDeliveryApproved      = "delivery_approved"
	NotifyDeliveryRejected      = "delivery_rejected"
	NotifyCancellationRequested = "cancellation_requested"
	NotifyCancellationApproved  = "cancellation_approved"
	NotifyCancellationRejected  = "cancellation_rejected"
)

func notifyApplicationReceived(wr *entity.WorkRequest, app *entity.Application) entity.Effect {
	return entity.NewNotifyEffect(wr.ID, wr.RequesterID, NotifyApplicationReceived,
		"Новый отклик",
		fmt.Sprintf("На заявку «%s» пришёл отклик с ценой %s", wr.Title, app.ProposedPrice),
		workRequestLink(wr.ID))
}

func notifyContractCreated(wr *entity.WorkRequest) entity.Effect {
	return entity.NewNotifyEffect(wr.ID, *wr.ContractorID, NotifyContractCreated,
		"Ваш отклик принят",
		fmt.Sprintf("Заключён контракт по заявке «%s» на сумму %s", wr.Title, *wr.FinalPrice),
		workRequestLink(wr.ID))
}

func notifyPaymentReceived(wr *entity.WorkRequest) entity.Effect {
	return entity.NewNotifyEffect(wr.ID, *wr.ContractorID, NotifyPaymentReceived,
		"Заказ оплачен",
		fmt.Sprintf("Заказчик оплатил заявку «%s», можно приступать к работе", wr.Title),
		workRequestLink(wr.ID))
}

func notifyDeliverySubmitted(wr *entity.WorkRequest) entity.Effect {
	return entity.NewNotifyEffect(wr.ID, wr.RequesterID, NotifyDeliverySubmitted,
		"Работа сдана",
		fmt.Sprintf("Исполнитель сдал работу по заявке «%s»", wr.Title),
		workRequestLink(wr.ID))
}

func notifyDeliveryApproved(wr *entity.WorkRequest) entity.Effect {
	return entity.NewNotifyEffect(wr.ID, *wr.ContractorID, NotifyDeliveryApproved,
		"Работа принята",
		fmt.Sprintf("Заказчик принял работу по заявке «%s»", wr.Title),
		workRequestLink(wr.ID))
}

func notifyDeliveryRejected(wr *entity.WorkRequest, feedback string) entity.Effect {
	return entity.NewNotifyEffect(wr.ID, *wr.ContractorID, NotifyDeliveryRejected,
		"Работа возвращена на доработку",
		feedback,
		workRequestLink(wr.ID))
}

func notifyCancellationRequested(wr *entity.WorkRequest, recipientID uuid.UUID, reason string) entity.Effect {
	return entity.NewNotifyEffect(wr.ID, recipientID, NotifyCancellationRequested,
		"Запрос на отмену",
		fmt.Sprintf("Вторая сторона просит отменить заявку «%s»: %s", wr.Title, reason),
		workRequestLink(wr.ID))
}

func notifyCancellationApproved(wr *entity.WorkRequest, c *entity.CancellationRequest) entity.Effect {
	body := fmt.Sprintf("Отмена заявки «%s» одобрена", wr.Title)
	if c.ResolvedBy == nil {
		body = fmt.Sprintf("Отмена заявки «%s» одобрена автоматически: %s", wr.Title, entity.AutoApproveNote)
	}
	return entity.NewNotifyEffect(wr.ID, c.InitiatorID, NotifyCancellationApproved,
		"Заявка отменена", body, workRequestLink(wr.ID))
}

func notifyCancellationRejected(wr *entity.WorkRequest, c *entity.CancellationRequest) entity.Effect {
	return entity.NewNotifyEffect(wr.ID, c.InitiatorID, NotifyCancellationRejected,
		"Отмена отклонена",
		fmt.Sprintf("Вторая сторона отклонила отмену заявки «%s», контракт продолжается", wr.Title),
		workRequestLink(wr.ID))
}
