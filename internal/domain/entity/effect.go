package entity

import (
	"github.com/google/uuid"
)

// EffectKind - тип побочного эффекта перехода.
type EffectKind string

const (
	EffectNotify  EffectKind = "notify"
	EffectRefund  EffectKind = "refund"
	EffectRelease EffectKind = "release"
	EffectPublish EffectKind = "publish"
)

// Effect - побочный эффект, который переход ставит в очередь в той же транзакции.
// Исполняется диспетчером после коммита, сбои повторяются независимо от перехода.
type Effect struct {
	ID            uuid.UUID
	WorkRequestID uuid.UUID
	Kind          EffectKind
	Payload       EffectPayload
}

// EffectPayload хранится в очереди как JSON, используются только поля своего типа.
type EffectPayload struct {
	RecipientID      uuid.UUID `json:"recipient_id,omitempty"`
	NotificationKind string    `json:"notification_kind,omitempty"`
	Title            string    `json:"title,omitempty"`
	Body             string    `json:"body,omitempty"`
	Link             string    `json:"link,omitempty"`

	PaymentReference string `json:"payment_reference,omitempty"`
	Reason           string `json:"reason,omitempty"`

	Event      string `json:"event,omitempty"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
}

func NewNotifyEffect(workRequestID, recipientID uuid.UUID, kind, title, body, link string) Effect {
	return Effect{
		ID:            uuid.New(),
		WorkRequestID: workRequestID,
		Kind:          EffectNotify,
		Payload: EffectPayload{
			RecipientID:      recipientID,
			NotificationKind: kind,
			Title:            title,
			Body:             body,
			Link:             link,
		},
	}
}

func NewRefundEffect(workRequestID uuid.UUID, paymentReference, reason string) Effect {
	return Effect{
		ID:            uuid.New(),
		WorkRequestID: workRequestID,
		Kind:          EffectRefund,
		Payload: EffectPayload{
			PaymentReference: paymentReference,
			Reason:           reason,
		},
	}
}

func NewReleaseEffect(workRequestID uuid.UUID, paymentReference string) Effect {
	return Effect{
		ID:            uuid.New(),
		WorkRequestID: workRequestID,
		Kind:          EffectRelease,
		Payload: EffectPayload{
			PaymentReference: paymentReference,
		},
	}
}

func NewPublishEffect(change *StatusChange) Effect {
	actor := ""
	if change.ActorID != nil {
		actor = change.ActorID.String()
	}
	return Effect{
		ID:            uuid.New(),
		WorkRequestID: change.WorkRequestID,
		Kind:          EffectPublish,
		Payload: EffectPayload{
			Event:      "work_request." + string(change.ToStatus),
			FromStatus: string(change.FromStatus),
			ToStatus:   string(change.ToStatus),
			ActorID:    actor,
		},
	}
}

// EffectFailure - эффект, который не удалось исполнить сразу. Он остаётся в очереди на повтор.
type EffectFailure struct {
	EffectID uuid.UUID
	Kind     EffectKind
	Err      error
}
