package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LifecycleEvent - сообщение о переходе заявки в топике событий.
type LifecycleEvent struct {
	ID            uuid.UUID `json:"id"`
	Event         string    `json:"event"`
	WorkRequestID uuid.UUID `json:"work_request_id"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	ActorID       string    `json:"actor_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Key - ключ партиционирования: события одной заявки идут в одну партицию по порядку.
func (e LifecycleEvent) Key() []byte {
	return []byte(e.WorkRequestID.String())
}

func (e LifecycleEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalLifecycleEvent(data []byte) (LifecycleEvent, error) {
	var e LifecycleEvent
	err := json.Unmarshal(data, &e)
	return e, err
}
