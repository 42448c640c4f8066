package amqp

import (
	"encoding/json"
	"time"
)

// NotificationEvent mirrors a persisted notification record. Consumers fan the
// event out to delivery channels; the row in storage stays the source of truth.
type NotificationEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNotificationEvent(id, userID, kind, message string) *NotificationEvent {
	return &NotificationEvent{
		ID:        id,
		UserID:    userID,
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func (e *NotificationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func NotificationEventFromJSON(data []byte) (*NotificationEvent, error) {
	var event NotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
