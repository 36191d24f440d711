package models

import "time"

// NotificationEvent names a best-effort side-channel message.
type NotificationEvent string

const (
	NotificationTaskSubmitted NotificationEvent = "task.submitted"
	NotificationTaskDecided   NotificationEvent = "task.decided"
)

// Notification is the payload handed to the notifier.
type Notification struct {
	Event      NotificationEvent `json:"event"`
	UserID     string            `json:"user_id"`
	TaskID     string            `json:"task_id"`
	Status     TaskStatus        `json:"status"`
	Comment    *string           `json:"comment,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
