package models

import "time"

type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationInfo    NotificationKind = "info"
	NotificationWarning NotificationKind = "warning"
)

type Notification struct {
	ID          string           `json:"id"`
	Message     string           `json:"message"`
	Description string           `json:"description,omitempty"`
	Kind        NotificationKind `json:"kind"`
	// Duration 0 means the item stays until dismissed.
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
}
