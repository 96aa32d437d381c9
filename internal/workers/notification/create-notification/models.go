package createnotification

import "time"

// Input carries either a full notification or just type+data, in which case the
// registered template for the type renders title and message.
type Input struct {
	UserID      string                 `json:"userId"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Priority    string                 `json:"priority,omitempty"`
	ExpiresAt   *time.Time             `json:"expiresAt,omitempty"`
	ActionURL   string                 `json:"actionUrl,omitempty"`
	ActionLabel string                 `json:"actionLabel,omitempty"`
}

type Output struct {
	NotificationID string    `json:"notificationId"`
	Type           string    `json:"type"`
	Priority       string    `json:"priority"`
	ActionURL      string    `json:"actionUrl,omitempty"`
	FromTemplate   bool      `json:"fromTemplate"`
	CreatedAt      time.Time `json:"createdAt"`
}
