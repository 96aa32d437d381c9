package sendemailnotification

import "time"

type Input struct {
	NotificationID string `json:"notificationId"`
	RecipientEmail string `json:"recipientEmail,omitempty"`
	RecipientName  string `json:"recipientName,omitempty"`
	Style          string `json:"style,omitempty"`
}

// Output reports the adapter's verdict. Sent=false covers suppression, rate limiting
// and transport failure alike; the delivery log holds the detail.
type Output struct {
	NotificationID string    `json:"notificationId"`
	Recipient      string    `json:"recipient,omitempty"`
	Sent           bool      `json:"sent"`
	AttemptedAt    time.Time `json:"attemptedAt"`
}
