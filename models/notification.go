package models

// NotificationChannel represents the notification channel type
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelLog   NotificationChannel = "log"
)

// Notification is one outbound message. Delivery is synchronous from the
// caller's point of view; there is no queue behind it.
type Notification struct {
	Channel     NotificationChannel `json:"channel"`
	Recipient   string              `json:"recipient"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"`
	GrievanceID string              `json:"grievance_id"`
}
