// internal/workers/matching/notify-matches/models.go
package notifymatches

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"

	StatusSent    = "sent"
	StatusSkipped = "skipped"
)

type Input struct {
	UserID    string `json:"userId"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	SentAt         string `json:"sentAt,omitempty"`
}
