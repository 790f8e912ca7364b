package models

import "time"

// NotificationType keys the per-day rate-limit ledger.
type NotificationType string

const (
	TypeLoggingReminder NotificationType = "logging_reminder"
	TypeClimateExtreme  NotificationType = "climate_extreme"
	TypeClimateModerate NotificationType = "climate_moderate"
)

// NotificationLog is one append-only ledger row. The count of rows for a
// (subscription, type, day) triple is the authoritative daily send count.
type NotificationLog struct {
	ID               string           `json:"id"`
	SubscriptionID   string           `json:"subscription_id"`
	UserID           string           `json:"user_id,omitempty"`
	NotificationType NotificationType `json:"notification_type"`
	CreatedDate      string           `json:"created_date"` // calendar day, YYYY-MM-DD
	CreatedAt        time.Time        `json:"created_at"`
}

// NotificationPayload is the JSON body delivered to the service worker.
type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Tag   string `json:"tag,omitempty"`
	URL   string `json:"url,omitempty"`
}

// DayKey renders t's calendar day in UTC as a ledger key.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
