package models

import "time"

// PushSubscription is one registered browser/device push endpoint.
// UserID is empty for anonymous subscriptions. Latitude/Longitude are nil
// unless the user opted into climate alerts.
type PushSubscription struct {
	ID        string   `json:"id"`
	Endpoint  string   `json:"endpoint"`
	P256dh    string   `json:"keys_p256dh"` // Mapped from keys.p256dh
	Auth      string   `json:"keys_auth"`   // Mapped from keys.auth
	UserID    string   `json:"user_id,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// Per-user alert threshold overrides.
	TemperatureThreshold float64 `json:"temperature_threshold"`
	HumidityThreshold    float64 `json:"humidity_threshold"`
	UVThreshold          float64 `json:"uv_threshold"`

	LastReminderSentAt *time.Time `json:"last_reminder_sent_at,omitempty"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
}

// HasLocation reports whether the subscription is eligible for climate alerts.
func (s PushSubscription) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}
