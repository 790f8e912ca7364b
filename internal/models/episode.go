package models

import "time"

// Episode is a user-logged sweat episode. The dispatch core only reads the
// creation time of the most recent one to decide whether a reminder would nag.
type Episode struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Severity  int       `json:"severity"`
	BodyArea  string    `json:"body_area,omitempty"`
	Trigger   string    `json:"trigger,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
