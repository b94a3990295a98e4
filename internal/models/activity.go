package models

import "time"

// Activity is one append-only row of a user's activity history.
type Activity struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}
