package models

import "time"

// Item is a short text entry owned by exactly one user.
type Item struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemRequest is the create/edit form.
type ItemRequest struct {
	Title   string
	Content string
}
