package models

import "time"

// User represents a row in the users table.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialize
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterRequest is the registration form.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	Confirm  string
}

// LoginRequest is the login form.
type LoginRequest struct {
	Username string
	Password string
}
