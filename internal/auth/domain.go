package auth

import "time"

// User represents an account able to sign in.
type User struct {
	ID           int64
	Email        string
	FullName     string
	Role         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
