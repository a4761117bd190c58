package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that can upload files and, when IsAdmin is set, browse
// the admin views.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser creates a new user with a fresh identity
func NewUser(name, username, passwordHash string, isAdmin bool) User {
	return User{
		ID:           uuid.New(),
		Name:         name,
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now().UTC(),
	}
}
