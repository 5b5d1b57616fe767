package auth

import (
	"time"

	"github.com/shelfmark/shelfmark/pkg/models"
)

// RegisterPayload represents the registration request body.
type RegisterPayload struct {
	Email    string `json:"email" mod:"trim,lcase" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginPayload represents the login request body.
type LoginPayload struct {
	Email    string `json:"email" mod:"trim,lcase" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordPayload represents the password change request body.
type ChangePasswordPayload struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// SessionResponse is returned by register and login: the user, a session
// token, and the token's absolute expiry.
type SessionResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// MeResponse represents the current user response.
type MeResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
}
