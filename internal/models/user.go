package models

import "time"

// User représente un utilisateur du système.
// Le hash du mot de passe et les champs de tokens internes ne sont
// jamais sérialisés vers le client.
type User struct {
	ID                    int        `json:"id"`
	Name                  string     `json:"name"`
	Email                 string     `json:"email"`
	Password              string     `json:"-"` // toujours un hash bcrypt, jamais le secret
	IsVerified            bool       `json:"is_verified"`
	VerificationCode      *string    `json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	ResetToken            *string    `json:"-"`
	ResetTokenExpiry      *time.Time `json:"-"`
	LastLogin             *time.Time `json:"last_login,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}
