// Package validation regroupe les règles de validation des entrées.
package validation

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/nexusai/nexus/internal/apperr"
)

// Règles de validation
const (
	MinPasswordLength      = 6
	MinResetPasswordLength = 8
	MaxPasswordLength      = 128
	MaxEmailLength         = 254
	MaxNameLength          = 100
)

// ValidateEmail valide un email
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)

	if email == "" {
		return apperr.New(apperr.Validation, "Email is required")
	}

	if len(email) > MaxEmailLength {
		return apperr.New(apperr.Validation, "Email is too long")
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return apperr.New(apperr.Validation, "Invalid email format")
	}

	return nil
}

// ValidateName valide un nom d'utilisateur
func ValidateName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return apperr.New(apperr.Validation, "Name is required")
	}

	if len(name) > MaxNameLength {
		return apperr.New(apperr.Validation, "Name is too long")
	}

	return nil
}

// ValidatePassword valide un mot de passe avec une longueur minimale donnée
func ValidatePassword(password string, minLength int) error {
	if password == "" {
		return apperr.New(apperr.Validation, "Password is required")
	}

	if len(password) < minLength {
		return apperr.New(apperr.Validation,
			fmt.Sprintf("Password must be at least %d characters", minLength))
	}

	if len(password) > MaxPasswordLength {
		return apperr.New(apperr.Validation, "Password is too long")
	}

	return nil
}
