// Package apperr définit la taxonomie d'erreurs de l'application.
// Chaque handler mappe ses échecs vers un Kind, ce qui rend les modes
// d'échec énumérables au lieu de comparer des chaînes.
package apperr

import (
	"errors"
	"net/http"
)

// Kind identifie une catégorie d'erreur applicative
type Kind int

const (
	// Internal est la catégorie par défaut pour tout ce qui n'est pas mappé
	Internal Kind = iota
	// Validation: entrée manquante ou malformée
	Validation
	// Conflict: violation d'unicité (email déjà utilisé)
	Conflict
	// Authentication: identifiants invalides (message uniforme)
	Authentication
	// MissingToken: aucun token présent sur la requête
	MissingToken
	// ExpiredToken: token expiré
	ExpiredToken
	// InvalidToken: signature, issuer ou audience invalide, ou token de reset inconnu
	InvalidToken
	// NotFound: l'utilisateur n'existe plus après émission du token
	NotFound
	// Upstream: échec de l'endpoint d'inférence ou du transport email
	Upstream
	// Configuration: secret de signature absent (fatal au démarrage)
	Configuration
)

// Error est une erreur applicative taguée par un Kind
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New crée une erreur applicative sans cause sous-jacente
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap crée une erreur applicative avec une cause sous-jacente
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extrait le Kind d'une erreur, Internal par défaut
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message extrait le message exposable d'une erreur; les causes internes
// (driver, transport) ne doivent jamais fuiter vers le client
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}

// Status mappe un Kind vers un code HTTP
func (k Kind) Status() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case Authentication, MissingToken, ExpiredToken, NotFound:
		return http.StatusUnauthorized
	case InvalidToken:
		// les tokens de session invalides sortent en 401 via le middleware;
		// les tokens de reset inconnus sortent en 400 côté handler
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Code mappe un Kind vers un code machine stable pour le frontend
func (k Kind) Code() string {
	switch k {
	case Validation:
		return "VALIDATION_ERROR"
	case Conflict:
		return "CONFLICT"
	case Authentication:
		return "INVALID_CREDENTIALS"
	case MissingToken:
		return "AUTH_REQUIRED"
	case ExpiredToken:
		return "TOKEN_EXPIRED"
	case InvalidToken:
		return "INVALID_TOKEN"
	case NotFound:
		return "USER_NOT_FOUND"
	case Upstream:
		return "UPSTREAM_ERROR"
	case Configuration:
		return "CONFIG_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
