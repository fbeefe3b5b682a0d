package user

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/nexusai/nexus/internal/apperr"
	"github.com/nexusai/nexus/internal/models"
)

// ErrNotFound est retourné quand aucun enregistrement ne correspond
var ErrNotFound = errors.New("user not found")

// Repository définit les opérations de persistance des utilisateurs
type Repository interface {
	Create(user *models.User) error
	GetByID(id int) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByResetToken(token string) (*models.User, error)
	GetByVerificationCode(code string) (*models.User, error)
	SaveResetToken(id int, token string, expiry time.Time) error
	UpdatePassword(id int, password string) error
	UpdateLastLogin(id int) error
	MarkVerified(id int) error
}

// PostgresRepository est l'implémentation PostgreSQL du Repository
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository crée un nouveau repository utilisateur
func NewPostgresRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, name, email, password, is_verified,
               verification_code, verification_expires_at,
               reset_token, reset_token_expiry, last_login, created_at, updated_at`

// scanUser lit une ligne users vers un modèle
func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Password,
		&user.IsVerified,
		&user.VerificationCode,
		&user.VerificationExpiresAt,
		&user.ResetToken,
		&user.ResetTokenExpiry,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// Create ajoute un nouvel utilisateur dans la base de données.
// La contrainte UNIQUE sur email est la garantie d'atomicité: une violation
// (code pq 23505) est remontée comme conflit, jamais comme erreur interne.
func (r *PostgresRepository) Create(user *models.User) error {
	query := `
        INSERT INTO users (name, email, password, verification_code, verification_expires_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at
    `

	err := r.db.QueryRow(
		query,
		user.Name,
		user.Email,
		user.Password,
		user.VerificationCode,
		user.VerificationExpiresAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperr.Wrap(apperr.Conflict, "User already exists", err)
		}
		return err
	}

	return nil
}

// GetByID récupère un utilisateur par son ID
func (r *PostgresRepository) GetByID(id int) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUser(r.db.QueryRow(query, id))
}

// GetByEmail récupère un utilisateur par son email
func (r *PostgresRepository) GetByEmail(email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return scanUser(r.db.QueryRow(query, email))
}

// GetByResetToken récupère un utilisateur par son token de réinitialisation,
// uniquement si le token n'a pas encore expiré (l'expiration est comparée à
// l'horloge au moment de la vérification, pas de l'émission)
func (r *PostgresRepository) GetByResetToken(token string) (*models.User, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM users WHERE reset_token = $1 AND reset_token_expiry > CURRENT_TIMESTAMP`,
		userColumns)
	return scanUser(r.db.QueryRow(query, token))
}

// GetByVerificationCode récupère un utilisateur par son code de vérification non expiré
func (r *PostgresRepository) GetByVerificationCode(code string) (*models.User, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM users WHERE verification_code = $1 AND verification_expires_at > CURRENT_TIMESTAMP`,
		userColumns)
	return scanUser(r.db.QueryRow(query, code))
}

// SaveResetToken enregistre un token de réinitialisation de mot de passe.
// Un nouveau token écrase l'ancien: au plus un token actif par utilisateur.
func (r *PostgresRepository) SaveResetToken(id int, token string, expiry time.Time) error {
	query := `
        UPDATE users
        SET reset_token = $1, reset_token_expiry = $2, updated_at = CURRENT_TIMESTAMP
        WHERE id = $3
    `

	_, err := r.db.Exec(query, token, expiry, id)
	return err
}

// UpdatePassword met à jour le mot de passe d'un utilisateur et efface
// les champs de reset dans la même requête (usage unique du token)
func (r *PostgresRepository) UpdatePassword(id int, password string) error {
	query := `
        UPDATE users
        SET password = $1, reset_token = NULL, reset_token_expiry = NULL, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2
    `

	_, err := r.db.Exec(query, password, id)
	return err
}

// UpdateLastLogin enregistre la date de dernière connexion
func (r *PostgresRepository) UpdateLastLogin(id int) error {
	query := `
        UPDATE users
        SET last_login = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
    `

	_, err := r.db.Exec(query, id)
	return err
}

// MarkVerified marque un utilisateur comme vérifié et efface le code
func (r *PostgresRepository) MarkVerified(id int) error {
	query := `
        UPDATE users
        SET is_verified = TRUE, verification_code = NULL, verification_expires_at = NULL,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
    `

	_, err := r.db.Exec(query, id)
	return err
}
