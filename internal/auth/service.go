package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/nexusai/nexus/internal/apperr"
	"github.com/nexusai/nexus/internal/email"
	"github.com/nexusai/nexus/internal/models"
	"github.com/nexusai/nexus/internal/user"
	"github.com/nexusai/nexus/internal/validation"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// coût bcrypt unique pour l'inscription et la réinitialisation
const bcryptCost = 12

// durées de validité des credentials secondaires
const (
	verificationCodeTTL = 24 * time.Hour
	resetTokenTTL       = time.Hour
)

// Service orchestre le cycle de vie des credentials: inscription, connexion,
// vérification d'email et réinitialisation de mot de passe. Sans état entre
// les appels, tous les effets passent par le store et le sender.
type Service struct {
	users     user.Repository
	emails    email.Sender
	clientURL string
	log       *logrus.Logger
}

// NewService crée un nouveau service d'authentification
func NewService(users user.Repository, emails email.Sender, clientURL string, log *logrus.Logger) *Service {
	return &Service{
		users:     users,
		emails:    emails,
		clientURL: clientURL,
		log:       log,
	}
}

// notify expédie un envoi d'email dans une goroutine: la réponse au client
// n'attend jamais le round-trip SMTP. L'échec est journalisé, jamais remonté.
func (s *Service) notify(kind string, send func() error) {
	go func() {
		if err := send(); err != nil {
			s.log.WithError(err).Warnf("failed to send %s email", kind)
		}
	}()
}

// SignupRequest data pour l'inscription
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SigninRequest data pour la connexion
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest data pour la demande de réinitialisation
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest data pour la réinitialisation de mot de passe
type ResetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// VerifyEmailRequest data pour la vérification d'email
type VerifyEmailRequest struct {
	Code string `json:"code"`
}

// Signup inscrit un nouvel utilisateur. L'unicité de l'email est garantie
// par la contrainte du store, pas par un check applicatif préalable.
func (s *Service) Signup(req SignupRequest) (*models.User, error) {
	if err := validation.ValidateName(req.Name); err != nil {
		return nil, err
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(req.Password, validation.MinPasswordLength); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("erreur lors du hachage du mot de passe: %w", err)
	}

	code, err := generateVerificationCode()
	if err != nil {
		return nil, fmt.Errorf("erreur lors de la génération du code: %w", err)
	}
	codeExpiry := time.Now().Add(verificationCodeTTL)

	newUser := &models.User{
		Name:                  req.Name,
		Email:                 req.Email,
		Password:              string(hashedPassword),
		VerificationCode:      &code,
		VerificationExpiresAt: &codeExpiry,
	}

	if err := s.users.Create(newUser); err != nil {
		return nil, err
	}

	s.notify("verification", func() error {
		return s.emails.SendVerificationEmail(newUser.Email, newUser.Name, code)
	})

	return newUser, nil
}

// VerifyEmail vérifie le compte d'un utilisateur avec son code
func (s *Service) VerifyEmail(code string) error {
	if code == "" {
		return apperr.New(apperr.Validation, "Verification code is required")
	}

	u, err := s.users.GetByVerificationCode(code)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return apperr.New(apperr.InvalidToken, "Invalid or expired verification code")
		}
		return err
	}

	if err := s.users.MarkVerified(u.ID); err != nil {
		return fmt.Errorf("erreur lors de la mise à jour du statut de vérification: %w", err)
	}

	s.notify("welcome", func() error {
		return s.emails.SendWelcomeEmail(u.Email, u.Name)
	})

	return nil
}

// Signin connecte un utilisateur. Email inconnu et mot de passe incorrect
// produisent exactement la même erreur: aucune énumération de comptes possible.
func (s *Service) Signin(req SigninRequest) (*models.User, error) {
	invalidCredentials := apperr.New(apperr.Authentication, "Invalid credentials")

	u, err := s.users.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, invalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, invalidCredentials
	}

	if err := s.users.UpdateLastLogin(u.ID); err != nil {
		s.log.WithError(err).Warn("failed to update last login")
	}

	return u, nil
}

// GetUser recharge un utilisateur déjà authentifié par le middleware.
// L'utilisateur peut avoir disparu depuis l'émission du token.
func (s *Service) GetUser(id int) (*models.User, error) {
	u, err := s.users.GetByID(id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "User account not found")
		}
		return nil, err
	}
	return u, nil
}

// SignoutNotice envoie l'email de courtoisie de déconnexion, si l'identité
// est connue. Purement best-effort: aucun échec ne remonte.
func (s *Service) SignoutNotice(userID int) {
	u, err := s.users.GetByID(userID)
	if err != nil {
		return
	}
	s.notify("signout", func() error {
		return s.emails.SendSignoutEmail(u.Email, u.Name)
	})
}

// ForgotPassword traite une demande de réinitialisation. La réponse est
// identique que le compte existe ou non; seul le cas existant enregistre
// un token et déclenche une notification.
func (s *Service) ForgotPassword(emailAddr string) error {
	if err := validation.ValidateEmail(emailAddr); err != nil {
		return err
	}

	u, err := s.users.GetByEmail(emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// ne pas révéler si l'email existe
			return nil
		}
		return err
	}

	resetToken, err := generateResetToken()
	if err != nil {
		return fmt.Errorf("erreur lors de la génération du token: %w", err)
	}

	// un nouveau token écrase l'ancien: au plus un token actif à la fois
	expiry := time.Now().Add(resetTokenTTL)
	if err := s.users.SaveResetToken(u.ID, resetToken, expiry); err != nil {
		return fmt.Errorf("erreur lors de l'enregistrement du token: %w", err)
	}

	// l'envoi part en arrière-plan: la latence de la réponse ne varie pas
	// selon l'existence du compte, et un échec ne la change pas non plus
	resetLink := fmt.Sprintf("%s/reset-password/%s", s.clientURL, resetToken)
	s.notify("password reset", func() error {
		return s.emails.SendPasswordResetEmail(u.Email, u.Name, resetLink)
	})

	return nil
}

// ResetPassword consomme un token de réinitialisation et remplace le mot
// de passe. Le token est à usage unique: les champs de reset sont effacés
// dans la même écriture que le nouveau hash.
func (s *Service) ResetPassword(token string, req ResetPasswordRequest) error {
	if req.Password == "" || req.ConfirmPassword == "" {
		return apperr.New(apperr.Validation, "Password and confirmation are required")
	}
	if req.Password != req.ConfirmPassword {
		return apperr.New(apperr.Validation, "Passwords do not match")
	}
	if err := validation.ValidatePassword(req.Password, validation.MinResetPasswordLength); err != nil {
		return err
	}

	u, err := s.users.GetByResetToken(token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return apperr.New(apperr.InvalidToken, "Invalid or expired reset link")
		}
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return fmt.Errorf("erreur lors du hachage du mot de passe: %w", err)
	}

	if err := s.users.UpdatePassword(u.ID, string(hashedPassword)); err != nil {
		return fmt.Errorf("erreur lors de la mise à jour du mot de passe: %w", err)
	}

	s.notify("reset confirmation", func() error {
		return s.emails.SendResetSuccessEmail(u.Email, u.Name)
	})

	return nil
}

// generateResetToken génère 20 octets aléatoires encodés en hexadécimal
func generateResetToken() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// generateVerificationCode génère un code à 6 chiffres
func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
