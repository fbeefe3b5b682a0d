package email

import (
	"fmt"
	"net/smtp"

	"github.com/nexusai/nexus/internal/config"
	"github.com/sirupsen/logrus"
)

// Sender définit l'envoi des emails transactionnels.
// Tous les envois sont fire-and-forget côté appelant: un échec est loggé,
// jamais retenté, et ne change jamais la réponse renvoyée au client.
type Sender interface {
	SendVerificationEmail(to, name, code string) error
	SendWelcomeEmail(to, name string) error
	SendSignoutEmail(to, name string) error
	SendPasswordResetEmail(to, name, resetLink string) error
	SendResetSuccessEmail(to, name string) error
}

// Service gère l'envoi d'emails via SMTP
type Service struct {
	cfg config.SMTPConfig
	log *logrus.Logger
}

var _ Sender = (*Service)(nil)

// NewService crée un nouveau service d'email
func NewService(cfg config.SMTPConfig, log *logrus.Logger) *Service {
	return &Service{cfg: cfg, log: log}
}

// SendVerificationEmail envoie le code de vérification de compte
func (s *Service) SendVerificationEmail(to, name, code string) error {
	subject := "Verify your Nexus account"
	body := fmt.Sprintf(`
        <html>
        <body>
            <h1>Welcome to Nexus, %s!</h1>
            <p>Your verification code is:</p>
            <h2>%s</h2>
            <p>This code expires in 24 hours.</p>
            <p>If you did not sign up, you can safely ignore this email.</p>
        </body>
        </html>
    `, name, code)

	return s.sendEmail(to, subject, body)
}

// SendWelcomeEmail envoie l'email de bienvenue après vérification
func (s *Service) SendWelcomeEmail(to, name string) error {
	subject := "Welcome to Nexus"
	body := fmt.Sprintf(`
        <html>
        <body>
            <h1>Hi %s,</h1>
            <p>Your email address is verified. You're all set!</p>
        </body>
        </html>
    `, name)

	return s.sendEmail(to, subject, body)
}

// SendSignoutEmail envoie une notification de déconnexion
func (s *Service) SendSignoutEmail(to, name string) error {
	subject := "You signed out of Nexus"
	body := fmt.Sprintf(`
        <html>
        <body>
            <p>Hi %s,</p>
            <p>You just signed out of your Nexus account. See you soon!</p>
        </body>
        </html>
    `, name)

	return s.sendEmail(to, subject, body)
}

// SendPasswordResetEmail envoie le lien de réinitialisation de mot de passe
func (s *Service) SendPasswordResetEmail(to, name, resetLink string) error {
	subject := "Reset your Nexus password"
	body := fmt.Sprintf(`
        <html>
        <body>
            <h1>Password reset</h1>
            <p>Hi %s,</p>
            <p>You requested a password reset. Click the link below to choose a new password:</p>
            <p><a href="%s">Reset my password</a></p>
            <p>This link expires in 1 hour.</p>
            <p>If you did not request this, you can safely ignore this email.</p>
        </body>
        </html>
    `, name, resetLink)

	return s.sendEmail(to, subject, body)
}

// SendResetSuccessEmail confirme que le mot de passe a été changé
func (s *Service) SendResetSuccessEmail(to, name string) error {
	subject := "Your Nexus password was changed"
	body := fmt.Sprintf(`
        <html>
        <body>
            <p>Hi %s,</p>
            <p>Your password was updated successfully.</p>
            <p>If you did not make this change, contact support immediately.</p>
        </body>
        </html>
    `, name)

	return s.sendEmail(to, subject, body)
}

// sendEmail envoie un email HTML via SMTP. Sans hôte SMTP configuré
// (développement), l'email est affiché dans les logs au lieu d'être envoyé.
func (s *Service) sendEmail(to, subject, body string) error {
	if s.cfg.Host == "" {
		s.log.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("SMTP not configured, printing email instead of sending")
		fmt.Println("========== EMAIL ==========")
		fmt.Println("To:", to)
		fmt.Println("Subject:", subject)
		fmt.Println("Body:", body)
		fmt.Println("===========================")
		return nil
	}

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	headers := map[string]string{
		"From":         s.cfg.From,
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	message := ""
	for k, v := range headers {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n" + body

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(message))
}
