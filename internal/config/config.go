package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config contient la configuration globale de l'application,
// chargée une seule fois au démarrage puis passée par injection
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	SMTP      SMTPConfig
	Inference InferenceConfig
	ClientURL string
}

// ServerConfig contient la configuration du serveur web
type ServerConfig struct {
	Port          string
	AllowedOrigin string
}

// DatabaseConfig contient la configuration de la base de données
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// AuthConfig contient la configuration des tokens de session
type AuthConfig struct {
	JWTSecret    string
	CookieSecret string
	// JWTExpiry s'applique à la fois au claim exp et au Max-Age du cookie,
	// pour que les deux durées ne puissent pas diverger
	JWTExpiry    time.Duration
	CookieDomain string
	Secure       bool
}

// SMTPConfig contient la configuration de l'envoi d'emails
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// InferenceConfig contient la configuration de l'endpoint de complétion
type InferenceConfig struct {
	BaseURL string
	ModelID string
	APIKey  string
}

// Load charge la configuration depuis les variables d'environnement
func Load() (*Config, error) {
	// charger .env si présent
	_ = godotenv.Load()

	// condition fatale: le serveur ne doit pas démarrer sans secret de signature
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not configured")
	}

	jwtExpiry := 7 * 24 * time.Hour
	if raw := os.Getenv("JWT_EXPIRES_IN"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRES_IN %q: %w", raw, err)
		}
		jwtExpiry = d
	}

	clientURL := getEnv("CLIENT_URL", "http://localhost:5174")

	config := &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "5000"),
			AllowedOrigin: getEnv("ALLOWED_ORIGIN", clientURL),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "nexus"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:    jwtSecret,
			CookieSecret: os.Getenv("COOKIE_SECRET"),
			JWTExpiry:    jwtExpiry,
			CookieDomain: os.Getenv("COOKIE_DOMAIN"),
			Secure:       os.Getenv("ENV") == "production",
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("FROM_EMAIL", "no-reply@nexus.local"),
		},
		Inference: InferenceConfig{
			BaseURL: getEnv("HF_API_URL", "https://api-inference.huggingface.co/models"),
			ModelID: getEnv("MODEL_ID", "mistralai/Mistral-7B-Instruct-v0.1"),
			APIKey:  os.Getenv("HF_API_KEY"),
		},
		ClientURL: clientURL,
	}

	return config, nil
}

// getEnv lit une variable d'environnement avec une valeur par défaut
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
