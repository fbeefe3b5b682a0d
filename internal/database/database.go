package database

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/nexusai/nexus/internal/config"

	_ "github.com/lib/pq" // Driver PostgreSQL
)

// Connect établit une connexion à la base de données
func Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("erreur d'ouverture de connexion à la base de données: %w", err)
	}

	// vérifier la connexion
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("erreur de ping à la base de données: %w", err)
	}

	return db, nil
}

// RunMigrations exécute les scripts de migration pour créer/mettre à jour les tables.
// La contrainte UNIQUE sur users.email est le mécanisme d'atomicité pour les
// inscriptions concurrentes: un check applicatif seul serait une race.
func RunMigrations(db *sql.DB) error {
	migrationFiles := []string{
		"internal/database/migrations/create_users_table.sql",
	}

	for _, file := range migrationFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("erreur lors de la lecture du fichier de migration %s: %w", file, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("erreur lors de l'exécution de la migration %s: %w", file, err)
		}
	}

	return nil
}
