package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nexusai/nexus/internal/apperr"
	"github.com/nexusai/nexus/internal/auth"
	"github.com/nexusai/nexus/internal/token"
	"github.com/nexusai/nexus/internal/user"
	"github.com/sirupsen/logrus"
)

// AuthMiddleware protège les routes nécessitant une session valide
type AuthMiddleware struct {
	tokens *token.Service
	users  user.Repository
	log    *logrus.Logger
}

// NewAuthMiddleware crée un nouveau middleware d'authentification
func NewAuthMiddleware(tokens *token.Service, users user.Repository, log *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		users:  users,
		log:    log,
	}
}

// RequireAuth vérifie le token de session, charge l'utilisateur et attache
// l'identité au contexte. Tout échec efface le cookie et répond 401 avec un
// code machine distinct; la requête n'atteint jamais le handler protégé.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := m.tokens.FromRequest(r)

		userID, err := m.tokens.Verify(raw)
		if err != nil {
			m.reject(w, apperr.KindOf(err), apperr.Message(err))
			return
		}

		u, err := m.users.GetByID(userID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				// le compte a été supprimé après émission du token
				m.reject(w, apperr.NotFound, "User account not found")
				return
			}
			m.log.WithError(err).Error("failed to load user for session")
			m.reject(w, apperr.InvalidToken, "Authentication failed")
			return
		}

		ctx := auth.WithIdentity(r.Context(), &auth.Identity{
			UserID: userID,
			User:   u,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// reject efface le cookie de session et répond 401. Un token invalide
// laissé en place produirait la même erreur à chaque requête suivante.
func (m *AuthMiddleware) reject(w http.ResponseWriter, kind apperr.Kind, message string) {
	m.tokens.ClearCookie(w)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
		"code":    kind.Code(),
	})
}
