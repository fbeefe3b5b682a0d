package auth

import (
	"context"

	"github.com/nexusai/nexus/internal/models"
)

// key pour stocker l'identité dans le contexte
type identityKeyType struct{}

var identityKey = identityKeyType{}

// Identity est l'identité vérifiée attachée à une requête protégée
type Identity struct {
	UserID int
	User   *models.User
}

// WithIdentity ajoute une identité vérifiée au contexte
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext récupère l'identité vérifiée du contexte
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	return identity, ok
}
