package auth

import (
	"encoding/json"
	"net/http"

	"github.com/nexusai/nexus/internal/apperr"
	"github.com/nexusai/nexus/internal/token"
	"github.com/sirupsen/logrus"
	"goji.io/pat"
)

// Handlers gère les requêtes HTTP pour l'authentification
type Handlers struct {
	service *Service
	tokens  *token.Service
	log     *logrus.Logger
}

// NewHandlers crée les gestionnaires HTTP pour l'authentification
func NewHandlers(service *Service, tokens *token.Service, log *logrus.Logger) *Handlers {
	return &Handlers{
		service: service,
		tokens:  tokens,
		log:     log,
	}
}

// SignupHandler gère l'inscription
func (h *Handlers) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}

	u, err := h.service.Signup(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// inscription réussie: le client reçoit immédiatement une session
	if _, err := h.tokens.Issue(w, u.ID); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "User created successfully!",
		"user":    u,
	})
}

// VerifyEmailHandler gère la vérification d'email par code
func (h *Handlers) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}

	if err := h.service.VerifyEmail(req.Code); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Email verified successfully!",
	})
}

// SigninHandler gère la connexion
func (h *Handlers) SigninHandler(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}

	u, err := h.service.Signin(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.tokens.Issue(w, u.ID); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     "Login successful",
		"currentUser": u,
	})
}

// SignoutHandler gère la déconnexion. Le cookie est effacé dans tous les
// cas et la réponse est toujours un succès, session valide ou non.
func (h *Handlers) SignoutHandler(w http.ResponseWriter, r *http.Request) {
	// identifier l'utilisateur en best-effort pour l'email de courtoisie
	if raw, ok := h.tokens.FromRequest(r); ok {
		if userID, err := h.tokens.Verify(raw); err == nil {
			h.service.SignoutNotice(userID)
		}
	}

	h.tokens.ClearCookie(w)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Signed out successfully",
	})
}

// CheckAuthHandler renvoie l'utilisateur courant. La requête a déjà passé
// le middleware; on recharge l'enregistrement au cas où il aurait disparu.
func (h *Handlers) CheckAuthHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, apperr.New(apperr.MissingToken, "Authentication required"))
		return
	}

	u, err := h.service.GetUser(identity.UserID)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			// le compte a disparu après émission du token
			h.tokens.ClearCookie(w)
		}
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    u,
	})
}

// ForgotPasswordHandler gère la demande de réinitialisation. La réponse ne
// varie jamais selon l'existence du compte.
func (h *Handlers) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}

	if err := h.service.ForgotPassword(req.Email); err != nil {
		if apperr.KindOf(err) == apperr.Validation {
			h.writeError(w, err)
			return
		}
		// erreur interne: logger sans changer la réponse générique
		h.log.WithError(err).Error("forgot password request failed")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "If an account exists with this email, a reset link has been sent",
	})
}

// ResetPasswordHandler gère la réinitialisation de mot de passe
func (h *Handlers) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	resetToken := pat.Param(r, "token")

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}

	if err := h.service.ResetPassword(resetToken, req); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Password updated successfully",
	})
}

// writeError mappe une erreur vers la taxonomie et répond en JSON
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		h.log.WithError(err).Error("request failed")
	}

	writeJSON(w, kind.Status(), map[string]interface{}{
		"success": false,
		"message": apperr.Message(err),
		"code":    kind.Code(),
	})
}

// writeJSON répond en JSON avec un statut donné
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
