package chat

import (
	"encoding/json"
	"net/http"

	"github.com/nexusai/nexus/internal/apperr"
	"github.com/sirupsen/logrus"
)

// Handlers gère les requêtes HTTP pour le chat
type Handlers struct {
	service *Service
	log     *logrus.Logger
}

// NewHandlers crée les gestionnaires HTTP pour le chat
func NewHandlers(service *Service, log *logrus.Logger) *Handlers {
	return &Handlers{service: service, log: log}
}

// SendMessageHandler relaie la conversation du client vers l'endpoint de
// complétion et renvoie la continuation générée
func (h *Handlers) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.New(apperr.Validation, "Messages array is required"))
		return
	}

	reply, err := h.service.Complete(r.Context(), req.Messages)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"response": reply,
	})
}

// writeError mappe une erreur vers la taxonomie et répond en JSON
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal || kind == apperr.Upstream {
		h.log.WithError(err).Error("chat request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.Status())
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": apperr.Message(err),
		"code":    kind.Code(),
	})
}
