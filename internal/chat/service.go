package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nexusai/nexus/internal/apperr"
	"github.com/nexusai/nexus/internal/config"
	"github.com/sirupsen/logrus"
)

// Service relaie une conversation vers l'endpoint de complétion.
// Un seul appel sortant par message: pas de retry, pas de streaming.
type Service struct {
	client *http.Client
	url    string
	apiKey string
	log    *logrus.Logger
}

// NewService crée un nouveau service de chat
func NewService(cfg config.InferenceConfig, log *logrus.Logger) *Service {
	return &Service{
		client: &http.Client{Timeout: 60 * time.Second},
		url:    fmt.Sprintf("%s/%s", cfg.BaseURL, cfg.ModelID),
		apiKey: cfg.APIKey,
		log:    log,
	}
}

// inferenceRequest est le corps envoyé à l'endpoint de complétion
type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

// inferenceResult est une entrée de la réponse de l'endpoint
type inferenceResult struct {
	GeneratedText string `json:"generated_text"`
}

// Complete reformate la conversation en un prompt unique, interroge
// l'endpoint et retourne la continuation générée
func (s *Service) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", apperr.New(apperr.Validation, "Messages array is required")
	}

	prompt := buildPrompt(messages)

	body, err := json.Marshal(inferenceRequest{Inputs: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.WithError(err).Error("inference request failed")
		return "", apperr.Wrap(apperr.Upstream, "Failed to fetch completion", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, "Failed to fetch completion", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(raw),
		}).Error("inference endpoint returned an error")
		return "", apperr.New(apperr.Upstream, "Failed to fetch completion")
	}

	reply, err := extractReply(raw, prompt)
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, "Failed to fetch completion", err)
	}

	return reply, nil
}

// buildPrompt concatène les tours en un transcript terminé par un marqueur
// de tour assistant, pour que le modèle continue la conversation
func buildPrompt(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		role := "Assistant"
		if m.Role == "user" {
			role = "User"
		}
		b.WriteString(role + ": " + m.Content)
	}
	b.WriteString("\nAssistant:")
	return b.String()
}

// extractReply extrait la continuation générée. L'endpoint renvoie soit une
// liste d'entrées soit un objet seul; le prompt éventuellement renvoyé en
// écho est retiré du début de la réponse.
func extractReply(raw []byte, prompt string) (string, error) {
	var generated string

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var results []inferenceResult
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return "", fmt.Errorf("réponse de l'endpoint illisible: %w", err)
		}
		if len(results) > 0 {
			generated = results[0].GeneratedText
		}
	} else {
		var result inferenceResult
		if err := json.Unmarshal(trimmed, &result); err != nil {
			return "", fmt.Errorf("réponse de l'endpoint illisible: %w", err)
		}
		generated = result.GeneratedText
	}

	reply := strings.TrimSpace(strings.TrimPrefix(generated, prompt))
	if reply == "" {
		reply = "No response."
	}
	return reply, nil
}
