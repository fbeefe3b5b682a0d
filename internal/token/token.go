// Package token encapsule la signature, la vérification et le cycle de vie
// du cookie de session. Le reste de l'application ne touche jamais aux
// primitives cryptographiques directement.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nexusai/nexus/internal/apperr"
	"github.com/nexusai/nexus/internal/config"
)

const (
	// CookieName est le nom du cookie de session
	CookieName = "token"
	// Issuer et Audience sont vérifiés explicitement pour empêcher la
	// réutilisation d'un token émis par un autre service
	Issuer   = "nexus"
	Audience = "nexus-users"

	// préfixe du format cookie signé (enveloppe HMAC façon cookie-parser)
	signedPrefix = "s:"
)

// Service émet et vérifie les tokens de session signés
type Service struct {
	secret       []byte
	cookieSecret []byte
	expiry       time.Duration
	cookieDomain string
	secure       bool
}

// NewService crée un service de tokens. Un secret absent est une erreur de
// configuration: l'appelant doit la traiter comme fatale au démarrage.
func NewService(cfg config.AuthConfig) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, apperr.New(apperr.Configuration, "JWT secret is not configured")
	}

	var cookieSecret []byte
	if cfg.CookieSecret != "" {
		cookieSecret = []byte(cfg.CookieSecret)
	}

	return &Service{
		secret:       []byte(cfg.JWTSecret),
		cookieSecret: cookieSecret,
		expiry:       cfg.JWTExpiry,
		cookieDomain: cfg.CookieDomain,
		secure:       cfg.Secure,
	}, nil
}

// Issue signe un token de session pour un utilisateur et le pose en cookie
func (s *Service) Issue(w http.ResponseWriter, userID int) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		Issuer:    Issuer,
		Audience:  jwt.ClaimStrings{Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}

	value := signed
	if s.cookieSecret != nil {
		value = s.encodeSigned(signed)
	}

	// le Max-Age du cookie reprend exactement la durée du token
	cookie := s.sessionCookie(value, int(s.expiry.Seconds()))
	cookie.Expires = now.Add(s.expiry)
	http.SetCookie(w, cookie)

	return signed, nil
}

// Verify vérifie un token et retourne l'identifiant utilisateur.
// L'algorithme, l'issuer et l'audience sont tous contrôlés explicitement,
// pas seulement la signature.
func (s *Service) Verify(raw string) (int, error) {
	if raw == "" {
		return 0, apperr.New(apperr.MissingToken, "Authentication required")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, apperr.Wrap(apperr.ExpiredToken, "Session expired", err)
		}
		return 0, apperr.Wrap(apperr.InvalidToken, "Invalid token", err)
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return 0, apperr.Wrap(apperr.InvalidToken, "Invalid token", err)
	}

	return userID, nil
}

// ClearCookie demande au client de supprimer le cookie de session.
// Les attributs doivent être identiques à ceux posés par Issue, sinon les
// navigateurs ignorent silencieusement la suppression.
func (s *Service) ClearCookie(w http.ResponseWriter) {
	cookie := s.sessionCookie("", -1)
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)
}

// FromRequest localise un token candidat sur la requête. Les stratégies
// d'extraction sont ordonnées: cookie signé, cookie brut, en-tête Bearer.
// La première présente gagne.
func (s *Service) FromRequest(r *http.Request) (string, bool) {
	extractors := []func(*http.Request) (string, bool){
		s.fromSignedCookie,
		s.fromPlainCookie,
		fromBearerHeader,
	}

	for _, extract := range extractors {
		if tok, ok := extract(r); ok {
			return tok, true
		}
	}
	return "", false
}

// sessionCookie construit le cookie de session avec le jeu d'attributs
// partagé entre pose et suppression
func (s *Service) sessionCookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.secure {
		// cookie utilisable en cross-site: None exige Secure
		sameSite = http.SameSiteNoneMode
	}

	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Domain:   s.cookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: sameSite,
	}
}

func (s *Service) fromSignedCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || !strings.HasPrefix(cookie.Value, signedPrefix) {
		return "", false
	}
	return s.decodeSigned(cookie.Value)
}

func (s *Service) fromPlainCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" || strings.HasPrefix(cookie.Value, signedPrefix) {
		return "", false
	}
	return cookie.Value, true
}

func fromBearerHeader(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	tok := strings.TrimPrefix(header, "Bearer ")
	return tok, tok != ""
}

// encodeSigned enveloppe une valeur dans le format cookie signé s:<valeur>.<mac>
func (s *Service) encodeSigned(value string) string {
	mac := hmac.New(sha256.New, s.cookieSecret)
	mac.Write([]byte(value))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return signedPrefix + value + "." + sig
}

// decodeSigned vérifie l'enveloppe signée et en extrait la valeur
func (s *Service) decodeSigned(raw string) (string, bool) {
	if s.cookieSecret == nil {
		return "", false
	}

	body := strings.TrimPrefix(raw, signedPrefix)
	idx := strings.LastIndex(body, ".")
	if idx < 0 {
		return "", false
	}

	value, sig := body[:idx], body[idx+1:]
	mac := hmac.New(sha256.New, s.cookieSecret)
	mac.Write([]byte(value))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return value, true
}
