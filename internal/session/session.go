// Package session issues and verifies the signed cookie that identifies a
// browser session. The session identifier keys all per-user state.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mailblast/mailblast/internal/config"
)

const issuer = "mailblast"

var (
	// ErrNoSecret is returned when the signing secret is empty.
	ErrNoSecret = errors.New("session: signing secret is required")
	// ErrInvalid is returned for cookies that fail verification or have expired.
	ErrInvalid = errors.New("session: invalid or expired session")
)

// Claims is the cookie payload. The subject is the session identifier.
type Claims struct {
	jwt.RegisteredClaims
}

// Manager signs and verifies session cookies with HS256.
type Manager struct {
	key      []byte
	ttl      time.Duration
	name     string
	secure   bool
	sameSite http.SameSite
	now      func() time.Time
}

// NewManager creates a Manager from the session configuration.
func NewManager(cfg config.SessionConfig) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	name := cfg.CookieName
	if name == "" {
		name = "mailblast_session"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		key:      []byte(cfg.Secret),
		ttl:      ttl,
		name:     name,
		secure:   cfg.Secure,
		sameSite: parseSameSite(cfg.SameSite),
		now:      time.Now,
	}, nil
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// CookieName returns the cookie name.
func (m *Manager) CookieName() string {
	return m.name
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a new session identifier and its signed token.
func (m *Manager) Issue() (id, token string, expiresAt time.Time, err error) {
	now := m.now()
	id = uuid.NewString()
	expiresAt = now.Add(m.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("session: failed to sign: %w", err)
	}
	return id, token, expiresAt, nil
}

// Parse verifies token and returns the session identifier.
func (m *Manager) Parse(token string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}

// FromRequest returns the session identifier carried by the request cookie.
func (m *Manager) FromRequest(r *http.Request) (string, error) {
	c, err := r.Cookie(m.name)
	if err != nil {
		return "", ErrInvalid
	}
	return m.Parse(c.Value)
}

// Cookie builds the cookie carrying token.
func (m *Manager) Cookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: m.sameSite,
	}
}
