// Package session mints and validates the signed session cookie.
//
// A session is an HS256 JWT whose subject is the Firebase uid and whose jti
// identifies the session for revocation. Logging out records the jti in a
// Revoker until the token would have expired anyway.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "nemo-backend"

var (
	// ErrInvalid is returned for malformed, expired or wrongly signed tokens.
	ErrInvalid = errors.New("invalid session")

	// ErrRevoked is returned for a token whose session was logged out.
	ErrRevoked = errors.New("session revoked")
)

// Session is an authenticated session.
type Session struct {
	ID        string
	UID       string
	ExpiresAt time.Time
}

// Revoker remembers logged-out session ids until they expire.
type Revoker interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// Manager issues and parses session tokens.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

// NewManager returns a Manager signing with secret. A nil revoker keeps
// revocations in memory.
func NewManager(secret string, ttl time.Duration, r Revoker) *Manager {
	if r == nil {
		r = NewMemoryRevoker()
	}
	return &Manager{secret: []byte(secret), ttl: ttl, revoker: r, now: time.Now}
}

// TTL is the lifetime of issued sessions.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates a session for uid and returns its signed token.
func (m *Manager) Issue(uid string) (string, *Session, error) {
	if strings.TrimSpace(uid) == "" {
		return "", nil, fmt.Errorf("issue session: empty uid")
	}
	now := m.now()
	s := &Session{ID: uuid.NewString(), UID: uid, ExpiresAt: now.Add(m.ttl)}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        s.ID,
		Subject:   uid,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	})
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, s, nil
}

// Parse validates a token and checks it has not been revoked.
func (m *Manager) Parse(ctx context.Context, token string) (*Session, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalid
	}
	revoked, err := m.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrRevoked
	}
	return &Session{ID: claims.ID, UID: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Revoke invalidates s for the rest of its lifetime.
func (m *Manager) Revoke(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return nil
	}
	return m.revoker.Revoke(ctx, s.ID, s.ExpiresAt)
}

// CookieOptions controls the session cookie attributes.
type CookieOptions struct {
	Name     string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// ParseSameSite maps "lax", "strict" and "none" to http.SameSite.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteNoneMode
	}
}

// SetCookie writes the session cookie.
func (o CookieOptions) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.Name,
		Value:    token,
		Path:     o.path(),
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	})
}

// ClearCookie expires the session cookie.
func (o CookieOptions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.Name,
		Value:    "",
		Path:     o.path(),
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	})
}

func (o CookieOptions) path() string {
	if o.Path == "" {
		return "/"
	}
	return o.Path
}
