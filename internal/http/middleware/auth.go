package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nemo-backend/internal/session"
)

// SessionParser validates a session token.
type SessionParser interface {
	Parse(ctx context.Context, token string) (*session.Session, error)
}

// SessionAuth requires a valid session cookie named cookieName. On success
// the uid and the session are stored under UserIDKey and SessionKey.
func SessionAuth(p SessionParser, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Not authenticated")
			return
		}
		s, err := p.Parse(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, session.ErrInvalid) && !errors.Is(err, session.ErrRevoked) {
				LoggerFrom(c).Error().Err(err).Msg("session lookup failed")
			}
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Not authenticated")
			return
		}
		c.Set(UserIDKey, s.UID)
		c.Set(SessionKey, s)
		c.Next()
	}
}

// SessionFrom returns the session set by SessionAuth.
func SessionFrom(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok && s != nil
}

// RequireStore answers 500 "Database not initialized" while ready reports
// false.
func RequireStore(ready func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready == nil || !ready() {
			abortJSON(c, http.StatusInternalServerError, "internal_error", "Database not initialized")
			return
		}
		c.Next()
	}
}

// BodyLimit caps request bodies at def bytes, or at the per-route value in
// overrides keyed by the matched route path.
func BodyLimit(def int64, overrides map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := def
		if n, ok := overrides[c.FullPath()]; ok {
			limit = n
		}
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
