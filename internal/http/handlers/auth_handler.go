// Session endpoints.
//
//   - POST /login/firebase   exchange a Firebase ID token for a session cookie
//   - GET  /auth/url         Google consent URL (optional)
//   - GET  /auth/callback    OAuth redirect target (mounted outside the API)
//   - POST /logout           revoke the session and clear the cookie
package handlers

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nemo-backend/internal/auth"
	"github.com/tbourn/nemo-backend/internal/http/middleware"
	"github.com/tbourn/nemo-backend/internal/services"
)

const (
	stateCookie = "oauth_state"
	stateTTL    = 10 * time.Minute
)

// LoginRequest carries the Firebase ID token obtained by the client.
type LoginRequest struct {
	Token string `json:"token" example:"eyJhbGciOiJSUzI1NiIsImtpZCI6..."`
}

// AuthURLResponse is the Google consent page.
type AuthURLResponse struct {
	URL string `json:"url" example:"https://accounts.google.com/o/oauth2/auth?client_id=..."`
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
  <body>
    <script>
      if (window.opener) {
        window.opener.postMessage({ type: 'OAUTH_AUTH_SUCCESS' }, '*');
        window.close();
      } else {
        window.location.href = '/';
      }
    </script>
    <p>{{.}}</p>
  </body>
</html>
`))

// Login godoc
// @ID          login
// @Summary     Sign in with a Firebase ID token
// @Description Verifies the token, creates the default profile on first login and sets the session cookie.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Firebase ID token"
// @Success     200   {object}  handlers.SuccessResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Token required"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid token"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /login/firebase [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Token required")
		return
	}
	if h.Verifier == nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Firebase not initialized")
		return
	}

	id, err := h.Verifier.Verify(c.Request.Context(), req.Token)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("firebase token rejected")
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid token")
		return
	}
	if !h.startSession(c, id) {
		return
	}
	success(c)
}

// AuthURL godoc
// @ID          authURL
// @Summary     Google OAuth consent URL
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  handlers.AuthURLResponse
// @Failure     404  {object}  handlers.ErrorResponse  "OAuth not configured"
// @Router      /auth/url [get]
func (h *Handlers) AuthURL(c *gin.Context) {
	if h.OAuth == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "OAuth is not configured")
		return
	}
	state, err := auth.NewState()
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Error creating auth URL")
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	ok(c, http.StatusOK, AuthURLResponse{URL: h.OAuth.AuthCodeURL(state)})
}

// AuthCallback godoc
// @ID          authCallback
// @Summary     OAuth redirect target
// @Description Exchanges the code, sets the session and notifies the opener window.
// @Tags        Auth
// @Produce     html
// @Param       code   query  string  true  "Authorization code"
// @Param       state  query  string  true  "State issued by /auth/url"
// @Success     200  {string}  string  "HTML page"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid state"
// @Failure     401  {object}  handlers.ErrorResponse  "Authentication failed"
// @Router      /auth/callback [get]
func (h *Handlers) AuthCallback(c *gin.Context) {
	if h.OAuth == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "OAuth is not configured")
		return
	}
	want, err := c.Cookie(stateCookie)
	if err != nil || want == "" || c.Query("state") != want {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid state")
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1, HttpOnly: true, Secure: h.Cookie.Secure})

	id, err := h.OAuth.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("oauth exchange failed")
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication failed")
		return
	}
	if !h.startSession(c, id) {
		return
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = callbackPage.Execute(c.Writer, "Authentication successful. This window should close automatically.")
}

// Logout godoc
// @ID          logout
// @Summary     End the session
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  handlers.SuccessResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Router      /logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	if s, found := middleware.SessionFrom(c); found {
		if err := h.Sessions.Revoke(c.Request.Context(), s); err != nil {
			_ = c.Error(err)
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "Error logging out")
			return
		}
	}
	h.Cookie.ClearCookie(c.Writer)
	success(c)
}

// startSession makes sure the profile exists and sets the session cookie.
// It writes the error response itself and reports whether it succeeded.
func (h *Handlers) startSession(c *gin.Context, id services.Identity) bool {
	lg := middleware.LoggerFrom(c)
	created, err := h.Users.EnsureUser(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err, "Error creating user")
		return false
	}
	if created {
		lg.Info().Str("user_id", id.UID).Msg("user profile created")
	}

	token, s, err := h.Sessions.Issue(id.UID)
	if err != nil {
		serviceError(c, err, "Error creating session")
		return false
	}
	h.Cookie.SetCookie(c.Writer, token, s.ExpiresAt)
	return true
}
