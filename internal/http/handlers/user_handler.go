package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nemo-backend/internal/domain"
	"github.com/tbourn/nemo-backend/internal/http/middleware"
)

// SettingsRequest replaces the settings block. The bare settings object is
// accepted as well.
type SettingsRequest struct {
	UserSettings *domain.UserSettings `json:"userSettings"`
}

// decodeSettings reads either {"userSettings": {...}} or the settings
// object itself. Anything but a JSON object is rejected.
func decodeSettings(body []byte) (*domain.UserSettings, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, false
	}
	raw := json.RawMessage(body)
	if nested, ok := fields["userSettings"]; ok {
		raw = nested
	}
	var settings *domain.UserSettings
	if err := json.Unmarshal(raw, &settings); err != nil || settings == nil {
		return nil, false
	}
	return settings, true
}

// TokenRequest registers a Cloud Messaging token.
type TokenRequest struct {
	Token string `json:"token" example:"fcm-registration-token"`
}

// NotificationResponse carries the provider message id.
type NotificationResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// Me godoc
// @ID          me
// @Summary     Current user profile
// @Tags        Users
// @Produce     json
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Router      /me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, err := h.Users.Me(c.Request.Context(), userID(c))
	if err != nil {
		serviceError(c, err, "Error fetching user")
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateSettings godoc
// @ID          updateSettings
// @Summary     Replace user settings
// @Description Accepts the settings wrapped in userSettings or the bare settings object.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.SettingsRequest  true  "Settings"
// @Success     200   {object}  handlers.SuccessResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404   {object}  handlers.ErrorResponse  "User not found"
// @Router      /settings [patch]
func (h *Handlers) UpdateSettings(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "userSettings required")
		return
	}
	settings, valid := decodeSettings(body)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "userSettings required")
		return
	}
	if err := h.Users.UpdateSettings(c.Request.Context(), userID(c), *settings); err != nil {
		serviceError(c, err, "Error updating settings")
		return
	}
	success(c)
}

// RegisterToken godoc
// @ID          registerNotificationToken
// @Summary     Register a push notification token
// @Tags        Notifications
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.TokenRequest  true  "FCM token"
// @Success     200   {object}  handlers.SuccessResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Token required"
// @Router      /notifications/token [post]
func (h *Handlers) RegisterToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Token required")
		return
	}
	if err := h.Users.RegisterToken(c.Request.Context(), userID(c), req.Token); err != nil {
		serviceError(c, err, "Error saving token")
		return
	}
	success(c)
}

// TestNotification godoc
// @ID          testNotification
// @Summary     Send a test push notification
// @Tags        Notifications
// @Produce     json
// @Success     200  {object}  handlers.NotificationResponse
// @Failure     404  {object}  handlers.ErrorResponse  "No token registered"
// @Failure     501  {object}  handlers.ErrorResponse  "Messaging not configured"
// @Router      /notifications/test [post]
func (h *Handlers) TestNotification(c *gin.Context) {
	id, err := h.Users.SendTestNotification(c.Request.Context(), userID(c))
	if err != nil {
		serviceError(c, err, "Error sending notification")
		return
	}
	ok(c, http.StatusOK, NotificationResponse{Success: true, MessageID: id})
}

// DeleteAccount godoc
// @ID          deleteAccount
// @Summary     Delete the account and all owned data
// @Tags        Users
// @Produce     json
// @Success     200  {object}  handlers.SuccessResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /account [delete]
func (h *Handlers) DeleteAccount(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.Users.DeleteAccount(ctx, userID(c)); err != nil {
		serviceError(c, err, "Error deleting account")
		return
	}
	if s, found := middleware.SessionFrom(c); found {
		if err := h.Sessions.Revoke(ctx, s); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("session revoke failed after account deletion")
		}
	}
	h.Cookie.ClearCookie(c.Writer)
	success(c)
}
