package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nemo-backend/internal/assistant"
	"github.com/tbourn/nemo-backend/internal/services"
)

// Error codes. Clients branch on these; the message is for display.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeNotImplemented   = "not_implemented"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// serviceError maps a service error to a response. Unknown errors become a
// 500 with fallback as message; the cause goes to the log only.
func serviceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "User not found")
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Conversation not found")
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Message not found")
	case errors.Is(err, services.ErrMemoryNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Memory not found")
	case errors.Is(err, services.ErrNoNotificationToken):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "No notification token registered")
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "Unauthorized")
	case errors.Is(err, services.ErrInvalidRole):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Role must be user or bot")
	case errors.Is(err, services.ErrEmptyContent), errors.Is(err, assistant.ErrEmptyInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Content required")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Content too long")
	case errors.Is(err, services.ErrNoFlags):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Nothing to update")
	case errors.Is(err, services.ErrEmptyToken):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Token required")
	case errors.Is(err, services.ErrEmptyName):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Name required")
	case errors.Is(err, services.ErrIdempotencyConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, "Request already in progress")
	case errors.Is(err, services.ErrNotificationsDisabled):
		fail(c, http.StatusNotImplemented, ErrCodeNotImplemented, "Notifications are not configured")
	case errors.Is(err, assistant.ErrUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "Assistant is not configured")
	case errors.Is(err, assistant.ErrGeneration):
		_ = c.Error(err)
		fail(c, http.StatusBadGateway, ErrCodeUnavailable, fallback)
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, fallback)
	}
}
