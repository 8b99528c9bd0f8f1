package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/nemo-backend/internal/assistant"
	"github.com/tbourn/nemo-backend/internal/services"
)

// envelopeRouter runs h behind a fake request id and a captured logger.
func envelopeRouter(buf *bytes.Buffer, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zerolog.New(buf)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-7")
		c.Set("logger", &logger)
		c.Next()
	})
	r.Any("/x", h)
	return r
}

func TestServiceError_Mapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
		msg    string
	}{
		{services.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound, "User not found"},
		{services.ErrConversationNotFound, http.StatusNotFound, ErrCodeNotFound, "Conversation not found"},
		{services.ErrMessageNotFound, http.StatusNotFound, ErrCodeNotFound, "Message not found"},
		{services.ErrMemoryNotFound, http.StatusNotFound, ErrCodeNotFound, "Memory not found"},
		{services.ErrNoNotificationToken, http.StatusNotFound, ErrCodeNotFound, "No notification token registered"},
		{fmt.Errorf("load: %w", services.ErrForbidden), http.StatusForbidden, ErrCodeForbidden, "Unauthorized"},
		{services.ErrInvalidRole, http.StatusBadRequest, ErrCodeBadRequest, "Role must be user or bot"},
		{services.ErrEmptyContent, http.StatusBadRequest, ErrCodeBadRequest, "Content required"},
		{assistant.ErrEmptyInput, http.StatusBadRequest, ErrCodeBadRequest, "Content required"},
		{services.ErrTooLong, http.StatusBadRequest, ErrCodeBadRequest, "Content too long"},
		{services.ErrNoFlags, http.StatusBadRequest, ErrCodeBadRequest, "Nothing to update"},
		{services.ErrEmptyToken, http.StatusBadRequest, ErrCodeBadRequest, "Token required"},
		{services.ErrEmptyName, http.StatusBadRequest, ErrCodeBadRequest, "Name required"},
		{services.ErrIdempotencyConflict, http.StatusConflict, ErrCodeConflict, "Request already in progress"},
		{services.ErrNotificationsDisabled, http.StatusNotImplemented, ErrCodeNotImplemented, "Notifications are not configured"},
		{assistant.ErrUnavailable, http.StatusServiceUnavailable, ErrCodeUnavailable, "Assistant is not configured"},
		{assistant.ErrGeneration, http.StatusBadGateway, ErrCodeUnavailable, "Error loading"},
		{errBoom, http.StatusInternalServerError, ErrCodeInternal, "Error loading"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		err := tc.err
		r := envelopeRouter(&buf, func(c *gin.Context) { serviceError(c, err, "Error loading") })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		if w.Code != tc.status {
			t.Fatalf("%v: status = %d; want %d", tc.err, w.Code, tc.status)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%v: json: %v", tc.err, err)
		}
		if resp.Code != tc.code || resp.Error != tc.msg || resp.RequestID != "rid-7" {
			t.Fatalf("%v: body = %+v", tc.err, resp)
		}
	}
}

func TestFail_ServerErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	r := envelopeRouter(&buf, func(c *gin.Context) {
		_ = c.Error(errBoom)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Error deleting account")
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/x", nil))

	out := buf.String()
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, "boom") {
		t.Fatalf("expected error log with cause, got: %s", out)
	}

	// client errors are not logged by fail
	buf.Reset()
	r = envelopeRouter(&buf, func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "Conversation not found") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusNotFound || strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("404: %d log=%s", w.Code, buf.String())
	}
}

func TestSuccessHelpers(t *testing.T) {
	var buf bytes.Buffer
	cases := []struct {
		name   string
		h      gin.HandlerFunc
		status int
		body   string
	}{
		{"ok", func(c *gin.Context) { ok(c, http.StatusCreated, IDResponse{ID: "c1"}) }, http.StatusCreated, `{"id":"c1"}`},
		{"success", success, http.StatusOK, `{"success":true}`},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		envelopeRouter(&buf, tc.h).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
		if w.Code != tc.status || strings.TrimSpace(w.Body.String()) != tc.body {
			t.Fatalf("%s: %d %q", tc.name, w.Code, w.Body.String())
		}
	}
}
