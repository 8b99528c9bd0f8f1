// Message HTTP handlers.
//
//   - GET   /conversations/{id}/messages              (ordered list, optional limit)
//   - POST  /conversations/{id}/messages              (append)
//   - PATCH /conversations/{id}/messages/{messageId}  (pinned/saved flags)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous append
// exists for (user, conversation, key), the handler returns that message
// and sets `Idempotency-Replayed: true`.
package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nemo-backend/internal/domain"
	"github.com/tbourn/nemo-backend/internal/http/middleware"
	"github.com/tbourn/nemo-backend/internal/services"
	"github.com/tbourn/nemo-backend/internal/utils"
)

const headerReplayed = "Idempotency-Replayed"

// PostMessageRequest is a message written by the client.
type PostMessageRequest struct {
	Role              string           `json:"role" example:"user"`
	Content           string           `json:"content" example:"Explique-moi les closures en Python."`
	Image             string           `json:"image,omitempty"`
	File              *domain.FileMeta `json:"file,omitempty"`
	GroundingMetadata map[string]any   `json:"groundingMetadata,omitempty"`
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent converts CRLF/CR to LF, collapses runs of blank lines and
// trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages of a conversation
// @Description Messages in timestamp order. With limit, only the most recent ones (still ascending).
// @Tags        Messages
// @Produce     json
// @Param       id     path   string  true   "Conversation ID"
// @Param       limit  query  int     false  "Keep the last N messages"  minimum(1)
// @Success     200  {array}   domain.Message
// @Failure     403  {object}  handlers.ErrorResponse  "Owned by another user"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	limit, valid := utils.NonNegative(c.Query("limit"), 0)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
		return
	}
	items, err := h.Messages.List(c.Request.Context(), userID(c), c.Param("id"), limit)
	if err != nil {
		serviceError(c, err, "Error fetching messages")
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	ok(c, http.StatusOK, items)
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Append a message
// @Description Stores a user or bot message and updates the conversation's lastMessage and updatedAt.
// @Description Supports idempotency via the Idempotency-Key header (same key → same message).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                       false  "Idempotency key for safe retries"
// @Param       id               path    string                       true   "Conversation ID"
// @Param       body             body    handlers.PostMessageRequest  true   "Message"
// @Success     201  {object}  domain.Message
// @Success     200  {object}  domain.Message  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Owned by another user"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Idempotency conflict"
// @Router      /conversations/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	m, replayed, err := h.Messages.Append(c.Request.Context(), userID(c), c.Param("id"), services.NewMessage{
		Role:              req.Role,
		Content:           sanitizeContent(req.Content),
		Image:             req.Image,
		File:              req.File,
		GroundingMetadata: req.GroundingMetadata,
	}, key)
	if err != nil {
		serviceError(c, err, "Error saving message")
		return
	}
	if replayed {
		c.Header(headerReplayed, "true")
		ok(c, http.StatusOK, m)
		return
	}
	ok(c, http.StatusCreated, m)
}

// UpdateMessage godoc
// @ID          updateMessage
// @Summary     Pin or save a message
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       id         path      string               true  "Conversation ID"
// @Param       messageId  path      string               true  "Message ID"
// @Param       body       body      domain.MessageFlags  true  "Flags to set"
// @Success     200  {object}  domain.Message
// @Failure     400  {object}  handlers.ErrorResponse  "Nothing to update"
// @Failure     404  {object}  handlers.ErrorResponse  "Message not found"
// @Router      /conversations/{id}/messages/{messageId} [patch]
func (h *Handlers) UpdateMessage(c *gin.Context) {
	var flags domain.MessageFlags
	if err := c.ShouldBindJSON(&flags); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	m, err := h.Messages.SetFlags(c.Request.Context(), userID(c), c.Param("id"), c.Param("messageId"), flags)
	if err != nil {
		serviceError(c, err, "Error updating message")
		return
	}
	ok(c, http.StatusOK, m)
}
