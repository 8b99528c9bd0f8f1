// Conversation HTTP handlers.
//
//   - GET    /conversations        (list, optional q filter, weak ETag)
//   - POST   /conversations        (create)
//   - GET    /conversations/{id}   (read)
//   - PATCH  /conversations/{id}   (rename / re-summarize)
//   - DELETE /conversations/{id}   (delete with messages)
//
// The same routes are mounted under /threads.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// ConversationRequest creates or updates a conversation. On update, absent
// fields are left unchanged.
type ConversationRequest struct {
	Title   *string `json:"title" example:"Révisions Python"`
	Summary *string `json:"summary" example:""`
}

// conversationsETag derives a weak validator from the result itself so that
// any append, rename or delete changes it.
func conversationsETag(uid string, items []domain.Conversation) string {
	var latest int64
	for _, c := range items {
		if ts := c.UpdatedAt.UnixNano(); ts > latest {
			latest = ts
		}
	}
	return fmt.Sprintf(`W/"conversations:%s:%d:%d"`, uid, len(items), latest)
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations
// @Description Returns the caller's conversations, most recently updated first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
// @Param       q              query   string  false  "Filter on title and last message (case and accent insensitive)"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {array}   domain.Conversation
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	uid := userID(c)
	items, err := h.Conversations.List(c.Request.Context(), uid, c.Query("q"))
	if err != nil {
		serviceError(c, err, "Error fetching conversations")
		return
	}

	etag := conversationsETag(uid, items)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}
	if items == nil {
		items = []domain.Conversation{}
	}
	ok(c, http.StatusOK, items)
}

// CreateConversation godoc
// @ID          createConversation
// @Summary     Create a conversation
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ConversationRequest  false  "Optional title and summary"
// @Success     200   {object}  handlers.IDResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations [post]
func (h *Handlers) CreateConversation(c *gin.Context) {
	var req ConversationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
			return
		}
	}
	conv, err := h.Conversations.Create(c.Request.Context(), userID(c), deref(req.Title), deref(req.Summary))
	if err != nil {
		serviceError(c, err, "Error creating conversation")
		return
	}
	ok(c, http.StatusOK, IDResponse{ID: conv.ID})
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Get a conversation
// @Tags        Conversations
// @Produce     json
// @Param       id   path      string  true  "Conversation ID"
// @Success     200  {object}  domain.Conversation
// @Failure     403  {object}  handlers.ErrorResponse  "Owned by another user"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Router      /conversations/{id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	conv, err := h.Conversations.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		serviceError(c, err, "Error fetching conversation")
		return
	}
	ok(c, http.StatusOK, conv)
}

// UpdateConversation godoc
// @ID          updateConversation
// @Summary     Rename or re-summarize a conversation
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Param       id    path      string                        true  "Conversation ID"
// @Param       body  body      handlers.ConversationRequest  true  "Fields to change"
// @Success     200   {object}  handlers.SuccessResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403   {object}  handlers.ErrorResponse  "Owned by another user"
// @Failure     404   {object}  handlers.ErrorResponse  "Conversation not found"
// @Router      /conversations/{id} [patch]
func (h *Handlers) UpdateConversation(c *gin.Context) {
	var req ConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if err := h.Conversations.Update(c.Request.Context(), userID(c), c.Param("id"), req.Title, req.Summary); err != nil {
		serviceError(c, err, "Error updating conversation")
		return
	}
	success(c)
}

// DeleteConversation godoc
// @ID          deleteConversation
// @Summary     Delete a conversation and its messages
// @Tags        Conversations
// @Produce     json
// @Param       id   path      string  true  "Conversation ID"
// @Success     200  {object}  handlers.SuccessResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Owned by another user"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Router      /conversations/{id} [delete]
func (h *Handlers) DeleteConversation(c *gin.Context) {
	if err := h.Conversations.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		serviceError(c, err, "Error deleting conversation")
		return
	}
	success(c)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
