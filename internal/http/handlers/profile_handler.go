package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nemo-backend/internal/services"
	"github.com/tbourn/nemo-backend/internal/utils"
)

// AnalyzeRequest wraps an analysis. The analysis may also be sent as the
// top-level object.
type AnalyzeRequest struct {
	Analysis *services.Analysis `json:"analysis"`
}

// decodeAnalysis accepts {"analysis": {...}} or the bare analysis object.
func decodeAnalysis(body []byte) (services.Analysis, error) {
	var wrapped AnalyzeRequest
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return services.Analysis{}, err
	}
	if wrapped.Analysis != nil {
		return *wrapped.Analysis, nil
	}
	var a services.Analysis
	err := json.Unmarshal(body, &a)
	return a, err
}

// AnalyzeProfile godoc
// @ID          analyzeProfile
// @Summary     Merge an analysis into the profile
// @Description Applies level, memory entry, weaknesses/strengths/goals, progress, summary and topic in one transaction.
// @Tags        Profile
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.AnalyzeRequest  true  "Analysis"
// @Success     200   {object}  domain.User
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404   {object}  handlers.ErrorResponse  "User not found"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profile/analyze [post]
func (h *Handlers) AnalyzeProfile(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "analysis required")
		return
	}
	a, err := decodeAnalysis(body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	u, err := h.Profiles.Analyze(c.Request.Context(), userID(c), a)
	if err != nil {
		serviceError(c, err, "Error updating profile")
		return
	}
	ok(c, http.StatusOK, u)
}

// DeleteMemoryEntry godoc
// @ID          deleteMemoryEntry
// @Summary     Remove one memory entry by position
// @Description Negative or out-of-range indexes leave the profile unchanged.
// @Tags        Profile
// @Produce     json
// @Param       index  path      int  true  "Zero-based index"
// @Success     200    {object}  domain.User
// @Failure     400    {object}  handlers.ErrorResponse  "Invalid index"
// @Failure     404    {object}  handlers.ErrorResponse  "User not found"
// @Router      /profile/memory/{index} [delete]
func (h *Handlers) DeleteMemoryEntry(c *gin.Context) {
	index, valid := utils.Int(c.Param("index"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid index")
		return
	}
	u, err := h.Profiles.DeleteMemoryEntry(c.Request.Context(), userID(c), index)
	if err != nil {
		serviceError(c, err, "Error deleting memory entry")
		return
	}
	ok(c, http.StatusOK, u)
}
