// Package handlers provides the HTTP handlers of the public API.
//
// This file defines the response helpers shared by every endpoint. Errors
// use one envelope whose `error` field is the human-readable message, so
// clients written against `{error: string}` keep working:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "error": "Conversation not found",
//	  "code": "not_found",
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000"
//	}
//
// Mutations without a resource body answer `{"success": true}`.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nemo-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Human-readable message (safe to show to users)
	Error string `json:"error" example:"Conversation not found"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// SuccessResponse acknowledges a mutation.
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

// IDResponse carries the id of a created resource.
type IDResponse struct {
	ID string `json:"id" example:"3f2b8c1e4a5d4e6f8a7b"`
}

// fail aborts the request with the error envelope. Server errors are logged
// with the request-scoped logger; the client only sees msg.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg)
		if len(c.Errors) > 0 {
			ev = ev.Str("cause", c.Errors.String())
		}
		ev.Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: middleware.RequestIDFrom(c),
	})
}

// Fail is the exported variant of fail, used by the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func success(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
