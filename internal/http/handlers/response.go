// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the error envelope, the mapping from service errors to
// status codes, and small success helpers.
//
//	HTTP/1.1 502 Bad Gateway
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "generation_failed",
//	  "message": "could not generate a reply, please try again",
//	  "turn_id": "7d0c..."
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sickco/sickco-backend/internal/http/middleware"
	"github.com/sickco/sickco-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"bad_request"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"invalid input: message is empty"`
	// Turn left reply-pending by a failed submission, if any
	TurnID string `json:"turn_id,omitempty" example:"3b7e9c1a-4d2f-4e43-9a51-6f1f0e2f8a10"`
}

// fail aborts the request with a structured error. 5xx responses are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	failTurn(c, status, code, msg, "")
}

func failTurn(c *gin.Context, status int, code, msg, turnID string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("turn_id", turnID).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.GetRequestID(c),
		Code:      code,
		Message:   msg,
		TurnID:    turnID,
	})
}

// Fail is the exported variant of fail() for router-level responses.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// Unauthorized is the deny hook for the auth middleware. The verifier's
// reason is logged, never returned.
func Unauthorized(c *gin.Context, err error) {
	middleware.LoggerFrom(c).Warn().Err(err).Msg("authentication failed")
	fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
}

// failErr translates a service error into a response. Validation messages
// are returned verbatim; collaborator causes are not.
func failErr(c *gin.Context, err error) {
	var pe *services.PipelineError
	turnID := ""
	if errors.As(err, &pe) {
		turnID = pe.TurnID
	}

	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	case errors.Is(err, services.ErrTurnNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "turn not found")
	case errors.Is(err, services.ErrReplyPending):
		fail(c, http.StatusConflict, ErrCodeConflict, "turn has no reply to rate")
	case errors.Is(err, services.ErrDuplicateFeedback):
		fail(c, http.StatusConflict, ErrCodeConflict, "feedback already exists")
	case errors.Is(err, services.ErrGeneration):
		failTurn(c, http.StatusBadGateway, ErrCodeGenerationFailed, "could not generate a reply, please try again", turnID)
	case errors.Is(err, services.ErrStore):
		failTurn(c, http.StatusInternalServerError, ErrCodeStoreFailed, "could not save or load your conversation", turnID)
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
