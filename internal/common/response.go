package common

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse wraps responses of the service-to-service routes.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError contains error details in the response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Success sends data wrapped in the envelope.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, APIResponse{Success: true, Data: data})
}

// Raw sends data without the envelope. The client-facing /api routes use bare
// payloads so that the sync contract stays {notifications, lastId, hasMore}.
func Raw(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, data)
}

// Error sends an error response.
func Error(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{
		Error: &APIError{Code: statusCode, Message: message},
	})
}

// HandleError maps err to a response. Errors anywhere in the chain that
// implement StatusError choose the status; anything else is a 500.
func HandleError(c *gin.Context, err error) {
	var se StatusError
	if !errors.As(err, &se) {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		Error(c, http.StatusInternalServerError, "internal server error")
		return
	}

	code := se.StatusCode()
	msg := se.Error()
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		msg = "notification delivery failed"
	}
	Error(c, code, msg)
}
