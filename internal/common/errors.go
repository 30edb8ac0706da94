package common

import (
	"fmt"
	"net/http"
)

// StatusError is implemented by domain errors that map to an HTTP status.
type StatusError interface {
	error
	StatusCode() int
}

// NotFoundError indicates a notification, shipment or other resource does not exist
// or is not visible to the caller.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.ID)
}

func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError indicates a malformed request, cursor or event.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// RateLimitError indicates a recipient exceeded its publish quota.
type RateLimitError struct {
	Subject string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s", e.Subject)
}

func (e *RateLimitError) StatusCode() int { return http.StatusTooManyRequests }

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(subject string) *RateLimitError {
	return &RateLimitError{Subject: subject}
}

// ProviderError indicates a delivery channel (push fan-out, email) failed.
// Its message is logged but never returned to API callers.
type ProviderError struct {
	Provider string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s delivery failed: %s", e.Provider, e.Message)
}

func (e *ProviderError) StatusCode() int { return http.StatusBadGateway }

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, message string) *ProviderError {
	return &ProviderError{Provider: provider, Message: message}
}
