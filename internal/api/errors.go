package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/editorhub/editors/internal/lock"
	"github.com/editorhub/editors/internal/review"
	"github.com/editorhub/editors/pkg/logging"
)

var (
	// ErrBadRequest marks malformed or missing request input
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound marks a path resource that does not exist
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks a caller who may not manage the community
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized marks a missing or invalid access token
	ErrUnauthorized = errors.New("authentication required")
)

// Error represents an API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// StatusFor maps a domain error to its HTTP status
func StatusFor(err error) int {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.Is(err, ErrBadRequest), errors.Is(err, review.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, lock.ErrNoIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden),
		errors.Is(err, lock.ErrConflict),
		errors.Is(err, review.ErrForbidden),
		errors.Is(err, review.ErrAlreadyReviewed):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, lock.ErrNotFound), errors.Is(err, review.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the error body and stops the handler chain.
// Internal errors are logged and their message is not exposed.
func abortWithError(c *gin.Context, err error) {
	status := StatusFor(err)
	message := err.Error()
	var apiErr *Error
	if errors.As(err, &apiErr) {
		message = apiErr.Message
	}
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("Request failed", zap.Error(err))
		message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": NewError(status, message)})
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrBadRequest}, args...)...)
}
