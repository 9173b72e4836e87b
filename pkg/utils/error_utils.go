package utils

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// APIError is the standardized error payload returned by every endpoint.
type APIError struct {
	StatusCode int                    `json:"-"` // HTTP status code, not included in JSON response body
	Code       string                 `json:"code,omitempty"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Fields     map[string]string      `json:"fields,omitempty"` // field name -> violation, for validation failures
	Meta       map[string]interface{} `json:"meta,omitempty"`   // extra machine-readable context (e.g. shortfall amounts)
}

// NewAPIError creates a new APIError instance.
func NewAPIError(statusCode int, code string, message string, details string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Details:    details,
	}
}

// WithFields attaches field-level validation detail to the error.
func (e *APIError) WithFields(fields map[string]string) *APIError {
	e.Fields = fields
	return e
}

// WithMeta attaches machine-readable context to the error.
func (e *APIError) WithMeta(meta map[string]interface{}) *APIError {
	e.Meta = meta
	return e
}

// RespondWithError sends a standardized JSON error response and aborts the chain.
func RespondWithError(c *gin.Context, err *APIError) {
	c.JSON(err.StatusCode, gin.H{"error": err})
	c.Abort()
}

// Common application error codes.
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeInternalServerError = "INTERNAL_SERVER_ERROR"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeInsufficientPoints  = "INSUFFICIENT_POINTS"
	ErrCodeLimitExceeded       = "LIMIT_EXCEEDED"
)

// IsEmpty checks if a string is empty after trimming whitespace.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}
