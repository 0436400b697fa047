// Package errors provides standardized error handling for the HTTP functions.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"

	ErrCodeInvalidSkillRequest ErrorCode = "INVALID_SKILL_REQUEST"
	ErrCodeEmptySkillRequest   ErrorCode = "EMPTY_SKILL_REQUEST"
	ErrCodeInvalidChatRequest  ErrorCode = "INVALID_CHAT_REQUEST"

	ErrCodeFieldNotFound       ErrorCode = "FIELD_NOT_FOUND"
	ErrCodeBlobNotFound        ErrorCode = "BLOB_NOT_FOUND"
	ErrCodeBlobTagsFetchFailed ErrorCode = "BLOB_TAGS_FETCH_FAILED"

	ErrCodeSearchQueryFailed    ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeChatCompletionFailed ErrorCode = "CHAT_COMPLETION_FAILED"

	ErrCodeContainerListingFailed ErrorCode = "CONTAINER_LISTING_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewConfigurationInvalidError reports a missing or malformed setting.
func NewConfigurationInvalidError(err error) *StandardError {
	return newError(ErrCodeConfigurationInvalid, "Service is not configured", err.Error(), false, err)
}

// NewAuthenticationError creates a non-retryable credential error.
func NewAuthenticationError(service string, err error) *StandardError {
	return newError(ErrCodeAuthenticationFailed,
		fmt.Sprintf("Authentication with %s failed", service), err.Error(), false, err)
}

// NewInvalidSkillRequestError creates a validation error for a malformed skill payload.
func NewInvalidSkillRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidSkillRequest, "Invalid skill request.", details, false, nil)
}

// NewEmptySkillRequestError is returned when the batch carries no records.
func NewEmptySkillRequestError() *StandardError {
	return newError(ErrCodeEmptySkillRequest, "No values provided in skill request.", "", false, nil)
}

// NewInvalidChatRequestError is returned when the chat body carries no question.
func NewInvalidChatRequestError() *StandardError {
	return newError(ErrCodeInvalidChatRequest, "No question provided.", "", false, nil)
}

// NewFieldNotFoundError reports a record whose data lacks the expected field.
func NewFieldNotFoundError(field string) *StandardError {
	return newError(ErrCodeFieldNotFound,
		fmt.Sprintf("%s not found in record data", field), "", false, nil)
}

// NewBlobNotFoundError creates a non-retryable missing blob error.
func NewBlobNotFoundError(uri string, err error) *StandardError {
	return newError(ErrCodeBlobNotFound, "Blob not found", fmt.Sprintf("uri: %s, error: %s", uri, err.Error()), false, err)
}

// NewBlobTagsFetchFailedError creates a retryable storage error.
func NewBlobTagsFetchFailedError(uri string, err error) *StandardError {
	return newError(ErrCodeBlobTagsFetchFailed, "Blob tag lookup failed", fmt.Sprintf("uri: %s, error: %s", uri, err.Error()), true, err)
}

// NewSearchQueryFailedError creates a search backend error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Search query failed", fmt.Sprintf("index: %s, error: %s", index, err.Error()), true, err)
}

// NewChatCompletionFailedError creates a chat backend error.
func NewChatCompletionFailedError(phase string, retryable bool, err error) *StandardError {
	return newError(ErrCodeChatCompletionFailed, "Chat completion failed", fmt.Sprintf("phase: %s, error: %s", phase, err.Error()), retryable, err)
}

// NewContainerListingFailedError creates a storage enumeration error.
func NewContainerListingFailedError(err error) *StandardError {
	return newError(ErrCodeContainerListingFailed, "Container listing failed", err.Error(), true, err)
}

// ==========================
// 3. HTTP Mapping
// ==========================

// publicMessages are the only texts written to HTTP clients for server-side failures.
var publicMessages = map[ErrorCode]string{
	ErrCodeConfigurationInvalid:   "Service is not configured.",
	ErrCodeAuthenticationFailed:   "Authentication with a backend service failed.",
	ErrCodeSearchQueryFailed:      "Error communicating with search service.",
	ErrCodeChatCompletionFailed:   "Error communicating with OpenAI service.",
	ErrCodeContainerListingFailed: "Error communicating with storage service.",
}

// HTTPStatus returns the response status for an error code.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidSkillRequest, ErrCodeEmptySkillRequest, ErrCodeInvalidChatRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the response body for err. Client errors carry their own
// message; server errors never expose details.
func PublicMessage(err *StandardError, fallback string) string {
	if HTTPStatus(err.Code) == http.StatusBadRequest {
		if err.Details != "" {
			return fmt.Sprintf("%s %s", err.Message, err.Details)
		}
		return err.Message
	}
	if msg, ok := publicMessages[err.Code]; ok {
		return msg
	}
	return fallback
}

// ==========================
// 4. Utility Functions
// ==========================

// AsStandardError unwraps err into a *StandardError if one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize ensures we always have a StandardError
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONFIGURATION"):
		return "CONFIG"
	case strings.Contains(codeStr, "AUTHENTICATION"):
		return "AUTH"
	case strings.Contains(codeStr, "BLOB") || strings.Contains(codeStr, "CONTAINER"):
		return "STORAGE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "CHAT"):
		return "AI"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "EMPTY") || strings.Contains(codeStr, "NOT_FOUND"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
