// internal/common/errors/handler.go
package errors

import (
	"net/http"

	"legal-rag-functions/internal/common/logger"
)

// ErrorHandler turns handler errors into HTTP responses with standardized logging.
type ErrorHandler struct {
	logger   Logger
	fallback string
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// NewErrorHandler creates a handler that answers unclassified failures with fallback.
func NewErrorHandler(logger Logger, fallback string) *ErrorHandler {
	if fallback == "" {
		fallback = "An unexpected error occurred."
	}
	return &ErrorHandler{logger: logger, fallback: fallback}
}

// WriteError normalizes err, logs it and writes the status and public message.
func (h *ErrorHandler) WriteError(w http.ResponseWriter, r *http.Request, err error) *StandardError {
	stdErr := Normalize(err)
	status := HTTPStatus(stdErr.Code)

	h.logError(r, stdErr, status)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(PublicMessage(stdErr, h.fallback)))
	return stdErr
}

// logError prefers the invocation-scoped logger placed on the request context.
func (h *ErrorHandler) logError(r *http.Request, stdErr *StandardError, status int) {
	var log Logger = h.logger
	if scoped := logger.FromContext(r.Context(), nil); scoped != nil {
		log = scoped
	}
	log.Error("Request failed", map[string]interface{}{
		"method":        r.Method,
		"path":          r.URL.Path,
		"status":        status,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	})
}
