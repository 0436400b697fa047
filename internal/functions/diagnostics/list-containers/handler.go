// internal/functions/diagnostics/list-containers/handler.go
package listcontainers

import (
	"context"
	"io"
	"net/http"

	"legal-rag-functions/internal/common/errors"
	commonhttp "legal-rag-functions/internal/common/http"
	"legal-rag-functions/internal/common/storage"
)

const FunctionName = "Function1"

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Handler enumerates the storage account's containers into the log and answers
// with a fixed greeting. Listing failures never change the response.
type Handler struct {
	config *Config
	lister storage.ContainerLister
	logger Logger
}

func NewHandler(config *Config, lister storage.ContainerLister, log Logger) *Handler {
	return &Handler{
		config: config,
		lister: lister,
		logger: log.With(map[string]interface{}{
			"functionName": FunctionName,
		}),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With(map[string]interface{}{
		"invocationId": commonhttp.InvocationIDFromContext(r.Context()),
	})

	log.Info("Listing containers", nil)
	h.logContainers(r.Context(), log)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, h.config.Greeting)
}

func (h *Handler) logContainers(ctx context.Context, log Logger) {
	if h.lister == nil {
		log.Warn("No container lister configured", nil)
		return
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	names, err := h.lister.ListContainers(ctx)
	if err != nil {
		stdErr := errors.NewContainerListingFailedError(err)
		log.Warn("Failed to list containers", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		return
	}

	for _, name := range names {
		log.Info("Container", map[string]interface{}{"name": name})
	}
	log.Info("Listed containers", map[string]interface{}{"containerCount": len(names)})
}
