// internal/functions/chat/submit-chat/handler.go
package submitchat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"legal-rag-functions/internal/common/errors"
	commonhttp "legal-rag-functions/internal/common/http"
)

const (
	FunctionName = "SubmitChat"

	unexpectedErrorMessage = "An unexpected error occurred."
	defaultMaxBodyBytes    = 1 << 20
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config       *Config
	searcher     Searcher
	orchestrator *Orchestrator
	errHandler   *errors.ErrorHandler
	logger       Logger
}

func NewHandler(config *Config, searcher Searcher, orchestrator *Orchestrator, log Logger) *Handler {
	log = log.With(map[string]interface{}{
		"functionName": FunctionName,
	})
	return &Handler{
		config:       config,
		searcher:     searcher,
		orchestrator: orchestrator,
		errHandler:   errors.NewErrorHandler(log, unexpectedErrorMessage),
		logger:       log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With(map[string]interface{}{
		"invocationId": commonhttp.InvocationIDFromContext(r.Context()),
	})

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while answering question", map[string]interface{}{"panic": rec})
			h.errHandler.WriteError(w, r, fmt.Errorf("panic: %v", rec))
		}
	}()

	question, err := h.readQuestion(w, r)
	if err != nil {
		h.errHandler.WriteError(w, r, err)
		return
	}

	answer, err := h.execute(r.Context(), question, log)
	if err != nil {
		h.errHandler.WriteError(w, r, err)
		return
	}

	log.Info("Completed and returned response", map[string]interface{}{
		"answerLength": len(answer),
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, answer)
}

func (h *Handler) readQuestion(w http.ResponseWriter, r *http.Request) (string, error) {
	limit := h.config.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return "", errors.NewInvalidChatRequestError()
	}
	question := string(body)
	if strings.TrimSpace(question) == "" {
		return "", errors.NewInvalidChatRequestError()
	}
	return question, nil
}

func (h *Handler) execute(ctx context.Context, question string, log Logger) (string, error) {
	log.Info("Sending user query to search index", map[string]interface{}{
		"index": h.config.Index,
	})

	searchCtx := ctx
	if h.config.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, h.config.SearchTimeout)
		defer cancel()
	}

	chunks, err := h.searcher.Search(searchCtx, question)
	if err != nil {
		return "", errors.NewSearchQueryFailedError(h.config.Index, err)
	}

	conv := Assemble(h.config.SystemPrompt, NonBlank(chunks), question)

	log.Info("Plugging search context into chat", map[string]interface{}{
		"contextCount": len(conv.Contexts),
		"primeMode":    h.config.PrimeMode,
	})

	return h.orchestrator.Answer(ctx, conv)
}
