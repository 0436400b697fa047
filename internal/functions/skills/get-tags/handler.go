// internal/functions/skills/get-tags/handler.go
package gettags

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"legal-rag-functions/internal/common/errors"
	commonhttp "legal-rag-functions/internal/common/http"
	"legal-rag-functions/internal/common/validation"
)

const (
	FunctionName = "GetTags"

	internalErrorMessage = "Internal server error."
	defaultMaxBodyBytes  = 16 << 20
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config     *Config
	processor  *Processor
	validator  *validation.Validator
	errHandler *errors.ErrorHandler
	logger     Logger
}

func NewHandler(config *Config, processor *Processor, log Logger) *Handler {
	log = log.With(map[string]interface{}{
		"functionName": FunctionName,
	})
	return &Handler{
		config:     config,
		processor:  processor,
		validator:  validation.MustNewValidator(validation.SkillRequestSchema),
		errHandler: errors.NewErrorHandler(log, internalErrorMessage),
		logger:     log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With(map[string]interface{}{
		"invocationId": commonhttp.InvocationIDFromContext(r.Context()),
	})

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while processing skill request", map[string]interface{}{"panic": rec})
			h.errHandler.WriteError(w, r, fmt.Errorf("panic: %v", rec))
		}
	}()

	req, err := h.parseRequest(w, r)
	if err != nil {
		h.errHandler.WriteError(w, r, err)
		return
	}

	log.Info("processing skill request", map[string]interface{}{
		"recordCount": len(req.Values),
	})

	results := h.processor.Process(r.Context(), req.Values)

	resp := SkillResponse{Values: make([]SkillResponseRecord, 0, len(results))}
	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			log.Warn("record failed", map[string]interface{}{
				"recordId": result.RecordID,
				"error":    result.Err.Error(),
			})
		}
		resp.Values = append(resp.Values, result.ToResponseRecord())
	}

	body, err := json.Marshal(resp)
	if err != nil {
		h.errHandler.WriteError(w, r, err)
		return
	}

	log.Info("skill request completed", map[string]interface{}{
		"recordCount":  len(results),
		"failedCount":  failed,
		"successCount": len(results) - failed,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// parseRequest enforces the batch contract before any backend call is made.
func (h *Handler) parseRequest(w http.ResponseWriter, r *http.Request) (*SkillRequest, error) {
	limit := h.config.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, errors.NewInvalidSkillRequestError("request body could not be read")
	}

	// A blank body deserializes to no request at all, which is an empty batch.
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.NewEmptySkillRequestError()
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.NewInvalidSkillRequestError("request body is not valid JSON")
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		if raw == nil {
			return nil, errors.NewEmptySkillRequestError()
		}
		return nil, errors.NewInvalidSkillRequestError("request body must be a JSON object")
	}
	values, present := obj["values"]
	if !present || values == nil {
		return nil, errors.NewEmptySkillRequestError()
	}
	if list, ok := values.([]interface{}); ok && len(list) == 0 {
		return nil, errors.NewEmptySkillRequestError()
	}

	result, err := h.validator.ValidateValue(raw)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, errors.NewInvalidSkillRequestError(result.Summary())
	}

	var req SkillRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.NewInvalidSkillRequestError("request body does not match the skill contract")
	}
	return &req, nil
}
