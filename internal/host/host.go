// internal/host/host.go
package host

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"legal-rag-functions/internal/common/config"
	commonhttp "legal-rag-functions/internal/common/http"
	"legal-rag-functions/internal/common/logger"
	"legal-rag-functions/internal/common/observability"
	"legal-rag-functions/internal/common/storage"
	"legal-rag-functions/pkg/registry"

	submitchat "legal-rag-functions/internal/functions/chat/submit-chat"
	listcontainers "legal-rag-functions/internal/functions/diagnostics/list-containers"
	gettags "legal-rag-functions/internal/functions/skills/get-tags"
)

// Backends are the external services the functions talk to. A nil backend
// leaves the functions that need it unmounted.
type Backends struct {
	Tags       storage.TagReader
	Containers storage.ContainerLister
	Searcher   submitchat.Searcher
	Chat       submitchat.ChatBackend
	Readiness  map[string]commonhttp.ReadinessCheck
}

// NewRouter mounts every enabled function at its registry route.
func NewRouter(cfg *config.Config, reg *registry.FunctionRegistry, backends Backends, obs *observability.Observability, log logger.Logger) (chi.Router, error) {
	handlers := map[string]http.Handler{}

	if config.IsFunctionEnabled(cfg, config.FunctionGetTags) && backends.Tags != nil {
		skillsCfg := gettags.LoadConfig(cfg.Skills)
		processor := gettags.NewProcessor(skillsCfg, backends.Tags, obs)
		handlers[config.FunctionGetTags] = gettags.NewHandler(skillsCfg, processor, &getTagsLoggerAdapter{log})
	}

	if config.IsFunctionEnabled(cfg, config.FunctionSubmitChat) && backends.Searcher != nil && backends.Chat != nil {
		chatCfg := submitchat.LoadConfig(cfg.Search, cfg.Chat)
		orchestrator := submitchat.NewOrchestrator(backends.Chat, chatCfg, obs)
		handlers[config.FunctionSubmitChat] = submitchat.NewHandler(chatCfg, backends.Searcher, orchestrator, &submitChatLoggerAdapter{log})
	}

	if config.IsFunctionEnabled(cfg, config.FunctionListContainers) {
		handlers[config.FunctionListContainers] = listcontainers.NewHandler(
			listcontainers.LoadConfig(cfg.Storage), backends.Containers, &listContainersLoggerAdapter{log})
	}

	r := commonhttp.NewRouter(backends.Readiness)
	for id, handler := range handlers {
		fn, ok := reg.Find(id)
		if !ok {
			return nil, fmt.Errorf("function %q is not in the registry", id)
		}
		instrumented := commonhttp.Instrument(fn.Name, obs, log)(handler)
		for _, method := range fn.Methods {
			r.Method(method, fn.Route, instrumented)
		}
		log.Info("function mounted", map[string]interface{}{
			"function": fn.Name,
			"route":    fn.Route,
			"methods":  fn.Methods,
		})
	}

	r.Get("/api/functions", reg.ListHandler(func(id string) bool {
		_, mounted := handlers[id]
		return mounted
	}))

	return r, nil
}

// Logger adapters for functions that have their own Logger interfaces
type getTagsLoggerAdapter struct {
	logger.Logger
}

func (a *getTagsLoggerAdapter) With(fields map[string]interface{}) gettags.Logger {
	return &getTagsLoggerAdapter{a.Logger.With(fields)}
}

type submitChatLoggerAdapter struct {
	logger.Logger
}

func (a *submitChatLoggerAdapter) With(fields map[string]interface{}) submitchat.Logger {
	return &submitChatLoggerAdapter{a.Logger.With(fields)}
}

type listContainersLoggerAdapter struct {
	logger.Logger
}

func (a *listContainersLoggerAdapter) With(fields map[string]interface{}) listcontainers.Logger {
	return &listContainersLoggerAdapter{a.Logger.With(fields)}
}
