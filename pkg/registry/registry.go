// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Default returns the functions built into the host.
func Default() *FunctionRegistry {
	return &FunctionRegistry{
		Version:     "1.0.0",
		LastUpdated: "2026-10-01",
		Functions: []Function{
			{
				ID:          "get-tags",
				Name:        "GetTags",
				Description: "Custom indexer skill that copies the CaseNumber blob tag and the tag count into each record",
				Category:    "skills",
				Route:       "/api/GetTags",
				Methods:     []string{http.MethodPost},
				AuthLevel:   AuthLevelFunction,
				ErrorCodes:  []string{"EMPTY_SKILL_REQUEST", "INVALID_SKILL_REQUEST", "FIELD_NOT_FOUND", "BLOB_NOT_FOUND", "BLOB_TAGS_FETCH_FAILED"},
				Tags:        []string{"indexer", "blob-tags"},
			},
			{
				ID:          "submit-chat",
				Name:        "SubmitChat",
				Description: "Answers a legal question from search index chunks through the chat deployment",
				Category:    "chat",
				Route:       "/api/SubmitChat",
				Methods:     []string{http.MethodGet, http.MethodPost},
				AuthLevel:   AuthLevelFunction,
				ErrorCodes:  []string{"INVALID_CHAT_REQUEST", "SEARCH_QUERY_FAILED", "CHAT_COMPLETION_FAILED"},
				Tags:        []string{"rag", "chat"},
			},
			{
				ID:          "list-containers",
				Name:        "Function1",
				Description: "Logs the containers of the storage account and returns a greeting",
				Category:    "diagnostics",
				Route:       "/api/Function1",
				Methods:     []string{http.MethodGet, http.MethodPost},
				AuthLevel:   AuthLevelFunction,
				ErrorCodes:  []string{"CONTAINER_LISTING_FAILED"},
				Tags:        []string{"diagnostics"},
			},
		},
	}
}

func LoadRegistry(path string) (*FunctionRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg FunctionRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse function registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks that ids and routes are unique and every function is routable.
func (r *FunctionRegistry) Validate() error {
	ids := make(map[string]bool)
	routes := make(map[string]bool)
	for i, fn := range r.Functions {
		if fn.ID == "" {
			return fmt.Errorf("function %d: id is required", i)
		}
		if !strings.HasPrefix(fn.Route, "/") {
			return fmt.Errorf("function %s: route must start with /", fn.ID)
		}
		if len(fn.Methods) == 0 {
			return fmt.Errorf("function %s: at least one method is required", fn.ID)
		}
		if ids[fn.ID] {
			return fmt.Errorf("function %s: duplicate id", fn.ID)
		}
		if routes[fn.Route] {
			return fmt.Errorf("function %s: duplicate route %s", fn.ID, fn.Route)
		}
		ids[fn.ID] = true
		routes[fn.Route] = true
	}
	return nil
}

// Find returns the function with the given id.
func (r *FunctionRegistry) Find(id string) (Function, bool) {
	for _, fn := range r.Functions {
		if fn.ID == id {
			return fn, true
		}
	}
	return Function{}, false
}

// ListHandler serves the registry entries whose ids satisfy enabled.
func (r *FunctionRegistry) ListHandler(enabled func(id string) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		listed := make([]Function, 0, len(r.Functions))
		for _, fn := range r.Functions {
			if enabled == nil || enabled(fn.ID) {
				listed = append(listed, fn)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(FunctionRegistry{
			Version:     r.Version,
			LastUpdated: r.LastUpdated,
			Functions:   listed,
		})
	}
}
