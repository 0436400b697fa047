// pkg/registry/schema.go
package registry

type FunctionRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Functions   []Function `json:"functions"`
}

type Function struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Route       string   `json:"route"`
	Methods     []string `json:"methods"`
	AuthLevel   string   `json:"authLevel"`
	ErrorCodes  []string `json:"errorCodes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

const (
	AuthLevelAnonymous = "anonymous"
	AuthLevelFunction  = "function"
)
